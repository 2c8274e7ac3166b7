package session

import (
	"context"
	"fmt"
	"time"

	"github.com/prepforge/session-backend/internal/clock"
	"github.com/prepforge/session-backend/internal/genapi"
	"github.com/prepforge/session-backend/internal/model"
	"github.com/rs/zerolog"
)

// Sink receives the poller's classified results. The controller implements
// it; poller tests substitute a fake.
type Sink interface {
	// MergeGeneratedQuestions appends questions not merged before,
	// preserving arrival order, and returns the number actually added.
	MergeGeneratedQuestions(qs []model.Question) int
	// GenerationComplete signals that the full set has been generated.
	GenerationComplete(p model.GenerationProgress)
	// GenerationPartialUsable signals that generation errored but the
	// session may proceed with the questions generated so far.
	GenerationPartialUsable(p model.GenerationProgress)
	// GenerationFailed signals an unrecoverable generation error with no
	// usable question set.
	GenerationFailed(message string)
}

// Poller periodically checks generation status for a handle and feeds the
// results into its sink.
type Poller struct {
	api         genapi.Service
	clk         clock.Clock
	log         zerolog.Logger
	interval    time.Duration
	maxFailures int
}

// NewPoller creates a Poller. The interval is clamped to at least one second
// so a zero-valued config cannot hot-loop against the generator.
func NewPoller(api genapi.Service, clk clock.Clock, log zerolog.Logger, interval time.Duration, maxFailures int) *Poller {
	if interval < time.Second {
		interval = time.Second
	}
	if maxFailures < 1 {
		maxFailures = 5
	}
	return &Poller{
		api:         api,
		clk:         clk,
		log:         log.With().Str("component", "generation_poller").Logger(),
		interval:    interval,
		maxFailures: maxFailures,
	}
}

// Run polls until the generator reports a terminal condition or ctx is
// cancelled. One status request per tick, issued sequentially from this
// goroutine, so responses cannot arrive out of order. Transient request
// failures are tolerated up to maxFailures consecutive misses, then reported
// as fatal.
func (p *Poller) Run(ctx context.Context, handle string, sink Sink) {
	t := p.clk.NewTicker(p.interval)
	defer t.Stop()

	failures := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			st, err := p.api.PollGenerationStatus(ctx, handle)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				failures++
				p.log.Warn().Err(err).
					Str("handle", handle).
					Int("consecutive_failures", failures).
					Msg("Status check failed")
				if failures >= p.maxFailures {
					sink.GenerationFailed(fmt.Sprintf("generation status unreachable after %d attempts", failures))
					return
				}
				continue
			}
			failures = 0

			sink.MergeGeneratedQuestions(st.Questions)

			prog := st.Progress
			switch {
			case prog.IsComplete:
				sink.GenerationComplete(prog)
				return
			case prog.HasError && !prog.CanUsePartial:
				msg := prog.ErrorMessage
				if msg == "" {
					msg = "generation failed with no usable question set"
				}
				sink.GenerationFailed(msg)
				return
			case prog.HasError && prog.CanUsePartial:
				sink.GenerationPartialUsable(prog)
				return
			}
		}
	}
}
