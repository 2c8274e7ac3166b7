package model

// GenerationProgress is a transient snapshot of the background generator's
// state for one generation handle. Only its effects (merged questions, phase
// transitions) outlive the poll that produced it.
type GenerationProgress struct {
	GeneratedCount int    `json:"generated_count"`
	TotalNeeded    int    `json:"total_needed"`
	IsComplete     bool   `json:"is_complete"`
	HasError       bool   `json:"has_error"`
	CanUsePartial  bool   `json:"can_use_partial"`
	ErrorMessage   string `json:"error_message,omitempty"`
}
