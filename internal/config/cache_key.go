package config

import "fmt"

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserAnswersKey returns the cache key mirroring a user's selected answers
// for one test session.
func (r *CacheKeyStruct) UserAnswersKey(userID int, sessionID string) string {
	return fmt.Sprintf("user:%d:test:%s:answers", userID, sessionID)
}

// UserFlagsKey returns the cache key mirroring a user's flagged questions
// for one test session.
func (r *CacheKeyStruct) UserFlagsKey(userID int, sessionID string) string {
	return fmt.Sprintf("user:%d:test:%s:flags", userID, sessionID)
}

// UserActiveTestKey returns the cache key recording which session a user
// currently has live.
func (r *CacheKeyStruct) UserActiveTestKey(userID int) string {
	return fmt.Sprintf("user:%d:active_test", userID)
}

var CacheKey = NewCacheKeyStruct()
