package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptStatusKey returns the store key for a user's attempt status on an exam.
func (r *CacheKeyStruct) AttemptStatusKey(userID, examID string) string {
	return fmt.Sprintf("attempt:%s:exam:%s:status", userID, examID)
}

// SessionSnapshotKey returns the store key for a user's live session snapshot on an exam.
func (r *CacheKeyStruct) SessionSnapshotKey(userID, examID string) string {
	return fmt.Sprintf("attempt:%s:exam:%s:session", userID, examID)
}

var CacheKey = NewCacheKeyStruct()
