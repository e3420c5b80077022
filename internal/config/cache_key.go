package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// DraftBaseKey returns the prefix shared by every draft of a student on an exam
func (r *CacheKeyStruct) DraftBaseKey(examID, studentID string) string {
	return fmt.Sprintf("draft:exam:%s:student:%s", examID, studentID)
}

// DraftSessionKey returns the key of one attempt session's draft snapshot
func (r *CacheKeyStruct) DraftSessionKey(examID, studentID, sessionID string) string {
	return fmt.Sprintf("%s:session:%s", r.DraftBaseKey(examID, studentID), sessionID)
}

// DraftPointerKey returns the key holding the student's current session id
func (r *CacheKeyStruct) DraftPointerKey(examID, studentID string) string {
	return fmt.Sprintf("%s:last_session", r.DraftBaseKey(examID, studentID))
}

// ExamPayloadKey returns the cache key for an exam's payload
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// AttemptSnapshotKey returns the cache key for the latest autosaved snapshot of an attempt
func (r *CacheKeyStruct) AttemptSnapshotKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:snapshot", attemptID)
}

// AttemptOwnerKey holds the id of the student who owns an attempt
func (r *CacheKeyStruct) AttemptOwnerKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:owner", attemptID)
}

// AttemptMonitorChannel returns the Redis PubSub channel name for live attempt updates of an exam
func (r *CacheKeyStruct) AttemptMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:attempts", examID)
}

var CacheKey = NewCacheKeyStruct()
