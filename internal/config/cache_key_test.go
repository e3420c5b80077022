package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheKey_Drafts(t *testing.T) {
	assert.Equal(t, "draft:exam:e1:student:s1", CacheKey.DraftBaseKey("e1", "s1"))
	assert.Equal(t, "draft:exam:e1:student:s1:session:abc", CacheKey.DraftSessionKey("e1", "s1", "abc"))
	assert.Equal(t, "draft:exam:e1:student:s1:last_session", CacheKey.DraftPointerKey("e1", "s1"))
}

func TestCacheKey_Server(t *testing.T) {
	assert.Equal(t, "exam:e1:payload", CacheKey.ExamPayloadKey("e1"))
	assert.Equal(t, "attempt:a1:snapshot", CacheKey.AttemptSnapshotKey("a1"))
	assert.Equal(t, "attempt:a1:owner", CacheKey.AttemptOwnerKey("a1"))
	assert.Equal(t, "exam:e1:attempts", CacheKey.AttemptMonitorChannel("e1"))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION_OK", "1500ms")
	t.Setenv("TEST_DURATION_BAD", "soon")
	t.Setenv("TEST_DURATION_NEG", "-1s")

	assert.Equal(t, 1500*time.Millisecond, getEnvDuration("TEST_DURATION_OK", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("TEST_DURATION_BAD", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("TEST_DURATION_NEG", time.Second))
	assert.Equal(t, time.Minute, getEnvDuration("TEST_DURATION_UNSET", time.Minute))
}

func TestParseOrigins(t *testing.T) {
	assert.Nil(t, parseOrigins(""))
	assert.Equal(t, []string{"http://a", "http://b"}, parseOrigins(" http://a , ,http://b"))
}
