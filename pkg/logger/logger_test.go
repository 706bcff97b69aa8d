package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"dataset_id", "abc",
		"api_key", "sk-123",
		"Authorization", "Bearer x",
		"dangling",
	})

	assert.Equal(t, []interface{}{
		"dataset_id", "abc",
		"api_key", "[REDACTED]",
		"Authorization", "[REDACTED]",
		"dangling",
	}, out)
}

func TestRedactKeysCoverServiceCredentials(t *testing.T) {
	for _, key := range []string{
		"service_role_key", "Service-Role-Key", "openai_api_key", "gemini_api_key",
		"storage_secret_key", "redis_password", "DATABASE_URL", "dsn", "access_token", "jwt_secret",
	} {
		out := sanitizeKVs([]interface{}{key, "value"})
		assert.Equal(t, "[REDACTED]", out[1], key)
	}

	for _, key := range []string{"dataset_id", "user_id", "file_url", "tokens", "model"} {
		out := sanitizeKVs([]interface{}{key, "value"})
		assert.Equal(t, "value", out[1], key)
	}
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	l := Nop().With("service", "test")
	l.Info("hello", "k", "v")
	l.Error("boom", "error", "x")
	l.Sync()
}
