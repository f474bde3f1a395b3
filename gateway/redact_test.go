package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedact_APIKey(t *testing.T) {
	out := Redact("my key is sk-abcdefghijklmnopqrstuvwxyz123456")
	assert.Contains(t, out, "[REDACTED_API_KEY]")
	assert.NotContains(t, out, "sk-abcdefghijklmnopqrstuvwxyz123456")
}

func TestRedact_BearerToken(t *testing.T) {
	out := Redact("Authorization: Bearer abc123.def456-ghi")
	assert.Contains(t, out, "Bearer [REDACTED_TOKEN]")
}

func TestRedact_SecretAssignment(t *testing.T) {
	out := Redact("password=hunter2 and api_key: xyz987")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "xyz987")
}

func TestRedact_Email(t *testing.T) {
	out := Redact("contact jane.doe@example.com for access")
	assert.Contains(t, out, "[REDACTED_EMAIL]")
}

func TestRedact_HomePath(t *testing.T) {
	out := Redact("file lives at /home/jdoe/project/secrets.yaml")
	assert.Contains(t, out, "[REDACTED_USER]")
	assert.NotContains(t, out, "jdoe")
}

func TestRedact_LeavesCleanTextUnchanged(t *testing.T) {
	in := "what is the weather forecast for tomorrow?"
	assert.Equal(t, in, Redact(in))
}
