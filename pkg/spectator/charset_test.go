package spectator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTagComponentReplacesDisallowedCharacters(t *testing.T) {
	assert.Equal(t, "foo_bar", sanitizeTagComponent("env", "foo bar"))
	assert.Equal(t, "a-b._c", sanitizeTagComponent("env", "a-b._c"), "default-allowed punctuation passes through unchanged")
}

func TestSanitizeTagComponentPerKeyOverride(t *testing.T) {
	v := "node-pool~gpu^a100"
	assert.Equal(t, v, sanitizeTagComponent("cluster", v), "cluster gets the widened ^ ~ override")
	assert.Equal(t, "node-pool_gpu_a100", sanitizeTagComponent("env", v), "the same value under a different key is sanitized")
}

func TestSanitizeTagComponentReplacesNonASCII(t *testing.T) {
	assert.Equal(t, "caf__", sanitizeTagComponent("env", "café"), "the 2-byte UTF-8 encoding of é becomes two replacement underscores")
}
