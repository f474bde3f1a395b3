package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_CollapsesWhitespaceAndCase(t *testing.T) {
	assert.Equal(t, "what is go", Normalize("  What   IS\tGo  "))
}

func TestFingerprint_StableAcrossRosterPermutation(t *testing.T) {
	a := Fingerprint("what is concurrency in go?", "technical", []string{"k1", "k2", "k3"}, "proj1")
	b := Fingerprint("what is concurrency in go?", "technical", []string{"k3", "k1", "k2"}, "proj1")
	assert.Equal(t, a, b)
}

func TestFingerprint_DiffersOnQuestionChange(t *testing.T) {
	a := Fingerprint("question one", "general", []string{"k1"}, "proj1")
	b := Fingerprint("question two", "general", []string{"k1"}, "proj1")
	assert.NotEqual(t, a, b)
}

func TestFingerprint_DiffersOnProjectFingerprint(t *testing.T) {
	a := Fingerprint("question", "general", []string{"k1"}, "proj1")
	b := Fingerprint("question", "general", []string{"k1"}, "proj2")
	assert.NotEqual(t, a, b)
}
