package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetector_FlagsScriptInjection(t *testing.T) {
	d := NewDetector()
	hits := d.Scan(`<script>alert(1)</script>`)
	assert.Contains(t, hits, CategoryScript)
}

func TestDetector_FlagsSQLInjection(t *testing.T) {
	d := NewDetector()
	hits := d.Scan(`1' OR '1'='1`)
	assert.Contains(t, hits, CategorySQL)
}

func TestDetector_FlagsCommandInjection(t *testing.T) {
	d := NewDetector()
	hits := d.Scan(`foo; rm -rf /`)
	assert.Contains(t, hits, CategoryCommand)
}

func TestDetector_FlagsPathTraversal(t *testing.T) {
	d := NewDetector()
	hits := d.Scan(`../../etc/passwd`)
	assert.Contains(t, hits, CategoryPathTraversal)
}

func TestDetector_CleanTextIsNotSuspicious(t *testing.T) {
	d := NewDetector()
	assert.False(t, d.IsSuspicious("what is the capital of France?"))
}
