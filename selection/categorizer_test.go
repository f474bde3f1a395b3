package selection

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize_DetectsSecurityCategory(t *testing.T) {
	cat := Categorize("what's the best way to prevent a SQL injection vulnerability here?")
	assert.Equal(t, "security", cat.Category)
	assert.Equal(t, LevelHigh, cat.Criticality)
}

func TestCategorize_DetectsSimpleTaskAsLowComplexity(t *testing.T) {
	cat := Categorize("fix this typo in the README")
	assert.Equal(t, LevelLow, cat.Complexity)
	assert.Equal(t, LevelLow, cat.Criticality)
}

func TestCategorize_LongQuestionIsHighComplexity(t *testing.T) {
	long := strings.Repeat("word ", 150)
	cat := Categorize(long)
	assert.Equal(t, LevelHigh, cat.Complexity)
}

func TestCategorize_CriticalKeywordsRaiseCriticality(t *testing.T) {
	cat := Categorize("how do we roll back this production migration without data loss?")
	assert.Equal(t, LevelHigh, cat.Criticality)
}

func TestCategorize_DefaultsToGeneralMediumMedium(t *testing.T) {
	cat := Categorize("what approach works best for handling retries across services")
	assert.NotEmpty(t, cat.Category)
}
