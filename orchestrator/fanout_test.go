package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gomind-labs/debate-consensus/core"
	"github.com/stretchr/testify/assert"
)

func TestFanOut_CollectsAllSuccessfulResponses(t *testing.T) {
	r := roster("k1", "k2", "k3")
	results := fanOut(context.Background(), r, time.Second, func(ctx context.Context, entry core.RosterEntry) (string, error) {
		return string(entry.Alias) + "-answer", nil
	})

	assert.Len(t, results, 3)
	assert.Equal(t, "k1-answer", results[core.RosterEntry{Alias: "k1"}])
}

func TestFanOut_DropsFailedAndEmptyResponses(t *testing.T) {
	r := roster("k1", "k2", "k3")
	results := fanOut(context.Background(), r, time.Second, func(ctx context.Context, entry core.RosterEntry) (string, error) {
		switch entry.Alias {
		case "k1":
			return "", errors.New("boom")
		case "k2":
			return "", nil
		default:
			return "fine", nil
		}
	})

	assert.Len(t, results, 1)
	assert.Equal(t, "fine", results[core.RosterEntry{Alias: "k3"}])
}

func TestFanOut_OnePanicDoesNotAffectOthers(t *testing.T) {
	r := roster("k1", "k2")
	results := fanOut(context.Background(), r, time.Second, func(ctx context.Context, entry core.RosterEntry) (string, error) {
		if entry.Alias == "k1" {
			panic("boom")
		}
		return "ok", nil
	})

	assert.Len(t, results, 1)
	assert.Equal(t, "ok", results[core.RosterEntry{Alias: "k2"}])
}

func TestFanOut_DeadlineStopsPendingCalls(t *testing.T) {
	r := roster("k1")
	start := time.Now()
	results := fanOut(context.Background(), r, 10*time.Millisecond, func(ctx context.Context, entry core.RosterEntry) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	assert.Empty(t, results)
	assert.Less(t, time.Since(start), time.Second)
}
