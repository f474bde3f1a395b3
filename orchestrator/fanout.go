package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/gomind-labs/debate-consensus/core"
)

// maxFanOutConcurrency bounds how many roster entries are called at once.
// Debate rosters are small (at most a handful of aliases with a few
// repeated instances), so a generous fixed cap is simpler than a
// configurable pool and never becomes the bottleneck.
const maxFanOutConcurrency = 8

// fanOut calls every roster entry concurrently and waits for all of them to
// either complete or be cancelled by the round deadline. A failing or
// panicking call is recorded as a null (absent from the returned map); it
// never cancels its siblings. The Analyzer-facing caller only sees the
// merged result once every goroutine has returned.
func fanOut(ctx context.Context, roster core.Roster, deadline time.Duration, call func(ctx context.Context, entry core.RosterEntry) (string, error)) map[core.RosterEntry]string {
	roundCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	sem := make(chan struct{}, maxFanOutConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make(map[core.RosterEntry]string, len(roster))

	for _, entry := range roster {
		entry := entry
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			text, ok := invokeGuarded(roundCtx, entry, call)
			if !ok {
				return
			}
			mu.Lock()
			results[entry] = text
			mu.Unlock()
		}()
	}

	wg.Wait()
	return results
}

// invokeGuarded recovers a panic in call so one roster entry's failure
// cannot bring down the whole fan-out goroutine pool.
func invokeGuarded(ctx context.Context, entry core.RosterEntry, call func(ctx context.Context, entry core.RosterEntry) (string, error)) (text string, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	result, err := call(ctx, entry)
	if err != nil || result == "" {
		return "", false
	}
	return result, true
}
