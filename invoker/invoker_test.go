package invoker

import (
	"context"
	"errors"
	"testing"

	"github.com/gomind-labs/debate-consensus/core"
	"github.com/gomind-labs/debate-consensus/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	responses map[core.ModelAlias]string
	errs      map[core.ModelAlias]error
	calls     int
}

func (f *fakeTransport) Send(ctx context.Context, alias core.ModelAlias, prompt, projectPath string) (string, error) {
	f.calls++
	if err, ok := f.errs[alias]; ok {
		return "", err
	}
	return f.responses[alias], nil
}

func testRegistry() *Registry {
	r := NewRegistry()
	r.Register(core.ProviderCapability{Alias: "k1", Role: core.RoleDebater, CostPerKTok: 0.001})
	r.Register(core.ProviderCapability{Alias: "k2", Role: core.RoleDebater, CostPerKTok: 0.002})
	return r
}

func TestInvoker_CallModel_ReturnsText(t *testing.T) {
	transport := &fakeTransport{responses: map[core.ModelAlias]string{"k1": "the answer is 42"}}
	inv := New(transport, testRegistry(), nil, nil)

	text, err := inv.CallModel(context.Background(), "k1", "what is the answer?", "")
	require.NoError(t, err)
	assert.Equal(t, "the answer is 42", text)
}

func TestInvoker_CallModel_UnknownAliasFails(t *testing.T) {
	transport := &fakeTransport{responses: map[core.ModelAlias]string{}}
	inv := New(transport, testRegistry(), nil, nil)

	_, err := inv.CallModel(context.Background(), "k9", "hello", "")
	assert.True(t, core.IsConfigurationError(err))
}

func TestInvoker_CallModel_NullReturnIsNotAnError(t *testing.T) {
	transport := &fakeTransport{responses: map[core.ModelAlias]string{"k1": ""}}
	inv := New(transport, testRegistry(), nil, nil)

	text, err := inv.CallModel(context.Background(), "k1", "hello", "")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestInvoker_CallModel_RetriesThroughHarness(t *testing.T) {
	calls := 0
	transport := &countingTransport{
		fn: func() (string, error) {
			calls++
			if calls < 2 {
				return "", errors.New("connection reset")
			}
			return "recovered", nil
		},
	}
	harness := resilience.NewHarness(resilience.RetryConfig{
		MaxRetries: 3, InitialDelay: 1, MaxDelay: 2, BackoffMultiplier: 1, RateLimitFloor: 1,
	}, nil)
	inv := New(transport, testRegistry(), harness, nil)

	text, err := inv.CallModel(context.Background(), "k1", "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.GreaterOrEqual(t, calls, 2)
}

type countingTransport struct {
	fn func() (string, error)
}

func (c *countingTransport) Send(ctx context.Context, alias core.ModelAlias, prompt, projectPath string) (string, error) {
	return c.fn()
}
