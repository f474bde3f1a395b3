package invoker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gomind-labs/debate-consensus/core"
	"github.com/gomind-labs/debate-consensus/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAIClient struct {
	content string
	err     error
}

func (f *fakeAIClient) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &core.AIResponse{Content: f.content, Model: options.Model}, nil
}

func TestGatewayTransport_ReturnsContent(t *testing.T) {
	client := &fakeAIClient{content: "hello from model"}
	transport := NewGatewayTransport(client, "http://localhost:9001")

	text, err := transport.Send(context.Background(), "k1", "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "hello from model", text)
}

func TestGatewayTransport_EmptyContentIsNull(t *testing.T) {
	client := &fakeAIClient{content: "   "}
	transport := NewGatewayTransport(client, "http://localhost:9001")

	text, err := transport.Send(context.Background(), "k1", "hi", "")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestDirectTransport_UnknownLauncherFails(t *testing.T) {
	transport := NewDirectTransport(map[core.ModelAlias]string{})

	_, err := transport.Send(context.Background(), "k1", "hi", "")
	assert.True(t, core.IsConfigurationError(err))
}

func TestSignedGatewayClient_SignsRequestAndParsesResponse(t *testing.T) {
	const secret = "test-secret"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature := r.Header.Get("X-Signature")
		timestamp := r.Header.Get("X-Timestamp")
		nonce := r.Header.Get("X-Nonce")
		require.NotEmpty(t, signature)
		require.NotEmpty(t, timestamp)
		require.True(t, gateway.ValidFormat(nonce))

		var req gatewayMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Prompt)
		assert.Equal(t, "k1", req.Model)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(gatewayMessageResponse{Content: "signed response"})
	}))
	defer srv.Close()

	client := NewSignedGatewayClient(srv.URL, secret)
	resp, err := client.GenerateResponse(context.Background(), "hello", &core.AIOptions{Model: "k1"})
	require.NoError(t, err)
	assert.Equal(t, "signed response", resp.Content)
}

func TestSignedGatewayClient_NonOKStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(gatewayMessageResponse{Error: "bad_signature"})
	}))
	defer srv.Close()

	client := NewSignedGatewayClient(srv.URL, "secret")
	_, err := client.GenerateResponse(context.Background(), "hello", nil)
	assert.Error(t, err)
}

func TestBackendClient_SendsBearerTokenAndParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer backend-key", r.Header.Get("Authorization"))

		var req gatewayMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hi backend", req.Prompt)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(gatewayMessageResponse{Content: "backend reply"})
	}))
	defer srv.Close()

	client := NewBackendClient(srv.URL, "backend-key")
	resp, err := client.GenerateResponse(context.Background(), "hi backend", nil)
	require.NoError(t, err)
	assert.Equal(t, "backend reply", resp.Content)
}

func TestBackendClient_OmitsAuthorizationHeaderWhenNoAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(gatewayMessageResponse{Content: "ok"})
	}))
	defer srv.Close()

	client := NewBackendClient(srv.URL, "")
	_, err := client.GenerateResponse(context.Background(), "hi", nil)
	require.NoError(t, err)
}

func TestRoutingTransport_PrefersGatewayThenFallsBackToDirect(t *testing.T) {
	gatewayClient := &fakeAIClient{content: "from gateway"}
	gatewayTransport := NewGatewayTransport(gatewayClient, "http://localhost:9002")

	routing := NewRoutingTransport(
		map[core.ModelAlias]*GatewayTransport{"k1": gatewayTransport},
		NewDirectTransport(map[core.ModelAlias]string{}),
	)

	text, err := routing.Send(context.Background(), "k1", "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "from gateway", text)

	_, err = routing.Send(context.Background(), "k2", "hi", "")
	assert.True(t, core.IsConfigurationError(err))
}

func TestRoutingTransport_ErrorsWithNoFallbackConfigured(t *testing.T) {
	routing := NewRoutingTransport(map[core.ModelAlias]*GatewayTransport{}, nil)

	_, err := routing.Send(context.Background(), "k1", "hi", "")
	assert.True(t, core.IsConfigurationError(err))
}
