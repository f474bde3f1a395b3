// Package invoker implements the Model Invoker: the uniform "ask one model,
// get text back" primitive the Orchestrator drives once per roster entry,
// per round.
package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gomind-labs/debate-consensus/core"
	"github.com/gomind-labs/debate-consensus/gateway"
	"github.com/gomind-labs/debate-consensus/resilience"
)

// DefaultCallTimeout is the per-invocation timeout spec.md §4.3 specifies,
// applied independently of anything the Retry Harness adds around a call.
const DefaultCallTimeout = 10 * time.Minute

// Transport is how a Model Invoker reaches one model alias. A nil text
// return (with nil error) signals "this model did not contribute" and is
// distinct from an error, which the Retry Harness may classify and retry.
type Transport interface {
	Send(ctx context.Context, alias core.ModelAlias, prompt, projectPath string) (text string, err error)
}

// GatewayTransport forwards completion requests through the Signed Gateway
// listener for alias, one HTTP call per invocation. Grounded on
// ai/client.go's request/response cycle, generalized from a single hardcoded
// OpenAI endpoint to a per-alias gateway URL.
type GatewayTransport struct {
	client     core.AIClient
	gatewayURL string
}

// NewGatewayTransport builds a transport that calls client, which callers
// wire to a gateway-aware core.AIClient implementation (one HTTP round trip
// to the alias's listener, signed if the gateway requires it).
func NewGatewayTransport(client core.AIClient, gatewayURL string) *GatewayTransport {
	return &GatewayTransport{client: client, gatewayURL: gatewayURL}
}

func (t *GatewayTransport) Send(ctx context.Context, alias core.ModelAlias, prompt, projectPath string) (string, error) {
	resp, err := t.client.GenerateResponse(ctx, prompt, &core.AIOptions{Model: string(alias)})
	if err != nil {
		return "", fmt.Errorf("invoker: gateway %s: %w", t.gatewayURL, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", nil
	}
	return resp.Content, nil
}

// gatewayMessageRequest/gatewayMessageResponse are the wire shapes a Signed
// Gateway listener's /v1/messages endpoint speaks when it is forwarding
// model completions rather than serving the engine's own tool surface
// (gateway.Gateway is reused for both; the forward function passed to
// gateway.New determines which).
type gatewayMessageRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

type gatewayMessageResponse struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// SignedGatewayClient implements core.AIClient by HMAC-signing each request
// the way the Signed Gateway's own verifySignature expects and POSTing it to
// the gateway listener's /v1/messages endpoint. Grounded on ai/client.go's
// OpenAIClient (JSON body, parsed response), generalized from a bearer token
// to the gateway's X-Signature/X-Timestamp/X-Nonce scheme, since the caller
// here is another in-process component rather than an external API key
// holder.
type SignedGatewayClient struct {
	httpClient *http.Client
	gatewayURL string
	hmacSecret string
}

// NewSignedGatewayClient builds a client that signs every request under
// hmacSecret before sending it to gatewayURL, matching the secret the
// target gateway.Gateway was constructed with.
func NewSignedGatewayClient(gatewayURL, hmacSecret string) *SignedGatewayClient {
	return &SignedGatewayClient{
		httpClient: &http.Client{Timeout: DefaultCallTimeout},
		gatewayURL: gatewayURL,
		hmacSecret: hmacSecret,
	}
}

func (c *SignedGatewayClient) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	model := ""
	if options != nil {
		model = options.Model
	}

	body, err := json.Marshal(gatewayMessageRequest{Prompt: prompt, Model: model})
	if err != nil {
		return nil, fmt.Errorf("invoker: marshal gateway request: %w", err)
	}

	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	timestamp := time.Now().UnixMilli()
	signature := gateway.Sign(gateway.SignedRequest{
		Method:    http.MethodPost,
		URL:       "/v1/messages",
		Timestamp: timestamp,
		Nonce:     nonce,
		Body:      body,
	}, c.hmacSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("invoker: build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", signature)
	req.Header.Set("X-Timestamp", strconv.FormatInt(timestamp, 10))
	req.Header.Set("X-Nonce", nonce)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoker: gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	var out gatewayMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invoker: decode gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invoker: gateway returned %d: %s", resp.StatusCode, out.Error)
	}
	return &core.AIResponse{Content: out.Content, Model: model}, nil
}

// BackendClient implements core.AIClient against a generic HTTP completion
// service using the backend's own bearer-token credential, matching the
// Signed Gateway's role of forwarding "to the underlying completion service
// with the service's own credentials" once the gateway's own HMAC check has
// passed. Grounded on ai/client.go's OpenAIClient request/response cycle,
// generalized away from any single vendor's wire format (concrete backends
// are out of scope; this is the pass-through shape every per-alias listener
// needs regardless of which backend is configured behind it).
type BackendClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewBackendClient builds a client calling baseURL with apiKey as a bearer
// credential. baseURL is expected to accept a JSON body shaped like
// gatewayMessageRequest and respond with gatewayMessageResponse.
func NewBackendClient(baseURL, apiKey string) *BackendClient {
	return &BackendClient{
		httpClient: &http.Client{Timeout: DefaultCallTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

func (c *BackendClient) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	model := ""
	if options != nil {
		model = options.Model
	}

	body, err := json.Marshal(gatewayMessageRequest{Prompt: prompt, Model: model})
	if err != nil {
		return nil, fmt.Errorf("invoker: marshal backend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("invoker: build backend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoker: backend request failed: %w", err)
	}
	defer resp.Body.Close()

	var out gatewayMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invoker: decode backend response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invoker: backend returned %d: %s", resp.StatusCode, out.Error)
	}
	return &core.AIResponse{Content: out.Content, Model: model}, nil
}

// DirectTransport invokes a per-alias launcher subprocess directly, bypassing
// the gateway. Used for aliases configured without request signing, or for
// local model launchers that speak stdin/stdout rather than HTTP.
type DirectTransport struct {
	// Launchers maps an alias to the executable path of its launcher script.
	Launchers map[core.ModelAlias]string
}

func NewDirectTransport(launchers map[core.ModelAlias]string) *DirectTransport {
	return &DirectTransport{Launchers: launchers}
}

// RoutingTransport dispatches per alias: aliases with a configured
// per-alias Signed Gateway listener go through their GatewayTransport,
// every other alias falls back to direct. This is the "subprocess or
// Gateway listener" duality spec.md §4.3 describes, made a live per-alias
// choice rather than a single process-wide one.
type RoutingTransport struct {
	gateways map[core.ModelAlias]*GatewayTransport
	fallback Transport
}

// NewRoutingTransport builds a transport preferring gateways[alias] when
// present, falling back to fallback (typically a DirectTransport)
// otherwise. fallback may be nil if every alias has a gateway configured.
func NewRoutingTransport(gateways map[core.ModelAlias]*GatewayTransport, fallback Transport) *RoutingTransport {
	return &RoutingTransport{gateways: gateways, fallback: fallback}
}

func (t *RoutingTransport) Send(ctx context.Context, alias core.ModelAlias, prompt, projectPath string) (string, error) {
	if gw, ok := t.gateways[alias]; ok {
		return gw.Send(ctx, alias, prompt, projectPath)
	}
	if t.fallback == nil {
		return "", core.NewEngineError("invoker.Send", core.KindConfiguration, core.ErrMissingConfiguration)
	}
	return t.fallback.Send(ctx, alias, prompt, projectPath)
}

func (t *DirectTransport) Send(ctx context.Context, alias core.ModelAlias, prompt, projectPath string) (string, error) {
	launcher, ok := t.Launchers[alias]
	if !ok {
		return "", core.NewEngineError("invoker.Send", core.KindConfiguration, core.ErrMissingConfiguration)
	}

	cmd := exec.CommandContext(ctx, launcher, "--project", projectPath)
	cmd.Stdin = strings.NewReader(prompt)

	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", &resilience.WrapperExitError{ExitCode: exitErr.ExitCode(), Err: err}
		}
		return "", err
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", nil
	}
	return text, nil
}
