// Command debate-engine wires every component (config, cache, invoker,
// consensus, orchestrator, selection) into a Signed Gateway listener.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gomind-labs/debate-consensus/cache"
	"github.com/gomind-labs/debate-consensus/consensus"
	"github.com/gomind-labs/debate-consensus/core"
	"github.com/gomind-labs/debate-consensus/engine"
	"github.com/gomind-labs/debate-consensus/gateway"
	"github.com/gomind-labs/debate-consensus/invoker"
	"github.com/gomind-labs/debate-consensus/orchestrator"
	"github.com/gomind-labs/debate-consensus/resilience"
	"github.com/gomind-labs/debate-consensus/selection"
	"github.com/gomind-labs/debate-consensus/telemetry"
)

// coordinatorAlias is the alias used exclusively for post-round consensus
// evaluation; it never sits in a debate roster.
const coordinatorAlias = core.ModelAlias("coordinator")

func main() {
	cfg, err := core.NewConfig()
	if err != nil {
		log.Fatalf("debate-engine: config: %v", err)
	}
	logger := cfg.Logger()

	registry := buildRegistry()
	launchers := launcherPaths(registry)
	gatewayTransports, aliasGateways := buildAliasGateways(registry, cfg, logger)
	transport := invoker.NewRoutingTransport(gatewayTransports, invoker.NewDirectTransport(launchers))
	harness := resilience.NewHarness(resilience.ConfigFromCore(cfg), logger)
	modelInvoker := invoker.New(transport, registry, harness, logger)

	analyzer := consensus.NewAnalyzer(modelInvoker, coordinatorAlias, logger)

	artifactDir := os.Getenv("DEBATE_ARTIFACT_DIR")
	artifacts := orchestrator.NewFileArtifactWriter(artifactDir)

	orch := orchestrator.New(modelInvoker, analyzer, artifacts, logger, nil)

	catalog, err := selection.LoadCatalog(os.Getenv("PRESET_CATALOG_PATH"))
	if err != nil {
		log.Fatalf("debate-engine: preset catalog: %v", err)
	}

	store := buildCacheStore(cfg, logger)
	fingerprinter := cache.NewProjectFingerprinter(cfg.Cache.MaxScanFiles)

	tel, err := telemetry.New(cfg.Logging.ServiceName)
	if err != nil {
		logger.Warn("telemetry disabled, provider init failed", map[string]interface{}{"error": err.Error()})
	}
	var telemetryImpl core.Telemetry
	if tel != nil {
		defer tel.Shutdown(context.Background())
		telemetryImpl = tel
	}

	eng := engine.New(catalog, store, fingerprinter, orch, logger, telemetryImpl)

	gw := gateway.New(gateway.Config{
		HMACSecret:        cfg.HMACSecret,
		RequestSigning:    cfg.EnableRequestSigning,
		RequestsPerMinute: 60,
		NonceStoreSize:    10_000,
	}, nil, logger, forwardFunc(eng, logger))

	srv := &http.Server{
		Addr:              listenAddr(),
		Handler:           otelhttp.NewHandler(gw.Handler(), "debate-engine"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	servers := append([]*http.Server{srv}, aliasGateways...)
	for _, s := range servers {
		s := s
		go func() {
			logger.Info("debate-engine listening", map[string]interface{}{"addr": s.Addr})
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("listener failed", map[string]interface{}{"addr": s.Addr, "error": err.Error()})
			}
		}()
	}

	waitForShutdown(servers, logger)
}

// backendMessageRequest/backendMessageResponse mirror the wire shape
// invoker.SignedGatewayClient sends: a per-alias gateway's forward function
// receives the verified body in this shape and must reply in it.
type backendMessageRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

type backendMessageResponse struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// backendForwardFunc adapts a core.AIClient (a BackendClient holding the
// backend's own bearer credential) into the []byte-in/[]byte-out contract
// gateway.New expects, so a per-alias Signed Gateway listener can sit in
// front of it.
func backendForwardFunc(client core.AIClient, backendModelID string) func(ctx context.Context, body []byte) ([]byte, error) {
	return func(ctx context.Context, body []byte) ([]byte, error) {
		var req backendMessageRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}
		model := backendModelID
		if model == "" {
			model = req.Model
		}
		resp, err := client.GenerateResponse(ctx, req.Prompt, &core.AIOptions{Model: model})
		if err != nil {
			return json.Marshal(backendMessageResponse{Error: err.Error()})
		}
		return json.Marshal(backendMessageResponse{Content: resp.Content})
	}
}

// buildAliasGateways builds one Signed Gateway listener per alias that
// carries a ListenPort, each authenticating the in-process Model Invoker's
// signed requests before forwarding to the alias's backend with the
// backend's own bearer credential (BACKEND_URL_<ALIAS>/BACKEND_API_KEY_<ALIAS>).
// It returns the resulting invoker.GatewayTransport per alias (for wiring
// into a RoutingTransport) and the *http.Server values the caller must
// serve and shut down alongside the primary tool-facing listener.
func buildAliasGateways(reg *invoker.Registry, cfg *core.Config, logger core.ComponentAwareLogger) (map[core.ModelAlias]*invoker.GatewayTransport, []*http.Server) {
	transports := make(map[core.ModelAlias]*invoker.GatewayTransport)
	var servers []*http.Server

	for _, alias := range reg.Aliases() {
		pc, ok := reg.Lookup(alias)
		if !ok || pc.ListenPort == 0 {
			continue
		}

		backendURL := os.Getenv("BACKEND_URL_" + string(alias))
		backendAPIKey := os.Getenv("BACKEND_API_KEY_" + string(alias))
		backendClient := invoker.NewBackendClient(backendURL, backendAPIKey)

		gw := gateway.New(gateway.Config{
			HMACSecret:        cfg.HMACSecret,
			RequestSigning:    true,
			RequestsPerMinute: 60,
			NonceStoreSize:    10_000,
		}, nil, logger, backendForwardFunc(backendClient, pc.BackendModelID))

		addr := ":" + strconv.Itoa(pc.ListenPort)
		servers = append(servers, &http.Server{
			Addr:              addr,
			Handler:           otelhttp.NewHandler(gw.Handler(), "debate-engine-gateway-"+string(alias)),
			ReadHeaderTimeout: 10 * time.Second,
		})

		gatewayURL := fmt.Sprintf("http://127.0.0.1:%d", pc.ListenPort)
		signedClient := invoker.NewSignedGatewayClient(gatewayURL, cfg.HMACSecret)
		transports[alias] = invoker.NewGatewayTransport(signedClient, gatewayURL)
	}

	return transports, servers
}

// debateRequestBody is the JSON body POSTed to /v1/messages: the
// debate_with_preset tool call, flattened for the Gateway's opaque
// []byte-in/[]byte-out forward contract.
type debateRequestBody struct {
	Question    string            `json:"question"`
	Preset      string            `json:"preset,omitempty"`
	ProjectPath string            `json:"projectPath,omitempty"`
	Urgency     float64           `json:"urgency,omitempty"`
	Budget      float64           `json:"budget,omitempty"`
	BypassCache bool              `json:"bypassCache,omitempty"`
	Overrides   *overridesRequest `json:"overrides,omitempty"`
}

type overridesRequest struct {
	Roster             []string `json:"roster,omitempty"`
	MaxRounds          int      `json:"maxRounds,omitempty"`
	ConsensusThreshold int      `json:"consensusThreshold,omitempty"`
}

func forwardFunc(eng *engine.Engine, logger core.ComponentAwareLogger) func(ctx context.Context, body []byte) ([]byte, error) {
	return func(ctx context.Context, body []byte) ([]byte, error) {
		var req debateRequestBody
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}

		debateReq := engine.DebateRequest{
			Question:    req.Question,
			Preset:      req.Preset,
			ProjectPath: req.ProjectPath,
			Urgency:     req.Urgency,
			Budget:      req.Budget,
			BypassCache: req.BypassCache,
		}
		if req.Overrides != nil {
			debateReq.Overrides = selection.Overrides{
				MaxRounds:          req.Overrides.MaxRounds,
				ConsensusThreshold: req.Overrides.ConsensusThreshold,
			}
			for i, alias := range req.Overrides.Roster {
				debateReq.Overrides.Roster = append(debateReq.Overrides.Roster, core.RosterEntry{
					Alias: core.ModelAlias(alias), Instance: i,
				})
			}
		}

		result, err := eng.Debate(ctx, debateReq)
		if err != nil {
			logger.Error("debate failed", map[string]interface{}{"error": err.Error()})
			return nil, err
		}
		return json.Marshal(result)
	}
}

// buildRegistry registers the five model aliases spec.md's roster tables
// reference (k1-k5); CostPerKTok values follow the "k1 fastest, k5
// cheapest" convention the Selection Policy's compiled-in presets assume.
// An alias gets its own Signed Gateway listener only when GATEWAY_PORT_<ALIAS>
// is set; otherwise it's reached through a direct launcher subprocess.
func buildRegistry() *invoker.Registry {
	reg := invoker.NewRegistry()
	aliases := []core.ProviderCapability{
		{Alias: "k1", Role: core.RoleDebater, CostPerKTok: 0.015, MaxConcurrentInstances: 4},
		{Alias: "k2", Role: core.RoleDebater, CostPerKTok: 0.010, MaxConcurrentInstances: 4},
		{Alias: "k3", Role: core.RoleDebater, CostPerKTok: 0.010, MaxConcurrentInstances: 4},
		{Alias: "k4", Role: core.RoleDebater, CostPerKTok: 0.008, MaxConcurrentInstances: 4},
		{Alias: "k5", Role: core.RoleDebater, CostPerKTok: 0.002, MaxConcurrentInstances: 4},
		{Alias: coordinatorAlias, Role: core.RoleCoordinator, CostPerKTok: 0.010, MaxConcurrentInstances: 2},
	}
	for _, pc := range aliases {
		pc.ListenPort = gatewayPort(pc.Alias)
		pc.BackendModelID = os.Getenv("BACKEND_MODEL_" + string(pc.Alias))
		reg.Register(pc)
	}
	return reg
}

// gatewayPort reads GATEWAY_PORT_<ALIAS>; a missing or unparsable value
// means the alias has no per-alias Gateway listener.
func gatewayPort(alias core.ModelAlias) int {
	raw := os.Getenv("GATEWAY_PORT_" + string(alias))
	if raw == "" {
		return 0
	}
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return port
}

// launcherPaths reads MODEL_LAUNCHER_<ALIAS> environment variables for
// every registered alias; an alias with no launcher configured will simply
// fail its calls at invocation time rather than block startup, matching
// spec.md's null-response tolerance.
func launcherPaths(reg *invoker.Registry) map[core.ModelAlias]string {
	out := make(map[core.ModelAlias]string)
	for _, alias := range reg.Aliases() {
		if path := os.Getenv("MODEL_LAUNCHER_" + string(alias)); path != "" {
			out[alias] = path
		}
	}
	return out
}

func buildCacheStore(cfg *core.Config, logger core.ComponentAwareLogger) cache.Store {
	if cfg.Cache.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		return cache.NewRedisStore(client, cfg.Logging.ServiceName, cfg.Cache.MaxAge)
	}
	return cache.NewMemoryStore(cfg.Cache.MaxEntries, cfg.Cache.MaxAge, cfg.Cache.PersistencePath)
}

func listenAddr() string {
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		return addr
	}
	return ":8085"
}

func waitForShutdown(servers []*http.Server, logger core.ComponentAwareLogger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("debate-engine shutting down", nil)
	var wg sync.WaitGroup
	for _, s := range servers {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown failed", map[string]interface{}{"addr": s.Addr, "error": err.Error()})
			}
		}()
	}
	wg.Wait()
}
