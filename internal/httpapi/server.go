package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/molt-labs/molt-negotiation/internal/attestation"
	"github.com/molt-labs/molt-negotiation/internal/automation"
	"github.com/molt-labs/molt-negotiation/internal/config"
	"github.com/molt-labs/molt-negotiation/internal/decision"
	"github.com/molt-labs/molt-negotiation/internal/metrics"
	"github.com/molt-labs/molt-negotiation/internal/runtime"
	"github.com/molt-labs/molt-negotiation/internal/sealed"
	"github.com/molt-labs/molt-negotiation/internal/store"
)

// Server bundles every component the HTTP surface wires together: the
// durable store, the sealed-input store, the attestation signer, the
// outbound decision/runtime clients, the metrics recorder, and the
// automation loop.
type Server struct {
	cfg             *config.Config
	store           *store.Store
	sealedStore     *sealed.Store
	signer          *attestation.Signer
	configuredSigner string
	decisionClient  *decision.Client
	runtimeVerifier *runtime.Verifier
	metrics         metrics.Recorder
	automation      *automation.Loop
	log             *slog.Logger
	startedAt       time.Time
}

// Deps is everything New needs to assemble a Server.
type Deps struct {
	Config          *config.Config
	Store           *store.Store
	SealedStore     *sealed.Store
	Signer          *attestation.Signer
	DecisionClient  *decision.Client
	RuntimeVerifier *runtime.Verifier
	Metrics         metrics.Recorder
	Automation      *automation.Loop
	Logger          *slog.Logger
}

// New assembles a Server from deps.
func New(deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:              deps.Config,
		store:            deps.Store,
		sealedStore:      deps.SealedStore,
		signer:           deps.Signer,
		configuredSigner: deps.Signer.Address(),
		decisionClient:   deps.DecisionClient,
		runtimeVerifier:  deps.RuntimeVerifier,
		metrics:          deps.Metrics,
		automation:       deps.Automation,
		log:              log,
		startedAt:        time.Now().UTC(),
	}
}

// Router builds the gorilla/mux router implementing the full HTTP
// surface: literal paths are registered before parameterized ones, and
// every route carries an explicit Methods() constraint.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.metricsMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	r.HandleFunc("/auth/status", s.handleAuthStatus).Methods(http.MethodGet)

	r.HandleFunc("/policy/strict", s.requireRole(roleReadonly, s.handlePolicyStrict)).Methods(http.MethodGet)
	r.HandleFunc("/verification/eigencompute", s.requireRole(roleReadonly, s.handleVerificationOverview)).Methods(http.MethodGet)
	r.HandleFunc("/verification/eigencompute/sessions/{id}", s.requireRole(roleReadonly, s.handleVerificationSession)).Methods(http.MethodGet)

	r.HandleFunc("/agents", s.requireRole(roleReadonly, s.handleListAgents)).Methods(http.MethodGet)
	r.HandleFunc("/api/agents/register", s.handleRegisterAgent).Methods(http.MethodPost)
	r.HandleFunc("/api/agents/{id}/probe", s.requireRole(roleAgent, s.handleProbeAgent)).Methods(http.MethodPost)

	r.HandleFunc("/sessions", s.requireRole(roleReadonly, s.handleListSessions)).Methods(http.MethodGet)
	r.HandleFunc("/sessions", s.requireRole(roleAgent, s.handleCreateSession)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", s.requireRole(roleReadonly, s.handleGetSession)).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/accept", s.requireRole(roleAgent, s.handleAcceptSession)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/prepare", s.requireRole(roleAgent, s.handlePrepareSession)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/start", s.requireRole(roleAgent, s.handleStartSession)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/adjudicate", s.requireRole(roleOperator, s.handleAdjudicateSession)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/private-inputs", s.requireRole(roleAgent, s.handlePrivateInputs)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/negotiate", s.requireRole(roleAgent, s.handleNegotiateByPath)).Methods(http.MethodPost)
	r.HandleFunc("/negotiate", s.requireRole(roleAgent, s.handleNegotiateByBody)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/transcript", s.requireRole(roleReadonly, s.handleTranscript)).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/attestation", s.requireRole(roleReadonly, s.handleGetAttestation)).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/attestation", s.requireRole(roleAgent, s.handleRegenerateAttestation)).Methods(http.MethodPost)

	r.HandleFunc("/sessions/{id}/escrow/prepare", s.requireRole(roleAgent, s.handleEscrowPrepare)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/escrow/status", s.requireRole(roleReadonly, s.handleEscrowStatus)).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/escrow/deposit", s.requireRole(roleAgent, s.handleEscrowDeposit)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/escrow/settle", s.requireRole(roleAgent, s.handleEscrowSettle)).Methods(http.MethodPost)

	r.HandleFunc("/leaderboard/trusted", s.requireRole(roleReadonly, s.handleLeaderboard)).Methods(http.MethodGet)
	r.HandleFunc("/automation/status", s.requireRole(roleReadonly, s.handleAutomationStatus)).Methods(http.MethodGet)
	r.HandleFunc("/automation/tick", s.requireRole(roleOperator, s.handleAutomationTick)).Methods(http.MethodPost)

	return r
}

// metricsMiddleware records every request's route template into the
// rolling per-route counters behind GET /metrics.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if tmpl, err := mux.CurrentRoute(r).GetPathTemplate(); err == nil {
			route = tmpl
		}
		s.metrics.Record(r.Context(), route, time.Now())
		next.ServeHTTP(w, r)
	})
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}
