package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/entitlement"
	"github.com/dmitrymomot/billingkit/pkg/event"
	"github.com/dmitrymomot/billingkit/pkg/processor"
	"github.com/dmitrymomot/billingkit/pkg/usage"
)

// Config holds the gateway's environment-driven settings.
type Config struct {
	SigningSecret string        `env:"WEBHOOK_SIGNING_SECRET,required"`
	Tolerance     time.Duration `env:"WEBHOOK_SIGNATURE_TOLERANCE" envDefault:"5m"`
	MaxBodyBytes  int64         `env:"WEBHOOK_MAX_BODY_BYTES" envDefault:"1048576"`
}

// acknowledgement is the JSON body returned for every accepted delivery.
type acknowledgement struct {
	Received         bool   `json:"received"`
	Processed        bool   `json:"processed"`
	Idempotent       bool   `json:"idempotent"`
	Handled          bool   `json:"handled"`
	Message          string `json:"message,omitempty"`
	Error            string `json:"error,omitempty"`
	ProcessingTimeMS int64  `json:"processing_time_ms"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Gateway mounts the webhook, account read, and health endpoints.
type Gateway struct {
	proc     *processor.Processor
	verifier *Verifier
	usage    *usage.Service
	resolver *entitlement.Resolver
	maxBody  int64
	log      *slog.Logger
	health   []HealthCheck
}

// HealthCheck is a named dependency probe consulted by the health endpoint.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Option configures optional Gateway settings.
type Option func(*Gateway)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// WithHealthCheck registers a named dependency probe.
func WithHealthCheck(name string, check func(ctx context.Context) error) Option {
	return func(g *Gateway) {
		g.health = append(g.health, HealthCheck{Name: name, Check: check})
	}
}

// WithUsageService mounts the account usage summary endpoint.
func WithUsageService(svc *usage.Service) Option {
	return func(g *Gateway) { g.usage = svc }
}

// WithLevelValidator mounts the level access decision endpoint backed by the
// entitlement resolver.
func WithLevelValidator(r *entitlement.Resolver) Option {
	return func(g *Gateway) { g.resolver = r }
}

// New creates a Gateway over the processor. Panics on a nil processor;
// returns an error only for a misconfigured verifier.
func New(proc *processor.Processor, cfg Config, opts ...Option) (*Gateway, error) {
	if proc == nil {
		panic("gateway: processor is required")
	}

	verifier, err := NewVerifier(cfg.SigningSecret, cfg.Tolerance)
	if err != nil {
		return nil, err
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	g := &Gateway{
		proc:     proc,
		verifier: verifier,
		maxBody:  maxBody,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Router returns the chi router with the gateway's routes mounted.
func (g *Gateway) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/webhooks/billing", g.handleWebhook)
	r.Get("/health", g.handleHealth)
	if g.usage != nil {
		r.Get("/accounts/{accountID}/usage", g.handleUsageSummary)
	}
	if g.resolver != nil {
		r.Get("/accounts/{accountID}/levels", g.handleLevelAccess)
	}
	return r
}

func (g *Gateway) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, g.maxBody))
	if err != nil {
		g.reject(w, r, http.StatusBadRequest, "unreadable request body")
		return
	}

	if err := g.verifier.Verify(body, r.Header.Get(SignatureHeader)); err != nil {
		g.log.WarnContext(r.Context(), "webhook signature rejected",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Any("error", err))
		g.reject(w, r, http.StatusBadRequest, "invalid signature")
		return
	}

	ev, err := event.Parse(body)
	if err != nil {
		g.log.WarnContext(r.Context(), "malformed webhook body rejected",
			slog.Any("error", err))
		g.reject(w, r, http.StatusBadRequest, "malformed event")
		return
	}

	res, err := g.proc.Process(r.Context(), ev)
	if err != nil {
		// The event was never claimed, so a retryable status is safe here.
		g.log.ErrorContext(r.Context(), "event claim failed",
			slog.String("event_id", ev.ID),
			slog.Any("error", err))
		g.reject(w, r, http.StatusInternalServerError, "event claim failed, retry delivery")
		return
	}

	writeJSON(w, http.StatusOK, acknowledgement{
		Received:         res.Received,
		Processed:        res.Processed,
		Idempotent:       res.Idempotent,
		Handled:          res.Handled,
		Message:          res.Message,
		Error:            res.Error,
		ProcessingTimeMS: res.ProcessingTimeMs(),
	})
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	report := make(map[string]string, len(g.health))
	for _, hc := range g.health {
		if err := hc.Check(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			report[hc.Name] = err.Error()
			continue
		}
		report[hc.Name] = "ok"
	}
	writeJSON(w, status, report)
}

func (g *Gateway) handleUsageSummary(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		g.reject(w, r, http.StatusBadRequest, "invalid account id")
		return
	}

	summary, err := g.usage.Summary(r.Context(), accountID)
	if err != nil {
		g.log.ErrorContext(r.Context(), "usage summary failed",
			slog.String("account_id", accountID.String()),
			slog.Any("error", err))
		g.reject(w, r, http.StatusInternalServerError, "usage summary unavailable")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleLevelAccess answers "may this account use roast/shield level N"
// from query parameters, e.g. GET /accounts/{id}/levels?roast=4&shield=3.
func (g *Gateway) handleLevelAccess(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
	if err != nil {
		g.reject(w, r, http.StatusBadRequest, "invalid account id")
		return
	}

	var req entitlement.LevelRequest
	if v := r.URL.Query().Get("roast"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			g.reject(w, r, http.StatusBadRequest, "invalid roast level")
			return
		}
		req.RoastLevel = &n
	}
	if v := r.URL.Query().Get("shield"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			g.reject(w, r, http.StatusBadRequest, "invalid shield level")
			return
		}
		req.ShieldLevel = &n
	}

	writeJSON(w, http.StatusOK, g.resolver.ValidateLevelAccess(r.Context(), accountID, req))
}

func (g *Gateway) reject(w http.ResponseWriter, _ *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		// Response already committed; nothing recoverable.
		_ = err
	}
}
