package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/merlin/internal/domain"
	"github.com/opensource-finance/merlin/internal/overlay"
	"github.com/opensource-finance/merlin/internal/pipeline"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	engine   *pipeline.Engine
	overlay  *overlay.Engine
	policy   domain.PolicyConfig
	version  string
	cacheTTL time.Duration
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *pipeline.Engine, overlayEngine *overlay.Engine, policy domain.PolicyConfig, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		engine:   engine,
		overlay:  overlayEngine,
		policy:   policy,
		version:  version,
		cacheTTL: 5 * time.Minute,
	}
}

// UnderwriteResponse is the response for POST /underwrite.
type UnderwriteResponse struct {
	EvaluationID   string             `json:"evaluationId"`
	ApplicationID  string             `json:"applicationId"`
	BorrowerID     string             `json:"borrowerId"`
	Recommendation string             `json:"recommendation"`
	Evaluation     *domain.Evaluation `json:"evaluation"`
}

// Underwrite handles POST /underwrite requests. The body is the raw
// intake payload; the full evaluation is returned synchronously.
func (h *Handler) Underwrite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var raw domain.RawApplication
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	appID := uuid.New().String()

	// Use the tenant's stored policy when one exists
	var policy *domain.PolicyConfig
	if h.repo != nil {
		if p, err := h.repo.GetPolicy(ctx, tenantID); err == nil {
			policy = p
		}
	}

	eval, err := h.engine.Underwrite(ctx, &pipeline.Request{
		TenantID:      tenantID,
		ApplicationID: appID,
		Raw:           raw,
		Policy:        policy,
	})
	if err != nil {
		h.writeUnderwriteError(w, err)
		return
	}

	if h.repo != nil {
		app := &domain.Application{
			ID:         appID,
			TenantID:   tenantID,
			BorrowerID: eval.BorrowerID,
			Raw:        raw,
			CreatedAt:  time.Now().UTC(),
		}
		if err := h.repo.SaveApplication(ctx, tenantID, app); err != nil {
			slog.Error("failed to save application", "application_id", appID, "error", err)
		}
		if err := h.repo.SaveEvaluation(ctx, tenantID, eval); err != nil {
			slog.Error("failed to save evaluation", "evaluation_id", eval.ID, "error", err)
		}
	}

	if h.cache != nil {
		_ = h.cache.SetEvaluation(ctx, tenantID, eval.ID, eval, h.cacheTTL)
	}

	if h.bus != nil {
		payload, _ := json.Marshal(eval)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicDecision, payload); err != nil {
			slog.Error("failed to publish decision", "evaluation_id", eval.ID, "error", err)
		}
		if eval.Decision.Recommendation == domain.RecommendationManualReview {
			_ = h.bus.Publish(ctx, tenantID, domain.TopicManualReview, payload)
		}
	}

	writeJSON(w, http.StatusOK, UnderwriteResponse{
		EvaluationID:   eval.ID,
		ApplicationID:  appID,
		BorrowerID:     eval.BorrowerID,
		Recommendation: eval.Decision.Recommendation,
		Evaluation:     eval,
	})
}

// writeUnderwriteError maps pipeline errors to HTTP status codes.
func (h *Handler) writeUnderwriteError(w http.ResponseWriter, err error) {
	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"errors": valErr.Errors,
		})
		return
	}

	if errors.Is(err, domain.ErrDependency) {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": err.Error(),
		})
		return
	}

	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	slog.Error("underwriting failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "underwriting failed",
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetEvaluation retrieves an evaluation by ID, cache first.
func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	evalID := chi.URLParam(r, "id")

	if evalID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "evaluation id is required",
		})
		return
	}

	if h.cache != nil {
		if eval, err := h.cache.GetEvaluation(ctx, tenantID, evalID); err == nil && eval != nil {
			writeJSON(w, http.StatusOK, eval)
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	eval, err := h.repo.GetEvaluation(ctx, tenantID, evalID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "evaluation not found",
		})
		return
	}

	if h.cache != nil {
		_ = h.cache.SetEvaluation(ctx, tenantID, evalID, eval, h.cacheTTL)
	}

	writeJSON(w, http.StatusOK, eval)
}

// ListEvaluations returns a borrower's evaluations. Query params:
// borrowerId (required), sinceDays (default 90).
func (h *Handler) ListEvaluations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	borrowerID := r.URL.Query().Get("borrowerId")
	if borrowerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "borrowerId query parameter is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -90)

	evals, err := h.repo.ListEvaluationsByBorrower(ctx, tenantID, borrowerID, since)
	if err != nil {
		slog.Error("failed to list evaluations", "borrower_id", borrowerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list evaluations",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"evaluations": evals,
		"count":       len(evals),
	})
}

// GetApplication retrieves a submitted application by ID.
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	appID := chi.URLParam(r, "id")

	if appID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "application id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	app, err := h.repo.GetApplication(ctx, tenantID, appID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "application not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, app)
}

// GetPolicy returns the tenant's policy thresholds, falling back to
// the engine defaults when none are stored.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo != nil {
		if policy, err := h.repo.GetPolicy(ctx, tenantID); err == nil {
			writeJSON(w, http.StatusOK, policy)
			return
		}
	}

	writeJSON(w, http.StatusOK, h.policy)
}

// PutPolicy stores the tenant's policy thresholds.
func (h *Handler) PutPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var policy domain.PolicyConfig
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := policy.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.SavePolicy(ctx, tenantID, &policy); err != nil {
		slog.Error("failed to save policy", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save policy",
		})
		return
	}

	slog.Info("policy updated", "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, policy)
}

// ListOverlayRules returns all rules loaded in the overlay engine.
func (h *Handler) ListOverlayRules(w http.ResponseWriter, r *http.Request) {
	if h.overlay == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "overlay engine not available",
		})
		return
	}

	loaded := h.overlay.LoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}

// GetOverlayRule retrieves an overlay rule by ID.
func (h *Handler) GetOverlayRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.overlay == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "overlay engine not available",
		})
		return
	}

	for _, rule := range h.overlay.LoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateOverlayRuleRequest is the request body for creating an overlay rule.
type CreateOverlayRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Severity    string `json:"severity"`
	Enabled     bool   `json:"enabled"`
}

// CreateOverlayRule creates a new overlay rule and saves it to the
// database. Call POST /overlay-rules/reload to hot-reload the engine.
func (h *Handler) CreateOverlayRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateOverlayRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	severity := req.Severity
	if severity == "" {
		severity = domain.SeverityLow
	}

	rule := &domain.OverlayRule{
		ID:          req.ID,
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Severity:    severity,
		Enabled:     req.Enabled,
	}

	// Validate the CEL expression before persisting
	if h.overlay != nil {
		if err := h.overlay.ValidateRule(rule); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid CEL expression: " + err.Error(),
			})
			return
		}
	}

	if h.repo != nil {
		if err := h.repo.SaveOverlayRule(ctx, tenantID, rule); err != nil {
			slog.Error("failed to save overlay rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("overlay rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    rule,
		"message": "Rule created. Call POST /overlay-rules/reload to apply changes.",
	})
}

// DeleteOverlayRule disables an overlay rule and reloads the engine.
func (h *Handler) DeleteOverlayRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteOverlayRule(ctx, tenantID, ruleID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "rule not found",
		})
		return
	}

	// Auto-reload after delete
	if h.overlay != nil {
		if rules, err := h.repo.ListOverlayRules(ctx, tenantID); err == nil {
			_ = h.overlay.ReloadRules(rules)
		}
	}

	slog.Info("overlay rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Rule deleted and engine reloaded.",
	})
}

// ReloadOverlayRules reloads the tenant's rules from the database into
// the overlay engine. Enables hot-reloading without server restart.
func (h *Handler) ReloadOverlayRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if h.overlay == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "overlay engine not available",
		})
		return
	}

	rules, err := h.repo.ListOverlayRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list overlay rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.overlay.ReloadRules(rules); err != nil {
		slog.Error("failed to reload overlay rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("overlay rules reloaded from database", "count", len(rules))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   len(rules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
