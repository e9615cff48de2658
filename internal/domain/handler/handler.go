// Package handler exposes the sending-domain lifecycle over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mailstead/internal/dnscheck"
	"mailstead/internal/domain/models"
	"mailstead/internal/platform/metrics"
	"mailstead/internal/platform/middleware"
	id "mailstead/pkg/domain"
	dErrors "mailstead/pkg/domain-errors"
	"mailstead/pkg/platform/httputil"
	"mailstead/pkg/platform/middleware/metadata"
	"mailstead/pkg/platform/middleware/requesttime"
	"mailstead/pkg/requestcontext"
)

// Service defines the interface for domain lifecycle operations.
type Service interface {
	Create(ctx context.Context, rawName string) (*models.Domain, error)
	Get(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
	List(ctx context.Context) ([]*models.Domain, error)
	Delete(ctx context.Context, domainID id.DomainID) error
	VerifyNow(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
	CheckDNS(ctx context.Context, domainID id.DomainID) (*models.Domain, dnscheck.Report, error)
}

// Handler wires domain endpoints to the domain service.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New constructs a domain handler with its dependencies.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		metrics: metrics,
	}
}

// Register registers the domain routes with the chi router.
// The timeout is sized for the DNS diagnostics endpoint, which may wait
// on several slow resolvers before it can render a report.
func (h *Handler) Register(r chi.Router) {
	domainRouter := chi.NewRouter()
	domainRouter.Use(middleware.Recovery(h.logger))
	domainRouter.Use(middleware.RequestID)
	domainRouter.Use(requesttime.Middleware)
	domainRouter.Use(metadata.ClientMetadata)
	domainRouter.Use(middleware.Logger(h.logger))
	domainRouter.Use(middleware.Timeout(60 * time.Second))
	domainRouter.Use(middleware.ContentTypeJSON)
	domainRouter.Use(middleware.LatencyMiddleware(h.metrics))
	domainRouter.Post("/domains", h.handleCreateDomain)
	domainRouter.Get("/domains", h.handleListDomains)
	domainRouter.Get("/domains/{domainID}", h.handleGetDomain)
	domainRouter.Delete("/domains/{domainID}", h.handleDeleteDomain)
	domainRouter.Post("/domains/{domainID}/verify", h.handleVerifyDomain)
	domainRouter.Get("/domains/{domainID}/dns", h.handleCheckDNS)

	r.Mount("/", domainRouter)
}

// handleCreateDomain handles POST /domains requests. Provisioning runs
// in the background; the response always shows the pending state.
func (h *Handler) handleCreateDomain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateDomainRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	domain, err := h.service.Create(ctx, req.Name)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeValidation) || dErrors.Is(err, dErrors.CodeConflict) {
			h.logger.WarnContext(ctx, "domain creation rejected",
				"request_id", requestID,
				"name", req.Name,
				"error", err.Error(),
			)
		} else {
			h.logger.ErrorContext(ctx, "domain creation failed",
				"request_id", requestID,
				"name", req.Name,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "domain registered",
		"request_id", requestID,
		"domain_id", domain.ID,
		"name", domain.Name,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromDomain(domain))
}

// handleListDomains handles GET /domains requests.
func (h *Handler) handleListDomains(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	domains, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "domain listing failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromDomains(domains))
}

// handleGetDomain handles GET /domains/{domainID} requests.
func (h *Handler) handleGetDomain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	domainID, ok := h.domainIDFromPath(w, r)
	if !ok {
		return
	}

	domain, err := h.service.Get(ctx, domainID)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "domain lookup failed",
				"request_id", requestcontext.RequestID(ctx),
				"domain_id", domainID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromDomain(domain))
}

// handleDeleteDomain handles DELETE /domains/{domainID} requests.
func (h *Handler) handleDeleteDomain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	domainID, ok := h.domainIDFromPath(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, domainID); err != nil {
		if !dErrors.Is(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "domain deletion failed",
				"request_id", requestID,
				"domain_id", domainID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "domain deleted",
		"request_id", requestID,
		"domain_id", domainID,
	)
	w.WriteHeader(http.StatusNoContent)
}

// handleVerifyDomain handles POST /domains/{domainID}/verify requests.
// It runs one verification check synchronously and returns the domain as
// the check left it.
func (h *Handler) handleVerifyDomain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	domainID, ok := h.domainIDFromPath(w, r)
	if !ok {
		return
	}

	domain, err := h.service.VerifyNow(ctx, domainID)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeConflict) || dErrors.Is(err, dErrors.CodeNotFound) {
			h.logger.WarnContext(ctx, "manual verification rejected",
				"request_id", requestID,
				"domain_id", domainID,
				"error", err.Error(),
			)
		} else {
			h.logger.ErrorContext(ctx, "manual verification failed",
				"request_id", requestID,
				"domain_id", domainID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "manual verification completed",
		"request_id", requestID,
		"domain_id", domainID,
		"status", domain.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromDomain(domain))
}

// handleCheckDNS handles GET /domains/{domainID}/dns requests.
func (h *Handler) handleCheckDNS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	domainID, ok := h.domainIDFromPath(w, r)
	if !ok {
		return
	}

	domain, report, err := h.service.CheckDNS(ctx, domainID)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "dns check failed",
				"request_id", requestID,
				"domain_id", domainID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "dns check completed",
		"request_id", requestID,
		"domain_id", domainID,
		"all_found", report.AllFound(),
		"records", len(report.Results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromReport(domain, report))
}

// domainIDFromPath parses the {domainID} path parameter, writing the
// error response itself so handlers can bail with a bare return.
func (h *Handler) domainIDFromPath(w http.ResponseWriter, r *http.Request) (id.DomainID, bool) {
	domainID, err := id.ParseDomainID(chi.URLParam(r, "domainID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.DomainID{}, false
	}
	return domainID, true
}
