package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/bryanwahyu/learncode/internal/application"
	appanalysis "github.com/bryanwahyu/learncode/internal/application/analysis"
	appexplain "github.com/bryanwahyu/learncode/internal/application/explanation"
	"github.com/bryanwahyu/learncode/internal/application/identity"
	domai "github.com/bryanwahyu/learncode/internal/domain/ai"
	domain "github.com/bryanwahyu/learncode/internal/domain/analysis"
	"github.com/bryanwahyu/learncode/internal/domain/user"
	"github.com/bryanwahyu/learncode/internal/middleware"
)

// maxBodyBytes bounds request bodies; code is truncated far below this anyway.
const maxBodyBytes = 1 << 20

type AnalysisService interface {
	Analyze(ctx context.Context, owner domain.Owner, code string) (*appanalysis.Result, error)
	Get(ctx context.Context, owner domain.Owner, id domain.ID) (*domain.Analysis, error)
	List(ctx context.Context, owner domain.Owner, f domain.Filter) ([]*domain.Summary, error)
	UpdateLabels(ctx context.Context, owner domain.Owner, id domain.ID, labels []string) ([]string, error)
	LearningPath(ctx context.Context, owner domain.Owner, id domain.ID) ([]domain.Level, error)
}

type ExplanationService interface {
	Explain(ctx context.Context, owner domain.Owner, req appexplain.Request) (*appexplain.Result, error)
}

type IdentityService interface {
	middleware.IdentityResolver
	SignIn(ctx context.Context, fi user.FederatedIdentity) (*identity.Session, error)
}

// Options holds what NewRouter needs besides the services.
type Options struct {
	FederationKey  string
	AllowedOrigins []string
	HealthCheckers map[string]middleware.HealthChecker
}

type Router struct {
	analysisSvc AnalysisService
	explainSvc  ExplanationService
	identitySvc IdentityService
}

func NewRouter(analysisSvc AnalysisService, explainSvc ExplanationService, identitySvc IdentityService, opts Options) http.Handler {
	r := &Router{analysisSvc: analysisSvc, explainSvc: explainSvc, identitySvc: identitySvc}
	mux := chi.NewRouter()

	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	if len(opts.AllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/healthz", middleware.HealthHandler(opts.HealthCheckers))
	mux.Get("/readyz", middleware.ReadinessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.With(middleware.FederationKeyAuth(opts.FederationKey)).
			Post("/auth/session", r.wrap(r.handleSignIn))

		rt.Group(func(rt chi.Router) {
			rt.Use(middleware.RequireIdentity(identitySvc))
			rt.Post("/analyze", r.wrap(r.handleAnalyze))
			rt.Get("/code", r.wrap(r.handleList))
			rt.Get("/code/{id}", r.wrap(r.handleGet))
			rt.Patch("/code/{id}", r.wrap(r.handleUpdateLabels))
			rt.Get("/code/{id}/path", r.wrap(r.handleLearningPath))
			rt.Post("/explain", r.wrap(r.handleExplain))
		})
	})

	return mux
}

// httpError carries an explicit status and client-facing message.
type httpError struct {
	status int
	msg    string
	err    error
}

func (e *httpError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return e.msg
}

func (e *httpError) Unwrap() error { return e.err }

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var he *httpError
		switch {
		case errors.As(err, &he):
			if he.status >= 500 {
				log.Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
			}
			writeError(w, he.status, he.msg)
		case errors.Is(err, application.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, "Unauthorized")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "Analysis not found")
		case errors.Is(err, domai.ErrQuotaExceeded):
			writeError(w, http.StatusTooManyRequests, "ai quota exceeded")
		default:
			log.Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	_ = writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, req *http.Request, v any) error {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return &httpError{status: http.StatusBadRequest, msg: "invalid JSON body", err: err}
	}
	return nil
}

func owner(req *http.Request) (domain.Owner, error) {
	id, ok := middleware.IdentityFromContext(req.Context())
	if !ok {
		return domain.Owner{}, identity.ErrUnauthenticated
	}
	return id.Owner(), nil
}

// POST /v1/auth/session
// Body: {"provider","subject","email","name","image"}
func (r *Router) handleSignIn(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Provider string `json:"provider"`
		Subject  string `json:"subject"`
		Email    string `json:"email"`
		Name     string `json:"name"`
		Image    string `json:"image"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	sess, err := r.identitySvc.SignIn(req.Context(), user.FederatedIdentity{
		Provider: middleware.SanitizeLine(body.Provider),
		Subject:  middleware.SanitizeLine(body.Subject),
		Email:    middleware.SanitizeLine(body.Email),
		Name:     middleware.SanitizeLine(body.Name),
		Image:    middleware.SanitizeLine(body.Image),
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, sess)
}

// POST /v1/analyze
// Body: {"code": "<snippet>"}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	o, err := owner(req)
	if err != nil {
		return err
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}

	res, err := r.analysisSvc.Analyze(req.Context(), o, middleware.SanitizeString(body.Code))
	if err != nil {
		middleware.IncrementAnalysesFail()
		switch {
		case errors.Is(err, application.ErrInvalidInput), errors.Is(err, domai.ErrQuotaExceeded):
			return err
		default:
			// provider failure or malformed roadmap
			return &httpError{status: http.StatusBadGateway, msg: "Failed to analyze code", err: err}
		}
	}
	middleware.IncrementAnalyses()
	if res.ID == "" {
		middleware.IncrementAnalysesUnsaved()
	}
	return writeJSON(w, http.StatusOK, res)
}

// GET /v1/code?q=&label=&page=&page_size=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	o, err := owner(req)
	if err != nil {
		return err
	}
	q := req.URL.Query()
	size, _ := strconv.Atoi(q.Get("page_size"))
	f := domain.Filter{
		Search:   middleware.SanitizeLine(q.Get("q")),
		Label:    middleware.SanitizeLine(q.Get("label")),
		Page:     middleware.ParsePage(q.Get("page")),
		PageSize: middleware.ValidateLimit(size),
	}

	list, err := r.analysisSvc.List(req.Context(), o, f)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"analyses": list})
}

// GET /v1/code/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	o, err := owner(req)
	if err != nil {
		return err
	}
	a, err := r.analysisSvc.Get(req.Context(), o, domain.ID(chi.URLParam(req, "id")))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"analysis": a})
}

// PATCH /v1/code/{id}
// Body: {"labels": ["..."]}
func (r *Router) handleUpdateLabels(w http.ResponseWriter, req *http.Request) error {
	o, err := owner(req)
	if err != nil {
		return err
	}
	var body struct {
		Labels json.RawMessage `json:"labels"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	var labels []string
	if err := json.Unmarshal(body.Labels, &labels); err != nil || labels == nil {
		return &httpError{status: http.StatusBadRequest, msg: "Labels must be an array"}
	}
	for i := range labels {
		labels[i] = middleware.SanitizeLine(labels[i])
	}

	out, err := r.analysisSvc.UpdateLabels(req.Context(), o, domain.ID(chi.URLParam(req, "id")), labels)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"success": true, "labels": out})
}

// GET /v1/code/{id}/path
func (r *Router) handleLearningPath(w http.ResponseWriter, req *http.Request) error {
	o, err := owner(req)
	if err != nil {
		return err
	}
	levels, err := r.analysisSvc.LearningPath(req.Context(), o, domain.ID(chi.URLParam(req, "id")))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"levels": levels})
}

// POST /v1/explain
// Body: {"topic": "...", "levelName": "...", "analysisId": "..."}
func (r *Router) handleExplain(w http.ResponseWriter, req *http.Request) error {
	o, err := owner(req)
	if err != nil {
		return err
	}
	var body struct {
		Topic      string `json:"topic"`
		LevelName  string `json:"levelName"`
		AnalysisID string `json:"analysisId"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}

	res, err := r.explainSvc.Explain(req.Context(), o, appexplain.Request{
		Topic:      middleware.SanitizeLine(body.Topic),
		LevelName:  middleware.SanitizeLine(body.LevelName),
		AnalysisID: domain.ID(middleware.SanitizeLine(body.AnalysisID)),
	})
	if err != nil {
		return err
	}
	middleware.IncrementExplainSource(string(res.Source))
	return writeJSON(w, http.StatusOK, res)
}
