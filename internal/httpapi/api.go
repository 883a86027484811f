// Package httpapi exposes the matching engine and profile updates over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uniportal/internship-portal/internal/apperr"
	"github.com/uniportal/internship-portal/internal/matching"
	"github.com/uniportal/internship-portal/internal/metrics"
	"github.com/uniportal/internship-portal/internal/profile"
	"github.com/uniportal/internship-portal/internal/ratelimit"
)

// Limiter throttles requests per client. *ratelimit.Limiter satisfies it.
type Limiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
}

// Options configures the API.
type Options struct {
	Matching *matching.Service
	Profiles *profile.Service
	Limiter  Limiter      // optional
	Push     http.Handler // optional WebSocket hub
	Logger   *zap.Logger

	AllowedOrigins []string
	RequestTimeout time.Duration
}

// API holds the handlers.
type API struct {
	matching *matching.Service
	profiles *profile.Service
	limiter  Limiter
	push     http.Handler
	logger   *zap.Logger
	timeout  time.Duration
	origins  []string
	started  time.Time
}

// New builds the API.
func New(opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		matching: opts.Matching,
		profiles: opts.Profiles,
		limiter:  opts.Limiter,
		push:     opts.Push,
		logger:   logger.With(zap.String("component", "http")),
		timeout:  opts.RequestTimeout,
		origins:  opts.AllowedOrigins,
		started:  time.Now(),
	}
}

// Handler returns the routed handler wrapped with CORS and request logging.
func (a *API) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", a.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	if a.push != nil {
		r.Handle("/ws/matches", a.push).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(a.withTimeout)
	api.HandleFunc("/admin/matching/run", a.runMatching).Methods(http.MethodPost)
	api.HandleFunc("/students/{id:[0-9]+}/internships/matched", a.matchedInternships).Methods(http.MethodGet)
	api.HandleFunc("/students/{id:[0-9]+}/mentors/matched", a.studentMatches).Methods(http.MethodGet)
	api.HandleFunc("/mentors/{id:[0-9]+}/students", a.mentorMatches).Methods(http.MethodGet)
	api.HandleFunc("/matches/{id}/status", a.transitionMatch).Methods(http.MethodPut)
	api.HandleFunc("/students/{id:[0-9]+}", a.patchStudent).Methods(http.MethodPatch)
	api.HandleFunc("/mentors/{id:[0-9]+}", a.patchMentor).Methods(http.MethodPatch)

	origins := a.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return a.logRequests(c.Handler(r))
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(a.started).Round(time.Second).String(),
	})
}

func (a *API) runMatching(w http.ResponseWriter, r *http.Request) {
	if !a.allow(w, r, ratelimit.RuleMatchingRun) {
		return
	}
	result, err := a.matching.RunMatching(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) matchedInternships(w http.ResponseWriter, r *http.Request) {
	if !a.allow(w, r, ratelimit.RuleInternshipQuery) {
		return
	}
	id, err := int64Var(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	items, err := a.matching.MatchedInternshipsForStudent(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) studentMatches(w http.ResponseWriter, r *http.Request) {
	id, err := int64Var(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	items, err := a.matching.MatchesForStudent(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (a *API) mentorMatches(w http.ResponseWriter, r *http.Request) {
	id, err := int64Var(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	items, err := a.matching.MatchesForMentor(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

type statusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

func (a *API) transitionMatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		a.writeError(w, r, apperr.Validation("invalid match id", map[string]string{"id": "invalid uuid"}))
		return
	}
	var req statusRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	to, err := matching.ParseStatus(req.Status)
	if err != nil {
		a.writeError(w, r, apperr.Validation("invalid status", map[string]string{"status": "unknown status"}))
		return
	}
	m, err := a.matching.TransitionMatch(r.Context(), id, to, req.Notes)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) patchStudent(w http.ResponseWriter, r *http.Request) {
	id, err := int64Var(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var patch profile.StudentPatch
	if err := decode(r, &patch); err != nil {
		a.writeError(w, r, err)
		return
	}
	st, err := a.profiles.UpdateStudent(r.Context(), id, patch)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) patchMentor(w http.ResponseWriter, r *http.Request) {
	id, err := int64Var(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var patch profile.MentorPatch
	if err := decode(r, &patch); err != nil {
		a.writeError(w, r, err)
		return
	}
	m, err := a.profiles.UpdateMentor(r.Context(), id, patch)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// allow applies rule to the client's address. Limiter failures let the
// request through.
func (a *API) allow(w http.ResponseWriter, r *http.Request, rule ratelimit.Rule) bool {
	if a.limiter == nil {
		return true
	}
	ok, err := a.limiter.Allow(r.Context(), clientIP(r), rule)
	if err != nil {
		a.logger.Warn("rate limiter unavailable", zap.Error(err))
		return true
	}
	if !ok {
		a.writeError(w, r, apperr.New(apperr.CodeRateLimited, "rate limit exceeded", nil))
		return false
	}
	return true
}

func (a *API) withTimeout(next http.Handler) http.Handler {
	if a.timeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func int64Var(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || v <= 0 {
		return 0, apperr.Validation("invalid "+name, map[string]string{name: "must be a positive integer"})
	}
	return v, nil
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("invalid request body", map[string]string{"body": err.Error()})
	}
	return nil
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func nonNil(items []matching.Match) []matching.Match {
	if items == nil {
		return []matching.Match{}
	}
	return items
}
