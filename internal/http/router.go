package httpx

import (
	"bufio"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modelyard/platform/internal/repository"
	"github.com/modelyard/platform/internal/service/access"
	"github.com/modelyard/platform/internal/service/auth"
	"github.com/modelyard/platform/internal/service/endpoint"
	"github.com/modelyard/platform/internal/service/metrics"
	"github.com/modelyard/platform/internal/service/project"
	"github.com/modelyard/platform/internal/service/status"
	"github.com/modelyard/platform/internal/service/team"
	"github.com/modelyard/platform/internal/ws"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux           *http.ServeMux
	logger        *slog.Logger
	auth          auth.Service
	team          team.Service
	project       project.Service
	endpoint      endpoint.Service
	status        status.Service
	metrics       metrics.Service
	access        access.Service
	upgrader      websocket.Upgrader
	limiter       RateLimiter
	pipelineToken string
	dbHealth      func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault         = time.Minute
	rateWindowRealtime        = 30 * time.Second
	rateLimitSignup           = 5
	rateLimitLogin            = 12
	rateLimitUserWrite        = 60
	rateLimitUserRead         = 120
	rateLimitWebsocket        = 30
	rateLimitPipelineCallback = 120
	healthCheckTimeout        = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, teamSvc team.Service, projectSvc project.Service, endpointSvc endpoint.Service, statusSvc status.Service, metricsSvc metrics.Service, accessSvc access.Service, limiter RateLimiter, pipelineToken string, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		auth:     authSvc,
		team:     teamSvc,
		project:  projectSvc,
		endpoint: endpointSvc,
		status:   statusSvc,
		metrics:  metricsSvc,
		access:   accessSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:       limiter,
		pipelineToken: strings.TrimSpace(pipelineToken),
		dbHealth:      dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.HandleFunc("/auth/signup", r.audit("/auth/signup", r.withRateLimit("/auth/signup", rateLimitSignup, rateWindowDefault, rateLimitKeyIP, r.handleSignup)))
	r.mux.HandleFunc("/auth/login", r.audit("/auth/login", r.withRateLimit("/auth/login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/teams", r.audit("/teams", r.handlerAuthRate("/teams", rateLimitUserWrite, rateWindowDefault, r.handleTeams)))
	r.mux.HandleFunc("/teams/", r.audit("/teams/{team}", r.handlerAuthRate("/teams/{team}", rateLimitUserRead, rateWindowDefault, r.handleTeamSubroutes)))
	r.mux.HandleFunc("/projects", r.audit("/projects", r.handlerAuthRate("/projects", rateLimitUserWrite, rateWindowDefault, r.handleProjects)))
	r.mux.HandleFunc("/endpoints", r.audit("/endpoints", r.handlerAuthRate("/endpoints", rateLimitUserWrite, rateWindowDefault, r.handleEndpoints)))
	r.mux.HandleFunc("/endpoints/", r.audit("/endpoints/{id}", r.handlerAuthRate("/endpoints/{id}", rateLimitUserRead, rateWindowDefault, r.handleEndpointSubroutes)))
	r.mux.HandleFunc("/ws/logs", r.audit("/ws/logs", r.handlerAuthRate("/ws/logs", rateLimitWebsocket, rateWindowRealtime, r.handleLogsWS)))
	r.mux.HandleFunc("/pipeline/callback", r.audit("/pipeline/callback", r.withRateLimit("/pipeline/callback", rateLimitPipelineCallback, rateWindowDefault, rateLimitKeyIP, r.handlePipelineCallback)))
	r.mux.Handle("/metrics", promhttp.Handler())
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, tokens, err := r.auth.Signup(req.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, "account created", map[string]any{
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
		},
		"tokens": tokens,
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, tokens, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "please sign in again")
		return
	}
	writeJSON(w, http.StatusOK, "signed in", map[string]any{
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
		},
		"tokens": tokens,
	})
}

func (r *Router) handleTeams(w http.ResponseWriter, req *http.Request) {
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodPost:
		var payload struct {
			Name   string      `json:"name"`
			Slug   string      `json:"slug"`
			Limits team.Limits `json:"limits"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		created, err := r.team.Create(req.Context(), info.UserID, payload.Name, payload.Slug, payload.Limits)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, "team created", created)
	case http.MethodGet:
		teams, err := r.team.ListByUser(req.Context(), info.UserID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, "teams", teams)
	default:
		r.methodNotAllowed(w)
	}
}

// handleTeamSubroutes serves the slug-addressed metrics route:
// /teams/{team}/projects/{project}/endpoints/{endpoint}/metrics
func (r *Router) handleTeamSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/teams/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 6 && parts[1] == "projects" && parts[3] == "endpoints" && parts[5] == "metrics" {
		r.handleEndpointMetrics(w, req, parts[0], parts[2], parts[4])
		return
	}
	if len(parts) == 5 && parts[1] == "projects" && parts[3] == "endpoints" {
		r.handleEndpointResolve(w, req, parts[0], parts[2], parts[4])
		return
	}
	r.notFound(w)
}

// handleEndpointResolve looks an endpoint up by its slug path.
func (r *Router) handleEndpointResolve(w http.ResponseWriter, req *http.Request, teamSlug, projectSlug, endpointSlug string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	ep, err := r.access.ResolveEndpoint(req.Context(), info.UserID, teamSlug, projectSlug, endpointSlug)
	if err != nil {
		writeError(w, r.accessErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, "endpoint", ep)
}

func (r *Router) handleEndpointMetrics(w http.ResponseWriter, req *http.Request, teamSlug, projectSlug, endpointSlug string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	hoursBack, _ := strconv.Atoi(req.URL.Query().Get("hours_back"))
	result, err := r.metrics.EndpointMetrics(req.Context(), info.UserID, teamSlug, projectSlug, endpointSlug, hoursBack)
	if err != nil {
		writeError(w, r.metricsErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, "endpoint metrics", result)
}

func (r *Router) metricsErrorStatus(err error) int {
	switch {
	case errors.Is(err, access.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, metrics.ErrNotDeployed):
		return http.StatusConflict
	case errors.Is(err, metrics.ErrServiceName):
		return http.StatusUnprocessableEntity
	case errors.Is(err, metrics.ErrUpstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (r *Router) handleProjects(w http.ResponseWriter, req *http.Request) {
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodPost:
		var payload project.CreateInput
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if _, err := r.access.AuthorizeTeam(req.Context(), info.UserID, payload.TeamID); err != nil {
			writeError(w, r.accessErrorStatus(err), err.Error())
			return
		}
		proj, err := r.project.Create(req.Context(), payload)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, "project created", proj)
	case http.MethodGet:
		teamID := req.URL.Query().Get("team_id")
		if teamID == "" {
			writeError(w, http.StatusBadRequest, "team_id query parameter required")
			return
		}
		if _, err := r.access.AuthorizeTeam(req.Context(), info.UserID, teamID); err != nil {
			writeError(w, r.accessErrorStatus(err), err.Error())
			return
		}
		projects, err := r.project.ListByTeam(req.Context(), teamID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, "projects", projects)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleEndpoints(w http.ResponseWriter, req *http.Request) {
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodPost:
		var payload endpoint.CreateInput
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if _, err := r.access.AuthorizeProject(req.Context(), info.UserID, payload.ProjectID); err != nil {
			writeError(w, r.accessErrorStatus(err), err.Error())
			return
		}
		created, err := r.endpoint.Create(req.Context(), payload)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, "endpoint created", created)
	case http.MethodGet:
		projectID := req.URL.Query().Get("project_id")
		if projectID == "" {
			writeError(w, http.StatusBadRequest, "project_id query parameter required")
			return
		}
		if _, err := r.access.AuthorizeProject(req.Context(), info.UserID, projectID); err != nil {
			writeError(w, r.accessErrorStatus(err), err.Error())
			return
		}
		endpoints, err := r.endpoint.ListByProject(req.Context(), projectID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, "endpoints", endpoints)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleEndpointSubroutes(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	trimmed := strings.TrimPrefix(req.URL.Path, "/endpoints/")
	parts := strings.Split(trimmed, "/")
	endpointID := parts[0]
	if endpointID == "" {
		r.notFound(w)
		return
	}
	switch {
	case len(parts) == 1:
		ep, err := r.access.AuthorizeEndpoint(req.Context(), info.UserID, endpointID)
		if err != nil {
			writeError(w, r.accessErrorStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, "endpoint", ep)
	case len(parts) == 2 && parts[1] == "status":
		projection, err := r.status.Projection(req.Context(), info.UserID, endpointID)
		if err != nil {
			writeError(w, r.accessErrorStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, "endpoint status", projection)
	default:
		r.notFound(w)
	}
}

func (r *Router) accessErrorStatus(err error) int {
	if errors.Is(err, access.ErrNotFound) || errors.Is(err, repository.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (r *Router) handlePipelineCallback(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if !r.verifyPipelineToken(w, req) {
		return
	}
	var payload endpoint.CallbackPayload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := r.endpoint.ProcessCallback(req.Context(), payload); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, "callback received", map[string]string{"status": "received"})
}

func (r *Router) handleLogsWS(w http.ResponseWriter, req *http.Request) {
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	endpointID := req.URL.Query().Get("endpoint_id")
	if endpointID == "" {
		writeError(w, http.StatusBadRequest, "endpoint_id query parameter required")
		return
	}
	if _, err := r.access.AuthorizeEndpoint(req.Context(), info.UserID, endpointID); err != nil {
		writeError(w, r.accessErrorStatus(err), err.Error())
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	hub := r.endpoint.Hub()
	hub.Register(endpointID, client)
	go func() {
		defer func() {
			hub.Unregister(endpointID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, "health", payload)
}

// mustAuthInfo fetches auth info placed on the context by requireAuth. A
// miss means a route was registered without the middleware.
func (r *Router) mustAuthInfo(w http.ResponseWriter, req *http.Request) (authInfo, bool) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return authInfo{}, false
	}
	return info, true
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
			if info.TeamID != "" {
				fields = append(fields, "team_id", info.TeamID)
			}
		} else if strings.HasPrefix(req.URL.Path, "/pipeline/") {
			actor = "pipeline"
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

// verifyPipelineToken ensures pipeline callbacks include the configured secret.
func (r *Router) verifyPipelineToken(w http.ResponseWriter, req *http.Request) bool {
	expected := r.pipelineToken
	if expected == "" {
		r.logger.Error("pipeline token not configured", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "pipeline authentication misconfigured")
		return false
	}
	token := strings.TrimSpace(req.Header.Get("X-Pipeline-Token"))
	if len(token) != len(expected) || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		r.logger.Warn("pipeline token mismatch", "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, "invalid pipeline token")
		return false
	}
	return true
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
