package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/reactor"
	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/sandbox"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server exposes one runtime over HTTP.
type Server struct {
	rt       *reactor.Runtime
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
	router   chi.Router

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGatherer serves metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithCheckOrigin sets the websocket origin check. The default accepts
// same-origin requests only.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = fn
	}
}

// New creates an inspector for rt.
func New(rt *reactor.Runtime, opts ...Option) *Server {
	s := &Server{
		rt:       rt,
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "inspect")
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Route("/data", func(r chi.Router) {
		r.Get("/", s.handleData)
		r.Get("/{key}", s.handleGet)
		r.Put("/{key}", s.handlePut)
	})
	r.Post("/eval", s.handleEval)
	r.Get("/subscriptions", s.handleSubscriptions)
	r.Get("/watch", s.handleWatch)
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ClientCount returns the number of open /watch connections.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects every /watch client.
func (s *Server) Close() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.rt.IsDestroyed() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "destroyed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sweeping": s.rt.Sweeper().Running(),
	})
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	var snapshot map[string]any
	s.rt.Do(func() {
		snapshot = s.rt.Data().Snapshot()
	})
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var (
		value any
		found bool
	)
	s.rt.Do(func() {
		if found = s.rt.Data().Has(key); found {
			value = reactive.Plain(s.rt.Data().Peek(key))
		}
	})
	if !found {
		writeError(w, http.StatusNotFound, errors.New(errors.CodeInvalidInput).
			WithDetail(fmt.Sprintf("no property %q", key)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": value})
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var value any
	if err := readJSON(r, &value); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.rt.Do(func() {
		s.rt.Data().Set(key, value)
	})
	w.WriteHeader(http.StatusNoContent)
}

// EvalRequest is the body of POST /eval.
type EvalRequest struct {
	Expression string `json:"expression"`
	Mode       string `json:"mode,omitempty"`
}

// EvalResponse is the reply of POST /eval.
type EvalResponse struct {
	Value any        `json:"value"`
	Error *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the JSON form of a coded error.
type ErrorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	var req EvalRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	mode, err := sandbox.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var value any
	s.rt.Do(func() {
		value, err = s.rt.Exec(sandbox.Options{
			Expression: req.Expression,
			Mode:       mode,
			Ctx:        r.Context(),
		})
		value = jsonValue(value)
	})
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, EvalResponse{Error: errorBody(err)})
		return
	}
	writeJSON(w, http.StatusOK, EvalResponse{Value: value})
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"bindings": len(s.rt.Binder().Bindings()),
		"groups":   len(s.rt.Binder().Groups()),
		"tracked":  s.rt.Sweeper().Len(),
		"events":   s.rt.Events().Names(),
		"clients":  s.ClientCount(),
	})
}

// =============================================================================
// Helpers
// =============================================================================

func readJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.New(errors.CodeInvalidInput).Wrap(err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.New(errors.CodeInvalidInput).
			WithDetail("request body is not valid JSON: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": errorBody(err)})
}

func errorBody(err error) *ErrorBody {
	e := errors.FromError(err, errors.CodeEvaluation)
	return &ErrorBody{
		Code:       e.Code,
		Message:    e.Error(),
		Detail:     e.Detail,
		Suggestion: e.Suggestion,
	}
}

// jsonValue converts an evaluation result into something encoding/json accepts.
func jsonValue(v any) any {
	v = reactive.Plain(v)
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = jsonValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = jsonValue(e)
		}
		return out
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("[%T]", v)
	}
	return v
}
