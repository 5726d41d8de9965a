// Package testdriver is an in-memory WebDriver endpoint that speaks either dialect.
// It backs tests of the bridge and the standalone fakedriver binary.
package testdriver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/command"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/errors"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/model"
)

// EchoPath is served by every session and returns the request body as the value.
const EchoPath = "/session/:session_id/echo"

// Request is one call received by the server.
type Request struct {
	Method string
	Path   string
	Body   string
}

// Server is a fake driver. The zero value is not usable, use New.
type Server struct {
	router     chi.Router
	variant    command.Variant
	basePath   string
	readyAfter int

	mu          sync.Mutex
	ids         []string
	created     int
	sessions    map[string]*session
	statusCalls int
	requests    []Request
}

type session struct {
	caps model.Capabilities
	url  string
}

// Option defines options to customize the Server
type Option func(*Server)

// WithVariant selects the reply dialect. Auto behaves as W3C.
func WithVariant(v command.Variant) Option {
	return func(s *Server) {
		s.variant = v
	}
}

// WithBasePath mounts every route under basePath.
func WithBasePath(basePath string) Option {
	return func(s *Server) {
		s.basePath = basePath
	}
}

// WithSessionIDs fixes the ids handed out by successive new session commands.
func WithSessionIDs(ids ...string) Option {
	return func(s *Server) {
		s.ids = ids
	}
}

// WithReadyAfter makes the status endpoint fail until it has been called n times.
func WithReadyAfter(n int) Option {
	return func(s *Server) {
		s.readyAfter = n
	}
}

// New creates a fake driver.
func New(opts ...Option) *Server {
	s := &Server{
		variant:  command.W3C,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.record)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		s.fail(w, http.StatusNotFound, errors.CodeUnknownCommand, fmt.Sprintf("unknown command: %s %s", req.Method, req.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		s.fail(w, http.StatusMethodNotAllowed, errors.CodeUnknownMethod, fmt.Sprintf("unknown method: %s %s", req.Method, req.URL.Path))
	})

	mount := func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/session", s.handleNewSession)
		r.Get("/sessions", s.handleSessions)
		r.Route("/session/{sessionID}", func(r chi.Router) {
			r.Use(s.requireSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/echo", s.handleEcho)
			r.Get("/hang", s.handleHang)
			r.Get("/title", s.handleTitle)
			r.Post("/url", s.handleNavigate)
			r.Get("/url", s.handleCurrentURL)
			r.Post("/element", s.handleFindElement)
			r.Post("/timeouts", s.handleEmpty)
		})
	}
	if s.basePath != "" && s.basePath != "/" {
		r.Route(s.basePath, mount)
	} else {
		mount(r)
	}
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.router.ServeHTTP(w, req)
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Sessions returns the ids of the sessions that have not been deleted.
func (s *Server) Sessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (s *Server) legacy() bool {
	return s.variant == command.Legacy
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: req.Method, Path: req.URL.Path, Body: string(body)})
		s.mu.Unlock()

		next.ServeHTTP(w, req)
	})
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "sessionID")
		s.mu.Lock()
		_, ok := s.sessions[id]
		s.mu.Unlock()
		if !ok {
			s.fail(w, http.StatusNotFound, errors.CodeInvalidSessionID, fmt.Sprintf("no active session with id %s", id))
			return
		}
		next.ServeHTTP(w, req)
	})
}

// respond writes value in the server's dialect.
func (s *Server) respond(w http.ResponseWriter, sessionID string, value interface{}) {
	payload := map[string]interface{}{"value": value}
	if s.legacy() {
		payload["status"] = 0
		if sessionID != "" {
			payload["sessionId"] = sessionID
		} else {
			payload["sessionId"] = nil
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(payload)
}

// fail writes an error in the server's dialect.
func (s *Server) fail(w http.ResponseWriter, httpStatus int, code errors.Code, message string) {
	var payload interface{}
	if s.legacy() {
		httpStatus = http.StatusInternalServerError
		payload = map[string]interface{}{
			"status": _legacyStatus[code],
			"value":  map[string]interface{}{"message": message},
		}
	} else {
		payload = map[string]interface{}{
			"value": map[string]interface{}{
				"error":      code,
				"message":    message,
				"stacktrace": "",
			},
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(payload)
}

var _legacyStatus = map[errors.Code]int{
	errors.CodeInvalidSessionID: 6,
	errors.CodeNoSuchElement:    7,
	errors.CodeUnknownCommand:   9,
	errors.CodeUnknownError:     13,
	errors.CodeUnknownMethod:    9,
	errors.CodeInvalidArgument:  61,
}
