// Package mockapi serves an in-memory fake of the admin REST API.
//
// It understands the same endpoints the rest adapter calls, including the
// DELETE variants, and records every request it receives so tests can assert on
// the exact URL and body the adapter produced.
package mockapi

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/preslavrachev/restoffice/core"
	"github.com/preslavrachev/restoffice/middleware/auth"
)

// DefaultBasePath is where the admin API is mounted
const DefaultBasePath = "/api/admin"

// RecordedRequest is a request as the server received it
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Server is the fake backend
type Server struct {
	mu          sync.RWMutex
	collections map[string][]core.Record
	nextID      int64
	requests    []RecordedRequest

	basePath string
	users    map[string]auth.BasicAuthUser
	log      *zap.Logger
}

// Option configures a Server
type Option func(*Server)

// WithBasePath mounts the API under a different prefix
func WithBasePath(path string) Option {
	return func(s *Server) {
		s.basePath = path
	}
}

// WithBasicAuth requires HTTP Basic credentials on every API request
func WithBasicAuth(users map[string]auth.BasicAuthUser) Option {
	return func(s *Server) {
		s.users = users
	}
}

// WithLogger logs every served request
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// New creates an empty fake backend
func New(opts ...Option) *Server {
	s := &Server{
		collections: make(map[string][]core.Record),
		nextID:      1,
		basePath:    DefaultBasePath,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed appends records to a collection. Numeric ids advance the id sequence used by create.
func (s *Server) Seed(resource string, records ...core.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if n, err := strconv.ParseInt(core.FormatID(rec.ID()), 10, 64); err == nil && n >= s.nextID {
			s.nextID = n + 1
		}
		s.collections[resource] = append(s.collections[resource], cloneRecord(rec))
	}
}

// Records returns a copy of a collection in storage order
func (s *Server) Records(resource string) []core.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Record, len(s.collections[resource]))
	for i, rec := range s.collections[resource] {
		out[i] = cloneRecord(rec)
	}
	return out
}

// Requests returns every request received so far
func (s *Server) Requests() []RecordedRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// LastRequest returns the most recent request, or nil if none was received
func (s *Server) LastRequest() *RecordedRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.requests) == 0 {
		return nil
	}
	req := s.requests[len(s.requests)-1]
	return &req
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.recordRequests)

	r.Route(s.basePath, func(r chi.Router) {
		if s.users != nil {
			r.Use(auth.RequireBasicAuth("restoffice-mock", s.users))
			r.Use(s.logUser)
		}

		r.Get("/{resource}/list", s.handleList)
		r.Get("/{resource}/one", s.handleOne)
		r.Get("/{resource}/delete", s.handleDeleteByQuery)
		r.Get("/{resource}/delete-many", s.handleDeleteManyByQuery)
		r.Get("/{resource}", s.handleQuery)
		r.Post("/{resource}", s.handleCreate)
		r.Put("/{resource}", s.handleUpdateMany)
		r.Put("/{resource}/{id}", s.handleUpdate)
		r.Delete("/{resource}", s.handleDeleteByFilter)
		r.Delete("/{resource}/{id}", s.handleDeleteByID)
	})

	return r
}

func (s *Server) recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("took", time.Since(start)),
		)
	})
}

// logUser logs who an authenticated request was made by
func (s *Server) logUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := auth.GetAuthUser(r.Context()); ok {
			s.log.Debug("authenticated",
				zap.String("user", user.Username),
				zap.Strings("roles", user.Roles),
				zap.String("path", r.URL.Path),
			)
		}
		next.ServeHTTP(w, r)
	})
}

func cloneRecord(rec core.Record) core.Record {
	if rec == nil {
		return nil
	}
	out := make(core.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
