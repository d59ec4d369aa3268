// Package httpapi implements SpecFusion's public HTTP surface: seven
// read endpoints returning text/markdown bodies tuned for LLM tool
// consumption, plus a Bearer-token-guarded set of /admin endpoints the
// sync runner submits ingested documents through.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/specfusion/specfusion/internal/adapter"
	"github.com/specfusion/specfusion/internal/ratelimit"
	"github.com/specfusion/specfusion/internal/search"
	"github.com/specfusion/specfusion/internal/storage"
)

// maxBulkUpsertBytes caps the admin bulk-upsert request body.
const maxBulkUpsertBytes = 50 << 20 // 50MB

// publicRateLimit is the per-IP requests/minute cap on read endpoints.
const publicRateLimit = 60

// Server is the HTTP server for SpecFusion's retrieval API.
type Server struct {
	engine     *search.Engine
	store      *storage.Store
	registry   *adapter.SourceRegistry
	adminToken string
	limiter    *ratelimit.PerIPLimiters
	log        *zap.Logger
	httpServer *http.Server
}

// NewServer constructs a Server with the given dependencies.
func NewServer(engine *search.Engine, store *storage.Store, registry *adapter.SourceRegistry, adminToken string, log *zap.Logger) *Server {
	return &Server{
		engine:     engine,
		store:      store,
		registry:   registry,
		adminToken: adminToken,
		limiter:    ratelimit.NewPerIPLimiters(publicRateLimit),
		log:        log,
	}
}

// Router builds the chi router: logging/recovery/timeout/compression
// middleware, CORS for browser-based tool clients, a rate-limited public
// group, and a Bearer-token-guarded admin group.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Route("/api", func(api chi.Router) {
		api.Group(func(pub chi.Router) {
			pub.Use(s.rateLimit)
			pub.Get("/search", s.handleSearch)
			pub.Get("/doc/{id}", s.handleGetDoc)
			pub.Get("/sources", s.handleSources)
			pub.Get("/categories", s.handleCategories)
			pub.Get("/categories/{source}/{category}", s.handleCategoryDocs)
			pub.Get("/recent", s.handleRecent)
			pub.Get("/health", s.handleHealth)
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(s.requireAdmin)
			admin.Post("/upsert", s.handleUpsert)
			admin.Post("/bulk-upsert", s.handleBulkUpsert)
			admin.Delete("/doc/{id}", s.handleDeleteDoc)
			admin.Post("/reindex", s.handleReindex)
		})
	})

	return r
}

// Start listens on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.Router()}
	s.log.Info("starting specfusion server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "Bearer " + s.adminToken
		if got := r.Header.Get("Authorization"); got == "" || got != want {
			respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r)) {
			respondMarkdown(w, http.StatusTooManyRequests, "请求过于频繁，请稍后再试。\n")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondMarkdown(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}
