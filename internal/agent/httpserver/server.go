// Package httpserver exposes the agent's operations over HTTP: ingestion,
// retrieval, tag queries and migration submits.
package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/loadnetwork/load-s3-agent/internal/agent/auth"
	"github.com/loadnetwork/load-s3-agent/internal/agent/config"
	"github.com/loadnetwork/load-s3-agent/internal/agent/services"
	"github.com/loadnetwork/load-s3-agent/internal/common"
	"github.com/loadnetwork/load-s3-agent/internal/logging"
)

const agentVersion = "0.1.0"

type Server struct {
	placement *services.PlacementService
	query     *services.QueryService
	migration *services.MigrationService
	stats     *services.StatsService

	config       *config.Config
	logger       logging.Logger
	uploaderAddr string
}

func NewServer(placement *services.PlacementService, query *services.QueryService,
	migration *services.MigrationService, stats *services.StatsService,
	cfg *config.Config, logger logging.Logger, uploaderAddr string) *Server {
	if uploaderAddr == "" {
		uploaderAddr = common.DataitemsAddress
	}
	return &Server{
		placement:    placement,
		query:        query,
		migration:    migration,
		stats:        stats,
		config:       cfg,
		logger:       logger,
		uploaderAddr: uploaderAddr,
	}
}

// Router builds the chi router for the full endpoint surface. Mutating
// routes sit behind the bearer-token middleware; reads are open.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)

	r.Get("/", s.handleInfo)
	r.Get("/stats", s.handleStats)
	r.Get("/{id}", s.handlePresign)
	// Read-only despite the verb: POST only carries the filter body.
	r.Post("/tags/query", s.handleTagQuery)

	r.Group(func(pr chi.Router) {
		pr.Use(s.requireAuth)
		pr.Post("/upload", s.handleUpload(false))
		pr.Post("/upload/private", s.handleUpload(true))
		pr.Post("/post/{id}", s.handleMigrate)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info(r.Context(), "http request",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start).String())
	})
}

// requireAuth enforces a bearer JWT on mutating routes. An empty AuthSecret
// disables the check entirely, matching the original agent's open mode.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.AuthSecret == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}
		if _, err := auth.GetSubjectFromToken(token, []byte(s.config.AuthSecret)); err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
