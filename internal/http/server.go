// Package http is the JSON API surface of the ledger service.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"kakeibo/internal/cache"
	applog "kakeibo/internal/log"
	"kakeibo/internal/store"
)

// EventPublisher notifies the mirror worker about ledger changes. A nil
// publisher disables events; writes still succeed.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, op string, id int64) error
}

type Server struct {
	http.Server
	store     store.Store
	publisher EventPublisher
	logger    *applog.Logger

	rateLimiter *rateLimiter

	// Registry responses are cheap to rebuild but hit on every page load,
	// so they sit behind a short TTL.
	registryCache *cache.LRUCache[[]string]
	cacheManager  *cache.Manager

	backupDir  string
	backupKeep int
	logDir     string

	shutdownOnce sync.Once
}

// Options carries the operational knobs the handlers need beyond the store.
type Options struct {
	Publisher  EventPublisher
	Logger     *applog.Logger
	BackupDir  string
	BackupKeep int
	LogDir     string
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, st store.Store, opts Options) *Server {
	mux := http.NewServeMux()

	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:         st,
		publisher:     opts.Publisher,
		logger:        logger,
		rateLimiter:   newRateLimiter(),
		registryCache: cache.NewLRUCache[[]string](64, 30*time.Second),
		cacheManager:  cache.NewManager(),
		backupDir:     opts.BackupDir,
		backupKeep:    opts.BackupKeep,
		logDir:        opts.LogDir,
	}

	s.cacheManager.Register(s.registryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/transactions", s.withMiddleware(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.withMiddleware(s.handleCreateTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.withMiddleware(s.handleUpdateTransaction))
	mux.HandleFunc("PATCH /api/transactions/{id}", s.withMiddleware(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.withMiddleware(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/accounts", s.withMiddleware(s.handleAccounts))
	mux.HandleFunc("GET /api/items", s.withMiddleware(s.handleItems))

	mux.HandleFunc("GET /api/balance_history", s.withMiddleware(s.handleBalanceHistory))
	mux.HandleFunc("GET /api/summary", s.withMiddleware(s.handleSummary))

	mux.HandleFunc("GET /api/backup_csv", s.withMiddleware(s.handleBackupCSV))
	mux.HandleFunc("POST /api/import_csv", s.withMiddleware(s.handleImportCSV))

	mux.HandleFunc("GET /api/download_log", s.withMiddleware(s.handleDownloadLog))
	mux.HandleFunc("POST /api/log", s.withMiddleware(s.handleClientLog))
	mux.HandleFunc("POST /api/logout", s.withMiddleware(s.handleLogout))

	return s
}

// Shutdown stops the cleanup goroutines before the listener drains.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withMiddleware adds security headers, rate limiting on mutating methods,
// and request logging with a per-request id.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		s.logger.InfoContext(ctx, "Request started",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP)

		if mutating(r.Method) && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.InfoContext(ctx, "Request completed",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, time.Since(start).Milliseconds(),
			applog.FieldClientIP, clientIP)
	}
}

type requestIDKey struct{}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Accounts(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) invalidateRegistries() {
	s.registryCache.Delete(accountsCacheKey)
	// Item registries are account-scoped; drop the unscoped entry and let the
	// short TTL age out the rest.
	s.registryCache.Delete(itemsCacheKey(""))
}

// publish sends a ledger event if a publisher is wired. Event delivery is
// best effort: the write already committed, so a broker outage must not fail
// the request.
func (s *Server) publish(ctx context.Context, op string, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, op, id); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			"op", op, "id", id, applog.FieldError, err)
	}
}
