// Package httpapi は配布画面、スキャナ端末 API、社員管理を HTTP で提供します。
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ogurasousui/gallon-quota/internal/core/distribution"
	"github.com/ogurasousui/gallon-quota/internal/core/employee"
	"github.com/ogurasousui/gallon-quota/internal/core/ledger"
	"github.com/rs/zerolog"
)

const defaultRecentTransactions = 10

// HistoryReader は社員の配布履歴を新しい順に返します。
type HistoryReader interface {
	History(ctx context.Context, employeeID string, limit int) ([]*ledger.Transaction, error)
}

// MetricsSink はルート単位のリクエストメトリクスを記録し、公開用ハンドラを提供します。
type MetricsSink interface {
	ObserveHTTP(route, code string, seconds float64)
	Handler() http.Handler
}

// Server は HTTP ルートをユースケースへ接続します。
type Server struct {
	distribution       distribution.UseCase
	employees          employee.UseCase
	history            HistoryReader
	metrics            MetricsSink
	logger             zerolog.Logger
	clock              employee.Clock
	location           *time.Location
	recentTransactions int
}

// Option は Server の設定を変更します。
type Option func(*Server)

// WithMetrics はリクエストメトリクスと /metrics を有効にします。
func WithMetrics(m MetricsSink) Option { return func(s *Server) { s.metrics = m } }

// WithLogger はリクエストロガーの元になるロガーを設定します。
func WithLogger(l zerolog.Logger) Option { return func(s *Server) { s.logger = l } }

// WithClock はヘルスチェックの時刻に使う Clock を設定します。
func WithClock(c employee.Clock) Option { return func(s *Server) { s.clock = c } }

// WithLocation は管理画面の日時表示に使うタイムゾーンを設定します。
func WithLocation(loc *time.Location) Option {
	return func(s *Server) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithRecentTransactions は社員詳細に表示する履歴の件数を設定します。
func WithRecentTransactions(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.recentTransactions = n
		}
	}
}

// NewServer は Server を生成します。
func NewServer(dist distribution.UseCase, employees employee.UseCase, history HistoryReader, opts ...Option) *Server {
	s := &Server{
		distribution:       dist,
		employees:          employees,
		history:            history,
		logger:             zerolog.Nop(),
		clock:              employee.SystemClock{},
		location:           time.UTC,
		recentTransactions: defaultRecentTransactions,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler は全ルートを登録した chi ルータを返します。
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.observe)
	}

	r.Get("/health-check", s.handleHealthCheck)

	r.Get("/", s.handleIndex)
	r.Post("/employee/lookup", s.handleLookup)
	r.Post("/gallon/take", s.handleTake)

	r.Route("/api", func(r chi.Router) {
		r.Post("/scan", s.handleScan)
	})

	r.Route("/admin/employees", func(r chi.Router) {
		r.Get("/", s.handleListEmployees)
		r.Post("/", s.handleCreateEmployee)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleShowEmployee)
			r.Put("/", s.handleUpdateEmployee)
			r.Delete("/", s.handleDeleteEmployee)
			r.Get("/transactions.xlsx", s.handleExportTransactions)
		})
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	return r
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.clock.Now().Format(time.RFC3339),
	})
}

// requestLogger は request_id 付きのロガーをコンテキストに格納し、リクエストごとに 1 行ログを出力します。
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := s.logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(l.WithContext(r.Context())))

		l.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", statusOf(ww)).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		s.metrics.ObserveHTTP(route, strconv.Itoa(statusOf(ww)), time.Since(start).Seconds())
	})
}

func statusOf(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}
