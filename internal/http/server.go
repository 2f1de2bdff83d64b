// Package http exposes the cooperative ledger over a JSON API: the
// transaction ledger, budgets, member credits, subsidies, collective
// payment redistribution and financial reports.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"coopledger/internal/core"
	"coopledger/internal/log"
	"coopledger/internal/services"
)

type contextKey string

// requestIDKey carries the per-request trace id through the context.
const requestIDKey contextKey = "request_id"

// LedgerAPI is the slice of the ledger service the handlers use.
type LedgerAPI interface {
	CreateTransaction(ctx context.Context, tx core.FinancialTransaction) (core.FinancialTransaction, error)
	UpdateTransaction(ctx context.Context, id string, update services.TransactionUpdate) (core.FinancialTransaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	GetTransaction(ctx context.Context, id string) (core.FinancialTransaction, error)
	ListTransactions(ctx context.Context, filter core.TransactionFilter) ([]core.FinancialTransaction, error)
	ExportCSV(ctx context.Context, w io.Writer, filter core.TransactionFilter) error
}

type BudgetAPI interface {
	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	UpdateBudget(ctx context.Context, id string, update services.BudgetUpdate) (core.Budget, error)
	GetBudget(ctx context.Context, id string) (core.Budget, error)
	ListBudgets(ctx context.Context) ([]core.Budget, error)
}

type CreditAPI interface {
	CreateCredit(ctx context.Context, params services.CreateCreditParams) (core.Credit, error)
	Approve(ctx context.Context, id string) (core.Credit, error)
	Disburse(ctx context.Context, id string, method core.PaymentMethod, actor string) (core.Credit, error)
	MarkDefaulted(ctx context.Context, id string) (core.Credit, error)
	RecordRepayment(ctx context.Context, creditID string, installment int, method core.PaymentMethod, actor string) (core.Credit, error)
	GetCredit(ctx context.Context, id string) (core.Credit, error)
	ListCredits(ctx context.Context) ([]core.Credit, error)
}

type SubsidyAPI interface {
	CreateSubsidy(ctx context.Context, subsidy core.Subsidy) (core.Subsidy, error)
	Approve(ctx context.Context, id string) (core.Subsidy, error)
	Reject(ctx context.Context, id string) (core.Subsidy, error)
	Disburse(ctx context.Context, id string, method core.PaymentMethod, actor string) (core.Subsidy, error)
	GetSubsidy(ctx context.Context, id string) (core.Subsidy, error)
	ListSubsidies(ctx context.Context) ([]core.Subsidy, error)
}

type RedistributionAPI interface {
	RegisterPayment(ctx context.Context, params services.RegisterPaymentParams) (core.CollectivePayment, error)
	RecordExpectedPayment(ctx context.Context, params services.RegisterPaymentParams) (core.CollectivePayment, error)
	MarkReceived(ctx context.Context, id string) (core.CollectivePayment, error)
	Review(ctx context.Context, paymentID string, contributions []core.Contribution) ([]core.MemberDistribution, error)
	Confirm(ctx context.Context, paymentID string, contributions []core.Contribution, confirmedBy string) ([]core.MemberDistribution, error)
	CancelConfirmation(ctx context.Context, paymentID string) (core.CollectivePayment, error)
	Process(ctx context.Context, paymentID string) (services.ProcessResult, error)
	Status(ctx context.Context, paymentID string) (core.CollectivePayment, []core.MemberDistribution, error)
	ListPayments(ctx context.Context, statuses ...core.CollectivePaymentStatus) ([]core.CollectivePayment, error)
}

type ReportingAPI interface {
	FinancialSummary(ctx context.Context) (core.FinancialSummary, error)
	MonthlyReport(ctx context.Context, year, month int) (core.MonthlyReport, error)
}

// Services groups everything the API serves.
type Services struct {
	Ledger         LedgerAPI
	Budgets        BudgetAPI
	Credits        CreditAPI
	Subsidies      SubsidyAPI
	Redistribution RedistributionAPI
	Reports        ReportingAPI
}

type Server struct {
	http.Server
	services     Services
	rateLimiter  *rateLimiter
	logger       *log.Logger
	shutdownOnce sync.Once
}

// NewServer configures all routes and returns a ready-to-run server.
func NewServer(addr string, svcs Services, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		services:    svcs,
		rateLimiter: newRateLimiter(),
		logger:      logger.WithComponent("http"),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	handle := func(pattern string, handler http.HandlerFunc) {
		mux.HandleFunc(pattern, s.withMiddleware(handler))
	}

	handle("POST /api/transactions", s.handleCreateTransaction)
	handle("GET /api/transactions", s.handleListTransactions)
	handle("GET /api/transactions/export", s.handleExportTransactions)
	handle("GET /api/transactions/{id}", s.handleGetTransaction)
	handle("PATCH /api/transactions/{id}", s.handleUpdateTransaction)
	handle("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	handle("POST /api/budgets", s.handleCreateBudget)
	handle("GET /api/budgets", s.handleListBudgets)
	handle("GET /api/budgets/{id}", s.handleGetBudget)
	handle("PATCH /api/budgets/{id}", s.handleUpdateBudget)

	handle("POST /api/credits", s.handleCreateCredit)
	handle("GET /api/credits", s.handleListCredits)
	handle("GET /api/credits/{id}", s.handleGetCredit)
	handle("POST /api/credits/{id}/approve", s.handleApproveCredit)
	handle("POST /api/credits/{id}/disburse", s.handleDisburseCredit)
	handle("POST /api/credits/{id}/default", s.handleDefaultCredit)
	handle("POST /api/credits/{id}/repayments", s.handleRecordRepayment)

	handle("POST /api/subsidies", s.handleCreateSubsidy)
	handle("GET /api/subsidies", s.handleListSubsidies)
	handle("GET /api/subsidies/{id}", s.handleGetSubsidy)
	handle("POST /api/subsidies/{id}/approve", s.handleApproveSubsidy)
	handle("POST /api/subsidies/{id}/reject", s.handleRejectSubsidy)
	handle("POST /api/subsidies/{id}/disburse", s.handleDisburseSubsidy)

	handle("POST /api/payments", s.handleRegisterPayment)
	handle("GET /api/payments", s.handleListPayments)
	handle("POST /api/payments/expected", s.handleRecordExpectedPayment)
	handle("GET /api/payments/{id}", s.handlePaymentStatus)
	handle("POST /api/payments/{id}/received", s.handleMarkReceived)
	handle("POST /api/payments/{id}/review", s.handleReviewPayment)
	handle("POST /api/payments/{id}/confirm", s.handleConfirmPayment)
	handle("DELETE /api/payments/{id}/confirmation", s.handleCancelConfirmation)
	handle("POST /api/payments/{id}/process", s.handleProcessPayment)

	handle("GET /api/reports/summary", s.handleFinancialSummary)
	handle("GET /api/reports/monthly", s.handleMonthlyReport)

	return s
}

// Shutdown stops the rate limiter's cleanup goroutine and drains the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withMiddleware adds request tracing, security headers and rate
// limiting around a handler.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		ip := clientIP(r)

		// Mutating requests are rate limited per client.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(ip) {
			w.Header().Set("Retry-After", "60")
			s.error(w, r, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Request-ID", requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.InfoContext(ctx, "request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", ip)
	}
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

// generateRequestID creates a unique request id for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// requestID extracts the request id from the context.
func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
