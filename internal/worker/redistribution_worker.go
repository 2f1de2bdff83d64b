// Package worker runs the background side of the ledger: it turns
// payment notifications from the sales system into collective payments,
// retries failed redistributions, and mirrors completed transactions to
// the bookkeeping spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coopledger/internal/amqp"
	"coopledger/internal/core"
	"coopledger/internal/log"
	"coopledger/internal/services"
	"coopledger/internal/sheets"
)

// Redistributor is the slice of the redistribution service the worker
// drives.
type Redistributor interface {
	RegisterPayment(ctx context.Context, params services.RegisterPaymentParams) (core.CollectivePayment, error)
	ListPayments(ctx context.Context, statuses ...core.CollectivePaymentStatus) ([]core.CollectivePayment, error)
	Process(ctx context.Context, paymentID string) (services.ProcessResult, error)
}

// MirrorStore feeds the spreadsheet mirror with not-yet-mirrored
// completed transactions.
type MirrorStore interface {
	ListUnmirrored(ctx context.Context, limit int) ([]core.FinancialTransaction, error)
	MarkMirrored(ctx context.Context, id string) error
}

// ResultPublisher pushes processing outcomes back to the sales system.
type ResultPublisher interface {
	PublishPayoutResult(ctx context.Context, msg *amqp.PayoutResultMessage) error
}

type Worker struct {
	redistribution Redistributor
	mirror         MirrorStore
	appender       sheets.TransactionAppender // nil disables mirroring
	results        ResultPublisher            // nil disables result publishing
	retryInterval  time.Duration
	batchSize      int
	logger         *log.Logger
}

func New(redistribution Redistributor, mirror MirrorStore, appender sheets.TransactionAppender, results ResultPublisher, retryInterval time.Duration, batchSize int, logger *log.Logger) *Worker {
	return &Worker{
		redistribution: redistribution,
		mirror:         mirror,
		appender:       appender,
		results:        results,
		retryInterval:  retryInterval,
		batchSize:      batchSize,
		logger:         logger.WithComponent("worker"),
	}
}

// HandlePaymentReceived registers the notified payment. A returned
// error requeues the message, so validation failures are logged and
// swallowed: a malformed notification never becomes valid by retrying.
func (w *Worker) HandlePaymentReceived(ctx context.Context, msg *amqp.PaymentReceivedMessage) error {
	method := core.PaymentMethod(msg.PaymentMethod)
	if !method.Valid() {
		w.logger.ErrorContext(ctx, "dropping notification with unknown payment method",
			"sale", msg.SaleID, "method", msg.PaymentMethod)
		return nil
	}

	p, err := w.redistribution.RegisterPayment(ctx, services.RegisterPaymentParams{
		CooperativeID: msg.CooperativeID,
		Amount:        core.Money{Units: msg.AmountUnits},
		Currency:      msg.Currency,
		PaymentMethod: method,
		SaleID:        msg.SaleID,
		Buyer:         msg.Buyer,
		InvoiceNumber: msg.InvoiceNumber,
	})
	if err != nil {
		if errors.Is(err, core.ErrValidation) {
			w.logger.ErrorContext(ctx, "dropping invalid payment notification",
				"sale", msg.SaleID, "error", err)
			return nil
		}
		return fmt.Errorf("register payment for sale %s: %w", msg.SaleID, err)
	}

	w.logger.InfoContext(ctx, "payment registered from notification",
		"payment", p.ID, "sale", msg.SaleID, "amount", p.Amount.Units)
	return nil
}

// Run drives the periodic passes until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.RetryFailedPayments(ctx); err != nil {
				w.logger.ErrorContext(ctx, "retry pass failed", "error", err)
			}
			if err := w.MirrorPendingTransactions(ctx); err != nil {
				w.logger.ErrorContext(ctx, "mirror pass failed", "error", err)
			}
		}
	}
}

// RetryFailedPayments re-processes every failed payment and publishes
// the outcome. Members already paid are skipped by the service, so a
// retry can only pay the remaining ones.
func (w *Worker) RetryFailedPayments(ctx context.Context) error {
	failed, err := w.redistribution.ListPayments(ctx, core.PaymentFailed)
	if err != nil {
		return fmt.Errorf("list failed payments: %w", err)
	}

	for _, p := range failed {
		result, err := w.redistribution.Process(ctx, p.ID)
		if err != nil {
			w.logger.WarnContext(ctx, "retrying payment failed", "payment", p.ID, "error", err)
			continue
		}
		w.publishResult(ctx, result)
	}
	return nil
}

func (w *Worker) publishResult(ctx context.Context, result services.ProcessResult) {
	if w.results == nil {
		return
	}
	msg := amqp.NewPayoutResultMessage(
		result.Payment.ID, string(result.Payment.Status), result.Completed, result.Failed)
	if err := w.results.PublishPayoutResult(ctx, msg); err != nil {
		w.logger.ErrorContext(ctx, "publish payout result", "payment", result.Payment.ID, "error", err)
	}
}

// MirrorPendingTransactions appends completed transactions that have
// not yet reached the spreadsheet, in batches. A transaction is marked
// mirrored only after a successful append, so a crashed pass repeats
// the append rather than losing the row.
func (w *Worker) MirrorPendingTransactions(ctx context.Context) error {
	if w.appender == nil {
		return nil
	}

	pending, err := w.mirror.ListUnmirrored(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unmirrored transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	mirrored := 0
	for _, tx := range pending {
		ref, err := w.appender.Append(ctx, tx)
		if err != nil {
			w.logger.ErrorContext(ctx, "append to spreadsheet", "transaction", tx.ID, "error", err)
			continue
		}
		if err := w.mirror.MarkMirrored(ctx, tx.ID); err != nil {
			w.logger.ErrorContext(ctx, "mark transaction mirrored", "transaction", tx.ID, "error", err)
			continue
		}
		mirrored++
		w.logger.Debug("transaction mirrored", "transaction", tx.ID, "row", ref)
	}

	w.logger.InfoContext(ctx, "mirror pass completed", "pending", len(pending), "mirrored", mirrored)
	return nil
}
