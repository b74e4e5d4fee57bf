// Package worker mirrors ledger changes to the spreadsheet and takes
// periodic CSV backups.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"kakeibo/internal/amqp"
	"kakeibo/internal/ledgercsv"
	"kakeibo/internal/sheets"
	"kakeibo/internal/store"
)

// EventConsumer delivers ledger events until the context is done.
type EventConsumer interface {
	ConsumeLedgerEvents(ctx context.Context, handler func(*amqp.LedgerEventMessage) error) error
}

type MirrorWorker struct {
	store      store.Store
	appender   sheets.AuditAppender
	backupDir  string
	backupKeep int
}

func NewMirrorWorker(st store.Store, appender sheets.AuditAppender, backupDir string, backupKeep int) *MirrorWorker {
	return &MirrorWorker{
		store:      st,
		appender:   appender,
		backupDir:  backupDir,
		backupKeep: backupKeep,
	}
}

// Run consumes ledger events and takes periodic backups until ctx is done.
// An initial backup runs at startup so a worker that was down still leaves a
// fresh snapshot behind.
func (w *MirrorWorker) Run(ctx context.Context, consumer EventConsumer, backupInterval time.Duration) error {
	if err := w.BackupOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup backup failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.ConsumeLedgerEvents(ctx, func(msg *amqp.LedgerEventMessage) error {
			return w.HandleLedgerEvent(ctx, msg)
		})
	})

	g.Go(func() error {
		return w.runBackups(ctx, backupInterval)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleLedgerEvent mirrors one ledger change to the spreadsheet. Events are
// at-least-once, so a duplicate append is acceptable; the recorded-at column
// disambiguates.
func (w *MirrorWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	entry := sheets.AuditEntry{Op: msg.Op}
	entry.Tx.ID = msg.ID

	switch msg.Op {
	case amqp.OpCreated, amqp.OpUpdated:
		tx, err := w.store.GetTransaction(ctx, msg.ID)
		if errors.Is(err, store.ErrNotFound) {
			// Deleted before we got here; the delete event will follow.
			slog.WarnContext(ctx, "Transaction gone before mirroring", "op", msg.Op, "id", msg.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("get transaction %d: %w", msg.ID, err)
		}
		entry.Tx = tx
	case amqp.OpDeleted, amqp.OpReplaced:
		// Nothing to fetch; the row records only the operation and id.
	default:
		slog.WarnContext(ctx, "Skipping unknown ledger event", "op", msg.Op, "id", msg.ID)
		return nil
	}

	ref, err := w.appender.Append(ctx, entry)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}

	slog.InfoContext(ctx, "Mirrored ledger event", "op", msg.Op, "id", msg.ID, "ref", ref)
	return nil
}

// BackupOnce exports the full ledger to a timestamped CSV and prunes old
// snapshots.
func (w *MirrorWorker) BackupOnce(ctx context.Context) error {
	txs, err := w.store.ListTransactions(ctx, "")
	if err != nil {
		return fmt.Errorf("list transactions for backup: %w", err)
	}

	path, err := ledgercsv.WriteBackup(w.backupDir, txs)
	if err != nil {
		return fmt.Errorf("write backup: %w", err)
	}

	removed, err := ledgercsv.KeepNewest(w.backupDir, w.backupKeep)
	if err != nil {
		return fmt.Errorf("prune backups: %w", err)
	}

	slog.InfoContext(ctx, "Ledger backup written",
		"path", path,
		"transactions", len(txs),
		"pruned", removed)
	return nil
}

func (w *MirrorWorker) runBackups(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.BackupOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic backup failed", "error", err)
			}
		}
	}
}
