// Package export replays transaction events into external sinks: an
// append-only CSV ledger on disk and an optional Google Sheets mirror.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ebisaa944/ExpenseTracker/internal/core"
)

// Target receives transaction lifecycle records.
type Target interface {
	RecordCreated(ctx context.Context, tx core.Transaction) error
	RecordDeleted(ctx context.Context, id int64, at time.Time) error
}

var ledgerHeader = []string{"recorded_at", "action", "id", "title", "amount", "type", "category", "date"}

// CSVLedger appends lifecycle records to one CSV file per calendar month.
// Files are named YYYY-MM.csv after the month the action happened in.
type CSVLedger struct {
	mu  sync.Mutex
	dir string
}

func NewCSVLedger(dir string) (*CSVLedger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}
	return &CSVLedger{dir: dir}, nil
}

func (l *CSVLedger) RecordCreated(_ context.Context, tx core.Transaction) error {
	now := time.Now().UTC()
	return l.appendRow(now, []string{
		now.Format(time.RFC3339),
		"created",
		strconv.FormatInt(tx.ID, 10),
		tx.Title,
		tx.Amount.String(),
		string(tx.Type),
		tx.Category,
		tx.Date.String(),
	})
}

func (l *CSVLedger) RecordDeleted(_ context.Context, id int64, at time.Time) error {
	at = at.UTC()
	return l.appendRow(at, []string{
		at.Format(time.RFC3339),
		"deleted",
		strconv.FormatInt(id, 10),
		"", "", "", "", "",
	})
}

// WriteSnapshot replaces transactions.csv with the full current dataset.
// The write goes through a temp file so readers never see a partial file.
func (l *CSVLedger) WriteSnapshot(_ context.Context, txs []core.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tmp, err := os.CreateTemp(l.dir, "transactions-*.csv")
	if err != nil {
		return fmt.Errorf("creating snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write([]string{"id", "title", "amount", "type", "category", "date", "timestamp"}); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot header: %w", err)
	}
	for _, tx := range txs {
		row := []string{
			strconv.FormatInt(tx.ID, 10),
			tx.Title,
			tx.Amount.String(),
			string(tx.Type),
			tx.Category,
			tx.Date.String(),
			tx.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("writing snapshot row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.dir, "transactions.csv")); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

func (l *CSVLedger) appendRow(month time.Time, row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := filepath.Join(l.dir, month.Format("2006-01")+".csv")
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(ledgerHeader); err != nil {
			return fmt.Errorf("writing ledger header: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("writing ledger row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing ledger: %w", err)
	}
	return nil
}
