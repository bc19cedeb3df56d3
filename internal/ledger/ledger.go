// Package ledger tracks which orders have already been notified. The
// ledger is the only state shared across runs; losing it means customers
// get notified twice, so open errors are fatal rather than treated as an
// empty set.
package ledger

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// Ledger is an append-only set of processed order IDs. Implementations
// must serialize Record calls; the pipeline runs orders concurrently.
type Ledger interface {
	Contains(ctx context.Context, orderID string) (bool, error)
	Record(ctx context.Context, orderID string) error
	Close() error
}

// FileLedger stores one order ID per line in a plain text file. A missing
// file means a first run; any other read error is surfaced to the caller.
type FileLedger struct {
	mu   sync.Mutex
	path string
	seen map[string]struct{}
	f    *os.File
}

// OpenFile loads the ledger at path and opens it for appending.
func OpenFile(path string) (*FileLedger, error) {
	seen := make(map[string]struct{})

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("ledger: read %s: %w", path, err)
	}
	if err == nil {
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := scanner.Text()
			if line != "" {
				seen[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("ledger: scan %s: %w", path, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s for append: %w", path, err)
	}

	return &FileLedger{path: path, seen: seen, f: f}, nil
}

// Contains reports whether orderID was recorded by this or any earlier run.
func (l *FileLedger) Contains(_ context.Context, orderID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[orderID]
	return ok, nil
}

// Record appends orderID to the ledger file and syncs it to disk.
// Recording an ID twice is harmless; the second write is skipped.
func (l *FileLedger) Record(_ context.Context, orderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[orderID]; ok {
		return nil
	}
	if _, err := fmt.Fprintln(l.f, orderID); err != nil {
		return fmt.Errorf("ledger: append %s: %w", orderID, err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("ledger: sync after %s: %w", orderID, err)
	}
	l.seen[orderID] = struct{}{}
	return nil
}

func (l *FileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// All returns the recorded IDs in no particular order. Used by the CLI
// ledger inspection commands.
func (l *FileLedger) All() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.seen))
	for id := range l.seen {
		ids = append(ids, id)
	}
	return ids
}
