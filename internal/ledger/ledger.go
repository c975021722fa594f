// Package ledger keeps the persisted record of processed documents and the processing cutoff.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/skyyMo/skynet-ai/internal/domain"
	"github.com/skyyMo/skynet-ai/internal/ports"
)

// Ledger is the single source of truth for dedup. All methods are safe for concurrent use;
// writers are serialized by one mutex.
type Ledger struct {
	path   string
	now    func() time.Time
	logger *slog.Logger

	mu          sync.Mutex
	processed   map[string]struct{}
	cutoff      time.Time
	lastUpdated time.Time
	dirty       bool
}

var _ ports.Ledger = (*Ledger)(nil)

// Open loads the ledger at path. A missing file initializes a fresh ledger with the cutoff
// fixed at now and persists it before returning. Unreadable state degrades to an empty
// in-memory ledger.
func Open(path string, now func() time.Time, logger *slog.Logger) *Ledger {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	l := &Ledger{
		path:      path,
		now:       now,
		logger:    logger,
		processed: map[string]struct{}{},
	}

	state, err := readState(path)
	switch {
	case err == nil:
		l.apply(state)
		if l.dirty {
			if saveErr := l.save(); saveErr == nil {
				l.dirty = false
			}
		}
		l.logger.Info("ledger loaded", "path", path, "processed", len(l.processed), "cutoff", l.cutoff.Format(time.RFC3339))
		return l
	case errors.Is(err, fs.ErrNotExist):
		l.cutoff = now().UTC()
		l.lastUpdated = l.cutoff
		if saveErr := l.save(); saveErr != nil {
			l.dirty = true
			l.logger.Error("ledger init save failed", "path", path, "error", saveErr)
		} else {
			l.logger.Info("ledger initialized", "path", path, "cutoff", l.cutoff.Format(time.RFC3339))
		}
		return l
	default:
		l.cutoff = now().UTC()
		l.lastUpdated = l.cutoff
		l.dirty = true
		l.logger.Error("ledger load failed, continuing with empty ledger", "path", path, "error", err)
		l.preserveCorrupt()
		return l
	}
}

func (l *Ledger) apply(state domain.LedgerState) {
	for _, id := range state.ProcessedIDs {
		l.processed[id] = struct{}{}
	}
	l.cutoff = state.CutoffDate
	l.lastUpdated = state.LastUpdated
	if l.cutoff.IsZero() {
		// A file without a cutoff would make every historical document eligible.
		l.cutoff = l.now().UTC()
		l.dirty = true
	}
}

// IsEligible reports whether doc is unprocessed and newer than the cutoff.
func (l *Ledger) IsEligible(doc domain.Document) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.processed[doc.ID]; ok {
		return false
	}
	return doc.CreatedAt.After(l.cutoff)
}

// IsProcessed reports whether id was already marked.
func (l *Ledger) IsProcessed(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.processed[id]
	return ok
}

// Cutoff returns the fixed processing cutoff.
func (l *Ledger) Cutoff() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cutoff
}

// MarkProcessed records id and rewrites the ledger file. A failed save is logged and left
// for the next mutation to retry; the in-memory record is kept either way.
func (l *Ledger) MarkProcessed(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.processed[id]; ok && !l.dirty {
		return nil
	}

	l.processed[id] = struct{}{}
	l.lastUpdated = l.now().UTC()

	if err := l.save(); err != nil {
		l.dirty = true
		l.logger.Error("ledger save failed", "path", l.path, "document_id", id, "error", err)
		return fmt.Errorf("save ledger: %w", err)
	}
	l.dirty = false
	return nil
}

// Snapshot returns a copy of the current state with IDs sorted.
func (l *Ledger) Snapshot() domain.LedgerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

func (l *Ledger) stateLocked() domain.LedgerState {
	ids := make([]string, 0, len(l.processed))
	for id := range l.processed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return domain.LedgerState{
		ProcessedIDs: ids,
		LastUpdated:  l.lastUpdated,
		CutoffDate:   l.cutoff,
	}
}

// save writes the whole ledger through a temp file and rename. Caller holds mu.
func (l *Ledger) save() error {
	raw, err := json.MarshalIndent(l.stateLocked(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}

// preserveCorrupt copies an unparsable ledger aside so the next save cannot destroy it.
func (l *Ledger) preserveCorrupt() {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		l.logger.Warn("unreadable ledger not preserved, the next save replaces it", "path", l.path, "error", err)
		return
	}
	backup := l.path + ".corrupt"
	if err := os.WriteFile(backup, raw, 0o644); err != nil {
		l.logger.Warn("ledger backup failed", "path", backup, "error", err)
		return
	}
	l.logger.Warn("unreadable ledger preserved", "backup", backup)
}

func readState(path string) (domain.LedgerState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.LedgerState{}, err
	}
	var state domain.LedgerState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.LedgerState{}, fmt.Errorf("decode ledger: %w", err)
	}
	return state, nil
}
