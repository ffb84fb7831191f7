// Package ledger keeps the bounded, newest-first history of analysis records
// in durable key-value storage.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/starford/cvdesk/internal/apperr"
	"github.com/starford/cvdesk/internal/localdb"
	"github.com/starford/cvdesk/internal/models"
)

const (
	// StorageKey is the key the history is persisted under.
	StorageKey = "resumeHistory"
	// DefaultCapacity is the number of records kept.
	DefaultCapacity = 25
)

// Ledger is the single owner of the in-memory history snapshot. Every
// mutation builds a new snapshot, persists it, and only then swaps it in.
type Ledger struct {
	kv       localdb.KeyValueStore
	logger   *slog.Logger
	capacity int

	mu      sync.Mutex
	records []models.AnalysisRecord
	loaded  bool
}

// New creates a ledger over kv. A capacity <= 0 selects DefaultCapacity.
func New(kv localdb.KeyValueStore, logger *slog.Logger, capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{kv: kv, logger: logger, capacity: capacity}
}

// Capacity returns the maximum number of records kept.
func (l *Ledger) Capacity() int {
	return l.capacity
}

// Load reads the persisted history. Missing or malformed data yields an
// empty history. When the store cannot be read the history is served empty
// but stays unloaded: mutations read it again before writing and fail with
// apperr.ErrHistoryUnavailable rather than overwrite data they never saw.
func (l *Ledger) Load(ctx context.Context) []models.AnalysisRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.loadLocked(ctx); err != nil {
		l.logger.Warn("ledger: history unavailable", slog.String("error", err.Error()))
	}
	return slices.Clone(l.records)
}

func (l *Ledger) loadLocked(ctx context.Context) error {
	raw, ok, err := l.kv.GetValue(ctx, StorageKey)
	if err != nil {
		l.loaded = false
		l.records = nil
		return fmt.Errorf("%w: ledger: read: %w", apperr.ErrHistoryUnavailable, err)
	}
	l.loaded = true
	l.records = nil
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	var recs []models.AnalysisRecord
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		l.logger.Warn("ledger: malformed history ignored", slog.String("error", err.Error()))
		return nil
	}
	l.records = recs
	return nil
}

func (l *Ledger) ensureLoaded(ctx context.Context) error {
	if l.loaded {
		return nil
	}
	return l.loadLocked(ctx)
}

// List returns a copy of the current snapshot.
func (l *Ledger) List() []models.AnalysisRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.records)
}

// Find returns the record identified by createdAt.
func (l *Ledger) Find(createdAt string) (models.AnalysisRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexOf(createdAt)
	if i < 0 {
		return models.AnalysisRecord{}, false
	}
	return l.records[i], true
}

// Append prepends rec, drops records beyond capacity, persists and returns
// the new history. A createdAt already in use is moved forward by a
// millisecond until it is unique; the stored identity is the first element
// of the result.
func (l *Ledger) Append(ctx context.Context, rec models.AnalysisRecord) ([]models.AnalysisRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	createdAt, err := uniqueCreatedAt(l.records, rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = createdAt

	next := make([]models.AnalysisRecord, 0, len(l.records)+1)
	next = append(next, rec)
	next = append(next, l.records...)
	if len(next) > l.capacity {
		next = next[:l.capacity]
	}
	if err := l.commit(ctx, next); err != nil {
		return nil, err
	}
	return slices.Clone(next), nil
}

// DeleteAt removes the record at position i. An out-of-range index leaves
// the history unchanged.
func (l *Ledger) DeleteAt(ctx context.Context, i int) ([]models.AnalysisRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	if i < 0 || i >= len(l.records) {
		return slices.Clone(l.records), nil
	}
	next := slices.Delete(slices.Clone(l.records), i, i+1)
	if err := l.commit(ctx, next); err != nil {
		return nil, err
	}
	return slices.Clone(next), nil
}

// Delete removes the record identified by createdAt, if present.
func (l *Ledger) Delete(ctx context.Context, createdAt string) ([]models.AnalysisRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	i := l.indexOf(createdAt)
	if i < 0 {
		return slices.Clone(l.records), nil
	}
	next := slices.Delete(slices.Clone(l.records), i, i+1)
	if err := l.commit(ctx, next); err != nil {
		return nil, err
	}
	return slices.Clone(next), nil
}

// Clear empties the history and removes its persisted form.
func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.kv.DeleteValue(ctx, StorageKey); err != nil {
		return err
	}
	l.records = nil
	l.loaded = true
	return nil
}

// Update applies mutate to the record identified by createdAt, keeping its
// position, and persists the history. The bool is false when no record matches.
func (l *Ledger) Update(ctx context.Context, createdAt string, mutate func(*models.AnalysisRecord)) (models.AnalysisRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoaded(ctx); err != nil {
		return models.AnalysisRecord{}, false, err
	}

	i := l.indexOf(createdAt)
	if i < 0 {
		return models.AnalysisRecord{}, false, nil
	}
	next := slices.Clone(l.records)
	mutate(&next[i])
	next[i].CreatedAt = createdAt
	if err := l.commit(ctx, next); err != nil {
		return models.AnalysisRecord{}, true, err
	}
	return next[i], true, nil
}

// Merge adds records whose createdAt is not yet known, orders the result
// newest first and trims it to capacity. It returns how many of the new
// records were kept.
func (l *Ledger) Merge(ctx context.Context, recs []models.AnalysisRecord) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoaded(ctx); err != nil {
		return 0, err
	}

	next := slices.Clone(l.records)
	for _, r := range recs {
		if r.CreatedAt == "" || indexOf(next, r.CreatedAt) >= 0 {
			continue
		}
		next = append(next, r)
	}
	// ISO-8601 UTC timestamps order lexicographically.
	slices.SortStableFunc(next, func(a, b models.AnalysisRecord) int {
		return strings.Compare(b.CreatedAt, a.CreatedAt)
	})
	if len(next) > l.capacity {
		next = next[:l.capacity]
	}
	added := 0
	for _, r := range next {
		if l.indexOf(r.CreatedAt) < 0 {
			added++
		}
	}
	if added == 0 {
		return 0, nil
	}
	if err := l.commit(ctx, next); err != nil {
		return 0, err
	}
	return added, nil
}

// commit persists next and swaps it in. On failure the previous snapshot stays.
func (l *Ledger) commit(ctx context.Context, next []models.AnalysisRecord) error {
	if next == nil {
		next = []models.AnalysisRecord{}
	}
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("ledger: encode: %w", err)
	}
	if err := l.kv.PutValue(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("ledger: persist: %w", err)
	}
	l.records = next
	return nil
}

// uniqueCreatedAt bumps createdAt by a millisecond while recs already use it.
func uniqueCreatedAt(recs []models.AnalysisRecord, createdAt string) (string, error) {
	for indexOf(recs, createdAt) >= 0 {
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return "", fmt.Errorf("ledger: duplicate record %q", createdAt)
		}
		createdAt = models.NewCreatedAt(t.Add(time.Millisecond))
	}
	return createdAt, nil
}

func (l *Ledger) indexOf(createdAt string) int {
	return indexOf(l.records, createdAt)
}

func indexOf(recs []models.AnalysisRecord, createdAt string) int {
	return slices.IndexFunc(recs, func(r models.AnalysisRecord) bool {
		return r.CreatedAt == createdAt
	})
}
