// Package journal keeps a write-only activity log of marker mutations and
// self-location fixes in a SQL database.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/myplaces/placemap/internal/queue"
	"github.com/myplaces/placemap/pkg/core"
)

// Entry kinds.
const (
	KindPlace  = "place"
	KindRemove = "remove"
	KindMove   = "move"
	KindFix    = "fix"
)

const defaultFlushInterval = time.Second

// Entry is one journal row.
type Entry struct {
	ID          uint      `gorm:"primarykey;autoIncrement"`
	Time        time.Time `gorm:"index"`
	Kind        string    `gorm:"size:16;index"`
	MarkerID    uint64    `gorm:"index"`
	MarkerIndex int
	Lat         float64
	Lng         float64
	Payload     datatypes.JSON
}

// TableName fixes the table name independently of the struct name.
func (Entry) TableName() string {
	return "journal_entries"
}

// Dependencies holds the journal's collaborators.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
	// Now is used to stamp entries. Defaults to time.Now.
	Now func() time.Time
}

// Journal buffers entries in memory and writes them in batches from a
// background goroutine, so recording never blocks the caller on the database.
// It implements render.Renderer and tracker.FixRecorder.
type Journal struct {
	db       *gorm.DB
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	pending  *queue.Queue[Entry]

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

// New migrates the journal table and returns a Journal. Call Start to begin
// background flushing.
func New(deps Dependencies) (*Journal, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("%w: journal needs a database", core.ErrInvalidArgument)
	}
	if err := deps.DB.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal schema: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := deps.FlushInterval
	if interval <= 0 {
		interval = defaultFlushInterval
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Journal{
		db:       deps.DB,
		logger:   logger.With("component", "journal"),
		interval: interval,
		now:      now,
		pending:  queue.New[Entry](),
	}, nil
}

// Start launches the flush loop. It is a no-op if already started.
func (j *Journal) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.stop != nil {
		return
	}
	j.stop = make(chan struct{})
	j.stopped = make(chan struct{})
	go j.flushLoop(j.stop, j.stopped)
}

func (j *Journal) flushLoop(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := j.Flush(context.Background()); err != nil {
				j.logger.Error("Failed to flush journal", "error", err)
			}
		}
	}
}

// Close stops the flush loop and writes whatever is still pending.
func (j *Journal) Close() error {
	j.mu.Lock()
	stop, stopped := j.stop, j.stopped
	j.stop = nil
	j.mu.Unlock()

	if stop != nil {
		close(stop)
		<-stopped
	}
	return j.Flush(context.Background())
}

// Flush writes all pending entries in one batch.
func (j *Journal) Flush(ctx context.Context) error {
	entries := j.pending.Drain()
	if len(entries) == 0 {
		return nil
	}
	if err := j.db.WithContext(ctx).CreateInBatches(entries, 500).Error; err != nil {
		return fmt.Errorf("failed to write %d journal entries: %w", len(entries), err)
	}
	j.logger.Debug("Flushed journal", "entries", len(entries))
	return nil
}

// Pending returns the number of entries not yet written.
func (j *Journal) Pending() int {
	return j.pending.Len()
}

// Entries returns up to limit written entries of the given kind, oldest first.
// An empty kind matches all entries.
func (j *Journal) Entries(ctx context.Context, kind string, limit int) ([]Entry, error) {
	q := j.db.WithContext(ctx).Order("id")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []Entry
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (j *Journal) add(kind string, index int, id core.MarkerID, p core.Position, payload any) {
	e := Entry{
		Time:        j.now().UTC(),
		Kind:        kind,
		MarkerID:    uint64(id),
		MarkerIndex: index,
		Lat:         p.Lat,
		Lng:         p.Lng,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			j.logger.Error("Failed to marshal journal payload", "kind", kind, "error", err)
		} else {
			e.Payload = datatypes.JSON(raw)
		}
	}
	j.pending.Push(e)
}

func (j *Journal) PlaceVisual(index int, m core.Marker) {
	j.add(KindPlace, index, m.ID, m.Position, m)
}

func (j *Journal) RemoveVisual(index int, id core.MarkerID) {
	j.add(KindRemove, index, id, core.Position{}, nil)
}

func (j *Journal) MoveVisual(index int, m core.Marker) {
	j.add(KindMove, index, m.ID, m.Position, m)
}

// PanTo is not journaled; panning changes the view, not the markers.
func (j *Journal) PanTo(core.Position) {}

// RecordFix queues a self-location fix.
func (j *Journal) RecordFix(_ context.Context, fix core.Fix) error {
	e := Entry{
		Time:        fix.Time.UTC(),
		Kind:        KindFix,
		MarkerID:    uint64(fix.MarkerID),
		MarkerIndex: -1,
		Lat:         fix.Position.Lat,
		Lng:         fix.Position.Lng,
	}
	if e.Time.IsZero() {
		e.Time = j.now().UTC()
	}
	raw, err := json.Marshal(fix)
	if err != nil {
		return fmt.Errorf("marshal fix: %w", err)
	}
	e.Payload = datatypes.JSON(raw)
	j.pending.Push(e)
	return nil
}
