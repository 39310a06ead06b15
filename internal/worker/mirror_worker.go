package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"rewards/internal/amqp"
	"rewards/internal/core"
	"rewards/internal/records"
)

// MirrorWorker copies the primary record table into a secondary store. It
// runs on table.changed messages and on a periodic timer as a backstop for
// lost messages.
type MirrorWorker struct {
	source records.Loader
	mirror records.Saver

	mu       sync.Mutex
	lastHash string
	lastSync time.Time
	syncs    int
}

func NewMirrorWorker(source records.Loader, mirror records.Saver) *MirrorWorker {
	return &MirrorWorker{
		source: source,
		mirror: mirror,
	}
}

// HandleTableChanged processes a single table.changed message from AMQP
func (w *MirrorWorker) HandleTableChanged(ctx context.Context, msg *amqp.TableChangedMessage) error {
	return w.Sync(ctx, msg.Reason, false)
}

// StartupSync mirrors the table unconditionally. Useful to recover from
// missed messages or worker downtime.
func (w *MirrorWorker) StartupSync(ctx context.Context) error {
	return w.Sync(ctx, "startup", true)
}

// Sync loads the primary table and saves it to the mirror. Unless force is
// set, a table identical to the last mirrored one is skipped. Missing or
// unreadable primary state is never mirrored, so the backup is not wiped by
// a transient read failure.
func (w *MirrorWorker) Sync(ctx context.Context, reason string, force bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	res := w.source.Load(ctx)
	switch res.Outcome {
	case records.Missing:
		slog.InfoContext(ctx, "Primary table not created yet, nothing to mirror", "reason", reason)
		return nil
	case records.Unreadable:
		slog.WarnContext(ctx, "Primary table unreadable, keeping previous mirror",
			"reason", reason,
			"error", res.Err)
		return nil
	}

	hash := tableHash(res.Table)
	if !force && hash == w.lastHash {
		slog.DebugContext(ctx, "Mirror already up to date", "reason", reason, "rows", len(res.Table))
		return nil
	}

	if err := w.mirror.Save(ctx, res.Table); err != nil {
		return fmt.Errorf("save mirror: %w", err)
	}

	w.lastHash = hash
	w.lastSync = time.Now()
	w.syncs++

	slog.InfoContext(ctx, "Mirrored record table",
		"reason", reason,
		"rows", len(res.Table))
	return nil
}

// Run re-syncs every interval until ctx is done. Failures are logged and
// retried on the next tick.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Sync(ctx, "periodic", false); err != nil {
				slog.ErrorContext(ctx, "Periodic mirror failed", "error", err)
			}
		}
	}
}

// LastSync returns when the mirror was last written and how many writes
// have happened.
func (w *MirrorWorker) LastSync() (time.Time, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSync, w.syncs
}

func tableHash(t core.Table) string {
	h := sha256.New()
	for _, row := range records.EncodeTable(t.WithRecomputedWeeks()) {
		h.Write([]byte(strings.Join(row, "\x1f")))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
