package contextfile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gnana997/sential/pkg/heuristics"
	"github.com/gnana997/sential/pkg/inventory"
)

// Sink receives context records.
type Sink interface {
	WriteContext(path, content string) error
}

// Stats summarizes one emission pass.
type Stats struct {
	Emitted   int `json:"emitted"`
	Truncated int `json:"truncated"`
	Skipped   int `json:"skipped"`
}

// Emitter writes the context bucket to a Sink in priority order.
type Emitter struct {
	reader  *Reader
	profile *heuristics.Profile

	// Compact lowers the cap for non-priority files to Tier2Cap.
	Compact bool

	logger *slog.Logger
}

// NewEmitter creates an Emitter.
func NewEmitter(reader *Reader, profile *heuristics.Profile, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{reader: reader, profile: profile, logger: logger}
}

// Emit loads the context bucket of inv and emits it.
func (e *Emitter) Emit(ctx context.Context, inv *inventory.Inventory, sink Sink) (Stats, error) {
	paths, err := inv.ContextPaths()
	if err != nil {
		return Stats{}, err
	}
	return e.EmitPaths(ctx, paths, sink)
}

// EmitPaths orders paths and writes one record per readable file.
// Unreadable, binary and empty files are skipped; only sink errors and
// cancellation stop the pass.
func (e *Emitter) EmitPaths(ctx context.Context, paths []string, sink Sink) (Stats, error) {
	start := time.Now()
	var stats Stats

	for _, entry := range Order(paths, e.profile.PriorityCandidates()) {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		limit := Tier1Cap
		if e.Compact && !entry.Priority {
			limit = Tier2Cap
		}

		content, err := e.reader.Read(entry.Path, limit)
		if err != nil {
			stats.Skipped++
			reason := "unreadable"
			switch {
			case errors.Is(err, ErrBinary):
				reason = "binary"
			case errors.Is(err, ErrEmpty):
				reason = "empty"
			}
			e.logger.Debug("skipped context file", "path", entry.Path, "reason", reason, "error", err)
			continue
		}

		if err := sink.WriteContext(entry.Path, content.Text); err != nil {
			return stats, err
		}
		stats.Emitted++
		if content.Truncated {
			stats.Truncated++
		}
	}

	e.logger.Info("context phase complete",
		"emitted", stats.Emitted,
		"truncated", stats.Truncated,
		"skipped", stats.Skipped,
		"duration_ms", time.Since(start).Milliseconds())
	return stats, nil
}
