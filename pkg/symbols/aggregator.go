package symbols

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Grouping selects how symbol lines are folded into per-file records.
type Grouping string

const (
	// GroupContiguous flushes a record whenever the path changes. A path
	// whose symbols arrive in several separate runs yields several records.
	GroupContiguous Grouping = "contiguous"

	// GroupKeyed accumulates every path until the stream ends and then
	// flushes in first-seen order, one record per path.
	GroupKeyed Grouping = "keyed"
)

// ParseGrouping validates a grouping name; empty means GroupContiguous.
func ParseGrouping(s string) (Grouping, error) {
	switch Grouping(strings.ToLower(strings.TrimSpace(s))) {
	case "", GroupContiguous:
		return GroupContiguous, nil
	case GroupKeyed:
		return GroupKeyed, nil
	}
	return "", fmt.Errorf("unknown symbol grouping %q (want %q or %q)", s, GroupContiguous, GroupKeyed)
}

// Sink receives symbol records.
type Sink interface {
	WriteSymbols(path string, tags []string) error
}

// Stats summarizes one aggregation pass.
type Stats struct {
	Records   int `json:"records"`
	Symbols   int `json:"symbols"`
	Filtered  int `json:"filtered"`
	Malformed int `json:"malformed"`
}

// tag is the subset of a ctags JSON line we use.
type tag struct {
	Type string `json:"_type"`
	Path string `json:"path"`
	Kind string `json:"kind"`
	Name string `json:"name"`
}

// Aggregator folds a per-symbol JSON line stream into per-file records.
type Aggregator struct {
	kinds    map[string]struct{}
	grouping Grouping
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator accepting only the given kinds.
func NewAggregator(kinds []string, grouping Grouping, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if grouping == "" {
		grouping = GroupContiguous
	}
	set := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return &Aggregator{kinds: set, grouping: grouping, logger: logger}
}

// accumulator collects tags for the paths currently open.
type accumulator interface {
	add(path, entry string) error
	flush() error
}

// Aggregate reads r to the end. Malformed lines and filtered symbols are
// skipped; only read errors, sink errors and cancellation are returned.
func (a *Aggregator) Aggregate(ctx context.Context, r io.Reader, sink Sink) (Stats, error) {
	var stats Stats
	write := func(path string, tags []string) error {
		stats.Records++
		return sink.WriteSymbols(path, tags)
	}

	var acc accumulator
	if a.grouping == GroupKeyed {
		acc = &keyed{write: write, index: make(map[string]int)}
	} else {
		acc = &contiguous{write: write}
	}

	br := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		line, readErr := br.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			var t tag
			switch {
			case json.Unmarshal(line, &t) != nil:
				stats.Malformed++
			case t.Type != "" && t.Type != "tag":
				// pseudo-tags and other metadata lines
			case t.Path == "" || t.Name == "":
				stats.Filtered++
			default:
				if _, ok := a.kinds[t.Kind]; !ok {
					stats.Filtered++
					break
				}
				stats.Symbols++
				if err := acc.add(t.Path, t.Kind+" "+t.Name); err != nil {
					return stats, err
				}
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return stats, fmt.Errorf("read symbol stream: %w", readErr)
		}
	}

	if err := acc.flush(); err != nil {
		return stats, err
	}
	return stats, nil
}

// Run starts ex over listFile, aggregates its output into sink and waits
// for it. A non-zero exit fails the pass.
func (a *Aggregator) Run(ctx context.Context, ex Extractor, root, listFile string, sink Sink) (Stats, error) {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := ex.Start(ctx, root, listFile)
	if err != nil {
		return Stats{}, err
	}

	stats, aggErr := a.Aggregate(ctx, stream, sink)
	if aggErr != nil {
		cancel()
		_ = stream.Wait()
		return stats, aggErr
	}
	if err := stream.Wait(); err != nil {
		return stats, err
	}

	a.logger.Info("symbol phase complete",
		"records", stats.Records,
		"symbols", stats.Symbols,
		"filtered", stats.Filtered,
		"malformed", stats.Malformed,
		"grouping", string(a.grouping),
		"duration_ms", time.Since(start).Milliseconds())
	return stats, nil
}

// contiguous is the single-slot accumulator.
type contiguous struct {
	write func(string, []string) error
	path  string
	tags  []string
}

func (c *contiguous) add(path, entry string) error {
	if path != c.path {
		if err := c.flush(); err != nil {
			return err
		}
		c.path = path
	}
	c.tags = append(c.tags, entry)
	return nil
}

func (c *contiguous) flush() error {
	if len(c.tags) == 0 {
		return nil
	}
	path, tags := c.path, c.tags
	c.path, c.tags = "", nil
	return c.write(path, tags)
}

// keyed holds every path until the end of the stream.
type keyed struct {
	write func(string, []string) error
	index map[string]int
	paths []string
	tags  [][]string
}

func (k *keyed) add(path, entry string) error {
	i, ok := k.index[path]
	if !ok {
		i = len(k.paths)
		k.index[path] = i
		k.paths = append(k.paths, path)
		k.tags = append(k.tags, nil)
	}
	k.tags[i] = append(k.tags[i], entry)
	return nil
}

func (k *keyed) flush() error {
	for i, p := range k.paths {
		if err := k.write(p, k.tags[i]); err != nil {
			return err
		}
	}
	k.index, k.paths, k.tags = map[string]int{}, nil, nil
	return nil
}
