package safety

import (
	"context"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/ferry/pkg/ferry/filter"
)

// treeStats aggregates what the source paths contain. Counters are atomic
// because fastwalk calls back from multiple goroutines.
type treeStats struct {
	bytes atomic.Int64
	files atomic.Int64
	dirs  atomic.Int64

	// hasChildren is set when any directory source contains entries,
	// which is what makes its removal more than trivially reversible.
	hasChildren atomic.Bool

	mu         sync.Mutex
	sensitive  []string
	unreadable []string
}

// maxReportedPaths caps how many individual findings land in warnings.
// The counts stay exact; only the listing is truncated.
const maxReportedPaths = 10

func (s *treeStats) addSensitive(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensitive = append(s.sensitive, path)
}

func (s *treeStats) addUnreadable(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unreadable = append(s.unreadable, path)
}

func (s *treeStats) sensitiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sensitive)
}

func (s *treeStats) sensitivePaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return capPaths(s.sensitive)
}

func (s *treeStats) unreadablePaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return capPaths(s.unreadable)
}

func capPaths(paths []string) []string {
	if len(paths) > maxReportedPaths {
		paths = paths[:maxReportedPaths]
	}
	out := make([]string, len(paths))
	copy(out, paths)
	return out
}

// measureSources sizes every source recursively and records sensitive and
// unreadable paths along the way. Walk errors are findings, not failures:
// analysis reports what it could see.
func measureSources(ctx context.Context, sources []string) *treeStats {
	stats := &treeStats{}
	for _, src := range sources {
		info, err := os.Lstat(src)
		if err != nil {
			// Missing sources are the permission check's concern.
			continue
		}
		if isSensitiveName(info.Name()) {
			stats.addSensitive(src)
		}
		if !info.IsDir() {
			stats.files.Add(1)
			stats.bytes.Add(info.Size())
			continue
		}
		measureTree(ctx, src, stats)
	}
	return stats
}

// measureTree walks one directory with fastwalk, accumulating size and
// entry counts. Cancellation stops the walk between entries.
func measureTree(ctx context.Context, root string, stats *treeStats) {
	conf := fastwalk.Config{
		Follow: false, // size what would actually move, not link targets
	}
	done := ctx.Done()

	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-done:
			return fastwalk.ErrSkipFiles
		default:
		}
		if err != nil {
			stats.addUnreadable(path)
			return nil
		}
		if path != root {
			stats.hasChildren.Store(true)
			if isSensitiveName(d.Name()) {
				stats.addSensitive(path)
			}
		}
		if d.IsDir() {
			stats.dirs.Add(1)
			return nil
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				stats.addUnreadable(path)
				return nil
			}
			stats.files.Add(1)
			stats.bytes.Add(info.Size())
		}
		return nil
	})
	if err != nil {
		stats.addUnreadable(root)
	}
}

// isSensitiveName reports whether a base name matches any sensitive
// pattern.
func isSensitiveName(name string) bool {
	return filter.MatchAny(name, SensitivePatterns)
}
