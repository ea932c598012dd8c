// Package logtail follows Laravel log files and emits appended lines as
// tagged entries.
package logtail

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ErrWatchInit is returned by Start when the filesystem watcher cannot be
// set up. Tailing is then disabled for the run.
var ErrWatchInit = errors.New("log watcher initialization failed")

// DefaultPreRoll is the number of trailing lines emitted per file on start.
const DefaultPreRoll = 5

// Entry is one non-empty log line.
type Entry struct {
	File         string // base name, e.g. "laravel.log"
	Path         string
	Content      string
	Level        Level
	IsStackTrace bool
}

// NewEntry tags a line read from path.
func NewEntry(path, content string) Entry {
	return Entry{
		File:         filepath.Base(path),
		Path:         path,
		Content:      content,
		Level:        ParseLevel(content),
		IsStackTrace: IsStackTraceLine(content),
	}
}

// Config configures a Tailer.
type Config struct {
	// Dir is watched for *.log files directly inside it.
	Dir string

	// Files are tailed by exact path in addition to Dir.
	Files []string

	// PreRoll is the number of trailing lines emitted per file on start
	// (default: DefaultPreRoll, negative disables).
	PreRoll int

	Logger *slog.Logger

	// OnEntries receives each batch of new entries from one file. It is
	// called from the tailer goroutine.
	OnEntries func([]Entry)
}

// Tailer follows log files. Offsets are owned by the tailer goroutine.
type Tailer struct {
	dir     string
	files   map[string]bool
	preRoll int
	logger  *slog.Logger
	emit    func([]Entry)

	offsets map[string]int64
}

// New creates a Tailer. Paths are made absolute so watcher events match.
func New(cfg Config) *Tailer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	preRoll := cfg.PreRoll
	if preRoll == 0 {
		preRoll = DefaultPreRoll
	}
	emit := cfg.OnEntries
	if emit == nil {
		emit = func([]Entry) {}
	}

	t := &Tailer{
		files:   make(map[string]bool),
		preRoll: preRoll,
		logger:  logger,
		emit:    emit,
		offsets: make(map[string]int64),
	}
	if cfg.Dir != "" {
		t.dir = absPath(cfg.Dir)
	}
	for _, f := range cfg.Files {
		t.files[absPath(f)] = true
	}
	return t
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Start pre-rolls existing files and begins watching. It returns an error
// wrapping ErrWatchInit if nothing can be watched; the caller continues
// without log tailing. Watching stops when ctx is done.
func (t *Tailer) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatchInit, err)
	}

	watched := 0
	for _, dir := range t.watchDirs() {
		if err := w.Add(dir); err != nil {
			t.logger.Debug("log_watch_skipped", "dir", dir, "error", err)
			continue
		}
		watched++
	}
	if watched == 0 {
		w.Close()
		return fmt.Errorf("%w: no log directory to watch", ErrWatchInit)
	}

	for _, path := range t.existingFiles() {
		t.preRollFile(path)
	}

	t.logger.Info("log_tailer_started", "dir", t.dir, "extra_files", len(t.files), "tracked", len(t.offsets))
	go t.run(ctx, w)
	return nil
}

func (t *Tailer) watchDirs() []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(d string) {
		if d == "" || seen[d] {
			return
		}
		seen[d] = true
		dirs = append(dirs, d)
	}
	add(t.dir)
	for f := range t.files {
		add(filepath.Dir(f))
	}
	sort.Strings(dirs)
	return dirs
}

// existingFiles returns the matching files present now, sorted.
func (t *Tailer) existingFiles() []string {
	var paths []string
	if t.dir != "" {
		matches, _ := filepath.Glob(filepath.Join(t.dir, "*.log"))
		paths = append(paths, matches...)
	}
	for f := range t.files {
		if info, err := os.Stat(f); err == nil && info.Mode().IsRegular() {
			paths = append(paths, f)
		}
	}
	sort.Strings(paths)
	return dedupe(paths)
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, p := range sorted {
		if i == 0 || p != sorted[i-1] {
			out = append(out, p)
		}
	}
	return out
}

// matches reports whether path is a tailed file.
func (t *Tailer) matches(path string) bool {
	if t.files[path] {
		return true
	}
	return t.dir != "" && filepath.Dir(path) == t.dir && strings.HasSuffix(path, ".log")
}

func (t *Tailer) run(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("log_tailer_stopped")
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			path := filepath.Clean(ev.Name)
			if !t.matches(path) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Write|fsnotify.Create) != 0:
				t.follow(path)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// A file recreated at this path starts from offset zero.
				delete(t.offsets, path)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			t.logger.Warn("log_watcher_error", "error", err)
		}
	}
}

func (t *Tailer) preRollFile(path string) {
	if t.preRoll < 0 {
		size, err := fileSize(path)
		if err == nil {
			t.offsets[path] = size
		}
		return
	}
	lines, size, err := readLastLines(path, t.preRoll)
	if err != nil {
		t.logger.Debug("log_preroll_failed", "path", path, "error", err)
		return
	}
	t.offsets[path] = size
	t.emitLines(path, lines)
}

func (t *Tailer) follow(path string) {
	lines, err := t.readNew(path)
	if err != nil {
		t.logger.Debug("log_read_failed", "path", path, "error", err)
		return
	}
	t.emitLines(path, lines)
}

func (t *Tailer) emitLines(path string, lines []string) {
	if len(lines) == 0 {
		return
	}
	entries := make([]Entry, len(lines))
	for i, l := range lines {
		entries[i] = NewEntry(path, l)
	}
	t.emit(entries)
}

// readNew returns the non-empty lines appended to path since the last read.
// A file smaller than its offset was truncated or rotated and is re-read
// from the start.
func (t *Tailer) readNew(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	offset := t.offsets[path]
	if size < offset {
		offset = 0
	}
	if size == offset {
		t.offsets[path] = size
		return nil, nil
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	lines, err := splitLines(io.LimitReader(f, size-offset))
	if err != nil {
		return nil, err
	}
	t.offsets[path] = size
	return lines, nil
}

// splitLines returns the non-empty, right-trimmed lines of r.
func splitLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), " \t\r"); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// readLastLines returns up to n trailing non-empty lines of path and the
// size they were read against. Only the tail of large files is read.
func readLastLines(path string, n int) ([]string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	size := info.Size()
	if n == 0 || size == 0 {
		return nil, size, nil
	}

	window := int64(64 * 1024)
	for {
		start := max(size-window, 0)
		buf := make([]byte, size-start)
		if _, err := f.ReadAt(buf, start); err != nil && !errors.Is(err, io.EOF) {
			return nil, size, err
		}
		if start > 0 {
			// Drop the partial first line.
			if i := bytes.IndexByte(buf, '\n'); i >= 0 {
				buf = buf[i+1:]
			} else {
				buf = nil
			}
		}
		lines, err := splitLines(bytes.NewReader(buf))
		if err != nil {
			return nil, size, err
		}
		if len(lines) >= n || start == 0 {
			if len(lines) > n {
				lines = lines[len(lines)-n:]
			}
			return lines, size, nil
		}
		window *= 4
	}
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
