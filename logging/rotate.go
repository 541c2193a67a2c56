package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const filePrefix = "openfda-"

// RotatingFile is an io.Writer over one log file per ISO week. A week that
// outgrows maxSize continues in numbered overflow files
// (openfda-2026-W42.1.log, openfda-2026-W42.2.log, ...).
type RotatingFile struct {
	dir       string
	retention time.Duration
	maxSize   int64
	now       func() time.Time

	mu   sync.Mutex
	file *os.File
	week string
	seq  int
	size int64

	stop chan struct{}
	done chan struct{}
}

// NewRotatingFile opens the file of the current week in dir and starts a
// daily pruning of files older than retentionWeeks
func NewRotatingFile(dir string, retentionWeeks int, maxSize int64) (*RotatingFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	rf := &RotatingFile{
		dir:       dir,
		retention: time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxSize:   maxSize,
		now:       time.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	rf.mu.Lock()
	err := rf.open(weekKey(rf.now()), false)
	rf.mu.Unlock()
	if err != nil {
		return nil, err
	}

	go rf.janitor(24 * time.Hour)
	return rf, nil
}

// weekKey returns the ISO week of t as YYYY-Www
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func fileName(week string, seq int) string {
	if seq == 0 {
		return filePrefix + week + ".log"
	}
	return fmt.Sprintf("%s%s.%d.log", filePrefix, week, seq)
}

// lastSequence returns the highest overflow number already on disk for week
func (rf *RotatingFile) lastSequence(week string) int {
	matches, _ := filepath.Glob(filepath.Join(rf.dir, filePrefix+week+".*.log"))
	last := 0
	for _, m := range matches {
		rest := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), filePrefix+week+"."), ".log")
		if n, err := strconv.Atoi(rest); err == nil && n > last {
			last = n
		}
	}
	return last
}

// open switches to the newest file of week that still has room, or to a new
// overflow file when next is set. Caller holds mu.
func (rf *RotatingFile) open(week string, next bool) error {
	seq := rf.lastSequence(week)
	path := filepath.Join(rf.dir, fileName(week, seq))
	if next {
		seq = max(seq, rf.seq) + 1
		path = filepath.Join(rf.dir, fileName(week, seq))
	} else if info, err := os.Stat(path); err == nil && rf.maxSize > 0 && info.Size() >= rf.maxSize {
		seq++
		path = filepath.Join(rf.dir, fileName(week, seq))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	if rf.file != nil {
		rf.file.Close()
	}
	rf.file, rf.week, rf.seq, rf.size = f, week, seq, size
	return nil
}

// Write appends p to the current file, rotating first on a new week or when
// p would push the file past maxSize
func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, fmt.Errorf("log file is closed")
	}

	week := weekKey(rf.now())
	switch {
	case week != rf.week:
		if err := rf.open(week, false); err != nil {
			return 0, err
		}
	case rf.maxSize > 0 && rf.size > 0 && rf.size+int64(len(p)) > rf.maxSize:
		if err := rf.open(week, true); err != nil {
			return 0, err
		}
	}

	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

// Prune removes log files whose last write is older than the retention
// period and returns how many were removed
func (rf *RotatingFile) Prune() (int, error) {
	entries, err := os.ReadDir(rf.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	rf.mu.Lock()
	current := ""
	if rf.file != nil {
		current = filepath.Base(rf.file.Name())
	}
	rf.mu.Unlock()

	cutoff := rf.now().Add(-rf.retention)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == current || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(rf.dir, name)) == nil {
			removed++
		}
	}
	return removed, nil
}

func (rf *RotatingFile) janitor(every time.Duration) {
	defer close(rf.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-rf.stop:
			return
		case <-ticker.C:
			// Console only, the file handler would recurse into Write
			if n, err := rf.Prune(); err != nil {
				fmt.Fprintf(os.Stderr, "log pruning failed: %v\n", err)
			} else if n > 0 {
				fmt.Fprintf(os.Stderr, "pruned %d old log files\n", n)
			}
		}
	}
}

// Close stops the pruning goroutine and closes the current file
func (rf *RotatingFile) Close() error {
	select {
	case <-rf.stop:
	default:
		close(rf.stop)
		<-rf.done
	}

	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file == nil {
		return nil
	}
	err := rf.file.Close()
	rf.file = nil
	return err
}
