package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/escritoriolabs/lexsync/internal/queue"
	"github.com/escritoriolabs/lexsync/internal/schema"
)

// Spool ingests pending actions dropped as *.json files into the outbox
// directory by other local processes. The daemon is the only process that
// touches the database; everyone else hands actions over through the spool.
//
// A spool file holds one schema.PendingAction (method, resource type,
// resource ID, payload). Successfully enqueued files are deleted; files
// that fail validation are renamed to *.rejected so they stop being
// retried but remain inspectable.
type Spool struct {
	dir      string
	queue    queue.Queue
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *log.Logger

	pending   map[string]time.Time
	pendingMu sync.Mutex

	wg sync.WaitGroup
}

// NewSpool creates a spool watcher over dir, creating it if needed.
func NewSpool(dir string, q queue.Queue, debounce time.Duration, logger *log.Logger) (*Spool, error) {
	if dir == "" {
		return nil, fmt.Errorf("spool dir cannot be empty")
	}
	if q == nil {
		return nil, fmt.Errorf("spool requires a queue")
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[spool] ", log.LstdFlags)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spool dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Spool{
		dir:      dir,
		queue:    q,
		watcher:  watcher,
		debounce: debounce,
		logger:   logger,
		pending:  make(map[string]time.Time),
	}, nil
}

// Start ingests files already sitting in the spool, then watches for new
// ones until ctx is cancelled.
func (s *Spool) Start(ctx context.Context) error {
	if err := s.watcher.Add(s.dir); err != nil {
		return fmt.Errorf("failed to watch spool dir %s: %w", s.dir, err)
	}

	// Files written while the daemon was down never produce an event.
	if err := s.ingestExisting(ctx); err != nil {
		return err
	}

	s.logger.Printf("Watching spool: %s", s.dir)

	s.wg.Add(2)
	go s.watchEvents(ctx)
	go s.drainPending(ctx)
	return nil
}

// Stop closes the watcher and waits for in-flight ingestion to finish.
func (s *Spool) Stop() error {
	if err := s.watcher.Close(); err != nil {
		s.logger.Printf("Error closing watcher: %v", err)
	}
	s.wg.Wait()
	return nil
}

func (s *Spool) ingestExisting(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read spool dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		s.ingestFile(ctx, filepath.Join(s.dir, entry.Name()))
	}
	return nil
}

// watchEvents queues spool file events for debounced processing. Writers
// are expected to create the file and write it in place, so the debounce
// gives them time to finish before the file is read.
func (s *Spool) watchEvents(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".json" {
				continue
			}

			s.pendingMu.Lock()
			s.pending[event.Name] = time.Now()
			s.pendingMu.Unlock()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Printf("Watcher error: %v", err)
		}
	}
}

func (s *Spool) drainPending(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processPending(ctx)
		}
	}
}

func (s *Spool) processPending(ctx context.Context) {
	s.pendingMu.Lock()
	now := time.Now()
	var ready []string
	for path, queuedAt := range s.pending {
		if now.Sub(queuedAt) < s.debounce {
			continue
		}
		ready = append(ready, path)
		delete(s.pending, path)
	}
	s.pendingMu.Unlock()

	for _, path := range ready {
		s.ingestFile(ctx, path)
	}
}

// ingestFile enqueues the action in a spool file and removes the file.
func (s *Spool) ingestFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return // already ingested or withdrawn by the writer
		}
		s.logger.Printf("Error reading spool file %s: %v", path, err)
		return
	}

	var action schema.PendingAction
	if err := json.Unmarshal(data, &action); err != nil {
		s.logger.Printf("Rejecting malformed spool file %s: %v", path, err)
		s.reject(path)
		return
	}

	// IDs and timestamps are assigned at enqueue time, never taken from
	// the writer.
	action.ID = ""
	action.CreatedAt = time.Time{}
	action.RetryCount = 0
	action.LastError = ""

	id, err := s.queue.Enqueue(ctx, &action)
	if err != nil {
		s.logger.Printf("Rejecting invalid spool file %s: %v", path, err)
		s.reject(path)
		return
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Printf("Warning: ingested spool file %s could not be removed: %v", path, err)
	}

	s.logger.Printf("Ingested %s as action %s", filepath.Base(path), id)
}

// reject renames a bad spool file out of the .json namespace so it is not
// picked up again.
func (s *Spool) reject(path string) {
	rejected := strings.TrimSuffix(path, ".json") + ".rejected"
	if err := os.Rename(path, rejected); err != nil {
		s.logger.Printf("Error rejecting spool file %s: %v", path, err)
	}
}
