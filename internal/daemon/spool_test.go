package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/escritoriolabs/lexsync/internal/queue"
	"github.com/escritoriolabs/lexsync/internal/schema"
)

func startTestSpool(t *testing.T, dir string, q queue.Queue) *Spool {
	t.Helper()

	spool, err := NewSpool(dir, q, 20*time.Millisecond, testLogger())
	if err != nil {
		t.Fatalf("NewSpool failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := spool.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = spool.Stop()
	})
	return spool
}

func TestSpoolIngestsDroppedFile(t *testing.T) {
	st := setupTestStore(t)
	q := queue.New(st, testLogger(), nil)
	dir := filepath.Join(t.TempDir(), "outbox")

	startTestSpool(t, dir, q)

	path := filepath.Join(dir, "novo-contato.json")
	payload := `{"method":"create","resource_type":"contato","payload":{"nome":"Ana","status":"novo"}}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	waitFor(t, func() bool {
		count, _ := q.Count(context.Background())
		return count == 1
	}, "spooled action never enqueued")

	waitFor(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, "ingested spool file never removed")

	actions, err := q.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if actions[0].Method != schema.MethodCreate || actions[0].ResourceType != schema.ResourceContato {
		t.Errorf("unexpected action: %+v", actions[0])
	}
	if actions[0].ID == "" {
		t.Error("enqueue must assign an ID")
	}
}

func TestSpoolIngestsFilesPresentAtStartup(t *testing.T) {
	st := setupTestStore(t)
	q := queue.New(st, testLogger(), nil)
	dir := t.TempDir()

	// Written before the spool starts, so no fsnotify event fires.
	path := filepath.Join(dir, "pending.json")
	payload := `{"method":"delete","resource_type":"contato","resource_id":"c9"}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	startTestSpool(t, dir, q)

	waitFor(t, func() bool {
		count, _ := q.Count(context.Background())
		return count == 1
	}, "pre-existing spool file never ingested")
}

func TestSpoolRejectsMalformedFile(t *testing.T) {
	st := setupTestStore(t)
	q := queue.New(st, testLogger(), nil)
	dir := t.TempDir()

	startTestSpool(t, dir, q)

	path := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(path, []byte("not json at all"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	rejected := filepath.Join(dir, "broken.rejected")
	waitFor(t, func() bool {
		_, err := os.Stat(rejected)
		return err == nil
	}, "malformed file never rejected")

	if count, _ := q.Count(context.Background()); count != 0 {
		t.Errorf("malformed file must not be enqueued, %d queued", count)
	}
}

func TestSpoolRejectsInvalidAction(t *testing.T) {
	st := setupTestStore(t)
	q := queue.New(st, testLogger(), nil)
	dir := t.TempDir()

	startTestSpool(t, dir, q)

	// Valid JSON, but an update without a resource ID fails validation.
	path := filepath.Join(dir, "invalid.json")
	payload := `{"method":"update","resource_type":"contato","payload":{"nome":"Ana"}}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	rejected := filepath.Join(dir, "invalid.rejected")
	waitFor(t, func() bool {
		_, err := os.Stat(rejected)
		return err == nil
	}, "invalid action never rejected")

	if count, _ := q.Count(context.Background()); count != 0 {
		t.Errorf("invalid action must not be enqueued, %d queued", count)
	}
}

func TestSpoolIgnoresNonJSONFiles(t *testing.T) {
	st := setupTestStore(t)
	q := queue.New(st, testLogger(), nil)
	dir := t.TempDir()

	startTestSpool(t, dir, q)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if count, _ := q.Count(context.Background()); count != 0 {
		t.Errorf("non-JSON file must be ignored, %d queued", count)
	}
}
