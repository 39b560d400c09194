package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/escritoriolabs/lexsync/internal/schema"
	"github.com/escritoriolabs/lexsync/internal/store"
)

func setupTestQueue(t *testing.T) (Queue, *store.Store) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath, 0)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if err := st.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	return New(st, log.New(os.Stderr, "[test] ", 0), nil), st
}

func newCreateAction() *schema.PendingAction {
	return &schema.PendingAction{
		Method:       schema.MethodCreate,
		ResourceType: schema.ResourceContato,
		Payload:      json.RawMessage(`{"nome":"Maria","status":"novo"}`),
	}
}

func TestEnqueueAssignsIDAndTimestamp(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, newCreateAction())
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected assigned id")
	}

	actions, err := q.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	if actions[0].ID != id {
		t.Errorf("id mismatch: %s vs %s", actions[0].ID, id)
	}
	if actions[0].CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestListReturnsInsertionOrder(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 10; i++ {
		a := newCreateAction()
		a.Payload = json.RawMessage(fmt.Sprintf(`{"nome":"Contato %d","status":"novo"}`, i))
		id, err := q.Enqueue(ctx, a)
		if err != nil {
			t.Fatalf("Enqueue %d failed: %v", i, err)
		}
		ids = append(ids, id)
	}

	actions, err := q.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(actions) != len(ids) {
		t.Fatalf("expected %d actions, got %d", len(ids), len(actions))
	}
	for i, a := range actions {
		if a.ID != ids[i] {
			t.Errorf("position %d: got %s, want %s", i, a.ID, ids[i])
		}
	}
}

func TestRemoveAfterAck(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, newCreateAction())
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := q.Remove(ctx, id); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	actions, _ := q.List(ctx)
	if len(actions) != 0 {
		t.Errorf("acked action still listed: %+v", actions)
	}

	if err := q.Remove(ctx, id); !errors.Is(err, store.ErrActionNotFound) {
		t.Errorf("expected ErrActionNotFound on double remove, got %v", err)
	}
}

func TestMarkFailedIncrementsRetryCount(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, newCreateAction())
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := q.MarkFailed(ctx, id, errors.New("HTTP 500: erro interno")); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	actions, _ := q.List(ctx)
	if actions[0].RetryCount != 1 {
		t.Errorf("expected retry_count 1, got %d", actions[0].RetryCount)
	}
	if actions[0].LastError != "HTTP 500: erro interno" {
		t.Errorf("unexpected last_error: %q", actions[0].LastError)
	}
}

func TestCountObserver(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath, 0)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	defer st.Close()
	if err := st.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	var observed []int
	q := New(st, log.New(os.Stderr, "[test] ", 0), func(count int) {
		observed = append(observed, count)
	})

	ctx := context.Background()
	id1, _ := q.Enqueue(ctx, newCreateAction())
	_, _ = q.Enqueue(ctx, newCreateAction())
	_ = q.Remove(ctx, id1)

	want := []int{1, 2, 1}
	if len(observed) != len(want) {
		t.Fatalf("expected %d notifications, got %v", len(want), observed)
	}
	for i := range want {
		if observed[i] != want[i] {
			t.Errorf("notification %d: got %d, want %d", i, observed[i], want[i])
		}
	}
}
