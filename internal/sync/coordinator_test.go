package sync

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/escritoriolabs/lexsync/internal/queue"
	"github.com/escritoriolabs/lexsync/internal/rest"
	"github.com/escritoriolabs/lexsync/internal/schema"
	"github.com/escritoriolabs/lexsync/internal/store"
)

func setupQueue(t *testing.T) queue.Queue {
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
	return queue.New(st, log.New(os.Stderr, "[test] ", 0), nil)
}

func enqueueCreate(t *testing.T, q queue.Queue, nome string) string {
	t.Helper()

	id, err := q.Enqueue(context.Background(), &schema.PendingAction{
		Method:       schema.MethodCreate,
		ResourceType: schema.ResourceContato,
		Payload:      json.RawMessage(`{"nome":"` + nome + `","status":"novo"}`),
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	return id
}

func TestSyncNowDrainsQueueInOrder(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	for _, nome := range []string{"Ana", "Bruno", "Carla"} {
		enqueueCreate(t, q, nome)
	}

	var mu gosync.Mutex
	var received []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Nome string `json:"nome"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		received = append(received, body.Nome)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	coord := New(q, rest.NewClient(srv.URL, time.Second), nil, nil, testLogger())
	result, err := coord.SyncNow(ctx)
	if err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	if !result.Success || len(result.Errors) != 0 {
		t.Errorf("expected clean drain, got %+v", result)
	}

	want := []string{"Ana", "Bruno", "Carla"}
	mu.Lock()
	defer mu.Unlock()
	if len(received) != len(want) {
		t.Fatalf("expected %d requests, got %d", len(want), len(received))
	}
	for i := range want {
		if received[i] != want[i] {
			t.Errorf("request %d: got %s, want %s (FIFO violated)", i, received[i], want[i])
		}
	}

	count, _ := q.Count(ctx)
	if count != 0 {
		t.Errorf("queue should be empty after clean drain, has %d", count)
	}
}

func TestPartialFailureKeepsFailedItem(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	enqueueCreate(t, q, "Ana")
	failingID := enqueueCreate(t, q, "Bruno")

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"erro interno"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	coord := New(q, rest.NewClient(srv.URL, time.Second), nil, nil, testLogger())
	result, err := coord.SyncNow(ctx)
	if err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	if result.Success {
		t.Error("expected partial failure")
	}
	if len(result.Errors) != 1 || result.Errors[0].ActionID != failingID {
		t.Errorf("expected one error for %s, got %+v", failingID, result.Errors)
	}

	remaining, _ := q.List(ctx)
	if len(remaining) != 1 {
		t.Fatalf("expected exactly the failed action queued, got %d", len(remaining))
	}
	if remaining[0].ID != failingID {
		t.Errorf("wrong action retained: %s", remaining[0].ID)
	}
	if remaining[0].RetryCount != 1 {
		t.Errorf("expected retry_count 1, got %d", remaining[0].RetryCount)
	}
	if remaining[0].LastError == "" {
		t.Error("expected last_error to be recorded")
	}
}

func TestServerErrorDoesNotBlockLaterItems(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	failingID := enqueueCreate(t, q, "Ana")
	enqueueCreate(t, q, "Bruno")
	enqueueCreate(t, q, "Carla")

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"erro interno"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	coord := New(q, rest.NewClient(srv.URL, time.Second), nil, nil, testLogger())
	result, err := coord.SyncNow(ctx)
	if err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	if result.Attempted != 3 {
		t.Errorf("server error should not stop the drain: attempted %d", result.Attempted)
	}
	remaining, _ := q.List(ctx)
	if len(remaining) != 1 || remaining[0].ID != failingID {
		t.Errorf("expected only the first action retained, got %+v", remaining)
	}
}

func TestConcurrentSyncNowIsNoOp(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()
	enqueueCreate(t, q, "Ana")

	release := make(chan struct{})
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	coord := New(q, rest.NewClient(srv.URL, 5*time.Second), nil, nil, testLogger())

	done := make(chan *Result, 1)
	go func() {
		result, _ := coord.SyncNow(ctx)
		done <- result
	}()

	// Wait until the first drain is inside the request.
	for atomic.LoadInt32(&calls) == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := coord.SyncNow(ctx); err != ErrDrainInProgress {
		t.Errorf("expected ErrDrainInProgress, got %v", err)
	}
	if got := coord.Progress().Status; got != schema.SyncSyncing {
		t.Errorf("expected syncing progress, got %s", got)
	}

	close(release)
	result := <-done
	if !result.Success {
		t.Errorf("first drain should succeed: %+v", result)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("action drained %d times, want 1", calls)
	}
	if got := coord.Progress().Status; got != schema.SyncIdle {
		t.Errorf("expected idle after drain, got %s", got)
	}
}

func TestOfflineMidDrainAbandonsRemaining(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	enqueueCreate(t, q, "Ana")
	enqueueCreate(t, q, "Bruno")
	enqueueCreate(t, q, "Carla")

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	// Goes offline after the first action.
	online := func() bool { return atomic.LoadInt32(&calls) < 1 }

	coord := New(q, rest.NewClient(srv.URL, time.Second), online, nil, testLogger())
	result, err := coord.SyncNow(ctx)
	if err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	if result.Success {
		t.Error("abandoned drain should not report success")
	}
	if result.Attempted != 1 {
		t.Errorf("expected 1 attempt before abandoning, got %d", result.Attempted)
	}

	remaining, _ := q.List(ctx)
	if len(remaining) != 2 {
		t.Errorf("expected 2 actions left queued, got %d", len(remaining))
	}
	// Abandoned items keep a zero retry count; they were never attempted.
	for _, a := range remaining {
		if a.RetryCount != 0 {
			t.Errorf("untouched action %s has retry_count %d", a.ID, a.RetryCount)
		}
	}
}

func TestNetworkErrorAbandonsDrain(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	firstID := enqueueCreate(t, q, "Ana")
	enqueueCreate(t, q, "Bruno")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // all requests fail at the transport level

	coord := New(q, rest.NewClient(srv.URL, 500*time.Millisecond), nil, nil, testLogger())
	result, err := coord.SyncNow(ctx)
	if err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	if result.Attempted != 1 {
		t.Errorf("expected drain abandoned after first transport error, attempted %d", result.Attempted)
	}

	remaining, _ := q.List(ctx)
	if len(remaining) != 2 {
		t.Fatalf("expected both actions still queued, got %d", len(remaining))
	}
	if remaining[0].ID != firstID || remaining[0].RetryCount != 1 {
		t.Errorf("first action should carry the failed attempt: %+v", remaining[0])
	}
	if remaining[1].RetryCount != 0 {
		t.Errorf("second action was never attempted: %+v", remaining[1])
	}
}

func TestProgressReportsEachAttempt(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	enqueueCreate(t, q, "Ana")
	enqueueCreate(t, q, "Bruno")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	var mu gosync.Mutex
	var snapshots []schema.SyncProgress
	onProgress := func(p schema.SyncProgress) {
		mu.Lock()
		snapshots = append(snapshots, p)
		mu.Unlock()
	}

	coord := New(q, rest.NewClient(srv.URL, time.Second), nil, onProgress, testLogger())
	if _, err := coord.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if len(snapshots) == 0 {
		t.Fatal("expected progress snapshots")
	}

	// Current request is populated while an action is in flight.
	var sawCurrent bool
	for _, p := range snapshots {
		if p.Current != nil {
			sawCurrent = true
			if p.Current.Method != http.MethodPost {
				t.Errorf("unexpected current method: %s", p.Current.Method)
			}
		}
	}
	if !sawCurrent {
		t.Error("expected at least one snapshot with a current request")
	}

	last := snapshots[len(snapshots)-1]
	if last.Status != schema.SyncIdle {
		t.Errorf("final snapshot should be idle, got %s", last.Status)
	}
	prev := snapshots[len(snapshots)-2]
	if prev.Completed != 2 || prev.Total != 2 {
		t.Errorf("expected 2/2 before idle, got %d/%d", prev.Completed, prev.Total)
	}
}

func TestEmptyQueueDrain(t *testing.T) {
	q := setupQueue(t)

	coord := New(q, rest.NewClient("http://localhost:0", time.Second), nil, nil, testLogger())
	result, err := coord.SyncNow(context.Background())
	if err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}
	if !result.Success || result.Attempted != 0 {
		t.Errorf("empty drain should trivially succeed: %+v", result)
	}
}

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", 0)
}
