package history

import (
	"fmt"
	"sync"
	"testing"

	"mdmdispatch/internal/command"
)

func TestStore_RecordAndSnapshot(t *testing.T) {
	t.Parallel()
	store := NewStore()

	store.Record("TOK1", command.NewResult("uuid-1", command.StatusAccepted, ""))
	store.Record("TOK1", command.NewResult("uuid-2", command.StatusRejected, "InvalidToken"))
	store.Record("TOK2", command.NewResult("uuid-3", command.StatusFailedToSend, "timeout"))

	snapshot := store.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(snapshot))
	}
	if len(snapshot["TOK1"]) != 2 {
		t.Fatalf("expected 2 results for TOK1, got %d", len(snapshot["TOK1"]))
	}

	// Per-token order follows record order.
	if snapshot["TOK1"][0].CommandUUID != "uuid-1" || snapshot["TOK1"][1].CommandUUID != "uuid-2" {
		t.Errorf("results out of order: %+v", snapshot["TOK1"])
	}
	if snapshot["TOK1"][1].RejectionReason != "InvalidToken" {
		t.Errorf("rejection reason lost: %+v", snapshot["TOK1"][1])
	}
	if snapshot["TOK2"][0].Status != command.StatusFailedToSend {
		t.Errorf("expected FAILED_TO_SEND for TOK2, got %s", snapshot["TOK2"][0].Status)
	}
	if snapshot["TOK1"][0].Timestamp.IsZero() {
		t.Error("expected results to carry a timestamp")
	}
}

func TestStore_RecordIgnoresInvalid(t *testing.T) {
	t.Parallel()
	store := NewStore()

	store.Record("", command.NewResult("uuid-1", command.StatusAccepted, ""))
	store.Record("TOK1", nil)

	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d tokens", store.Len())
	}
}

func TestStore_SnapshotIsolation(t *testing.T) {
	t.Parallel()
	store := NewStore()
	store.Record("TOK1", command.NewResult("uuid-1", command.StatusAccepted, ""))

	snapshot := store.Snapshot()
	snapshot["TOK1"][0].Status = command.StatusRejected
	snapshot["TOK9"] = []command.Result{{CommandUUID: "injected"}}

	fresh := store.Snapshot()
	if fresh["TOK1"][0].Status != command.StatusAccepted {
		t.Error("mutating a snapshot leaked into the store")
	}
	if _, ok := fresh["TOK9"]; ok {
		t.Error("adding a token to a snapshot leaked into the store")
	}

	// Records made after a snapshot was taken are not visible in it.
	store.Record("TOK1", command.NewResult("uuid-2", command.StatusAccepted, ""))
	if len(snapshot["TOK1"]) != 1 {
		t.Error("snapshot grew after it was taken")
	}
}

func TestStore_ConcurrentRecords(t *testing.T) {
	t.Parallel()
	store := NewStore()

	const (
		writers          = 20
		recordsPerWriter = 50
		tokens           = 5
	)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < recordsPerWriter; i++ {
				token := fmt.Sprintf("TOK-%d", (w+i)%tokens)
				uuid := fmt.Sprintf("uuid-%d-%d", w, i)
				store.Record(token, command.NewResult(uuid, command.StatusAccepted, ""))
			}
		}(w)
	}

	// Readers run alongside the writers.
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				store.Snapshot()
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, results := range store.Snapshot() {
		total += len(results)
	}
	if want := writers * recordsPerWriter; total != want {
		t.Errorf("expected %d records, got %d", want, total)
	}
}
