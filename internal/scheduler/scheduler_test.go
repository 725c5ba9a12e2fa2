package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/guanacaste-labs/climatrack/internal/bus"
	"github.com/guanacaste-labs/climatrack/internal/record"
	"github.com/guanacaste-labs/climatrack/internal/snapshot"
	"github.com/guanacaste-labs/climatrack/internal/store"
)

func testOptions() Options {
	return Options{
		Interval:          time.Minute,
		TempThreshold:     1.0,
		HumidityThreshold: 5.0,
	}
}

func recordCount(t *testing.T, s record.Store, subjectID int64) int {
	t.Helper()
	page, err := s.Query(context.Background(), subjectID, record.Filter{Page: 1, PerPage: 100})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	return page.Total
}

// TestDedupAcrossTicks walks the full scenario: first tick inserts, a
// near-identical second reading is suppressed, a distinct third reading
// inserts again.
func TestDedupAcrossTicks(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddSubject(record.Subject{ID: 1, Username: "alice"})

	current := snapshot.Snapshot{snapshot.FieldTemperature: 25.0, snapshot.FieldHumidity: 50.0}
	source := SourceFunc(func(ctx context.Context, subject record.Subject) (snapshot.Snapshot, error) {
		return current, nil
	})

	sched := New(mem, source, nil, testOptions(), nil)

	result := sched.RunOnce(ctx)
	if result.Inserted != 1 || result.Failed != 0 {
		t.Fatalf("first tick: expected one insert, got %+v", result)
	}
	if got := recordCount(t, mem, 1); got != 1 {
		t.Fatalf("expected 1 record after first tick, got %d", got)
	}

	// Within thresholds: temp +0.5, humidity +2.
	current = snapshot.Snapshot{snapshot.FieldTemperature: 25.5, snapshot.FieldHumidity: 52.0}
	result = sched.RunOnce(ctx)
	if result.Skipped != 1 || result.Inserted != 0 {
		t.Fatalf("second tick: expected skip, got %+v", result)
	}
	if got := recordCount(t, mem, 1); got != 1 {
		t.Fatalf("expected 1 record after similar tick, got %d", got)
	}

	// Distinct: temp +2.0 from the stored baseline.
	current = snapshot.Snapshot{snapshot.FieldTemperature: 27.0, snapshot.FieldHumidity: 50.0}
	result = sched.RunOnce(ctx)
	if result.Inserted != 1 {
		t.Fatalf("third tick: expected insert, got %+v", result)
	}
	if got := recordCount(t, mem, 1); got != 2 {
		t.Fatalf("expected 2 records after distinct tick, got %d", got)
	}
}

// TestProviderFailureIsolation verifies that one subject's provider error
// does not abort the pass for the others.
func TestProviderFailureIsolation(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddSubject(record.Subject{ID: 1, Username: "alice"})
	mem.AddSubject(record.Subject{ID: 2, Username: "bob"})

	source := SourceFunc(func(ctx context.Context, subject record.Subject) (snapshot.Snapshot, error) {
		if subject.ID == 1 {
			return nil, errors.New("upstream timeout")
		}
		return snapshot.Snapshot{snapshot.FieldTemperature: 22.0, snapshot.FieldHumidity: 60.0}, nil
	})

	sched := New(mem, source, nil, testOptions(), nil)
	result := sched.RunOnce(ctx)

	if result.Failed != 1 || result.Inserted != 1 {
		t.Fatalf("expected 1 failed / 1 inserted, got %+v", result)
	}
	if got := recordCount(t, mem, 1); got != 0 {
		t.Fatalf("expected no records for failing subject, got %d", got)
	}
	if got := recordCount(t, mem, 2); got != 1 {
		t.Fatalf("expected 1 record for healthy subject, got %d", got)
	}
}

// TestCorruptPreviousPayloadForcesInsert verifies that an undecodable stored
// payload is treated as missing previous data.
func TestCorruptPreviousPayloadForcesInsert(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddSubject(record.Subject{ID: 1, Username: "alice"})

	if _, err := mem.Append(ctx, 1, record.KindWeather, json.RawMessage(`not json`)); err != nil {
		t.Fatalf("seed corrupt record: %v", err)
	}

	source := SourceFunc(func(ctx context.Context, subject record.Subject) (snapshot.Snapshot, error) {
		return snapshot.Snapshot{snapshot.FieldTemperature: 25.0, snapshot.FieldHumidity: 50.0}, nil
	})

	sched := New(mem, source, nil, testOptions(), nil)
	result := sched.RunOnce(ctx)
	if result.Inserted != 1 {
		t.Fatalf("expected insert over corrupt baseline, got %+v", result)
	}
	if got := recordCount(t, mem, 1); got != 2 {
		t.Fatalf("expected 2 records, got %d", got)
	}
}

// TestInsertPublishesEvent verifies the create event reaches a live
// subscriber with a record summary.
func TestInsertPublishesEvent(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddSubject(record.Subject{ID: 7, Username: "alice"})

	events := bus.New(4, nil)
	defer events.Close()
	sub := events.Subscribe()

	source := SourceFunc(func(ctx context.Context, subject record.Subject) (snapshot.Snapshot, error) {
		return snapshot.Snapshot{snapshot.FieldTemperature: 25.0, snapshot.FieldHumidity: 50.0}, nil
	})

	sched := New(mem, source, events, testOptions(), nil)
	if result := sched.RunOnce(ctx); result.Inserted != 1 {
		t.Fatalf("expected insert, got %+v", result)
	}

	select {
	case ev := <-sub.Events():
		if ev.Kind != record.KindWeather || ev.Action != bus.ActionCreate {
			t.Fatalf("unexpected event %+v", ev)
		}
		payload, ok := ev.Payload.(map[string]any)
		if !ok {
			t.Fatalf("unexpected payload type %T", ev.Payload)
		}
		if payload["user_id"] != int64(7) {
			t.Fatalf("expected user_id 7, got %v", payload["user_id"])
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for create event")
	}
}
