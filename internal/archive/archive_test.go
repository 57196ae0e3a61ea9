package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfredjeanlab/podium/internal/model"
	"github.com/alfredjeanlab/podium/internal/store"
	"github.com/alfredjeanlab/podium/internal/store/memory"
)

var archivedAt = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockDestination records calls to Write.
type mockDestination struct {
	writes atomic.Int64
	last   atomic.Value // []byte
	err    error
}

func (d *mockDestination) Name() string { return "mock" }

func (d *mockDestination) Write(_ context.Context, data []byte) error {
	d.writes.Add(1)
	cp := make([]byte, len(data))
	copy(cp, data)
	d.last.Store(cp)
	return d.err
}

// failingStore fails ListContracts.
type failingStore struct {
	store.Store
}

func (failingStore) ListContracts(context.Context, model.ContractFilter) ([]*model.Contract, int, error) {
	return nil, 0, errors.New("db down")
}

func seededStore(t *testing.T) *memory.MemoryStore {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	for _, id := range []string{"ct-zzz", "ct-aaa"} {
		c := &model.Contract{
			ID:           id,
			Number:       "SB-2026-" + id,
			Title:        "Keynote",
			TemplateID:   "tpl-1",
			ClientName:   "Grace Hopper",
			Currency:     "USD",
			DocumentBody: "body",
			Status:       model.StatusSentForSignature,
			CreatedAt:    archivedAt,
			UpdatedAt:    archivedAt,
		}
		if err := st.CreateContract(ctx, c); err != nil {
			t.Fatalf("CreateContract: %v", err)
		}
	}
	ok, err := st.InsertSignature(ctx, &model.Signature{
		ID:          "sig-1",
		ContractID:  "ct-aaa",
		SignerType:  model.RoleClient,
		SignerName:  "Grace Hopper",
		SignerEmail: "grace@example.com",
		ImageData:   "data:image/png;base64,SECRETINK",
		SignedAt:    archivedAt,
		IPAddress:   "10.0.0.1",
	})
	if err != nil || !ok {
		t.Fatalf("InsertSignature: ok=%v err=%v", ok, err)
	}
	return st
}

func nonEmptyLines(s string) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result
}

func TestExportJSONL(t *testing.T) {
	st := seededStore(t)

	var buf bytes.Buffer
	n, err := ExportJSONL(context.Background(), st, &buf, archivedAt)
	if err != nil {
		t.Fatalf("ExportJSONL: %v", err)
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
	if strings.Contains(buf.String(), "SECRETINK") {
		t.Fatal("export contains signature image data")
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Type != "header" || h.ContractCount != 2 || !h.Timestamp.Equal(archivedAt) {
		t.Fatalf("header = %+v", h)
	}

	var first struct {
		Type string `json:"type"`
		Data struct {
			ID         string          `json:"id"`
			Status     model.Status    `json:"status"`
			Signatures []SignatureMeta `json:"signatures"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &first); err != nil {
		t.Fatalf("unmarshal line 1: %v", err)
	}
	if first.Type != "contract" || first.Data.ID != "ct-aaa" {
		t.Fatalf("contracts not sorted: first = %+v", first)
	}
	if len(first.Data.Signatures) != 1 || first.Data.Signatures[0].SignerEmail != "grace@example.com" {
		t.Fatalf("signatures = %+v", first.Data.Signatures)
	}
	if first.Data.Signatures[0].IPAddress != "10.0.0.1" {
		t.Errorf("ip address = %q", first.Data.Signatures[0].IPAddress)
	}

	if !strings.Contains(lines[2], `"id":"ct-zzz"`) || !strings.Contains(lines[2], `"signatures":[]`) {
		t.Errorf("line 2 = %s", lines[2])
	}
}

func TestExportJSONL_Empty(t *testing.T) {
	var buf bytes.Buffer
	n, err := ExportJSONL(context.Background(), memory.New(), &buf, archivedAt)
	if err != nil {
		t.Fatalf("ExportJSONL: %v", err)
	}
	if n != 0 || len(nonEmptyLines(buf.String())) != 1 {
		t.Fatalf("n = %d, output = %q", n, buf.String())
	}
}

func TestExportJSONL_StoreError(t *testing.T) {
	var buf bytes.Buffer
	if _, err := ExportJSONL(context.Background(), failingStore{}, &buf, archivedAt); err == nil {
		t.Fatal("expected error")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	dest := &mockDestination{}
	sched := NewScheduler(seededStore(t), []Destination{dest}, 50*time.Millisecond, quietLogger())
	sched.Start()

	// Wait for at least the initial export + one tick.
	time.Sleep(120 * time.Millisecond)
	sched.Stop()

	if writes := dest.writes.Load(); writes < 2 {
		t.Fatalf("expected at least 2 writes, got %d", writes)
	}

	data, ok := dest.last.Load().([]byte)
	if !ok || len(data) == 0 {
		t.Fatal("expected non-empty data")
	}
	// 1 header + 2 contracts
	if lines := nonEmptyLines(string(data)); len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	sched := NewScheduler(memory.New(), nil, time.Minute, quietLogger())
	// Stop without Start should not panic.
	sched.Stop()
}

func TestRunOnce_DestinationFailureDoesNotStopOthers(t *testing.T) {
	bad := &mockDestination{err: errors.New("bucket missing")}
	good := &mockDestination{}
	sched := NewScheduler(seededStore(t), []Destination{bad, good}, time.Minute, quietLogger())

	sched.RunOnce(context.Background())

	if bad.writes.Load() != 1 || good.writes.Load() != 1 {
		t.Fatalf("writes = %d / %d, want 1 / 1", bad.writes.Load(), good.writes.Load())
	}
}

func TestRunOnce_ExportFailureSkipsDestinations(t *testing.T) {
	dest := &mockDestination{}
	sched := NewScheduler(failingStore{}, []Destination{dest}, time.Minute, quietLogger())

	sched.RunOnce(context.Background())

	if dest.writes.Load() != 0 {
		t.Fatalf("writes = %d, want 0", dest.writes.Load())
	}
}
