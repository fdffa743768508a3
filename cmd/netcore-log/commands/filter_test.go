package commands

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/framewire/netcore/pkg/log"
)

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer reader.Close()

	var events []log.Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		events = append(events, event)
	}
}

func TestFilterByConnectionID(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, ConnectionID: "conn-1"},
		{Timestamp: ts, ConnectionID: "conn-2"},
		{Timestamp: ts, ConnectionID: "conn-1"},
	}
	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.nlog")

	n, err := RunFilter(path, FilterOptions{Output: outPath, ConnID: "conn-1"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 events, got %d", n)
	}

	for _, event := range readAll(t, outPath) {
		if event.ConnectionID != "conn-1" {
			t.Errorf("expected conn-1, got %s", event.ConnectionID)
		}
	}
}

func TestFilterByCidAndKind(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Cid: 1, Category: log.CategoryFrame, Frame: &log.FrameEvent{Kind: 7}},
		{Timestamp: ts, Cid: 2, Category: log.CategoryFrame, Frame: &log.FrameEvent{Kind: 7}},
		{Timestamp: ts, Cid: 1, Category: log.CategoryFrame, Frame: &log.FrameEvent{Kind: 4}},
	}
	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.nlog")

	n, err := RunFilter(path, FilterOptions{Output: outPath, Cid: "1", Kind: "data"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 event, got %d", n)
	}
}

func TestFilterByTimeRange(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: base},
		{Timestamp: base.Add(time.Minute)},
		{Timestamp: base.Add(2 * time.Minute)},
	}
	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.nlog")

	n, err := RunFilter(path, FilterOptions{
		Output:    outPath,
		TimeStart: base.Add(30 * time.Second).Format(time.RFC3339),
		TimeEnd:   base.Add(90 * time.Second).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 event, got %d", n)
	}
}

func TestFilterInvalidOptions(t *testing.T) {
	path := createTestLogFile(t, nil)
	outPath := filepath.Join(t.TempDir(), "filtered.nlog")

	tests := []FilterOptions{
		{Output: outPath, Cid: "abc"},
		{Output: outPath, TimeStart: "yesterday"},
		{Output: outPath, Layer: "wire"},
		{Output: outPath, Direction: "sideways"},
		{Output: outPath, Category: "message"},
		{Output: outPath, Kind: "ping"},
	}
	for _, opts := range tests {
		if _, err := RunFilter(path, opts); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}
