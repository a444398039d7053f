package analyzer

import (
	"strings"
	"testing"

	"threatlineage/internal/store"
	"threatlineage/internal/transform/telemetry"
	"threatlineage/pkg/models"
)

func TestFormatRegistryEventValueSegment(t *testing.T) {
	name, data := "RunKey", "calc.exe"
	with := models.RegistryEvent{Timestamp: t0, Operation: "set", RegistryKey: "HKCU\\Run", ValueName: &name, ValueData: &data}
	without := models.RegistryEvent{Timestamp: t0, Operation: "delete", RegistryKey: "HKCU\\Run"}

	if got := FormatRegistryEvent(with); !strings.HasSuffix(got, "| Value: RunKey = calc.exe") {
		t.Fatalf("expected value segment, got %q", got)
	}
	if got := FormatRegistryEvent(without); strings.Contains(got, "Value:") {
		t.Fatalf("expected no value segment, got %q", got)
	}
}

func TestEventsForGroupsByKindInTableOrder(t *testing.T) {
	src := store.New(&telemetry.Tables{
		Registry: []models.RegistryEvent{{ProcessID: 4, Timestamp: t0, Operation: "query", RegistryKey: "HKLM\\A"}},
		Network:  []models.NetworkEvent{{ProcessID: 4, Timestamp: t0, SrcIP: "a", SrcPort: "1", DstIP: "b", DstPort: "2"}},
		Files: []models.FileEvent{
			{ProcessID: 4, Timestamp: t0, Operation: "write", FilePath: "second"},
			{ProcessID: 5, Timestamp: t0, Operation: "write", FilePath: "other"},
			{ProcessID: 4, Timestamp: t0.Add(-1), Operation: "read", FilePath: "third"},
		},
	})

	got := EventsFor(4, src)
	if len(got) != 4 {
		t.Fatalf("expected 4 events, got %v", got)
	}
	prefixes := []string{"File Event", "File Event", "Network Event", "Registry Event"}
	for i, p := range prefixes {
		if !strings.HasPrefix(got[i], p) {
			t.Fatalf("event %d: expected %s, got %q", i, p, got[i])
		}
	}
	if !strings.HasSuffix(got[0], "Path: second") || !strings.HasSuffix(got[1], "Path: third") {
		t.Fatalf("file events should keep table order: %v", got)
	}
}

func TestEventsForUnknownPid(t *testing.T) {
	src := store.New(&telemetry.Tables{})
	if got := EventsFor(12345, src); len(got) != 0 {
		t.Fatalf("expected no events, got %v", got)
	}
	if got := EventsFor(1, nil); got != nil {
		t.Fatalf("expected nil for nil source, got %v", got)
	}
}
