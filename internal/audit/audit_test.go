package audit

import (
	"testing"
	"time"
)

func TestDefaultSeverityInference(t *testing.T) {
	cases := []struct {
		eventType EventType
		want      Severity
	}{
		{EventSecurityViolation, SeverityCritical},
		{EventExecuteBlocked, SeverityWarn},
		{EventInstallBlocked, SeverityWarn},
		{EventExecuteEnd, SeverityInfo},
		{EventSessionCreated, SeverityInfo},
	}

	for _, c := range cases {
		if got := defaultSeverity(c.eventType); got != c.want {
			t.Errorf("defaultSeverity(%s) = %s, want %s", c.eventType, got, c.want)
		}
	}
}

func TestRecordInfersSeverityWhenUnset(t *testing.T) {
	l := New(WithCapacity(10))
	l.Record(Event{Type: EventSecurityViolation})

	got := l.Recent(1, Filter{})
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Severity != SeverityCritical {
		t.Errorf("Severity = %s, want CRITICAL", got[0].Severity)
	}
	if got[0].ID == "" {
		t.Error("Record did not assign an id")
	}
}

func TestRingBufferEvictsOldestOnOverflow(t *testing.T) {
	l := New(WithCapacity(3))
	for i := 0; i < 5; i++ {
		l.Record(Event{Type: EventExecuteStart, Details: map[string]any{"n": i}})
	}

	got := l.Recent(10, Filter{})
	if len(got) != 3 {
		t.Fatalf("expected ring buffer capped at 3, got %d", len(got))
	}
	if got[0].Details["n"] != 4 {
		t.Errorf("most recent event should be n=4, got %v", got[0].Details["n"])
	}
}

func TestRecentAppliesFilter(t *testing.T) {
	l := New(WithCapacity(10))
	l.Record(Event{Type: EventExecuteStart})
	l.Record(Event{Type: EventSecurityViolation})

	got := l.Recent(10, Filter{Type: EventSecurityViolation})
	if len(got) != 1 {
		t.Fatalf("expected 1 filtered event, got %d", len(got))
	}
}

func TestSecurityEventsOnlyReturnsSecurityRelevant(t *testing.T) {
	l := New(WithCapacity(10))
	l.Record(Event{Type: EventExecuteStart})
	l.Record(Event{Type: EventExecuteBlocked})
	l.Record(Event{Type: EventSecurityViolation})

	got := l.SecurityEvents(10)
	if len(got) != 2 {
		t.Fatalf("expected 2 security-relevant events, got %d", len(got))
	}
}

func TestComputeStatsCountsViolationsAndAverages(t *testing.T) {
	l := New(WithCapacity(10))
	l.Record(Event{Type: EventSecurityViolation})
	l.Record(Event{Type: EventExecuteBlocked})

	d1 := 10.0
	d2 := 30.0
	l.Record(Event{Type: EventExecuteEnd, DurationMs: &d1})
	l.Record(Event{Type: EventExecuteEnd, DurationMs: &d2})

	stats := l.ComputeStats()
	if stats.Violations != 1 {
		t.Errorf("Violations = %d, want 1", stats.Violations)
	}
	if stats.BlockedExecs != 1 {
		t.Errorf("BlockedExecs = %d, want 1", stats.BlockedExecs)
	}
	if stats.AvgExecuteMs != 20 {
		t.Errorf("AvgExecuteMs = %v, want 20", stats.AvgExecuteMs)
	}
}

func TestComputeStatsRateLastHourExcludesOldEvents(t *testing.T) {
	l := New(WithCapacity(10))
	l.Record(Event{Type: EventExecuteStart, Timestamp: time.Now().Add(-2 * time.Hour)})
	l.Record(Event{Type: EventExecuteStart})

	stats := l.ComputeStats()
	if stats.RateLastHour != 1 {
		t.Errorf("RateLastHour = %d, want 1", stats.RateLastHour)
	}
}
