package metrics

import (
	"testing"

	coremetrics "github.com/jmercadier/chargeshare/core/metrics"
)

type recordSink struct {
	count int
}

func (r *recordSink) RecordSessionTransition(coremetrics.SessionTransition) error {
	r.count++
	return nil
}

func (r *recordSink) RecordActiveSimulations(int) error {
	r.count++
	return nil
}

func (r *recordSink) RecordReminder(coremetrics.ReminderRecord) error {
	r.count++
	return nil
}

func (r *recordSink) RecordEscalation(coremetrics.EscalationRecord) error {
	r.count++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordSessionTransition(coremetrics.SessionTransition{}); err != nil {
		t.Fatalf("record transition: %v", err)
	}
	if err := m.RecordReminder(coremetrics.ReminderRecord{}); err != nil {
		t.Fatalf("record reminder: %v", err)
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("records not forwarded")
	}
}

func TestMultiSinkSkipsSampleIncapable(t *testing.T) {
	s := &recordSink{}
	m := NewMultiSink(s)
	if err := m.RecordSimulationSample(coremetrics.SimulationSample{}); err != nil {
		t.Fatalf("record sample: %v", err)
	}
	if s.count != 0 {
		t.Fatalf("sample should not reach plain sinks")
	}
}
