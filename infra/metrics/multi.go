package metrics

import coremetrics "github.com/jmercadier/chargeshare/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSessionTransition forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordSessionTransition(t coremetrics.SessionTransition) error {
	for _, s := range m.Sinks {
		if err := s.RecordSessionTransition(t); err != nil {
			return err
		}
	}
	return nil
}

// RecordActiveSimulations forwards the simulation count.
func (m *MultiSink) RecordActiveSimulations(count int) error {
	for _, s := range m.Sinks {
		if err := s.RecordActiveSimulations(count); err != nil {
			return err
		}
	}
	return nil
}

// RecordReminder forwards reminder records.
func (m *MultiSink) RecordReminder(r coremetrics.ReminderRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordReminder(r); err != nil {
			return err
		}
	}
	return nil
}

// RecordEscalation forwards escalation records.
func (m *MultiSink) RecordEscalation(e coremetrics.EscalationRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordEscalation(e); err != nil {
			return err
		}
	}
	return nil
}

// RecordSimulationSample forwards energy samples to sinks that ingest them.
func (m *MultiSink) RecordSimulationSample(ev coremetrics.SimulationSample) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.SampleRecorder); ok {
			if err := rec.RecordSimulationSample(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
