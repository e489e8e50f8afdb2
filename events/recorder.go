package events

// Sink receives events as the engine emits them. Recorder is the default,
// in-process sink used both by execute_intents (whose recorded events
// become the batch's log) and simulate_intents (whose Recorder is read and
// discarded, never reaching a durable sink).
type Sink interface {
	Emit(e Event)
}

// Recorder is an in-memory Sink that simply appends, giving callers the
// exact event sequence of §5's ordering guarantee: event emission order
// matches causal order.
type Recorder struct {
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(e Event) {
	r.events = append(r.events, e)
}

// Events returns the events recorded so far, in emission order.
func (r *Recorder) Events() []Event {
	return r.events
}

// Len reports how many events have been recorded.
func (r *Recorder) Len() int {
	return len(r.events)
}

// MultiSink fans a single Emit out to every sink it wraps, used to mirror
// events to a durable sink alongside the batch's in-memory Recorder.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink returns a Sink that forwards to every sink in order.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Emit(e Event) {
	for _, s := range m.sinks {
		s.Emit(e)
	}
}
