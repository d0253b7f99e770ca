package core

import (
	"strconv"
	"sync"
	"sync/atomic"

	"ps2kbd/protocol"
)

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

var (
	debugMu      sync.RWMutex
	debugPrintln DebugWriter = func(string) {}
	debugEnabled uint32      // atomic bool
	debugChan    chan string
)

// SetDebugWriter sets the platform output for debug messages, e.g. USB CDC
func SetDebugWriter(w DebugWriter) {
	if w == nil {
		w = func(string) {}
	}
	debugMu.Lock()
	debugPrintln = w
	debugMu.Unlock()
}

// SetDebugEnabled switches debug output on or off. Off by default.
func SetDebugEnabled(enabled bool) {
	var v uint32
	if enabled {
		v = 1
	}
	atomic.StoreUint32(&debugEnabled, v)
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return atomic.LoadUint32(&debugEnabled) != 0
}

func writer() DebugWriter {
	debugMu.RLock()
	defer debugMu.RUnlock()
	return debugPrintln
}

// DebugPrintln writes msg through the platform writer when debug is enabled
func DebugPrintln(msg string) {
	if IsDebugEnabled() {
		writer()(msg)
	}
}

// InitAsyncDebug starts a goroutine draining DebugAsync messages. Later
// calls do nothing.
func InitAsyncDebug() {
	debugMu.Lock()
	defer debugMu.Unlock()
	if debugChan != nil {
		return
	}
	ch := make(chan string, 16)
	debugChan = ch
	go func() {
		for msg := range ch {
			writer()(msg)
		}
	}()
}

func asyncChan() chan string {
	debugMu.RLock()
	defer debugMu.RUnlock()
	return debugChan
}

// DebugAsync queues msg without blocking; it is dropped when the queue is full
func DebugAsync(msg string) {
	ch := asyncChan()
	if ch == nil || !IsDebugEnabled() {
		return
	}
	select {
	case ch <- msg:
	default:
	}
}

// TraceWriter returns the writer for traces emitted while a frame is being
// clocked: DebugAsync once InitAsyncDebug has run, DebugPrintln before.
func TraceWriter() DebugWriter {
	if asyncChan() != nil {
		return DebugAsync
	}
	return DebugPrintln
}

// Event is one handled request, kept for post-mortem dumps
type Event struct {
	Seq     uint8
	Command uint16
	Status  protocol.Status
}

// EventRingSize is how many events the ring keeps
const EventRingSize = 32

// EventRing records the most recent requests a server handled
type EventRing struct {
	mu     sync.Mutex
	events [EventRingSize]Event
	head   int
	count  int
}

// Record appends an event, overwriting the oldest
func (r *EventRing) Record(e Event) {
	r.mu.Lock()
	r.events[r.head] = e
	r.head = (r.head + 1) % EventRingSize
	if r.count < EventRingSize {
		r.count++
	}
	r.mu.Unlock()
}

// Events returns the recorded events, oldest first
func (r *EventRing) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, r.count)
	start := (r.head - r.count + EventRingSize) % EventRingSize
	for i := 0; i < r.count; i++ {
		out = append(out, r.events[(start+i)%EventRingSize])
	}
	return out
}

// Dump writes the ring to w, oldest first
func (r *EventRing) Dump(w DebugWriter) {
	if w == nil {
		return
	}
	w("[EVENTS] === dump ===")
	for _, e := range r.Events() {
		w("[EVENTS] seq=" + strconv.Itoa(int(e.Seq)) +
			" cmd=" + strconv.Itoa(int(e.Command)) +
			" status=" + e.Status.String())
	}
	w("[EVENTS] === end ===")
}
