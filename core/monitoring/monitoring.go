package monitoring

import "time"

// FlushTimeout bounds the flush performed before a reported panic resumes.
const FlushTimeout = 2 * time.Second

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	CapturePanic(v any, tags map[string]string)
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) CapturePanic(any, map[string]string)       {}
func (NopMonitor) Flush(time.Duration)                       {}

var current Monitor = NopMonitor{}

// Init sets the global monitor implementation. nil restores the no-op one.
func Init(m Monitor) {
	if m == nil {
		m = NopMonitor{}
	}
	current = m
}

// Current returns the installed monitor.
func Current() Monitor { return current }

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	if err != nil {
		current.CaptureException(err, tags)
	}
}

// CapturePanic records a recovered panic value.
func CapturePanic(v any, tags map[string]string) {
	if v != nil {
		current.CapturePanic(v, tags)
	}
}

// Guard runs fn and reports a panic escaping it before re-raising it.
// recover only works in the deferred function itself, hence the wrapper.
func Guard(tags map[string]string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			CapturePanic(r, tags)
			Flush(FlushTimeout)
			panic(r)
		}
	}()
	fn()
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	current.Flush(d)
}
