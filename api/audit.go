package api

// Recorder persists every response line the worker produces, in order.
// Record must not keep line after it returns; the caller reuses it.
type Recorder interface {
	Record(line []byte) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(line []byte) error

// Record calls f(line).
func (f RecorderFunc) Record(line []byte) error {
	return f(line)
}
