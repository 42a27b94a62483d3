package protocol

import (
	"bufio"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Writer is the single shared, mutually-excluded sink for everything written
// to the output stream: responses and notifications alike. No two frames are
// ever allowed to interleave their bytes, and each frame is flushed before
// the next is written.
//
// Mutex poisoning from panics isn't a concept in Go (a panicking goroutine
// while holding the lock would deadlock every future writer), so call sites
// that hold this lock must not panic; WriteResponse/WriteNotification do no
// more than marshal and write, which shouldn't panic for well-formed values.
type Writer struct {
	mu  sync.Mutex
	out *bufio.Writer
}

// NewWriter wraps w as a frame sink.
func NewWriter(w io.Writer) *Writer {
	return &Writer{out: bufio.NewWriter(w)}
}

// WriteResponse serializes and transmits a response envelope.
func (w *Writer) WriteResponse(resp *Response) error {
	return w.writeFrame(resp)
}

// WriteNotification serializes and transmits a notification envelope.
func (w *Writer) WriteNotification(note *Notification) error {
	return w.writeFrame(note)
}

// writeFrame encodes value into a single frame and writes+flushes it
// atomically with respect to every other frame passing through this Writer.
func (w *Writer) writeFrame(value any) error {
	frame, err := EncodeFrame(value)
	if err != nil {
		return errors.Wrap(err, "unable to encode frame")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.out.Write(frame); err != nil {
		return errors.Wrap(err, "unable to write frame")
	}
	if err := w.out.Flush(); err != nil {
		return errors.Wrap(err, "unable to flush frame")
	}
	return nil
}
