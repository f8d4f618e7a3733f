package logging

import (
	"bufio"
	"io"
	"sync"
	"time"
)

// FlushingWriter buffers writes to an underlying writer and flushes them every interval.
// It is safe for concurrent use.
type FlushingWriter struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	out    io.Writer
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

func NewFlushingWriter(out io.Writer, interval time.Duration) *FlushingWriter {
	w := &FlushingWriter{
		buf:  bufio.NewWriter(out),
		out:  out,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go w.flushLoop(interval)
	return w
}

func (w *FlushingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return w.out.Write(p)
	}
	return w.buf.Write(p)
}

func (w *FlushingWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Flush()
}

// Close stops the flush loop, flushes anything buffered and closes the underlying writer if it is a Closer.
func (w *FlushingWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.stop)
	<-w.done
	if err := w.Flush(); err != nil {
		return err
	}
	if closer, ok := w.out.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (w *FlushingWriter) flushLoop(interval time.Duration) {
	defer close(w.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = w.Flush()
		case <-w.stop:
			return
		}
	}
}
