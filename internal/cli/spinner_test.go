package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSpinnerStop(t *testing.T) {
	var buf syncBuffer
	s := newSpinner("Collapsing...")
	s.w = &buf
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if !s.Cancelled() {
		t.Error("Stop should cancel the spinner context")
	}
	if !strings.Contains(buf.String(), "Collapsing...") {
		t.Errorf("spinner should draw its message, got %q", buf.String())
	}
}

func TestSpinnerContextCancel(t *testing.T) {
	tests := []struct {
		name string
		ctx  func() (context.Context, context.CancelFunc)
	}{
		{"cancel", func() (context.Context, context.CancelFunc) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			return ctx, cancel
		}},
		{"timeout", func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), 20*time.Millisecond)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := tt.ctx()
			defer cancel()

			s := newSpinnerWithContext(ctx, "Waiting...")
			s.w = io.Discard
			s.Start()
			time.Sleep(100 * time.Millisecond)

			if !s.Cancelled() {
				t.Error("spinner should be cancelled with its context")
			}
			s.Stop()
		})
	}
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := newSpinner("Stopping...")
	s.w = io.Discard
	s.Start()
	s.Stop()
	s.Stop()
	s.Stop()
}

func TestSpinnerStopWithMessage(t *testing.T) {
	tests := []struct {
		name string
		stop func(*Spinner)
		want string
	}{
		{"success", func(s *Spinner) { s.StopWithSuccess("Collapsed 2 tables") }, iconSuccess + " Collapsed 2 tables"},
		{"error", func(s *Spinner) { s.StopWithError("Batch failed") }, iconError + " Batch failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf syncBuffer
			s := newSpinner("Working...")
			s.w = &buf
			s.Start()
			tt.stop(s)

			if !strings.HasSuffix(buf.String(), tt.want+"\n") {
				t.Errorf("output = %q, want suffix %q", buf.String(), tt.want)
			}
		})
	}
}

func TestSpinnerUpdate(t *testing.T) {
	var buf syncBuffer
	s := newSpinner("short")
	s.w = &buf
	s.Start()
	s.Update("a much longer message")
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "a much longer message") {
		t.Errorf("spinner output should show the updated message, got %q", out)
	}
	// The final clear covers the widest message.
	if !strings.HasSuffix(out, "\r"+strings.Repeat(" ", len("a much longer message")+4)+"\r") {
		t.Errorf("spinner should clear the widest message, got %q", out)
	}
}

// syncBuffer is a bytes.Buffer safe for the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
