// ABOUTME: Tests for the byte ring buffer
// ABOUTME: Covers wraparound, partial writes and zero-filled reads
package output

import (
	"bytes"
	"testing"
)

func TestRingBufferWrap(t *testing.T) {
	rb := NewRingBuffer(8)

	if n := rb.Write([]byte{1, 2, 3, 4, 5, 6}); n != 6 {
		t.Fatalf("expected 6 bytes written, got %d", n)
	}
	out := make([]byte, 4)
	if n := rb.Read(out); n != 4 {
		t.Fatalf("expected 4 bytes read, got %d", n)
	}
	if !bytes.Equal(out, []byte{1, 2, 3, 4}) {
		t.Errorf("unexpected read %v", out)
	}

	// Wraps around the end of the buffer.
	if n := rb.Write([]byte{7, 8, 9, 10, 11, 12, 13}); n != 6 {
		t.Fatalf("expected 6 bytes to fit, got %d", n)
	}
	if rb.Free() != 0 {
		t.Errorf("expected full buffer, %d free", rb.Free())
	}

	out = make([]byte, 8)
	if n := rb.Read(out); n != 8 {
		t.Fatalf("expected 8 bytes read, got %d", n)
	}
	if !bytes.Equal(out, []byte{5, 6, 7, 8, 9, 10, 11, 12}) {
		t.Errorf("unexpected read %v", out)
	}
}

func TestRingBufferUnderrunZeroFill(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Write([]byte{9, 9})

	out := []byte{1, 1, 1, 1}
	if n := rb.Read(out); n != 2 {
		t.Fatalf("expected 2 bytes read, got %d", n)
	}
	if !bytes.Equal(out, []byte{9, 9, 0, 0}) {
		t.Errorf("expected zero fill, got %v", out)
	}
	if rb.Available() != 0 {
		t.Errorf("expected empty buffer, got %d", rb.Available())
	}
}

func TestRingBufferReset(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Write([]byte{1, 2, 3})
	rb.Reset()

	if rb.Available() != 0 || rb.Free() != 4 {
		t.Errorf("expected empty buffer after reset, avail=%d free=%d", rb.Available(), rb.Free())
	}
	if rb.Cap() != 4 {
		t.Errorf("expected capacity 4, got %d", rb.Cap())
	}
}
