// ABOUTME: Tests for channel layout correction
// ABOUTME: Covers swizzle tables, stereo folding and volume scaling per width
package layout

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestSwizzle50U8(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5, 11, 12, 13, 14, 15}
	Swizzle(buf, 5, 1)

	expected := []byte{2, 3, 4, 5, 1, 12, 13, 14, 15, 11}
	if !bytes.Equal(buf, expected) {
		t.Errorf("expected %v, got %v", expected, buf)
	}
}

func TestSwizzle51S16(t *testing.T) {
	in := []int16{100, -200, 300, -400, 500, 600}
	buf := make([]byte, len(in)*2)
	for i, s := range in {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}

	Swizzle(buf, 6, 2)

	expected := []int16{-200, 300, -400, 500, 100, 600}
	for i, want := range expected {
		got := int16(binary.LittleEndian.Uint16(buf[i*2:]))
		if got != want {
			t.Errorf("slot %d: expected %d, got %d", i, want, got)
		}
	}
}

func TestSwizzleWidths(t *testing.T) {
	for _, bps := range []int{1, 2, 3, 4} {
		frame := make([]byte, 5*bps)
		for ch := 0; ch < 5; ch++ {
			for b := 0; b < bps; b++ {
				frame[ch*bps+b] = byte(ch + 1)
			}
		}

		Swizzle(frame, 5, bps)

		order := []byte{2, 3, 4, 5, 1}
		for ch, want := range order {
			if frame[ch*bps] != want {
				t.Errorf("width %d slot %d: expected %d, got %d", bps, ch, want, frame[ch*bps])
			}
		}
	}
}

func TestSwizzleLeavesOtherLayouts(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	Swizzle(buf, 2, 1)
	Swizzle(buf, 4, 1)
	if !bytes.Equal(buf, []byte{1, 2, 3, 4}) {
		t.Errorf("buffer modified: %v", buf)
	}
}

func TestSwizzleIgnoresPartialFrame(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5, 9, 9}
	Swizzle(buf, 5, 1)
	expected := []byte{2, 3, 4, 5, 1, 9, 9}
	if !bytes.Equal(buf, expected) {
		t.Errorf("expected %v, got %v", expected, buf)
	}
}

func TestPermutation(t *testing.T) {
	if p := Permutation(2); p != nil {
		t.Errorf("expected no permutation for stereo, got %v", p)
	}
	if p := Permutation(6); len(p) != 6 || p[4] != 0 || p[5] != 5 {
		t.Errorf("unexpected 5.1 permutation %v", p)
	}
}

func TestFoldToStereoS16(t *testing.T) {
	// C, L, R, Ls, Rs, LFE
	in := []int16{1000, 2000, -3000, 7777, 8888, 9999}
	buf := make([]byte, len(in)*2)
	for i, s := range in {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}

	n, err := FoldToStereo(buf, 6, 2, 1)
	if err != nil {
		t.Fatalf("fold failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 bytes, got %d", n)
	}

	left := int16(binary.LittleEndian.Uint16(buf[0:]))
	right := int16(binary.LittleEndian.Uint16(buf[2:]))
	if left != 2707 {
		t.Errorf("expected left 2707, got %d", left)
	}
	if right != -2293 {
		t.Errorf("expected right -2293, got %d", right)
	}
}

func TestFoldToStereoVolumeAndClamp(t *testing.T) {
	in := []int16{32767, 32767, -32768, 0, 0}
	buf := make([]byte, len(in)*2)
	for i, s := range in {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}

	n, err := FoldToStereo(buf, 5, 2, 1)
	if err != nil {
		t.Fatalf("fold failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 bytes, got %d", n)
	}
	if left := int16(binary.LittleEndian.Uint16(buf[0:])); left != 32767 {
		t.Errorf("expected clamped left 32767, got %d", left)
	}

	in = []int16{0, 1000, -1000, 0, 0}
	for i, s := range in {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	if _, err := FoldToStereo(buf, 5, 2, 0.5); err != nil {
		t.Fatalf("fold failed: %v", err)
	}
	if left := int16(binary.LittleEndian.Uint16(buf[0:])); left != 500 {
		t.Errorf("expected left 500, got %d", left)
	}
	if right := int16(binary.LittleEndian.Uint16(buf[2:])); right != -500 {
		t.Errorf("expected right -500, got %d", right)
	}
}

func TestFoldToStereoMultipleFrames(t *testing.T) {
	// Two 5.0 u8 frames of silence with distinct left values.
	buf := []byte{128, 138, 128, 128, 128, 128, 148, 128, 128, 128}
	n, err := FoldToStereo(buf, 5, 1, 1)
	if err != nil {
		t.Fatalf("fold failed: %v", err)
	}
	expected := []byte{138, 128, 148, 128}
	if n != len(expected) || !bytes.Equal(buf[:n], expected) {
		t.Errorf("expected %v, got %v", expected, buf[:n])
	}
}

func TestFoldToStereoUnsupported(t *testing.T) {
	tests := []struct {
		name           string
		channels       int
		bytesPerSample int
	}{
		{"stereo", 2, 2},
		{"7.1", 8, 2},
		{"bad width", 6, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 64)
			_, err := FoldToStereo(buf, tt.channels, tt.bytesPerSample, 1)
			if !errors.Is(err, ErrUnsupported) {
				t.Errorf("expected ErrUnsupported, got %v", err)
			}
		})
	}
}

func TestAdjustVolume(t *testing.T) {
	tests := []struct {
		name           string
		bytesPerSample int
		in             []byte
		volume         float32
		expected       []byte
	}{
		{"u8 half", 1, []byte{128, 228, 28}, 0.5, []byte{128, 178, 78}},
		{"u8 mute", 1, []byte{255, 0}, 0, []byte{128, 128}},
		{"s16 half", 2, []byte{0x00, 0x10, 0x00, 0xF0}, 0.5, []byte{0x00, 0x08, 0x00, 0xF8}},
		{"s24 half", 3, []byte{0x00, 0x00, 0x10}, 0.5, []byte{0x00, 0x00, 0x08}},
		{"s32 mute", 4, []byte{1, 2, 3, 4}, 0, []byte{0, 0, 0, 0}},
		{"unity", 2, []byte{0x34, 0x12}, 1, []byte{0x34, 0x12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := append([]byte(nil), tt.in...)
			AdjustVolume(buf, tt.bytesPerSample, tt.volume)
			if !bytes.Equal(buf, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, buf)
			}
		})
	}
}
