// ABOUTME: Audio type definitions
// ABOUTME: Defines PCM stream formats and per-width sample conversions
package audio

import (
	"encoding/binary"
	"fmt"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Encoding identifies how samples are coded in a stream.
type Encoding int

const (
	// EncodingLinearPCM is interleaved, little-endian linear PCM. It is the
	// only encoding an output stream can play.
	EncodingLinearPCM Encoding = iota

	// EncodingLinearPCMLowLatency is linear PCM requested with low latency
	// playback hints. It is played the same way as EncodingLinearPCM.
	EncodingLinearPCMLowLatency

	// EncodingCompressed marks encoded (non-PCM) data.
	EncodingCompressed
)

// IsLinear returns true for the linear PCM encodings.
func (e Encoding) IsLinear() bool {
	return e == EncodingLinearPCM || e == EncodingLinearPCMLowLatency
}

func (e Encoding) String() string {
	switch e {
	case EncodingLinearPCM:
		return "pcm"
	case EncodingLinearPCMLowLatency:
		return "pcm-lowlatency"
	case EncodingCompressed:
		return "compressed"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// Format describes an interleaved PCM stream.
type Format struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
}

// BytesPerSample is the storage size of one sample. 24-bit samples are
// packed in 3 bytes.
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// BytesPerFrame is the size of one sample for every channel.
func (f Format) BytesPerFrame() int {
	return f.Channels * f.BitDepth / 8
}

// Validate returns an error when the format cannot be played.
func (f Format) Validate() error {
	if !f.Encoding.IsLinear() {
		return fmt.Errorf("only linear PCM supported (got %s)", f.Encoding)
	}
	if !SupportedBitDepth(f.BitDepth) {
		return fmt.Errorf("unsupported bits per sample: %d", f.BitDepth)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitDepth)
}

// SupportedBitDepth returns true for the sample widths the output path
// handles (unsigned 8, signed 16, packed signed 24 and signed 32).
func SupportedBitDepth(bits int) bool {
	switch bits {
	case 8, 16, 24, 32:
		return true
	}
	return false
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit (or 16-bit) to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	// Left-shift to position 16-bit value in upper bits
	return int32(sample) << 8
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}

// PutSample24 encodes a sample in the 24-bit range into dst using the given
// sample width. Samples are clamped to the 24-bit range first.
func PutSample24(dst []byte, bytesPerSample int, sample int32) {
	if sample > Max24Bit {
		sample = Max24Bit
	} else if sample < Min24Bit {
		sample = Min24Bit
	}

	switch bytesPerSample {
	case 1:
		dst[0] = byte(int8(sample>>16)) ^ 0x80
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(SampleToInt16(sample)))
	case 3:
		b := SampleTo24Bit(sample)
		copy(dst, b[:])
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(sample<<8))
	}
}

// Sample24 decodes one sample of the given width from src into the 24-bit
// range.
func Sample24(src []byte, bytesPerSample int) int32 {
	switch bytesPerSample {
	case 1:
		return int32(int8(src[0]^0x80)) << 16
	case 2:
		return SampleFromInt16(int16(binary.LittleEndian.Uint16(src)))
	case 3:
		return SampleFrom24Bit([3]byte{src[0], src[1], src[2]})
	case 4:
		return int32(binary.LittleEndian.Uint32(src)) >> 8
	}
	return 0
}
