// ABOUTME: Channel layout correction for interleaved PCM buffers
// ABOUTME: Reorders 5.0/5.1 frames, folds surround to stereo and scales volume
package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrUnsupported is returned by FoldToStereo for layouts or sample widths it
// cannot fold.
var ErrUnsupported = errors.New("unsupported layout")

// centerGain mixes the center channel into both sides at -3 dB.
const centerGain = 0.707

// Source frames arrive as {C, L, R, Ls, Rs[, LFE]}. Devices expect
// {L, R, Ls, Rs, C[, LFE]}. Each table maps an output slot to the input
// slot it takes its sample from.
var (
	perm50 = []int{1, 2, 3, 4, 0}
	perm51 = []int{1, 2, 3, 4, 0, 5}
)

// Permutation returns the reorder table used for the given channel count, or
// nil when frames with that many channels are left alone.
func Permutation(channels int) []int {
	switch channels {
	case 5:
		return perm50
	case 6:
		return perm51
	}
	return nil
}

// Swizzle reorders every whole frame of buf in place. Buffers whose channel
// count has no permutation, or whose width is not 1-4 bytes, are untouched.
func Swizzle(buf []byte, channels, bytesPerSample int) {
	perm := Permutation(channels)
	if perm == nil || bytesPerSample < 1 || bytesPerSample > 4 {
		return
	}

	frameSize := channels * bytesPerSample
	var tmp [6 * 4]byte
	frame := tmp[:frameSize]
	for off := 0; off+frameSize <= len(buf); off += frameSize {
		copy(frame, buf[off:off+frameSize])
		for out, in := range perm {
			copy(buf[off+out*bytesPerSample:off+(out+1)*bytesPerSample],
				frame[in*bytesPerSample:(in+1)*bytesPerSample])
		}
	}
}

// FoldToStereo mixes 5.0 or 5.1 frames down to stereo in place, scaling by
// volume. The center channel is added to both sides at -3 dB, surrounds and
// LFE are dropped. It returns the number of bytes of stereo output at the
// start of buf.
func FoldToStereo(buf []byte, channels, bytesPerSample int, volume float32) (int, error) {
	if channels != 5 && channels != 6 {
		return 0, fmt.Errorf("%w: cannot fold %d channels", ErrUnsupported, channels)
	}
	if bytesPerSample < 1 || bytesPerSample > 4 {
		return 0, fmt.Errorf("%w: %d byte samples", ErrUnsupported, bytesPerSample)
	}

	inFrame := channels * bytesPerSample
	outFrame := 2 * bytesPerSample
	frames := len(buf) / inFrame
	vol := float64(volume)
	for i := 0; i < frames; i++ {
		in := buf[i*inFrame:]
		center := float64(readSample(in[0:], bytesPerSample)) * centerGain
		left := float64(readSample(in[bytesPerSample:], bytesPerSample))
		right := float64(readSample(in[2*bytesPerSample:], bytesPerSample))

		out := buf[i*outFrame:]
		writeSample(out, bytesPerSample, (left+center)*vol)
		writeSample(out[bytesPerSample:], bytesPerSample, (right+center)*vol)
	}
	return frames * outFrame, nil
}

// AdjustVolume scales every sample in buf by volume, clamping to the range
// of the sample width. Unsigned 8-bit samples are scaled around 128.
func AdjustVolume(buf []byte, bytesPerSample int, volume float32) {
	if volume == 1 || bytesPerSample < 1 || bytesPerSample > 4 {
		return
	}

	vol := float64(volume)
	for off := 0; off+bytesPerSample <= len(buf); off += bytesPerSample {
		s := readSample(buf[off:], bytesPerSample)
		writeSample(buf[off:], bytesPerSample, float64(s)*vol)
	}
}

// readSample returns a sample as a signed value in its native range.
func readSample(b []byte, bytesPerSample int) int64 {
	switch bytesPerSample {
	case 1:
		return int64(b[0]) - 128
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case 3:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		return int64(v<<8) >> 8
	default:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	}
}

func writeSample(b []byte, bytesPerSample int, v float64) {
	bits := uint(bytesPerSample * 8)
	hi := float64(int64(1)<<(bits-1) - 1)
	lo := -float64(int64(1) << (bits - 1))
	v = math.Round(v)
	if v > hi {
		v = hi
	} else if v < lo {
		v = lo
	}
	s := int64(v)

	switch bytesPerSample {
	case 1:
		b[0] = byte(s + 128)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(int16(s)))
	case 3:
		b[0] = byte(s)
		b[1] = byte(s >> 8)
		b[2] = byte(s >> 16)
	default:
		binary.LittleEndian.PutUint32(b, uint32(int32(s)))
	}
}
