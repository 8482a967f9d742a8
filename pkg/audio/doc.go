// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Encoding and sample conversion functions
// Package audio provides fundamental PCM types shared by the decoders, the
// output drivers and the playback pump.
//
// Samples travel through the decoders as int32 values in the 24-bit range.
// Output buffers hold interleaved little-endian samples of 8 (unsigned),
// 16, 24 (packed in 3 bytes) or 32 bits. PutSample24 and Sample24 convert
// between the two.
//
// Example:
//
//	format := audio.Format{
//	    Encoding:   audio.EncodingLinearPCM,
//	    SampleRate: 48000,
//	    Channels:   2,
//	    BitDepth:   16,
//	}
//
//	frame := make([]byte, format.BytesPerFrame())
//	audio.PutSample24(frame, format.BytesPerSample(), audio.SampleFromInt16(-1200))
package audio
