// ABOUTME: Audio file readers for playback sources
// ABOUTME: Provides the Reader interface and MP3, FLAC, WAV, Vorbis, Opus and tone readers
// Package decode provides streaming audio readers.
//
// Supports: MP3, FLAC, WAV (8/16/24/32-bit), Ogg Vorbis, Ogg Opus (cgo
// builds only) and a generated sine tone.
//
// All readers implement the Reader interface and output interleaved int32
// samples in the 24-bit range.
//
// Example:
//
//	r, err := decode.Open("song.flac")
//	n, err := r.Read(samples)
package decode
