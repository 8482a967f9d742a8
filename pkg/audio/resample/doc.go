// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts decode.Reader output between sample rates
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation for converting between sample rates.
// Handles both upsampling and downsampling.
//
// Example:
//
//	r, err := resample.NewReader(src, 48000)
//	n, err := r.Read(samples)
package resample
