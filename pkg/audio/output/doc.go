// ABOUTME: Playback device package
// ABOUTME: Driver and PCM interfaces plus the built-in backends
// Package output provides non-blocking playback device handles modeled on
// the ALSA PCM API.
//
// A Driver opens devices by name and lists name hints. A PCM is one open
// device: it is configured once with SetParams and then fed interleaved
// frames with Writei. Transient conditions surface as ErrInterrupted,
// ErrXrun and ErrSuspended, which Recover clears, and ErrAgain when the
// device buffer is full.
//
// Built-in drivers:
//
//	alsa     libasound through cgo (build tag "alsa", Linux only)
//	malgo    miniaudio through github.com/gen2brain/malgo
//	oto      github.com/ebitengine/oto/v3, default device only
//	wavfile  renders to a WAV file in real time
//	null     discards audio in real time
//
// The malgo and oto drivers need cgo and are left out by the "noaudio" tag.
//
// Example:
//
//	drv, _ := output.Lookup(output.DefaultDriverName(), output.Config{})
//	pcm, err := drv.Open("default")
//	err = pcm.SetParams(output.Params{
//	    Format:   output.FormatS16LE,
//	    Channels: 2,
//	    Rate:     48000,
//	    Latency:  40 * time.Millisecond,
//	})
//	n, err := pcm.Writei(buf, len(buf)/4)
package output
