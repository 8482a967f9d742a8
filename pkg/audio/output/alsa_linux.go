//go:build linux && cgo && alsa && !noaudio

// ABOUTME: Native ALSA playback driver through libasound
// ABOUTME: Thin cgo layer over snd_pcm_* with errno mapped to Go errors
package output

/*
#cgo pkg-config: alsa
#include <alsa/asoundlib.h>
#include <stdlib.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"github.com/decred/slog"
)

func init() {
	Register("alsa", func(cfg Config) (Driver, error) {
		return NewALSA(cfg.Log), nil
	})
}

// ALSA opens libasound PCM devices directly.
type ALSA struct {
	log slog.Logger
}

// NewALSA creates the native ALSA driver.
func NewALSA(log slog.Logger) *ALSA {
	if log == nil {
		log = slog.Disabled
	}
	return &ALSA{log: log}
}

func (a *ALSA) Name() string { return "alsa" }

// alsaError converts a negative libasound return code into an error.
func alsaError(op string, code C.int) error {
	var sentinel error
	switch syscall.Errno(-code) {
	case syscall.EINTR:
		sentinel = ErrInterrupted
	case syscall.EPIPE:
		sentinel = ErrXrun
	case syscall.ESTRPIPE:
		sentinel = ErrSuspended
	case syscall.EAGAIN:
		sentinel = ErrAgain
	case syscall.ENOENT, syscall.ENODEV:
		sentinel = ErrNoDevice
	case syscall.EBADFD:
		sentinel = ErrBadState
	}
	msg := C.GoString(C.snd_strerror(code))
	if sentinel != nil {
		return fmt.Errorf("%s: %s: %w", op, msg, sentinel)
	}
	return fmt.Errorf("%s: %s (%d)", op, msg, int(code))
}

// errorCode maps an error back to the negative code snd_pcm_recover takes.
func errorCode(err error) C.int {
	switch {
	case errors.Is(err, ErrInterrupted):
		return -C.int(syscall.EINTR)
	case errors.Is(err, ErrXrun):
		return -C.int(syscall.EPIPE)
	case errors.Is(err, ErrSuspended):
		return -C.int(syscall.ESTRPIPE)
	case errors.Is(err, ErrAgain):
		return -C.int(syscall.EAGAIN)
	}
	return -C.int(syscall.EIO)
}

func (a *ALSA) NameHints() ([]Hint, error) {
	iface := C.CString("pcm")
	defer C.free(unsafe.Pointer(iface))

	var hints *unsafe.Pointer
	if rc := C.snd_device_name_hint(-1, iface, &hints); rc < 0 {
		return nil, alsaError("snd_device_name_hint", rc)
	}
	defer C.snd_device_name_free_hint(hints)

	keyName := C.CString("NAME")
	defer C.free(unsafe.Pointer(keyName))
	keyDesc := C.CString("DESC")
	defer C.free(unsafe.Pointer(keyDesc))
	keyIOID := C.CString("IOID")
	defer C.free(unsafe.Pointer(keyIOID))

	getHint := func(h unsafe.Pointer, key *C.char) string {
		v := C.snd_device_name_get_hint(h, key)
		if v == nil {
			return ""
		}
		defer C.free(unsafe.Pointer(v))
		return C.GoString(v)
	}

	var res []Hint
	for p := hints; *p != nil; p = (*unsafe.Pointer)(unsafe.Add(unsafe.Pointer(p), unsafe.Sizeof(*p))) {
		res = append(res, Hint{
			Name: getHint(*p, keyName),
			Desc: getHint(*p, keyDesc),
			IOID: getHint(*p, keyIOID),
		})
	}
	return res, nil
}

func (a *ALSA) Open(device string) (PCM, error) {
	cname := C.CString(device)
	defer C.free(unsafe.Pointer(cname))

	var handle *C.snd_pcm_t
	rc := C.snd_pcm_open(&handle, cname, C.SND_PCM_STREAM_PLAYBACK, C.SND_PCM_NONBLOCK)
	if rc < 0 {
		return nil, alsaError("snd_pcm_open "+device, rc)
	}
	return &alsaPCM{handle: handle, name: device, log: a.log}, nil
}

type alsaPCM struct {
	mu     sync.Mutex
	handle *C.snd_pcm_t
	name   string
	log    slog.Logger
}

func (p *alsaPCM) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return p.name
	}
	return C.GoString(C.snd_pcm_name(p.handle))
}

func (p *alsaPCM) SetParams(params Params) error {
	var format C.snd_pcm_format_t
	switch params.Format {
	case FormatU8:
		format = C.SND_PCM_FORMAT_U8
	case FormatS16LE:
		format = C.SND_PCM_FORMAT_S16_LE
	case FormatS24_3LE:
		format = C.SND_PCM_FORMAT_S24_3LE
	case FormatS32LE:
		format = C.SND_PCM_FORMAT_S32_LE
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, params.Format)
	}
	if params.Access != AccessRWInterleaved {
		return fmt.Errorf("%w: access mode %d", ErrUnsupportedFormat, params.Access)
	}
	var resample C.int
	if params.SoftResample {
		resample = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return ErrClosed
	}
	rc := C.snd_pcm_set_params(p.handle, format, C.SND_PCM_ACCESS_RW_INTERLEAVED,
		C.uint(params.Channels), C.uint(params.Rate), resample,
		C.uint(params.Latency.Microseconds()))
	if rc < 0 {
		return alsaError("snd_pcm_set_params", rc)
	}
	return nil
}

func (p *alsaPCM) Writei(buf []byte, frames int) (int, error) {
	if frames == 0 || len(buf) == 0 {
		return 0, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return 0, ErrClosed
	}
	n := C.snd_pcm_writei(p.handle, unsafe.Pointer(&buf[0]), C.snd_pcm_uframes_t(frames))
	if n < 0 {
		return 0, alsaError("snd_pcm_writei", C.int(n))
	}
	return int(n), nil
}

func (p *alsaPCM) AvailUpdate() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return 0, ErrClosed
	}
	n := C.snd_pcm_avail_update(p.handle)
	if n < 0 {
		return 0, alsaError("snd_pcm_avail_update", C.int(n))
	}
	return int(n), nil
}

func (p *alsaPCM) Delay() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return 0, ErrClosed
	}
	var delay C.snd_pcm_sframes_t
	if rc := C.snd_pcm_delay(p.handle, &delay); rc < 0 {
		return 0, alsaError("snd_pcm_delay", rc)
	}
	return int(delay), nil
}

func (p *alsaPCM) Recover(err error, silent bool) error {
	var s C.int
	if silent {
		s = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return ErrClosed
	}
	if rc := C.snd_pcm_recover(p.handle, errorCode(err), s); rc < 0 {
		return alsaError("snd_pcm_recover", rc)
	}
	return nil
}

func (p *alsaPCM) Drop() error {
	return p.call("snd_pcm_drop", func(h *C.snd_pcm_t) C.int { return C.snd_pcm_drop(h) })
}

func (p *alsaPCM) Prepare() error {
	return p.call("snd_pcm_prepare", func(h *C.snd_pcm_t) C.int { return C.snd_pcm_prepare(h) })
}

func (p *alsaPCM) call(op string, f func(*C.snd_pcm_t) C.int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return ErrClosed
	}
	if rc := f(p.handle); rc < 0 {
		return alsaError(op, rc)
	}
	return nil
}

func (p *alsaPCM) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return ErrClosed
	}
	rc := C.snd_pcm_close(p.handle)
	p.handle = nil
	if rc < 0 {
		return alsaError("snd_pcm_close", rc)
	}
	return nil
}
