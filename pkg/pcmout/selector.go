// ABOUTME: Device selection for streams without an explicit device
// ABOUTME: Matches channel counts to surround devices and falls back to a downmixed default
package pcmout

import (
	"strings"
	"time"

	"github.com/decred/slog"

	"github.com/Resonate-Protocol/pcmout-go/pkg/audio/output"
)

// guessSpecificDeviceName returns the device name prefix that usually maps
// channels to the right speakers, or "" when there is none.
func guessSpecificDeviceName(channels int) string {
	switch channels {
	case 8:
		return "surround71"
	case 7:
		return "surround70"
	case 6:
		return "surround51"
	case 5:
		return "surround50"
	case 4:
		return "surround40"
	}
	return ""
}

// findDeviceForChannels returns the first output-capable hinted device
// whose name starts with the guess for channels.
func findDeviceForChannels(drv output.Driver, channels int, log slog.Logger) string {
	wanted := guessSpecificDeviceName(channels)
	if wanted == "" {
		return ""
	}

	hints, err := drv.NameHints()
	if err != nil {
		log.Errorf("Unable to get hints for devices: %v", err)
		return ""
	}
	for _, hint := range hints {
		if !hint.IsOutput() {
			continue
		}
		if strings.HasPrefix(hint.Name, wanted) {
			return hint.Name
		}
	}
	return ""
}

// openDevice opens name and configures it. On any failure the handle is
// closed and nil returned.
func (s *Stream) openDevice(name string, channels int, latency time.Duration) output.PCM {
	handle, err := s.driver.Open(name)
	if err != nil {
		s.log.Errorf("Cannot open audio device (%s): %v", name, err)
		return nil
	}

	err = handle.SetParams(output.Params{
		Format:       output.FormatForBits(s.format.BitDepth),
		Access:       output.AccessRWInterleaved,
		Channels:     channels,
		Rate:         s.format.SampleRate,
		SoftResample: true,
		Latency:      latency,
	})
	if err != nil {
		s.log.Errorf("Unable to set PCM parameters for (%s): %v -- Format: %d bits "+
			"Channels: %d Latency: %v", name, err, s.format.BitDepth, channels, latency)
		s.closeDevice(handle)
		return nil
	}
	return handle
}

// closeDevice closes handle, logging failures. The handle is unusable
// either way.
func (s *Stream) closeDevice(handle output.PCM) bool {
	if err := handle.Close(); err != nil {
		s.log.Errorf("Cannot close audio device (%s): %v", handle.Name(), err)
		s.log.Warnf("Unable to close audio device. Leaking handle.")
		return false
	}
	return true
}

// autoSelectDevice tries, in order: the surround device for the channel
// count, its plug: variant, the default device and plug:default. Opening a
// default device for 5 or 6 channels switches the stream to downmixing into
// stereo. It sets deviceName to the device opened; when nothing opens the
// name is cleared and downmixing stays off.
func (s *Stream) autoSelectDevice(latency time.Duration) output.PCM {
	channels := s.format.Channels

	s.deviceName = findDeviceForChannels(s.driver, channels, s.log)
	if s.deviceName != "" {
		if handle := s.openDevice(s.deviceName, channels, latency); handle != nil {
			return handle
		}

		s.deviceName = output.PlugPrefix + s.deviceName
		if handle := s.openDevice(s.deviceName, channels, latency); handle != nil {
			return handle
		}
	}

	// Only stereo ordering is reliable on the default device.
	defaultChannels := channels
	if channels >= 5 && channels <= 6 {
		s.shouldDownmix = true
		defaultChannels = 2
	}

	s.deviceName = output.DefaultDevice
	if handle := s.openDevice(s.deviceName, defaultChannels, latency); handle != nil {
		return handle
	}

	s.deviceName = output.PlugPrefix + s.deviceName
	if handle := s.openDevice(s.deviceName, defaultChannels, latency); handle != nil {
		return handle
	}

	s.deviceName = ""
	s.shouldDownmix = false
	return nil
}
