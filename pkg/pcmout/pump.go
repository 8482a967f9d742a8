// ABOUTME: Packet pump tasks run on the stream's task loop
// ABOUTME: Fetches audio from the source, fixes layout and volume, and feeds the device
package pcmout

import (
	"errors"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/pcmout-go/pkg/audio/layout"
	"github.com/Resonate-Protocol/pcmout-go/pkg/audio/output"
)

const (
	// minLatency is the smallest device buffer requested.
	minLatency = 40 * time.Millisecond

	// sleepErrorMs is subtracted from write delays to absorb timer lateness.
	sleepErrorMs = 20

	// noDataSleepMs is the minimum delay after the source returned nothing.
	noDataSleepMs = 10
)

// framesToDuration converts a frame count at rate to microsecond precision.
func framesToDuration(frames, rate int) time.Duration {
	return time.Duration(int64(frames)*1_000_000/int64(rate)) * time.Microsecond
}

// framesToMillis converts a frame count at rate to whole milliseconds.
func framesToMillis(frames, rate int) int {
	return int(int64(frames) * 1000 / int64(rate))
}

// checkPacket panics in debug builds when the packet invariant is broken.
func (s *Stream) checkPacket(phase string) {
	if !addDebugChecks || s.packet == nil {
		return
	}
	if err := s.packet.validate(s.bytesPerOutputFrame); err != nil {
		panic(fmt.Sprintf("%s: %v", phase, err))
	}
}

// openTask resolves and opens the device for packets of packetSize bytes.
func (s *Stream) openTask(packetSize int) {
	s.pump.check()
	defer s.publishInfo()

	s.framesPerPacket = packetSize / s.bytesPerFrame
	s.packetDuration = framesToDuration(s.framesPerPacket, s.format.SampleRate)
	s.latency = max(minLatency, 2*s.packetDuration)

	if s.requestedDevice == AutoSelectDevice {
		s.handle = s.autoSelectDevice(s.latency)
		if s.handle != nil {
			s.log.Infof("Auto-selected device: %s", s.deviceName)
		}
	} else {
		s.deviceName = s.requestedDevice
		s.handle = s.openDevice(s.deviceName, s.format.Channels, s.latency)
	}

	if s.handle == nil {
		s.stopStream = true
		return
	}

	s.packet = newPacket(packetSize)
	if s.shouldDownmix {
		s.bytesPerOutputFrame = 2 * s.bytesPerSample
	}
	s.log.Debugf("Opened %s: %d frames per packet, packet %v, latency %v, downmix %v",
		s.deviceName, s.framesPerPacket, s.packetDuration, s.latency, s.shouldDownmix)
}

// startTask flushes the device, pre-rolls it and starts the write chain.
func (s *Stream) startTask() {
	s.pump.check()

	if s.stopStream {
		return
	}

	// Restarting from a pause must not replay stale audio.
	if err := s.handle.Drop(); err != nil && !errors.Is(err, output.ErrAgain) {
		s.log.Errorf("Failure clearing playback device (%s): %v", s.handle.Name(), err)
		s.hardStop()
		return
	}
	if err := s.handle.Prepare(); err != nil && !errors.Is(err, output.ErrAgain) {
		s.log.Errorf("Failure preparing stream (%s): %v", s.handle.Name(), err)
		s.hardStop()
		return
	}

	preroll := 0
	if s.packetDuration > 0 {
		preroll = int(s.latency / s.packetDuration)
	}
	for i := 0; i < preroll; i++ {
		s.bufferPacket()
		s.writePacket()
	}

	s.scheduleNextWrite()
}

// closeTask releases the device. It may run more than once.
func (s *Stream) closeTask() {
	s.pump.check()

	if s.handle != nil {
		s.closeDevice(s.handle)
	}
	s.handle = nil
	s.packet = nil
	s.stopStream = true
	s.publishInfo()
}

// writeTask runs one buffer and write pass and schedules the next one.
func (s *Stream) writeTask() {
	s.pump.check()
	s.writeScheduled = false

	if s.stopStream {
		return
	}

	s.bufferPacket()
	s.writePacket()
	s.scheduleNextWrite()
}

// hardStop stops all further device I/O for the stream.
func (s *Stream) hardStop() {
	s.stopStream = true
	s.publishInfo()
}

// bufferPacket refills the packet from the source once everything fetched
// before has been written.
func (s *Stream) bufferPacket() {
	p := s.packet
	if s.stopStream {
		if p != nil {
			p.used, p.size = 0, 0
		}
		return
	}
	if !p.exhausted() {
		return
	}

	var delay int
	frames, err := s.handle.Delay()
	if err != nil {
		if rerr := s.handle.Recover(err, true); rerr != nil {
			s.log.Errorf("Failed querying delay: %v", rerr)
		} else {
			s.recovered()
		}
	} else {
		delay = frames * s.bytesPerOutputFrame
	}

	p.used = 0
	p.size = s.shared.OnMoreData(s, p.buffer, delay)
	if p.size > p.capacity() {
		s.log.Errorf("Data source overran buffer: %d > %d", p.size, p.capacity())
		p.size = p.capacity()
	} else if p.size < 0 {
		p.size = 0
	}
	// Trailing bytes that do not make a whole frame would never be written.
	p.size = p.size / s.bytesPerFrame * s.bytesPerFrame
	if p.size == 0 {
		s.stats.emptyFetches.Add(1)
		s.metrics.emptyFetch()
	}

	volume := s.shared.Volume()
	if s.shouldDownmix {
		if _, err := layout.FoldToStereo(p.buffer[:p.size], s.format.Channels,
			s.bytesPerSample, volume); err != nil {
			s.log.Errorf("Folding failed: %v", err)
		} else {
			p.size = p.size / s.bytesPerFrame * s.bytesPerOutputFrame
		}
	} else {
		layout.Swizzle(p.buffer[:p.size], s.format.Channels, s.bytesPerSample)
		layout.AdjustVolume(p.buffer[:p.size], s.bytesPerSample, volume)
	}

	s.checkPacket("buffer")
}

// writePacket writes as many pending frames as the device accepts. A
// device error is recovered once; if that fails the source is told and
// the stream hard stops.
func (s *Stream) writePacket() {
	p := s.packet
	if s.stopStream {
		if p != nil {
			p.used = p.size
		}
		return
	}
	if p.exhausted() {
		return
	}

	frames := p.framesLeft(s.bytesPerOutputFrame)
	if frames <= 0 {
		return
	}

	written, err := s.handle.Writei(p.pending(), frames)
	if err != nil {
		// Recovery leaves the write at zero frames; the next pass
		// retries.
		written = 0
		if rerr := s.handle.Recover(err, true); rerr != nil {
			err = rerr
		} else {
			s.recovered()
			err = nil
		}
	}

	if err != nil {
		if !errors.Is(err, output.ErrAgain) {
			s.log.Errorf("Failed to write to pcm device: %v", err)
			s.stats.fatalErrors.Add(1)
			s.metrics.fatal()
			s.shared.OnError(s, err)
			s.hardStop()
		}
		return
	}

	p.used += written * s.bytesPerOutputFrame
	s.stats.framesWritten.Add(uint64(written))
	s.stats.writes.Add(1)
	s.metrics.addFrames(written)

	s.checkPacket("write")
}

// scheduleNextWrite posts the next writeTask for when the device should
// have room for the rest of the packet, or a whole new one.
func (s *Stream) scheduleNextWrite() {
	if s.stopStream {
		return
	}

	p := s.packet
	wanted := p.framesLeft(s.bytesPerOutputFrame)
	if wanted <= 0 {
		wanted = s.framesPerPacket
	}
	ms := framesToMillis(wanted-s.availableFrames(), s.format.SampleRate)

	if ms > sleepErrorMs {
		ms -= sleepErrorMs
	}
	// Avoid spinning on an exhausted source.
	if p.size == 0 {
		ms = max(ms, noDataSleepMs)
	}

	if s.shared.State() != StatePlaying {
		return
	}
	// A write chain from before a stop may still be queued.
	if s.writeScheduled {
		return
	}
	s.writeScheduled = true

	if ms <= 0 {
		s.metrics.scheduled(0)
		s.loop.Post(s.writeTask)
		return
	}
	delay := time.Duration(ms) * time.Millisecond
	s.metrics.scheduled(delay)
	s.loop.PostDelayed(s.writeTask, delay)
}

// availableFrames returns the frames the device can accept now, or 0 when
// that cannot be determined.
func (s *Stream) availableFrames() int {
	if s.stopStream {
		return 0
	}

	avail, err := s.handle.AvailUpdate()
	if err != nil {
		if rerr := s.handle.Recover(err, true); rerr != nil {
			s.log.Errorf("Failed querying available frames: %v", rerr)
		} else {
			s.recovered()
		}
		return 0
	}
	return avail
}

func (s *Stream) recovered() {
	s.stats.recoveries.Add(1)
	s.metrics.recovered()
}
