// ABOUTME: Real-time PCM playback streams
// ABOUTME: Package docs for streams, sources and the manager
// Package pcmout plays PCM audio on output devices.
//
// A Stream is driven from a control goroutine (the one that created it)
// while a pump, a task loop shared by all streams of a Manager, pulls
// audio from the stream's Source and writes it to the device. The pump
// pre-rolls the device on Start, sleeps until the device has room for the
// next packet, recovers device errors once inline and reports anything
// worse to the Source before stopping all device I/O for the stream.
//
// 5.0 and 5.1 audio is reordered to the device's channel layout. When no
// surround device can be opened for such a stream, the default device is
// used and the audio is folded down to stereo.
//
// Example:
//
//	m := pcmout.NewManager(pcmout.ManagerConfig{Driver: drv})
//	defer m.Close()
//
//	s, err := m.MakeStream(format, pcmout.AutoSelectDevice)
//	if err != nil {
//		return err
//	}
//	if err := s.Open(4096); err != nil {
//		return err
//	}
//	s.Start(pcmout.NewReaderSource(reader, pcmout.ReaderSourceConfig{}))
//
// Build with the pcmdebug tag to check goroutine affinity and packet
// bookkeeping at run time.
package pcmout
