// ABOUTME: Reusable packet buffer between the data source and the device
// ABOUTME: Tracks filled and consumed byte counts within a fixed capacity
package pcmout

import "fmt"

// packet holds one fetch from the data source. Bytes [used, size) are still
// to be written to the device.
type packet struct {
	buffer []byte
	size   int
	used   int
}

func newPacket(capacity int) *packet {
	return &packet{buffer: make([]byte, capacity)}
}

func (p *packet) capacity() int {
	return len(p.buffer)
}

// exhausted is true once every fetched byte has been written.
func (p *packet) exhausted() bool {
	return p.used >= p.size
}

// framesLeft returns the whole frames of frameSize bytes left to write.
func (p *packet) framesLeft(frameSize int) int {
	return (p.size - p.used) / frameSize
}

// pending returns the bytes still to be written.
func (p *packet) pending() []byte {
	return p.buffer[p.used:p.size]
}

// validate checks used <= size <= capacity and that size is a whole number
// of frames.
func (p *packet) validate(frameSize int) error {
	if p.used < 0 || p.used > p.size || p.size > p.capacity() {
		return fmt.Errorf("packet out of bounds: used=%d size=%d capacity=%d",
			p.used, p.size, p.capacity())
	}
	if frameSize > 0 && p.size%frameSize != 0 {
		return fmt.Errorf("packet size %d not a multiple of frame size %d",
			p.size, frameSize)
	}
	return nil
}
