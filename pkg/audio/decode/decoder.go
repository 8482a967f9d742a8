// ABOUTME: Streaming audio file readers
// ABOUTME: Common Reader interface and extension-based Open for every supported codec
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Resonate-Protocol/pcmout-go/pkg/audio"
)

// ErrUnsupportedFormat is returned by Open for files no reader handles.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Reader streams decoded audio as interleaved int32 samples in the 24-bit
// range.
type Reader interface {
	// Format describes the decoded stream. BitDepth is the source's
	// native sample width.
	Format() audio.Format

	// Read fills samples with whole frames and returns the number of
	// samples stored. It returns io.EOF once the stream is exhausted.
	Read(samples []int32) (int, error)

	// Close releases the reader and its file.
	Close() error
}

// Rewinder is implemented by readers that can restart from the beginning.
type Rewinder interface {
	Rewind() error
}

// opener creates a Reader from an open file. The reader owns f.
type opener func(f *os.File) (Reader, error)

var openers = map[string]opener{
	".mp3":  openMP3,
	".flac": openFLAC,
	".wav":  openWAV,
	".ogg":  openVorbis,
	".oga":  openVorbis,
}

// Extensions returns the file extensions Open understands.
func Extensions() []string {
	exts := make([]string, 0, len(openers))
	for ext := range openers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Open picks a reader for path by its extension.
func Open(path string) (Reader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	open, ok := openers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat,
			ext, strings.Join(Extensions(), ", "))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	r, err := open(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// scaleTo24 moves a sample of the given bit depth into the 24-bit range.
func scaleTo24(sample int32, bitDepth int) int32 {
	switch {
	case bitDepth == 24:
		return sample
	case bitDepth < 24:
		return sample << (24 - bitDepth)
	default:
		return sample >> (bitDepth - 24)
	}
}

// rewindFile seeks f back to its start.
func rewindFile(f io.Seeker) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	return nil
}
