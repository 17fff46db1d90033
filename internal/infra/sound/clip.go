// Package sound provides concrete audio resources for the elevator clips:
// PCM clips played through oto, a silent stand-in, and the loaders that
// build them.
package sound

import (
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	// bytesPerSample is fixed: every clip is signed 16-bit little endian PCM.
	bytesPerSample = 2

	// MaxClipBytes caps the PCM data of one clip (about six minutes of
	// 44.1kHz stereo).
	MaxClipBytes = 64 << 20
)

// Errors
var (
	ErrClipNotFound   = errors.New("clip not found")
	ErrUnsupportedWAV = errors.New("unsupported wav data")
	ErrFormatMismatch = errors.New("clip format does not match output")
	ErrClipTooLarge   = errors.New("clip exceeds size limit")
)

// Format describes an s16le PCM layout.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond returns the byte rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * bytesPerSample
}

// DurationOf converts a byte count into playback time.
func (f Format) DurationOf(n int64) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// Clip is a decoded PCM clip held in memory.
type Clip struct {
	ID     string
	Format Format
	Data   []byte
}

// Duration returns the clip length.
func (c *Clip) Duration() time.Duration {
	return c.Format.DurationOf(int64(len(c.Data)))
}

// DecodeWAV reads a RIFF/WAVE stream holding 16-bit PCM.
func DecodeWAV(id string, r io.Reader) (*Clip, error) {
	var header struct {
		RIFF [4]byte
		Size uint32
		WAVE [4]byte
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, errors.Wrap(err, "failed to read wav header")
	}
	if string(header.RIFF[:]) != "RIFF" || string(header.WAVE[:]) != "WAVE" {
		return nil, errors.Wrap(ErrUnsupportedWAV, "not a RIFF/WAVE stream")
	}

	clip := &Clip{ID: id}
	var haveFormat bool

	for {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.Wrap(ErrUnsupportedWAV, "no data chunk")
			}
			return nil, errors.Wrap(err, "failed to read wav chunk")
		}

		pad := int64(chunk.Size % 2)

		switch string(chunk.ID[:]) {
		case "fmt ":
			var fmtChunk struct {
				AudioFormat   uint16
				Channels      uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if int64(chunk.Size) < int64(binary.Size(fmtChunk)) {
				return nil, errors.Wrapf(ErrUnsupportedWAV, "fmt chunk is %d bytes", chunk.Size)
			}
			if err := binary.Read(r, binary.LittleEndian, &fmtChunk); err != nil {
				return nil, errors.Wrap(err, "failed to read fmt chunk")
			}
			if err := skip(r, int64(chunk.Size)-int64(binary.Size(fmtChunk))+pad); err != nil {
				return nil, errors.Wrap(err, "failed to read fmt chunk")
			}
			if fmtChunk.AudioFormat != 1 || fmtChunk.BitsPerSample != 16 {
				return nil, errors.Wrapf(ErrUnsupportedWAV, "format=%d bits=%d, want 16-bit PCM",
					fmtChunk.AudioFormat, fmtChunk.BitsPerSample)
			}
			clip.Format = Format{SampleRate: int(fmtChunk.SampleRate), Channels: int(fmtChunk.Channels)}
			haveFormat = true

		case "data":
			if !haveFormat {
				return nil, errors.Wrap(ErrUnsupportedWAV, "data chunk before fmt chunk")
			}
			if chunk.Size > MaxClipBytes {
				return nil, errors.Wrapf(ErrClipTooLarge, "data chunk claims %d bytes", chunk.Size)
			}
			data, err := io.ReadAll(io.LimitReader(r, int64(chunk.Size)))
			if err != nil {
				return nil, errors.Wrap(err, "failed to read data chunk")
			}
			if len(data) < int(chunk.Size) {
				return nil, errors.Wrapf(io.ErrUnexpectedEOF, "data chunk has %d of %d bytes", len(data), chunk.Size)
			}
			clip.Data = data
			return clip, nil

		default:
			if err := skip(r, int64(chunk.Size)+pad); err != nil {
				return nil, errors.Wrapf(err, "failed to skip %q chunk", chunk.ID[:])
			}
		}
	}
}

// skip discards n bytes of r.
func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

// Tone synthesises a soft sine clip with short fades, used as a placeholder
// when an asset is missing.
func Tone(id string, format Format, frequency float64, length time.Duration) *Clip {
	frames := int(int64(format.SampleRate) * int64(length) / int64(time.Second))
	fade := format.SampleRate / 50
	data := make([]byte, frames*format.Channels*bytesPerSample)

	const amplitude = 0.2 * math.MaxInt16
	for i := 0; i < frames; i++ {
		gain := 1.0
		if i < fade {
			gain = float64(i) / float64(fade)
		} else if frames-i < fade {
			gain = float64(frames-i) / float64(fade)
		}

		v := int16(amplitude * gain * math.Sin(2*math.Pi*frequency*float64(i)/float64(format.SampleRate)))
		for ch := 0; ch < format.Channels; ch++ {
			offset := (i*format.Channels + ch) * bytesPerSample
			binary.LittleEndian.PutUint16(data[offset:], uint16(v))
		}
	}

	return &Clip{ID: id, Format: format, Data: data}
}
