//go:build !nocgo
// +build !nocgo

package sound

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ebitengine/oto/v3"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/nightlift/internal/app/audio"
)

const otoReadyTimeout = 5 * time.Second

// OtoOutput plays clips on the system audio device.
type OtoOutput struct {
	context *oto.Context
	format  Format
}

// NewOtoOutput opens the audio device. oto allows one context per process.
func NewOtoOutput(format Format, bufferSize time.Duration) (Output, error) {
	options := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   bufferSize,
	}

	zlog.Debug().Msgf("sound: opening audio device: sample_rate=%d channels=%d buffer=%v",
		format.SampleRate, format.Channels, bufferSize)

	ctx, ready, err := oto.NewContext(options)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create audio context")
	}

	select {
	case <-ready:
	case <-time.After(otoReadyTimeout):
		return nil, errors.Newf("audio context not ready after %v", otoReadyTimeout)
	}

	return &OtoOutput{context: ctx, format: format}, nil
}

// Format returns the device format.
func (o *OtoOutput) Format() Format {
	return o.format
}

// NewResource creates a paused player over the clip.
func (o *OtoOutput) NewResource(clip *Clip) (audio.Resource, error) {
	if clip.Format != o.format {
		return nil, errors.Wrapf(ErrFormatMismatch, "clip %s is %d Hz/%d ch, output is %d Hz/%d ch",
			clip.ID, clip.Format.SampleRate, clip.Format.Channels, o.format.SampleRate, o.format.Channels)
	}

	reader := bytes.NewReader(clip.Data)
	return &otoResource{
		clip:   clip,
		reader: reader,
		player: o.context.NewPlayer(reader),
	}, nil
}

// otoResource adapts an oto.Player to audio.Resource.
type otoResource struct {
	mu sync.Mutex

	clip   *Clip
	reader *bytes.Reader
	player *oto.Player
}

func (r *otoResource) ID() string {
	return r.clip.ID
}

func (r *otoResource) Play() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.player.Err(); err != nil {
		return errors.Wrapf(err, "player for %s failed", r.clip.ID)
	}
	r.player.Play()
	return nil
}

func (r *otoResource) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.player.Pause()
}

// Rewind seeks through the player so its internal buffer is discarded too.
func (r *otoResource) Rewind() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.player.Seek(0, io.SeekStart)
	return err
}

// Position is what the reader has handed out minus what is still buffered.
func (r *otoResource) Position() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	consumed := r.reader.Size() - int64(r.reader.Len()) - int64(r.player.BufferedSize())
	return r.clip.Format.DurationOf(consumed)
}

func (r *otoResource) SetVolume(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.player.SetVolume(v)
}

func (r *otoResource) Volume() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.player.Volume()
}

// Paused reports true once the clip has ended as well as after Pause.
func (r *otoResource) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.player.IsPlaying()
}
