package sound

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/nightlift/internal/app/audio"
	"github.com/osa030/nightlift/internal/domain/phase"
)

// Loader builds the clip resource for a phase window.
// Different implementations can source clips in various ways
// (e.g., asset files, synthesised tones, silence).
type Loader interface {
	// Load returns a paused resource for the window's asset.
	Load(ctx context.Context, w phase.Window) (audio.Resource, error)

	// Name returns the loader name (used in config).
	Name() string
}

// fallbackLength is used when a window carries no nominal duration.
const fallbackLength = time.Second

func decodeSettings(settings map[string]any, out any) error {
	if err := mapstructure.Decode(settings, out); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}

// FileLoaderConfig holds the settings of a file backend.
type FileLoaderConfig struct {
	Dir       string `mapstructure:"dir" validate:"required"`
	Extension string `mapstructure:"extension" default:".wav" validate:"oneof=.wav .pcm"`
}

// FileLoader reads clips from an asset directory. .wav files are decoded;
// .pcm files are taken as raw s16le in the output format.
type FileLoader struct {
	output Output
	config *FileLoaderConfig
}

// NewFileLoader creates a new FileLoader.
func NewFileLoader(output Output, settings map[string]any) (*FileLoader, error) {
	if output == nil {
		return nil, errors.New("audio output is required")
	}

	var config FileLoaderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	return &FileLoader{output: output, config: &config}, nil
}

// Name returns the loader name.
func (l *FileLoader) Name() string {
	return "file"
}

// Path returns the file a window's asset is read from.
func (l *FileLoader) Path(w phase.Window) string {
	return filepath.Join(l.config.Dir, w.Asset+l.config.Extension)
}

// Load reads and decodes the asset file for the window.
func (l *FileLoader) Load(ctx context.Context, w phase.Window) (audio.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := l.Path(w)
	var clip *Clip

	if strings.EqualFold(l.config.Extension, ".pcm") {
		if info, err := os.Stat(path); err == nil && info.Size() > MaxClipBytes {
			return nil, errors.Wrapf(ErrClipTooLarge, "%s is %d bytes", path, info.Size())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, wrapOpenError(err, path)
		}
		clip = &Clip{ID: w.Asset, Format: l.output.Format(), Data: data}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, wrapOpenError(err, path)
		}
		defer f.Close()

		clip, err = DecodeWAV(w.Asset, f)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", path)
		}
	}

	return l.output.NewResource(clip)
}

func wrapOpenError(err error, path string) error {
	if errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(ErrClipNotFound, "%s", path)
	}
	return errors.Wrapf(err, "failed to read %s", path)
}

// ToneLoaderConfig holds the settings of a tone backend.
type ToneLoaderConfig struct {
	FrequencyHz float64 `mapstructure:"frequency_hz" default:"440" validate:"gt=20,lt=20000"`
}

// ToneLoader synthesises a sine clip as long as the window's nominal clip.
type ToneLoader struct {
	output Output
	config *ToneLoaderConfig
}

// NewToneLoader creates a new ToneLoader.
func NewToneLoader(output Output, settings map[string]any) (*ToneLoader, error) {
	if output == nil {
		return nil, errors.New("audio output is required")
	}

	var config ToneLoaderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	return &ToneLoader{output: output, config: &config}, nil
}

// Name returns the loader name.
func (l *ToneLoader) Name() string {
	return "tone"
}

// Load synthesises the tone for the window.
func (l *ToneLoader) Load(ctx context.Context, w phase.Window) (audio.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.output.NewResource(Tone(w.Asset, l.output.Format(), l.config.FrequencyHz, clipLength(w)))
}

// SilentLoader produces silent clips that still keep time.
type SilentLoader struct{}

// NewSilentLoader creates a new SilentLoader.
func NewSilentLoader() *SilentLoader {
	return &SilentLoader{}
}

// Name returns the loader name.
func (l *SilentLoader) Name() string {
	return "silent"
}

// Load never fails.
func (l *SilentLoader) Load(ctx context.Context, w phase.Window) (audio.Resource, error) {
	return NewSilent(w.Asset, clipLength(w)), nil
}

func clipLength(w phase.Window) time.Duration {
	if w.Nominal > 0 {
		return w.Nominal
	}
	return fallbackLength
}
