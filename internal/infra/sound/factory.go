package sound

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/nightlift/internal/infra/config"
)

// NewLoaderChainFromConfig creates a loader chain from configuration.
// The output is opened only if a backend needs it. When it cannot be opened
// those backends are skipped and a silent loader closes the chain.
func NewLoaderChainFromConfig(cfg config.AudioConfig, open OutputFactory) (*LoaderChain, error) {
	if len(cfg.Backends) == 0 {
		return nil, errors.New("no audio backends configured")
	}

	var (
		output    Output
		outputErr error
		opened    bool
		loaders   []Loader
		hasSilent bool
	)

	getOutput := func() (Output, error) {
		if !opened {
			opened = true
			if open == nil {
				outputErr = errors.New("no audio output available")
			} else {
				format := Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels}
				output, outputErr = open(format, cfg.BufferSize())
			}
			if outputErr != nil {
				zlog.Warn().Msgf("audio output unavailable, clips will be silent: error=%v", outputErr)
			}
		}
		return output, outputErr
	}

	for i, bcfg := range cfg.Backends {
		var loader Loader
		var err error
		zlog.Debug().Msgf("creating audio backend: index=%d type=%s settings=%+v", i+1, bcfg.Type, bcfg.Settings)
		switch bcfg.Type {
		case "file", "tone":
			out, oerr := getOutput()
			if oerr != nil {
				continue
			}
			if bcfg.Type == "file" {
				loader, err = NewFileLoader(out, bcfg.Settings)
			} else {
				loader, err = NewToneLoader(out, bcfg.Settings)
			}

		case "silent":
			loader = NewSilentLoader()
			hasSilent = true

		default:
			return nil, errors.Newf("unsupported backend type: %s (backend index %d)", bcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create backend (index %d, type %s)", i, bcfg.Type)
		}

		loaders = append(loaders, loader)
		zlog.Info().Msgf("registered audio backend: index=%d type=%s", i+1, bcfg.Type)
	}

	if outputErr != nil && !hasSilent {
		loaders = append(loaders, NewSilentLoader())
		zlog.Info().Msg("registered audio backend: type=silent (fallback)")
	}

	return NewLoaderChain(loaders...), nil
}
