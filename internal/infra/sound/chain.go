package sound

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/nightlift/internal/app/audio"
	"github.com/osa030/nightlift/internal/domain/phase"
)

// LoaderChain tries multiple loaders in order until one yields the clip.
type LoaderChain struct {
	loaders []Loader
}

// NewLoaderChain creates a new loader chain.
func NewLoaderChain(loaders ...Loader) *LoaderChain {
	return &LoaderChain{
		loaders: loaders,
	}
}

// Loaders returns the loaders in the order they are tried.
func (c *LoaderChain) Loaders() []Loader {
	return append([]Loader(nil), c.loaders...)
}

// Load returns the window's clip from the first loader that succeeds,
// along with that loader's name.
func (c *LoaderChain) Load(ctx context.Context, w phase.Window) (audio.Resource, string, error) {
	var errs error

	for i, l := range c.loaders {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		zlog.Debug().Msgf("trying loader: index=%d total=%d loader=%s asset=%s",
			i+1, len(c.loaders), l.Name(), w.Asset)

		res, err := l.Load(ctx, w)
		if err != nil {
			zlog.Warn().Msgf("loader failed, trying next: loader=%s asset=%s error=%v", l.Name(), w.Asset, err)
			errs = errors.CombineErrors(errs, err)
			continue
		}

		zlog.Info().Msgf("loaded clip: phase=%s asset=%s loader=%s", w.Phase, w.Asset, l.Name())
		return res, l.Name(), nil
	}

	if errs == nil {
		errs = errors.New("no loaders configured")
	}
	return nil, "", errors.Wrapf(errs, "all loaders failed for %s", w.Asset)
}

// Name returns the chain name.
func (c *LoaderChain) Name() string {
	return "loader_chain"
}

// LoadBank loads one clip per window of the table and arms a bank at the
// given master volume.
func LoadBank(ctx context.Context, chain *LoaderChain, table *phase.Table, volume float64) (*audio.Bank, error) {
	resources := make(map[phase.Phase]audio.Resource)
	for _, w := range table.Windows() {
		res, _, err := chain.Load(ctx, w)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load %s clip", w.Phase)
		}
		resources[w.Phase] = res
	}
	return audio.NewBank(resources, volume)
}
