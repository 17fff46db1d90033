package sound

import (
	"time"

	"github.com/osa030/nightlift/internal/app/audio"
)

// Output turns decoded clips into playable resources.
type Output interface {
	NewResource(clip *Clip) (audio.Resource, error)
	Format() Format
}

// OutputFactory opens an audio output. The process may hold only one.
type OutputFactory func(format Format, bufferSize time.Duration) (Output, error)
