//go:build nocgo
// +build nocgo

package sound

import (
	"time"

	"github.com/cockroachdb/errors"
)

// NewOtoOutput is unavailable in nocgo builds; loader chains fall back to
// silent clips.
func NewOtoOutput(format Format, bufferSize time.Duration) (Output, error) {
	return nil, errors.New("audio output not available in nocgo build")
}
