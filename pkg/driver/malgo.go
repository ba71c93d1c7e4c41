//go:build cgo

package driver

import (
	"github.com/arzzra/voice_engine/pkg/audio"
	"github.com/arzzra/voice_engine/pkg/driver/malgo"
)

const hardwareName = malgo.Name

func init() {
	constructors[malgo.Name] = func(opts Options) (audio.Driver, error) {
		return malgo.New(malgo.Config{Logger: opts.Logger})
	}
}
