//go:build headless

package otodrv

import (
	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"

	"go-loopcore/audio"
)

// Driver is unavailable in headless builds; New always fails.
type Driver struct{ audio.Headless }

func New(rate, block int) (*Driver, error) {
	return nil, fault.New("built without audio output", fmsg.WithDesc("open audio output",
		"This binary was built with the headless tag; use the headless audio setting"))
}
