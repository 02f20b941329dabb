// Package midisync keeps the loop in time with other MIDI gear, either by
// generating a MIDI clock (master) or following one (slave).
package midisync

import (
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

// Mode selects the sync role.
type Mode uint8

const (
	Disabled Mode = iota
	Master
	Slave
)

func (m Mode) String() string {
	switch m {
	case Disabled:
		return "disabled"
	case Master:
		return "clock-master"
	case Slave:
		return "clock-slave"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode reads the config selector. Unknown values are rejected so a bad
// config never reaches the render path.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "disabled", "none":
		return Disabled, nil
	case "clock-master", "master":
		return Master, nil
	case "clock-slave", "slave":
		return Slave, nil
	}
	return Disabled, fault.New("unknown sync mode",
		fmsg.WithDesc(fmt.Sprintf("invalid sync mode %q", s), "Use disabled, clock-master or clock-slave"),
		ftag.With(ftag.InvalidArgument))
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
