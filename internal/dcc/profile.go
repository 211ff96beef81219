package dcc

import (
	"fmt"
	"strings"
)

// Profile names accepted by ProfileByName.
const (
	ProfileFull      = "full"
	ProfileSpeedOnly = "speed_only"
)

// CommandDecodeProfile maps validated command bytes to decoded commands.
//
// DecodeSingle handles the one-byte instruction of a 3-byte short-address or
// 4-byte long-address telegram. DecodeDouble handles the two-byte instruction of a
// 4-byte short-address or 5-byte long-address telegram. Both return
// ErrUndefinedCommand when the bytes are not a valid instruction for that length.
type CommandDecodeProfile interface {
	Name() string
	DecodeSingle(addr Address, cmd byte) (Command, error)
	DecodeDouble(addr Address, cmd1, cmd2 byte) (Command, error)
}

// ProfileByName resolves a profile from its configuration name.
func ProfileByName(name string, legacy bool) (CommandDecodeProfile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProfileFull:
		return FullProfile{Legacy: legacy}, nil
	case ProfileSpeedOnly:
		return SpeedOnlyProfile{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
}

// FullProfile decodes speed, direction and all function groups.
//
// With Legacy set, the function gates reproduce captures annotated by older
// tooling bit for bit: F3, F7 and F11 require bits 0 and 1 together, F4, F8 and
// F12 are read from bit 2, F16 and F24 are never reported, and 128-step speed is
// read as cmd2&0x7E.
type FullProfile struct {
	Legacy bool
}

// Name implements CommandDecodeProfile.
func (p FullProfile) Name() string {
	if p.Legacy {
		return ProfileFull + "+legacy"
	}
	return ProfileFull
}

// DecodeSingle implements CommandDecodeProfile.
func (p FullProfile) DecodeSingle(addr Address, cmd byte) (Command, error) {
	switch {
	case cmd&0xC0 == 0x40:
		return speed28(addr, cmd), nil
	case cmd&0xE0 == 0x80:
		return FunctionGroup{Address: addr, Group: GroupF0F4, Functions: p.groupOne(cmd)}, nil
	case cmd&0xF0 == 0xB0:
		return FunctionGroup{Address: addr, Group: GroupF5F8, Functions: p.nibble(cmd) << 5}, nil
	case cmd&0xF0 == 0xA0:
		return FunctionGroup{Address: addr, Group: GroupF9F12, Functions: p.nibble(cmd) << 9}, nil
	default:
		return nil, fmt.Errorf("%w: instruction 0x%02X", ErrUndefinedCommand, cmd)
	}
}

// DecodeDouble implements CommandDecodeProfile.
func (p FullProfile) DecodeDouble(addr Address, cmd1, cmd2 byte) (Command, error) {
	switch {
	case is128Step(cmd1):
		if p.Legacy {
			return LocoSpeedDirection{
				Address:   addr,
				Mode:      Speed128,
				Speed:     int(cmd2 & 0x7E),
				Direction: Direction(cmd2 >> 7),
			}, nil
		}
		return speed128(addr, cmd2), nil
	case cmd1 == 0xDE:
		return FunctionGroup{Address: addr, Group: GroupF13F20, Functions: p.octet(cmd2) << 13}, nil
	case cmd1 == 0xDF:
		return FunctionGroup{Address: addr, Group: GroupF21F28, Functions: p.octet(cmd2) << 21}, nil
	default:
		return nil, fmt.Errorf("%w: instruction 0x%02X 0x%02X", ErrUndefinedCommand, cmd1, cmd2)
	}
}

// groupOne builds the F0-F4 mask: bit 4 of the instruction is FL (F0), bits 0-3
// are F1-F4.
func (p FullProfile) groupOne(cmd byte) uint32 {
	mask := p.nibble(cmd) << 1
	if cmd&0x10 != 0 {
		mask |= 1
	}
	return mask
}

// nibble returns the four function gates in the low nibble, relative to the
// first function of the group.
func (p FullProfile) nibble(cmd byte) uint32 {
	if !p.Legacy {
		return uint32(cmd & 0x0F)
	}
	var mask uint32
	if cmd&0x01 == 0x01 {
		mask |= 1 << 0
	}
	if cmd&0x02 == 0x02 {
		mask |= 1 << 1
	}
	if cmd&0x03 == 0x03 {
		mask |= 1 << 2
	}
	if cmd&0x04 == 0x04 {
		mask |= 1 << 3
	}
	return mask
}

// octet returns the eight function gates of a feature-expansion byte.
func (p FullProfile) octet(cmd byte) uint32 {
	if !p.Legacy {
		return uint32(cmd)
	}
	// bit 3 was compared against 0x04 and can never match
	return uint32(cmd &^ 0x08)
}

// SpeedOnlyProfile decodes speed and direction and nothing else. Any other
// instruction is reported as Unknown without rejecting the telegram.
type SpeedOnlyProfile struct{}

// Name implements CommandDecodeProfile.
func (SpeedOnlyProfile) Name() string { return ProfileSpeedOnly }

// DecodeSingle implements CommandDecodeProfile.
func (SpeedOnlyProfile) DecodeSingle(addr Address, cmd byte) (Command, error) {
	if cmd&0xC0 == 0x40 {
		return speed28(addr, cmd), nil
	}
	return Unknown{Address: addr}, nil
}

// DecodeDouble implements CommandDecodeProfile.
func (SpeedOnlyProfile) DecodeDouble(addr Address, cmd1, cmd2 byte) (Command, error) {
	if is128Step(cmd1) {
		return speed128(addr, cmd2), nil
	}
	return Unknown{Address: addr}, nil
}

func is128Step(cmd1 byte) bool {
	return cmd1&0xE0 == 0x20 && cmd1&0x1F == 0x1F
}

// speed28 decodes 01DSSSSS.
func speed28(addr Address, cmd byte) LocoSpeedDirection {
	return LocoSpeedDirection{
		Address:   addr,
		Mode:      Speed28,
		Speed:     int(cmd & 0x1F),
		Direction: Direction((cmd >> 5) & 1),
	}
}

// speed128 decodes the DSSSSSSS byte following 0x3F.
func speed128(addr Address, cmd2 byte) LocoSpeedDirection {
	cmd := LocoSpeedDirection{
		Address:   addr,
		Mode:      Speed128,
		Direction: Direction(cmd2 >> 7),
	}
	switch raw := int(cmd2 & 0x7F); raw {
	case 0:
	case 1:
		cmd.EmergencyStop = true
	default:
		cmd.Speed = raw - 1
	}
	return cmd
}
