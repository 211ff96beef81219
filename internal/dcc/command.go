package dcc

import "strconv"

// AddressKind identifies the address space a telegram was sent to.
type AddressKind uint8

const (
	// AddressNone is used when no address could be extracted.
	AddressNone AddressKind = iota
	// AddressBroadcast is the short address 0.
	AddressBroadcast
	// AddressShort is a 7-bit locomotive address.
	AddressShort
	// AddressLong is a 14-bit locomotive address.
	AddressLong
	// AddressAccessory is an accessory or function decoder address.
	AddressAccessory
	// AddressAnalog is the command index of an analog output telegram.
	AddressAnalog
)

// String returns the lower-case name of the address space.
func (k AddressKind) String() string {
	switch k {
	case AddressBroadcast:
		return "broadcast"
	case AddressShort:
		return "short"
	case AddressLong:
		return "long"
	case AddressAccessory:
		return "accessory"
	case AddressAnalog:
		return "analog"
	default:
		return "none"
	}
}

// Address is a decoded telegram address.
type Address struct {
	Kind  AddressKind
	Value uint16
}

// String returns the decimal address value.
func (a Address) String() string {
	return strconv.FormatUint(uint64(a.Value), 10)
}

// shortAddress builds a short locomotive address, mapping 0 to broadcast.
func shortAddress(v byte) Address {
	if v == 0 {
		return Address{Kind: AddressBroadcast}
	}
	return Address{Kind: AddressShort, Value: uint16(v)}
}

// longAddress builds a 14-bit locomotive address from the two address bytes.
func longAddress(hi, lo byte) Address {
	return Address{Kind: AddressLong, Value: uint16(hi&0x3F)<<8 | uint16(lo)}
}

// CommandKind classifies a decoded telegram.
type CommandKind uint8

const (
	KindIdle CommandKind = iota
	KindLocoSpeed
	KindFunctionGroup
	KindAccessoryOrAnalog
	KindUnknown
	KindChecksumError
	KindOversize
)

// String returns the kind name used in annotations, topics and metric labels.
func (k CommandKind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindLocoSpeed:
		return "loco_speed"
	case KindFunctionGroup:
		return "function_group"
	case KindAccessoryOrAnalog:
		return "accessory_analog"
	case KindUnknown:
		return "unknown"
	case KindChecksumError:
		return "checksum_error"
	case KindOversize:
		return "oversize"
	default:
		return "invalid"
	}
}

// Command is a decoded telegram. The concrete types are Idle,
// LocoSpeedDirection, FunctionGroup, AccessoryOrAnalog, Unknown, ChecksumError
// and OversizeError.
type Command interface {
	Kind() CommandKind
}

// Idle is the [0xFF, 0x00] idle telegram.
type Idle struct{}

// Kind implements Command.
func (Idle) Kind() CommandKind { return KindIdle }

// SpeedMode is the speed-step resolution of a speed command.
type SpeedMode uint8

const (
	Speed28  SpeedMode = 28
	Speed128 SpeedMode = 128
)

// Direction is the travel direction bit of a speed command.
type Direction uint8

const (
	Reverse Direction = 0
	Forward Direction = 1
)

// String returns "forward" or "reverse".
func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "reverse"
}

// LocoSpeedDirection is a 28- or 128-step speed and direction command.
//
// For 28-step commands Speed is the raw 5-bit speed field. For 128-step commands
// Speed is the 7-bit value minus one, with 0 meaning stop; EmergencyStop is set
// for the emergency-stop code.
type LocoSpeedDirection struct {
	Address       Address
	Mode          SpeedMode
	Speed         int
	Direction     Direction
	EmergencyStop bool
}

// Kind implements Command.
func (LocoSpeedDirection) Kind() CommandKind { return KindLocoSpeed }

// FunctionGroupID names a block of functions or an accessory output group.
type FunctionGroupID uint8

const (
	GroupF0F4 FunctionGroupID = iota + 1
	GroupF5F8
	GroupF9F12
	GroupF13F20
	GroupF21F28
	GroupAccessory
	GroupAccessoryExtended
)

// String returns a short group label.
func (g FunctionGroupID) String() string {
	switch g {
	case GroupF0F4:
		return "F0-F4"
	case GroupF5F8:
		return "F5-F8"
	case GroupF9F12:
		return "F9-F12"
	case GroupF13F20:
		return "F13-F20"
	case GroupF21F28:
		return "F21-F28"
	case GroupAccessory:
		return "accessory"
	case GroupAccessoryExtended:
		return "accessory_extended"
	default:
		return "unknown"
	}
}

// FunctionGroup is a function group command for a locomotive or an accessory
// output command.
//
// For locomotive groups, bit n of Functions is set when function Fn is on
// (F0 is the headlight, FL). For GroupAccessory, Output is the output pair,
// Inductor the coil within the pair and Active the activation bit. For
// GroupAccessoryExtended, Output is the group index and Functions the raw mask.
type FunctionGroup struct {
	Address   Address
	Group     FunctionGroupID
	Functions uint32
	Output    uint8
	Inductor  uint8
	Active    bool
}

// Kind implements Command.
func (FunctionGroup) Kind() CommandKind { return KindFunctionGroup }

// On reports whether function Fn is set in the mask.
func (f FunctionGroup) On(n int) bool {
	if n < 0 || n > 31 {
		return false
	}
	return f.Functions&(1<<uint(n)) != 0
}

// Enabled lists the function numbers set in the mask, in ascending order.
func (f FunctionGroup) Enabled() []int {
	var out []int
	for n := 0; n < 32; n++ {
		if f.On(n) {
			out = append(out, n)
		}
	}
	return out
}

// AccessoryOrAnalog is an analog output command.
type AccessoryOrAnalog struct {
	Command uint8
	Type    uint8
	Value   uint8
}

// Kind implements Command.
func (AccessoryOrAnalog) Kind() CommandKind { return KindAccessoryOrAnalog }

// Unknown is a telegram whose checksum passed but whose grammar is not
// recognised. Undefined is set when the address was decoded but the command
// byte(s) are not allowed for the telegram length.
type Unknown struct {
	Address   Address
	Undefined bool
}

// Kind implements Command.
func (Unknown) Kind() CommandKind { return KindUnknown }

// ChecksumError reports a 5-byte telegram whose error-detection byte did not
// match the XOR of the preceding bytes.
type ChecksumError struct {
	Computed byte
	Received byte
}

// Kind implements Command.
func (ChecksumError) Kind() CommandKind { return KindChecksumError }

// OversizeError reports a byte accumulation longer than any DCC telegram.
type OversizeError struct {
	Length int
}

// Kind implements Command.
func (OversizeError) Kind() CommandKind { return KindOversize }
