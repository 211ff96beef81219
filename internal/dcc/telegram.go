package dcc

// Directive tells the FrameStateMachine what to do after a byte was appended.
type Directive uint8

const (
	// Continue keeps accumulating bytes.
	Continue Directive = iota
	// Accept completes a valid telegram.
	Accept
	// Resync treats the last byte as the first eight ones of the next preamble.
	Resync
	// Reject discards the buffer.
	Reject
)

// String returns the directive name.
func (d Directive) String() string {
	switch d {
	case Continue:
		return "continue"
	case Accept:
		return "accept"
	case Resync:
		return "resync"
	case Reject:
		return "reject"
	default:
		return "invalid"
	}
}

// Telegram grammar constants.
const (
	// maxTelegramBytes is the longest telegram including the error-detection byte.
	maxTelegramBytes = 5

	// preambleByte is the all-ones byte that, at a checksum failure, is taken to
	// be the lead-in of the next preamble.
	preambleByte = 0xFF

	// resyncPreambleCount is the preamble count credited for a preambleByte.
	resyncPreambleCount = 8
)

// Result is the outcome of evaluating the byte buffer. Command is nil for
// Continue and Resync.
type Result struct {
	Directive Directive
	Command   Command
}

// TelegramParser validates the XOR checksum, discriminates the telegram shape by
// length and address bits, and dispatches the instruction bytes to a
// CommandDecodeProfile.
//
// Evaluate is called after every byte append, so the shortest accepted form wins:
// the 2-byte idle telegram is recognised before any longer grammar is tried.
type TelegramParser struct {
	profile CommandDecodeProfile
	opts    ParserOptions
}

// ParserOptions selects grammar variants.
type ParserOptions struct {
	// Legacy folds accessory addresses into 8 bits and, when no profile is
	// given, selects the legacy function masks.
	Legacy bool

	// StrictDispatch recognises a short-address two-byte instruction at length
	// 4 only when the address byte has bit 7 clear and the instruction is
	// 001xxxxx or 110xxxxx, and keeps 7 address bits. By default the
	// instruction is tested with the 0xD0 mask and the address keeps 6 bits.
	StrictDispatch bool
}

// NewTelegramParser creates a parser dispatching to profile. A nil profile
// selects FullProfile.
func NewTelegramParser(profile CommandDecodeProfile, opts ParserOptions) *TelegramParser {
	if profile == nil {
		profile = FullProfile{Legacy: opts.Legacy}
	}
	return &TelegramParser{profile: profile, opts: opts}
}

// Profile returns the command decode profile in use.
func (p *TelegramParser) Profile() CommandDecodeProfile {
	return p.profile
}

// Evaluate inspects the bytes accumulated so far.
func (p *TelegramParser) Evaluate(data []byte) Result {
	n := len(data)
	switch {
	case n <= 1:
		return Result{Directive: Continue}
	case n == 2:
		if data[0] == 0xFF && data[1] == 0x00 {
			return Result{Directive: Accept, Command: Idle{}}
		}
		return Result{Directive: Continue}
	case n > maxTelegramBytes:
		return Result{Directive: Reject, Command: OversizeError{Length: n}}
	}

	computed := Checksum(data[:n-1])
	received := data[n-1]
	if computed != received {
		if received == preambleByte {
			return Result{Directive: Resync}
		}
		if n == maxTelegramBytes {
			return Result{
				Directive: Reject,
				Command:   ChecksumError{Computed: computed, Received: received},
			}
		}
		return Result{Directive: Continue}
	}

	switch n {
	case 3:
		return p.evaluateThree(data)
	case 4:
		return p.evaluateFour(data)
	default:
		return p.evaluateFive(data)
	}
}

// evaluateThree handles [address, instruction, check].
func (p *TelegramParser) evaluateThree(data []byte) Result {
	switch {
	case data[0]&0x80 == 0x00:
		return p.single(shortAddress(data[0]&0x7F), data[1])
	case data[0]&0xC0 == 0x80 && data[1]&0x80 == 0x80:
		return accept(FunctionGroup{
			Address:  p.accessoryAddress(data[0], data[1]),
			Group:    GroupAccessory,
			Output:   (data[1] & 0x06) >> 1,
			Inductor: data[1] & 0x01,
			Active:   data[1]&0x08 != 0,
		})
	default:
		return accept(Unknown{})
	}
}

// evaluateFour handles the long-address single-byte, short-address two-byte,
// extended accessory and analog output grammars.
func (p *TelegramParser) evaluateFour(data []byte) Result {
	switch {
	case data[0]&0xC0 == 0xC0:
		return p.single(longAddress(data[0], data[1]), data[2])
	case p.shortTwoByte(data[0], data[1]):
		addr := shortAddress(data[0] & 0x3F)
		if p.opts.StrictDispatch {
			addr = shortAddress(data[0] & 0x7F)
		}
		return p.double(addr, data[1], data[2])
	case data[0]&0xC0 == 0x80 && data[1]&0x89 == 0x01:
		return accept(FunctionGroup{
			Address:   p.accessoryAddress(data[0], data[1]),
			Group:     GroupAccessoryExtended,
			Output:    (data[1] & 0x06) >> 1,
			Functions: uint32(data[2]),
		})
	case data[0]&0xE0 == 0x20:
		return accept(AccessoryOrAnalog{
			Command: data[0] & 0x1F,
			Type:    data[1],
			Value:   data[2],
		})
	default:
		return accept(Unknown{})
	}
}

// evaluateFive handles [long address hi, lo, instruction, data, check].
func (p *TelegramParser) evaluateFive(data []byte) Result {
	if data[0]&0xC0 == 0xC0 {
		return p.double(longAddress(data[0], data[1]), data[2], data[3])
	}
	return accept(Unknown{})
}

// shortTwoByte reports whether a 4-byte telegram carries a short address with a
// two-byte instruction (advanced operation 001xxxxx or feature expansion 110xxxxx).
func (p *TelegramParser) shortTwoByte(addr, cmd byte) bool {
	if p.opts.StrictDispatch {
		return addr&0x80 == 0 && (cmd&0xE0 == 0xC0 || cmd&0xE0 == 0x20)
	}
	return cmd&0xD0 == 0xC0 || cmd&0xD0 == 0x20
}

// accessoryAddress folds the six low address bits of the first byte with the
// inverted high bits of the second.
func (p *TelegramParser) accessoryAddress(b0, b1 byte) Address {
	if p.opts.Legacy {
		return Address{Kind: AddressAccessory, Value: uint16((b0 & 0x3F) | (^(b1 | 0x8F))<<1)}
	}
	high := uint16(^b1&0x70) << 2
	return Address{Kind: AddressAccessory, Value: uint16(b0&0x3F) | high}
}

func (p *TelegramParser) single(addr Address, cmd byte) Result {
	decoded, err := p.profile.DecodeSingle(addr, cmd)
	if err != nil {
		return accept(Unknown{Address: addr, Undefined: true})
	}
	return accept(decoded)
}

func (p *TelegramParser) double(addr Address, cmd1, cmd2 byte) Result {
	decoded, err := p.profile.DecodeDouble(addr, cmd1, cmd2)
	if err != nil {
		return accept(Unknown{Address: addr, Undefined: true})
	}
	return accept(decoded)
}

func accept(cmd Command) Result {
	return Result{Directive: Accept, Command: cmd}
}

// Checksum returns the XOR of all bytes.
func Checksum(data []byte) byte {
	var x byte
	for _, b := range data {
		x ^= b
	}
	return x
}
