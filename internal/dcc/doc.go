// Package dcc decodes the NMRA Digital Command Control bitstream.
//
// The input is a chronological stream of level transitions (sample indices) on a
// single logic channel. The output is a sequence of classified bits, detected
// preambles and validated command telegrams.
//
// # Pipeline
//
// Decoding runs as three stages, each feeding the next:
//
//	EdgeSource ──► BitClassifier ──► FrameStateMachine ──► TelegramParser ──► CommandDecodeProfile
//	                (edge pairs)      (preamble/bytes)      (length grammar)     (speed/functions)
//
// The TelegramParser answers every completed byte with a Directive that tells the
// state machine whether to keep accumulating, accept the telegram, resynchronise on
// a trailing preamble or discard the buffer.
//
// # Bit encoding
//
// A DCC bit consists of two half-bits of equal length. A logical 1 is nominally two
// 58µs halves, a logical 0 two halves of at least 100µs. The BitClassifier measures
// both halves, slides its window by one edge while they disagree by more than the
// jitter tolerance, and classifies the full cell against half-open windows.
//
// # Self-healing
//
// Noise is expected on a DCC line. Invalid timing, short preambles, checksum
// failures and oversize telegrams are reported as events and the machine returns to
// preamble search. The only fatal condition is a missing sample rate, detected by
// NewDecoder before any edge is read.
//
// # Thread Safety
//
// A Decoder is driven by a single goroutine calling Run. Stats may be read
// concurrently.
package dcc
