// Package protocol renders the raw single-byte link to the FPGA.
//
// There is no framing: each received chunk is shown as hex plus a
// best-effort ASCII decode, and each key press goes out as one byte.
package protocol

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// DefaultQuitKey ends the session without being transmitted
const DefaultQuitKey byte = 'q'

// RuleWidth is the width of the banner rules
const RuleWidth = 60

// ErrNonASCII is returned by DecodeASCII when a byte is outside 0x00-0x7F
var ErrNonASCII = errors.New("non-ASCII data")

// DecodeASCII interprets b as ASCII text
func DecodeASCII(b []byte) (string, error) {
	for i, c := range b {
		if c >= 0x80 {
			return "", fmt.Errorf("byte 0x%02x at offset %d: %w", c, i, ErrNonASCII)
		}
	}
	return string(b), nil
}

// HexString is the lowercase, separator-free hex encoding of b
func HexString(b []byte) string {
	return hex.EncodeToString(b)
}

// FormatRX renders a received chunk, e.g. "RX: 4142 -> 'AB'"
func FormatRX(b []byte) string {
	text, err := DecodeASCII(b)
	if err != nil {
		return fmt.Sprintf("RX: %s -> (non-ASCII)", HexString(b))
	}
	return fmt.Sprintf("RX: %s -> '%s'", HexString(b), text)
}

// FormatTX renders a transmitted key, e.g. "TX: '5' (35)"
func FormatTX(key byte) string {
	return fmt.Sprintf("TX: '%c' (%02X)", key, key)
}

// CommandHelp lists the single-character commands understood by the board
func CommandHelp(quit byte) string {
	return fmt.Sprintf("Commands: 'e' = enter, 'r' = reset, '0'-'7' = toggle bits, '%c' = quit", quit)
}

// Rule returns a horizontal banner line made of c
func Rule(c byte) string {
	return strings.Repeat(string(c), RuleWidth)
}
