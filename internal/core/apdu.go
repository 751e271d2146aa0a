package core

import (
	"fmt"
	"strings"
)

const (
	// ClassProprietary is the CLA used by PC/SC readers for reader-handled pseudo APDUs.
	ClassProprietary byte = 0xFF
	// InsGetData is the GET DATA instruction. With P1=00 it returns the card UID.
	InsGetData byte = 0xCA

	// ReceiveBufferSize bounds the expected response: up to 256 data bytes plus SW1 SW2.
	ReceiveBufferSize = 256 + 2
)

// Command is an ISO 7816-4 case 2 short command APDU.
type Command struct {
	CLA byte
	INS byte
	P1  byte
	P2  byte
	Le  byte // 0 means "let the card decide", i.e. up to 256 bytes
}

// GetUIDCommand returns FF CA 00 00 00.
func GetUIDCommand() Command {
	return Command{
		CLA: ClassProprietary,
		INS: InsGetData,
		P1:  0x00,
		P2:  0x00,
		Le:  0x00,
	}
}

// Bytes serializes the command.
func (c Command) Bytes() []byte {
	return []byte{c.CLA, c.INS, c.P1, c.P2, c.Le}
}

func (c Command) String() string {
	return fmt.Sprintf("% X", c.Bytes())
}

// Response is a parsed response APDU.
type Response struct {
	Data []byte
	SW1  byte
	SW2  byte
}

// ParseResponse splits raw response bytes into data and the trailing status word.
func ParseResponse(raw []byte) (Response, error) {
	if len(raw) < 2 {
		return Response{}, fmt.Errorf("invalid response length: %d", len(raw))
	}
	if len(raw) > ReceiveBufferSize {
		return Response{}, fmt.Errorf("response too long: %d bytes", len(raw))
	}
	n := len(raw) - 2
	data := make([]byte, n)
	copy(data, raw[:n])
	return Response{
		Data: data,
		SW1:  raw[n],
		SW2:  raw[n+1],
	}, nil
}

// HasData reports whether the response carries any bytes before the status word.
func (r Response) HasData() bool {
	return len(r.Data) > 0
}

// Success reports whether the status word is 90 00.
func (r Response) Success() bool {
	return r.SW1 == 0x90 && r.SW2 == 0x00
}

// StatusWord returns SW1 SW2 as a hex string, e.g. "9000".
func (r Response) StatusWord() string {
	return fmt.Sprintf("%02X%02X", r.SW1, r.SW2)
}

// FormatUID renders bytes as uppercase dash separated hex, e.g. 04-A1-B2-C3.
func FormatUID(uid []byte) string {
	parts := make([]string, len(uid))
	for i, b := range uid {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, "-")
}
