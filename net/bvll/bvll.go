// Package bvll implements the BACnet/IP virtual link layer framing and the
// network layer header that precedes every APDU on UDP.
package bvll

import (
	"encoding/binary"
	"errors"
)

// Reference: ASHRAE 135, Annex J, BACnet/IP

const (
	Type = 0x81
	Port = 47808

	FuncResult                = 0x00
	FuncForwardedNPDU         = 0x04
	FuncOriginalUnicastNPDU   = 0x0a
	FuncOriginalBroadcastNPDU = 0x0b
)

const (
	headerLen        = 4
	forwardedAddrLen = 6

	protocolVersion = 1

	controlNetworkMessage = 0x80
	controlDestPresent    = 0x20
	controlSrcPresent     = 0x08
	controlExpectingReply = 0x04
)

var (
	errInvalidHeader     = errors.New("invalid BVLL header")
	errInvalidNPDU       = errors.New("invalid NPDU header")
	errNetworkMessage    = errors.New("network layer message")
	errUnknownBVLLFunc   = errors.New("unknown BVLL function")
	errUnexpectedVersion = errors.New("unexpected protocol version")
)

// AppendHeader starts a BACnet/IP frame with a zero length field. The caller
// appends the NPDU and APDU and then patches the length with FinalizeLength.
func AppendHeader(b []byte, function uint8) []byte {
	return append(b, Type, function, 0, 0)
}

func FinalizeLength(b []byte) {
	binary.BigEndian.PutUint16(b[2:4], uint16(len(b)))
}

// DecodeHeader validates the frame and returns the BVLL function and its
// payload. For forwarded frames the originating address is skipped.
func DecodeHeader(b []byte) (uint8, []byte, error) {
	if len(b) < headerLen || b[0] != Type {
		return 0, nil, errInvalidHeader
	}
	if int(binary.BigEndian.Uint16(b[2:4])) != len(b) {
		return 0, nil, errInvalidHeader
	}
	function := b[1]
	switch function {
	case FuncOriginalUnicastNPDU, FuncOriginalBroadcastNPDU, FuncResult:
		return function, b[headerLen:], nil
	case FuncForwardedNPDU:
		if len(b) < headerLen+forwardedAddrLen {
			return 0, nil, errInvalidHeader
		}
		return function, b[headerLen+forwardedAddrLen:], nil
	}
	return 0, nil, errUnknownBVLLFunc
}

// AppendNPDU writes a version 1 network header for a locally delivered
// message.
func AppendNPDU(b []byte, expectingReply bool) []byte {
	control := uint8(0)
	if expectingReply {
		control = controlExpectingReply
	}
	return append(b, protocolVersion, control)
}

// DecodeNPDU returns the APDU following the network header. Routed frames
// have their addressing skipped; network layer messages are not APDUs and
// are reported as an error.
func DecodeNPDU(b []byte) ([]byte, error) {
	if len(b) < 2 {
		return nil, errInvalidNPDU
	}
	if b[0] != protocolVersion {
		return nil, errUnexpectedVersion
	}
	control := b[1]
	if control&controlNetworkMessage != 0 {
		return nil, errNetworkMessage
	}
	off := 2
	if control&controlDestPresent != 0 {
		if len(b) < off+3 {
			return nil, errInvalidNPDU
		}
		off += 3 + int(b[off+2])
	}
	if control&controlSrcPresent != 0 {
		if len(b) < off+3 {
			return nil, errInvalidNPDU
		}
		off += 3 + int(b[off+2])
	}
	if control&controlDestPresent != 0 {
		off++ // hop count
	}
	if off > len(b) {
		return nil, errInvalidNPDU
	}
	return b[off:], nil
}
