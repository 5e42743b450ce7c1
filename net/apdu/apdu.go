// Package apdu implements the BACnet application layer frames exchanged by
// this stack: the clock services TimeSynchronization and
// UTCTimeSynchronization, device discovery with Who-Is and I-Am, and
// ReadProperty and WriteProperty with their acknowledgements.
package apdu

import (
	"errors"

	"github.com/GauiStori/bacnet-stack/net/bacnet"
)

// Reference: ASHRAE 135, clauses 20.1 and 21, APDU encoding

const (
	PDUTypeConfirmedRequest   = 0x00
	PDUTypeUnconfirmedRequest = 0x10
	PDUTypeSimpleACK          = 0x20
	PDUTypeComplexACK         = 0x30
	PDUTypeSegmentACK         = 0x40
	PDUTypeError              = 0x50
	PDUTypeReject             = 0x60
	PDUTypeAbort              = 0x70
)

const (
	UnconfirmedServiceIAm         = 0
	UnconfirmedServiceTimeSync    = 6
	UnconfirmedServiceWhoIs       = 8
	UnconfirmedServiceUTCTimeSync = 9
)

const (
	ConfirmedServiceReadProperty  = 12
	ConfirmedServiceWriteProperty = 15
)

const (
	ObjectTypeDevice = 8

	MaxObjectInstance = 0x3fffff
)

// Device object property identifiers served by this stack.
const (
	PropApplicationSoftwareVersion       = 12
	PropDaylightSavingsStatus            = 24
	PropDescription                      = 28
	PropFirmwareRevision                 = 44
	PropLocalDate                        = 56
	PropLocalTime                        = 57
	PropMaxAPDULengthAccepted            = 62
	PropModelName                        = 70
	PropObjectIdentifier                 = 75
	PropObjectName                       = 77
	PropObjectType                       = 79
	PropProtocolVersion                  = 98
	PropSegmentationSupported            = 107
	PropSystemStatus                     = 112
	PropTimeSynchronizationRecipients    = 116
	PropUTCOffset                        = 119
	PropVendorIdentifier                 = 120
	PropVendorName                       = 121
	PropProtocolRevision                 = 139
	PropDatabaseRevision                 = 155
	PropAlignIntervals                   = 193
	PropIntervalOffset                   = 195
	PropTimeSynchronizationInterval      = 204
	PropUTCTimeSynchronizationRecipients = 206
)

const (
	ErrorClassDevice    = 0
	ErrorClassObject    = 1
	ErrorClassProperty  = 2
	ErrorClassResources = 3
	ErrorClassSecurity  = 4
	ErrorClassServices  = 5
)

const (
	ErrorCodeOther                = 0
	ErrorCodeInvalidDataType      = 9
	ErrorCodeOperationalProblem   = 25
	ErrorCodeUnknownObject        = 31
	ErrorCodeUnknownProperty      = 32
	ErrorCodeValueOutOfRange      = 37
	ErrorCodeWriteAccessDenied    = 40
	ErrorCodePropertyIsNotAnArray = 50
)

const (
	RejectReasonOther                    = 0
	RejectReasonInconsistentParameters   = 2
	RejectReasonInvalidTag               = 4
	RejectReasonMissingRequiredParameter = 5
	RejectReasonParameterOutOfRange      = 6
	RejectReasonUnrecognizedService      = 9
)

const (
	AbortReasonOther                    = 0
	AbortReasonSegmentationNotSupported = 4
)

const (
	SegmentationBoth     = 0
	SegmentationTransmit = 1
	SegmentationReceive  = 2
	SegmentationNone     = 3
)

const (
	SystemStatusOperational = 0
)

const (
	// MaxAPDULength is the largest APDU a BACnet/IP device accepts,
	// encoded as 5 in the confirmed request header.
	MaxAPDULength     = 1476
	maxAPDUCode       = 5
	MaxPriority       = 16
	ProtocolVersion   = 1
	ProtocolRevision  = 14
	ArrayAll          = 0xffffffff
	DeviceInstanceAll = MaxObjectInstance + 1
)

var (
	errInvalidMessage    = errors.New("invalid message")
	errUnexpectedPDUType = errors.New("unexpected PDU type")
)

// Request is a decoded confirmed or unconfirmed request header. Body holds
// the service specific octets. For segmented confirmed requests Body is
// empty; the caller answers with an abort.
type Request struct {
	Confirmed bool
	Segmented bool
	InvokeID  uint8
	Service   uint8
	Body      []byte
}

func DecodeRequest(b []byte) (Request, error) {
	if len(b) < 2 {
		return Request{}, errInvalidMessage
	}
	switch b[0] & 0xf0 {
	case PDUTypeUnconfirmedRequest:
		return Request{Service: b[1], Body: b[2:]}, nil
	case PDUTypeConfirmedRequest:
		if len(b) < 4 {
			return Request{}, errInvalidMessage
		}
		r := Request{Confirmed: true, InvokeID: b[2]}
		if b[0]&0x08 != 0 {
			if len(b) < 6 {
				return Request{}, errInvalidMessage
			}
			r.Segmented = true
			r.Service = b[5]
			return r, nil
		}
		r.Service = b[3]
		r.Body = b[4:]
		return r, nil
	}
	return Request{}, errUnexpectedPDUType
}

// Response is a decoded reply to a confirmed request. Class, Code and Reason
// are meaningful only for the error, reject and abort PDU types.
type Response struct {
	PDUType  uint8
	InvokeID uint8
	Service  uint8
	Body     []byte
	Class    uint32
	Code     uint32
	Reason   uint8
}

func DecodeResponse(b []byte) (Response, error) {
	if len(b) < 2 {
		return Response{}, errInvalidMessage
	}
	r := Response{PDUType: b[0] & 0xf0, InvokeID: b[1]}
	switch r.PDUType {
	case PDUTypeSimpleACK:
		if len(b) < 3 {
			return Response{}, errInvalidMessage
		}
		r.Service = b[2]
		return r, nil
	case PDUTypeComplexACK:
		if b[0]&0x08 != 0 {
			return Response{}, errSegmentedResponse
		}
		if len(b) < 3 {
			return Response{}, errInvalidMessage
		}
		r.Service = b[2]
		r.Body = b[3:]
		return r, nil
	case PDUTypeError:
		if len(b) < 3 {
			return Response{}, errInvalidMessage
		}
		r.Service = b[2]
		rest := b[3:]
		class, n, err := bacnet.DecodeEnumerated(rest)
		if err != nil {
			return Response{}, errInvalidMessage
		}
		code, _, err := bacnet.DecodeEnumerated(rest[n:])
		if err != nil {
			return Response{}, errInvalidMessage
		}
		r.Class = class
		r.Code = code
		return r, nil
	case PDUTypeReject, PDUTypeAbort:
		if len(b) < 3 {
			return Response{}, errInvalidMessage
		}
		r.Reason = b[2]
		return r, nil
	}
	return Response{}, errUnexpectedPDUType
}

var errSegmentedResponse = errors.New("segmented response not supported")

func appendConfirmedReqHeader(b []byte, invokeID uint8, service uint8) []byte {
	return append(b, PDUTypeConfirmedRequest, maxAPDUCode, invokeID, service)
}

func AppendSimpleACK(b []byte, invokeID uint8, service uint8) []byte {
	return append(b, PDUTypeSimpleACK, invokeID, service)
}

func AppendError(b []byte, invokeID uint8, service uint8, class, code uint32) []byte {
	b = append(b, PDUTypeError, invokeID, service)
	b = bacnet.AppendEnumerated(b, class)
	return bacnet.AppendEnumerated(b, code)
}

func AppendReject(b []byte, invokeID uint8, reason uint8) []byte {
	return append(b, PDUTypeReject, invokeID, reason)
}

func AppendAbort(b []byte, invokeID uint8, reason uint8, server bool) []byte {
	t := uint8(PDUTypeAbort)
	if server {
		t |= 0x01
	}
	return append(b, t, invokeID, reason)
}

// enclosedLength returns the number of octets up to, but not including, the
// closing tag that matches the opening tag already consumed by the caller.
func enclosedLength(b []byte) (int, error) {
	depth := 0
	off := 0
	for {
		t, n, err := bacnet.DecodeTag(b[off:])
		if err != nil {
			return 0, err
		}
		switch {
		case t.Opening:
			depth++
			off += n
		case t.Closing:
			if depth == 0 {
				return off, nil
			}
			depth--
			off += n
		default:
			length := int(t.LVT)
			if !t.Context && t.Number == bacnet.TagBoolean {
				length = 0
			}
			off += n + length
			if off > len(b) {
				return 0, errInvalidMessage
			}
		}
	}
}
