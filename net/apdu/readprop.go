package apdu

import (
	"github.com/GauiStori/bacnet-stack/net/bacnet"
)

type ReadPropertyReq struct {
	ObjectType uint16
	Instance   uint32
	Property   uint32
	ArrayIndex uint32 // ArrayAll when the request names no index
}

func AppendReadPropertyReq(b []byte, invokeID uint8, req ReadPropertyReq) []byte {
	b = appendConfirmedReqHeader(b, invokeID, ConfirmedServiceReadProperty)
	b = bacnet.AppendContextObjectID(b, 0, req.ObjectType, req.Instance)
	b = bacnet.AppendContextUnsigned(b, 1, req.Property)
	if req.ArrayIndex != ArrayAll {
		b = bacnet.AppendContextUnsigned(b, 2, req.ArrayIndex)
	}
	return b
}

func DecodeReadPropertyReq(body []byte) (ReadPropertyReq, error) {
	req := ReadPropertyReq{ArrayIndex: ArrayAll}
	objectType, instance, n, err := bacnet.DecodeContextObjectID(body, 0)
	if err != nil {
		return ReadPropertyReq{}, err
	}
	if instance > MaxObjectInstance {
		return ReadPropertyReq{}, errInvalidMessage
	}
	req.ObjectType = objectType
	req.Instance = instance
	prop, m, err := bacnet.DecodeContextUnsigned(body[n:], 1)
	if err != nil {
		return ReadPropertyReq{}, err
	}
	req.Property = prop
	n += m
	if n < len(body) {
		idx, m, err := bacnet.DecodeContextUnsigned(body[n:], 2)
		if err != nil {
			return ReadPropertyReq{}, err
		}
		req.ArrayIndex = idx
		n += m
	}
	if n != len(body) {
		return ReadPropertyReq{}, errInvalidMessage
	}
	return req, nil
}

// ReadPropertyACK is the ComplexACK answering a ReadProperty request. Value
// holds the application tagged property value octets.
type ReadPropertyACK struct {
	ObjectType uint16
	Instance   uint32
	Property   uint32
	ArrayIndex uint32
	Value      []byte
}

func AppendReadPropertyACK(b []byte, invokeID uint8, ack ReadPropertyACK) []byte {
	b = append(b, PDUTypeComplexACK, invokeID, ConfirmedServiceReadProperty)
	b = bacnet.AppendContextObjectID(b, 0, ack.ObjectType, ack.Instance)
	b = bacnet.AppendContextUnsigned(b, 1, ack.Property)
	if ack.ArrayIndex != ArrayAll {
		b = bacnet.AppendContextUnsigned(b, 2, ack.ArrayIndex)
	}
	b = bacnet.AppendOpeningTag(b, 3)
	b = append(b, ack.Value...)
	return bacnet.AppendClosingTag(b, 3)
}

func DecodeReadPropertyACK(body []byte) (ReadPropertyACK, error) {
	ack := ReadPropertyACK{ArrayIndex: ArrayAll}
	objectType, instance, n, err := bacnet.DecodeContextObjectID(body, 0)
	if err != nil {
		return ReadPropertyACK{}, err
	}
	ack.ObjectType = objectType
	ack.Instance = instance
	prop, m, err := bacnet.DecodeContextUnsigned(body[n:], 1)
	if err != nil {
		return ReadPropertyACK{}, err
	}
	ack.Property = prop
	n += m
	if idx, m, err := bacnet.DecodeContextUnsigned(body[n:], 2); err == nil {
		ack.ArrayIndex = idx
		n += m
	}
	m, err = bacnet.DecodeOpeningTag(body[n:], 3)
	if err != nil {
		return ReadPropertyACK{}, err
	}
	n += m
	length, err := enclosedLength(body[n:])
	if err != nil {
		return ReadPropertyACK{}, err
	}
	ack.Value = body[n : n+length]
	n += length
	m, err = bacnet.DecodeClosingTag(body[n:], 3)
	if err != nil {
		return ReadPropertyACK{}, err
	}
	if n+m != len(body) {
		return ReadPropertyACK{}, errInvalidMessage
	}
	return ack, nil
}
