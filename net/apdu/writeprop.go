package apdu

import (
	"github.com/GauiStori/bacnet-stack/net/bacnet"
)

// WritePropertyReq carries a WriteProperty request. Value holds the
// application tagged value octets between the opening and closing tags;
// Priority defaults to the lowest priority when the request names none.
type WritePropertyReq struct {
	ObjectType uint16
	Instance   uint32
	Property   uint32
	ArrayIndex uint32
	Value      []byte
	Priority   uint8
}

func AppendWritePropertyReq(b []byte, invokeID uint8, req WritePropertyReq) []byte {
	b = appendConfirmedReqHeader(b, invokeID, ConfirmedServiceWriteProperty)
	b = bacnet.AppendContextObjectID(b, 0, req.ObjectType, req.Instance)
	b = bacnet.AppendContextUnsigned(b, 1, req.Property)
	if req.ArrayIndex != ArrayAll {
		b = bacnet.AppendContextUnsigned(b, 2, req.ArrayIndex)
	}
	b = bacnet.AppendOpeningTag(b, 3)
	b = append(b, req.Value...)
	b = bacnet.AppendClosingTag(b, 3)
	if req.Priority != 0 && req.Priority != MaxPriority {
		b = bacnet.AppendContextUnsigned(b, 4, uint32(req.Priority))
	}
	return b
}

func DecodeWritePropertyReq(body []byte) (WritePropertyReq, error) {
	req := WritePropertyReq{ArrayIndex: ArrayAll, Priority: MaxPriority}
	objectType, instance, n, err := bacnet.DecodeContextObjectID(body, 0)
	if err != nil {
		return WritePropertyReq{}, err
	}
	if instance > MaxObjectInstance {
		return WritePropertyReq{}, errInvalidMessage
	}
	req.ObjectType = objectType
	req.Instance = instance
	prop, m, err := bacnet.DecodeContextUnsigned(body[n:], 1)
	if err != nil {
		return WritePropertyReq{}, err
	}
	req.Property = prop
	n += m
	if idx, m, err := bacnet.DecodeContextUnsigned(body[n:], 2); err == nil {
		req.ArrayIndex = idx
		n += m
	}
	m, err = bacnet.DecodeOpeningTag(body[n:], 3)
	if err != nil {
		return WritePropertyReq{}, err
	}
	n += m
	length, err := enclosedLength(body[n:])
	if err != nil {
		return WritePropertyReq{}, err
	}
	if length == 0 {
		return WritePropertyReq{}, errInvalidMessage
	}
	req.Value = body[n : n+length]
	n += length
	m, err = bacnet.DecodeClosingTag(body[n:], 3)
	if err != nil {
		return WritePropertyReq{}, err
	}
	n += m
	if n < len(body) {
		priority, m, err := bacnet.DecodeContextUnsigned(body[n:], 4)
		if err != nil {
			return WritePropertyReq{}, err
		}
		if priority < 1 || priority > MaxPriority {
			return WritePropertyReq{}, errInvalidMessage
		}
		req.Priority = uint8(priority)
		n += m
	}
	if n != len(body) {
		return WritePropertyReq{}, errInvalidMessage
	}
	return req, nil
}
