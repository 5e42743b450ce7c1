package apdu

import (
	"github.com/GauiStori/bacnet-stack/net/bacnet"
)

// WhoIs carries the optional device instance range of a Who-Is request.
// Limits of -1 leave the range unbounded.
type WhoIs struct {
	LowLimit  int64
	HighLimit int64
}

// Matches reports whether a device with the given instance should answer.
func (w WhoIs) Matches(instance uint32) bool {
	if w.LowLimit < 0 || w.HighLimit < 0 {
		return true
	}
	return int64(instance) >= w.LowLimit && int64(instance) <= w.HighLimit
}

func AppendWhoIs(b []byte, w WhoIs) []byte {
	b = append(b, PDUTypeUnconfirmedRequest, UnconfirmedServiceWhoIs)
	if w.LowLimit >= 0 && w.HighLimit >= 0 {
		b = bacnet.AppendContextUnsigned(b, 0, uint32(w.LowLimit))
		b = bacnet.AppendContextUnsigned(b, 1, uint32(w.HighLimit))
	}
	return b
}

func DecodeWhoIs(body []byte) (WhoIs, error) {
	w := WhoIs{LowLimit: -1, HighLimit: -1}
	if len(body) == 0 {
		return w, nil
	}
	low, n, err := bacnet.DecodeContextUnsigned(body, 0)
	if err != nil {
		return WhoIs{}, err
	}
	high, m, err := bacnet.DecodeContextUnsigned(body[n:], 1)
	if err != nil {
		return WhoIs{}, err
	}
	if n+m != len(body) || low > MaxObjectInstance || high > MaxObjectInstance {
		return WhoIs{}, errInvalidMessage
	}
	w.LowLimit = int64(low)
	w.HighLimit = int64(high)
	return w, nil
}

// IAm is the unconfirmed announcement a device sends in response to Who-Is
// and at startup.
type IAm struct {
	DeviceID     uint32
	MaxAPDU      uint32
	Segmentation uint8
	VendorID     uint16
}

func AppendIAm(b []byte, ia IAm) []byte {
	b = append(b, PDUTypeUnconfirmedRequest, UnconfirmedServiceIAm)
	b = bacnet.AppendObjectID(b, ObjectTypeDevice, ia.DeviceID)
	b = bacnet.AppendUnsigned(b, ia.MaxAPDU)
	b = bacnet.AppendEnumerated(b, uint32(ia.Segmentation))
	return bacnet.AppendUnsigned(b, uint32(ia.VendorID))
}

func DecodeIAm(body []byte) (IAm, error) {
	objectType, instance, n, err := bacnet.DecodeObjectID(body)
	if err != nil {
		return IAm{}, err
	}
	if objectType != ObjectTypeDevice {
		return IAm{}, errInvalidMessage
	}
	maxAPDU, m, err := bacnet.DecodeUnsigned(body[n:])
	if err != nil {
		return IAm{}, err
	}
	n += m
	seg, m, err := bacnet.DecodeEnumerated(body[n:])
	if err != nil {
		return IAm{}, err
	}
	n += m
	vendor, m, err := bacnet.DecodeUnsigned(body[n:])
	if err != nil {
		return IAm{}, err
	}
	if n+m != len(body) || seg > SegmentationNone || vendor > 0xffff {
		return IAm{}, errInvalidMessage
	}
	return IAm{
		DeviceID:     instance,
		MaxAPDU:      maxAPDU,
		Segmentation: uint8(seg),
		VendorID:     uint16(vendor),
	}, nil
}
