package apdu

import (
	"github.com/GauiStori/bacnet-stack/net/bacnet"
)

// AppendTimeSync encodes an unconfirmed TimeSynchronization request, or the
// UTC variant, carrying the given date and time.
func AppendTimeSync(b []byte, utc bool, dt bacnet.DateTime) []byte {
	service := uint8(UnconfirmedServiceTimeSync)
	if utc {
		service = UnconfirmedServiceUTCTimeSync
	}
	b = append(b, PDUTypeUnconfirmedRequest, service)
	return bacnet.AppendDateTime(b, dt)
}

// DecodeTimeSync reads the body of a TimeSynchronization request.
func DecodeTimeSync(body []byte) (bacnet.DateTime, error) {
	dt, n, err := bacnet.DecodeDateTime(body)
	if err != nil {
		return bacnet.DateTime{}, err
	}
	if n != len(body) {
		return bacnet.DateTime{}, errInvalidMessage
	}
	return dt, nil
}
