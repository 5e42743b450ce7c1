package bacnet

import (
	"errors"
	"math"
)

// Reference: ASHRAE 135, clause 20.2, encoding of application data types

// Application tag numbers.
const (
	TagNull            = 0
	TagBoolean         = 1
	TagUnsignedInt     = 2
	TagSignedInt       = 3
	TagReal            = 4
	TagDouble          = 5
	TagOctetString     = 6
	TagCharacterString = 7
	TagBitString       = 8
	TagEnumerated      = 9
	TagDate            = 10
	TagTime            = 11
	TagObjectID        = 12
)

const charsetUTF8 = 0

var (
	ErrBufferTooShort = errors.New("buffer too short")
	ErrInvalidTag     = errors.New("invalid tag")
	ErrInvalidValue   = errors.New("invalid value")
)

// Tag is a decoded initial octet, plus any extended length octets. For
// application tagged booleans LVT carries the value itself; for opening and
// closing tags it is meaningless.
type Tag struct {
	Number  uint8
	Context bool
	Opening bool
	Closing bool
	LVT     uint32
}

func DecodeTag(b []byte) (Tag, int, error) {
	if len(b) < 1 {
		return Tag{}, 0, ErrBufferTooShort
	}
	var t Tag
	n := 1
	t.Number = b[0] >> 4
	t.Context = b[0]&0x08 != 0
	if t.Number == 0xf {
		if len(b) < 2 {
			return Tag{}, 0, ErrBufferTooShort
		}
		t.Number = b[1]
		n = 2
	}
	switch lvt := b[0] & 0x07; lvt {
	case 6:
		t.Opening = true
	case 7:
		t.Closing = true
	case 5:
		if len(b) < n+1 {
			return Tag{}, 0, ErrBufferTooShort
		}
		switch ext := b[n]; ext {
		case 254:
			if len(b) < n+3 {
				return Tag{}, 0, ErrBufferTooShort
			}
			t.LVT = uint32(b[n+1])<<8 | uint32(b[n+2])
			n += 3
		case 255:
			if len(b) < n+5 {
				return Tag{}, 0, ErrBufferTooShort
			}
			t.LVT = uint32(b[n+1])<<24 | uint32(b[n+2])<<16 |
				uint32(b[n+3])<<8 | uint32(b[n+4])
			n += 5
		default:
			t.LVT = uint32(ext)
			n++
		}
	default:
		t.LVT = uint32(lvt)
	}
	return t, n, nil
}

func appendTag(b []byte, number uint8, context bool, lvt uint32) []byte {
	var initial uint8
	if context {
		initial = 0x08
	}
	if number <= 14 {
		initial |= number << 4
	} else {
		initial |= 0xf0
	}
	if lvt <= 4 {
		initial |= uint8(lvt)
	} else {
		initial |= 5
	}
	b = append(b, initial)
	if number > 14 {
		b = append(b, number)
	}
	switch {
	case lvt <= 4:
	case lvt <= 253:
		b = append(b, uint8(lvt))
	case lvt <= 65535:
		b = append(b, 254, uint8(lvt>>8), uint8(lvt))
	default:
		b = append(b, 255, uint8(lvt>>24), uint8(lvt>>16), uint8(lvt>>8), uint8(lvt))
	}
	return b
}

func AppendOpeningTag(b []byte, number uint8) []byte {
	return append(b, number<<4|0x0e)
}

func AppendClosingTag(b []byte, number uint8) []byte {
	return append(b, number<<4|0x0f)
}

func DecodeOpeningTag(b []byte, number uint8) (int, error) {
	t, n, err := DecodeTag(b)
	if err != nil {
		return 0, err
	}
	if !t.Context || !t.Opening || t.Number != number {
		return 0, ErrInvalidTag
	}
	return n, nil
}

func DecodeClosingTag(b []byte, number uint8) (int, error) {
	t, n, err := DecodeTag(b)
	if err != nil {
		return 0, err
	}
	if !t.Context || !t.Closing || t.Number != number {
		return 0, ErrInvalidTag
	}
	return n, nil
}

func appendUnsignedValue(b []byte, v uint32) []byte {
	switch {
	case v < 0x100:
		return append(b, uint8(v))
	case v < 0x10000:
		return append(b, uint8(v>>8), uint8(v))
	case v < 0x1000000:
		return append(b, uint8(v>>16), uint8(v>>8), uint8(v))
	default:
		return append(b, uint8(v>>24), uint8(v>>16), uint8(v>>8), uint8(v))
	}
}

func unsignedValueLen(v uint32) uint32 {
	switch {
	case v < 0x100:
		return 1
	case v < 0x10000:
		return 2
	case v < 0x1000000:
		return 3
	default:
		return 4
	}
}

func decodeUnsignedValue(b []byte, length int) (uint32, error) {
	if length < 1 || length > 4 {
		return 0, ErrInvalidValue
	}
	if len(b) < length {
		return 0, ErrBufferTooShort
	}
	var v uint32
	for _, octet := range b[:length] {
		v = v<<8 | uint32(octet)
	}
	return v, nil
}

func AppendNull(b []byte) []byte {
	return appendTag(b, TagNull, false, 0)
}

func DecodeNull(b []byte) (int, error) {
	t, n, err := DecodeTag(b)
	if err != nil {
		return 0, err
	}
	if t.Context || t.Opening || t.Closing || t.Number != TagNull {
		return 0, ErrInvalidTag
	}
	if t.LVT != 0 {
		return 0, ErrInvalidValue
	}
	return n, nil
}

func AppendBoolean(b []byte, v bool) []byte {
	lvt := uint32(0)
	if v {
		lvt = 1
	}
	return appendTag(b, TagBoolean, false, lvt)
}

func DecodeBoolean(b []byte) (bool, int, error) {
	t, n, err := DecodeTag(b)
	if err != nil {
		return false, 0, err
	}
	if t.Context || t.Opening || t.Closing || t.Number != TagBoolean {
		return false, 0, ErrInvalidTag
	}
	if t.LVT > 1 {
		return false, 0, ErrInvalidValue
	}
	return t.LVT == 1, n, nil
}

func AppendUnsigned(b []byte, v uint32) []byte {
	b = appendTag(b, TagUnsignedInt, false, unsignedValueLen(v))
	return appendUnsignedValue(b, v)
}

func AppendEnumerated(b []byte, v uint32) []byte {
	b = appendTag(b, TagEnumerated, false, unsignedValueLen(v))
	return appendUnsignedValue(b, v)
}

func DecodeUnsigned(b []byte) (uint32, int, error) {
	return decodeUnsignedTagged(b, TagUnsignedInt, false, 0)
}

func DecodeEnumerated(b []byte) (uint32, int, error) {
	return decodeUnsignedTagged(b, TagEnumerated, false, 0)
}

func AppendContextUnsigned(b []byte, number uint8, v uint32) []byte {
	b = appendTag(b, number, true, unsignedValueLen(v))
	return appendUnsignedValue(b, v)
}

func DecodeContextUnsigned(b []byte, number uint8) (uint32, int, error) {
	return decodeUnsignedTagged(b, number, true, 0)
}

func decodeUnsignedTagged(b []byte, number uint8, context bool, _ int) (uint32, int, error) {
	t, n, err := DecodeTag(b)
	if err != nil {
		return 0, 0, err
	}
	if t.Context != context || t.Opening || t.Closing || t.Number != number {
		return 0, 0, ErrInvalidTag
	}
	v, err := decodeUnsignedValue(b[n:], int(t.LVT))
	if err != nil {
		return 0, 0, err
	}
	return v, n + int(t.LVT), nil
}

func AppendSigned(b []byte, v int32) []byte {
	var length uint32
	switch {
	case v >= -0x80 && v < 0x80:
		length = 1
	case v >= -0x8000 && v < 0x8000:
		length = 2
	case v >= -0x800000 && v < 0x800000:
		length = 3
	default:
		length = 4
	}
	b = appendTag(b, TagSignedInt, false, length)
	for i := int(length) - 1; i >= 0; i-- {
		b = append(b, uint8(v>>(8*i)))
	}
	return b
}

func DecodeSigned(b []byte) (int32, int, error) {
	t, n, err := DecodeTag(b)
	if err != nil {
		return 0, 0, err
	}
	if t.Context || t.Opening || t.Closing || t.Number != TagSignedInt {
		return 0, 0, ErrInvalidTag
	}
	length := int(t.LVT)
	if length < 1 || length > 4 {
		return 0, 0, ErrInvalidValue
	}
	if len(b) < n+length {
		return 0, 0, ErrBufferTooShort
	}
	v := int32(int8(b[n]))
	for _, octet := range b[n+1 : n+length] {
		v = v<<8 | int32(octet)
	}
	return v, n + length, nil
}

func AppendReal(b []byte, v float32) []byte {
	b = appendTag(b, TagReal, false, 4)
	bits := math.Float32bits(v)
	return append(b, uint8(bits>>24), uint8(bits>>16), uint8(bits>>8), uint8(bits))
}

func DecodeReal(b []byte) (float32, int, error) {
	t, n, err := DecodeTag(b)
	if err != nil {
		return 0, 0, err
	}
	if t.Context || t.Opening || t.Closing || t.Number != TagReal {
		return 0, 0, ErrInvalidTag
	}
	if t.LVT != 4 {
		return 0, 0, ErrInvalidValue
	}
	if len(b) < n+4 {
		return 0, 0, ErrBufferTooShort
	}
	bits := uint32(b[n])<<24 | uint32(b[n+1])<<16 | uint32(b[n+2])<<8 | uint32(b[n+3])
	return math.Float32frombits(bits), n + 4, nil
}

func AppendOctetString(b []byte, v []byte) []byte {
	b = appendTag(b, TagOctetString, false, uint32(len(v)))
	return append(b, v...)
}

func DecodeOctetString(b []byte) ([]byte, int, error) {
	t, n, err := DecodeTag(b)
	if err != nil {
		return nil, 0, err
	}
	if t.Context || t.Opening || t.Closing || t.Number != TagOctetString {
		return nil, 0, ErrInvalidTag
	}
	length := int(t.LVT)
	if len(b) < n+length {
		return nil, 0, ErrBufferTooShort
	}
	return b[n : n+length], n + length, nil
}

func AppendCharacterString(b []byte, s string) []byte {
	b = appendTag(b, TagCharacterString, false, uint32(len(s))+1)
	b = append(b, charsetUTF8)
	return append(b, s...)
}

func DecodeCharacterString(b []byte) (string, int, error) {
	t, n, err := DecodeTag(b)
	if err != nil {
		return "", 0, err
	}
	if t.Context || t.Opening || t.Closing || t.Number != TagCharacterString {
		return "", 0, ErrInvalidTag
	}
	length := int(t.LVT)
	if length < 1 {
		return "", 0, ErrInvalidValue
	}
	if len(b) < n+length {
		return "", 0, ErrBufferTooShort
	}
	if b[n] != charsetUTF8 {
		return "", 0, ErrInvalidValue
	}
	return string(b[n+1 : n+length]), n + length, nil
}

func AppendDate(b []byte, d Date) []byte {
	b = appendTag(b, TagDate, false, 4)
	return append(b, uint8(d.Year-EpochYear), d.Month, d.Day, d.WDay)
}

func DecodeDate(b []byte) (Date, int, error) {
	t, n, err := DecodeTag(b)
	if err != nil {
		return Date{}, 0, err
	}
	if t.Context || t.Opening || t.Closing || t.Number != TagDate {
		return Date{}, 0, ErrInvalidTag
	}
	if t.LVT != 4 {
		return Date{}, 0, ErrInvalidValue
	}
	if len(b) < n+4 {
		return Date{}, 0, ErrBufferTooShort
	}
	d := Date{
		Year:  EpochYear + uint16(b[n]),
		Month: b[n+1],
		Day:   b[n+2],
		WDay:  b[n+3],
	}
	return d, n + 4, nil
}

func AppendTime(b []byte, t Time) []byte {
	b = appendTag(b, TagTime, false, 4)
	return append(b, t.Hour, t.Minute, t.Second, t.Hundredths)
}

func DecodeTime(b []byte) (Time, int, error) {
	tag, n, err := DecodeTag(b)
	if err != nil {
		return Time{}, 0, err
	}
	if tag.Context || tag.Opening || tag.Closing || tag.Number != TagTime {
		return Time{}, 0, ErrInvalidTag
	}
	if tag.LVT != 4 {
		return Time{}, 0, ErrInvalidValue
	}
	if len(b) < n+4 {
		return Time{}, 0, ErrBufferTooShort
	}
	t := Time{
		Hour:       b[n],
		Minute:     b[n+1],
		Second:     b[n+2],
		Hundredths: b[n+3],
	}
	return t, n + 4, nil
}

func AppendObjectID(b []byte, objectType uint16, instance uint32) []byte {
	b = appendTag(b, TagObjectID, false, 4)
	return appendObjectIDValue(b, objectType, instance)
}

func AppendContextObjectID(b []byte, number uint8, objectType uint16, instance uint32) []byte {
	b = appendTag(b, number, true, 4)
	return appendObjectIDValue(b, objectType, instance)
}

func appendObjectIDValue(b []byte, objectType uint16, instance uint32) []byte {
	v := uint32(objectType)<<22 | instance&0x3fffff
	return append(b, uint8(v>>24), uint8(v>>16), uint8(v>>8), uint8(v))
}

func DecodeObjectID(b []byte) (uint16, uint32, int, error) {
	return decodeObjectIDTagged(b, TagObjectID, false)
}

func DecodeContextObjectID(b []byte, number uint8) (uint16, uint32, int, error) {
	return decodeObjectIDTagged(b, number, true)
}

func decodeObjectIDTagged(b []byte, number uint8, context bool) (uint16, uint32, int, error) {
	t, n, err := DecodeTag(b)
	if err != nil {
		return 0, 0, 0, err
	}
	if t.Context != context || t.Opening || t.Closing || t.Number != number {
		return 0, 0, 0, ErrInvalidTag
	}
	if t.LVT != 4 {
		return 0, 0, 0, ErrInvalidValue
	}
	if len(b) < n+4 {
		return 0, 0, 0, ErrBufferTooShort
	}
	v := uint32(b[n])<<24 | uint32(b[n+1])<<16 | uint32(b[n+2])<<8 | uint32(b[n+3])
	return uint16(v >> 22), v & 0x3fffff, n + 4, nil
}

func AppendDateTime(b []byte, dt DateTime) []byte {
	b = AppendDate(b, dt.Date)
	return AppendTime(b, dt.Time)
}

func DecodeDateTime(b []byte) (DateTime, int, error) {
	d, n, err := DecodeDate(b)
	if err != nil {
		return DateTime{}, 0, err
	}
	t, m, err := DecodeTime(b[n:])
	if err != nil {
		return DateTime{}, 0, err
	}
	return DateTime{Date: d, Time: t}, n + m, nil
}

func AppendContextDateTime(b []byte, number uint8, dt DateTime) []byte {
	b = AppendOpeningTag(b, number)
	b = AppendDateTime(b, dt)
	return AppendClosingTag(b, number)
}

func DecodeContextDateTime(b []byte, number uint8) (DateTime, int, error) {
	n, err := DecodeOpeningTag(b, number)
	if err != nil {
		return DateTime{}, 0, err
	}
	dt, m, err := DecodeDateTime(b[n:])
	if err != nil {
		return DateTime{}, 0, err
	}
	n += m
	m, err = DecodeClosingTag(b[n:], number)
	if err != nil {
		return DateTime{}, 0, err
	}
	return dt, n + m, nil
}

func AppendDateRange(b []byte, r DateRange) []byte {
	b = AppendDate(b, r.Start)
	return AppendDate(b, r.End)
}

func DecodeDateRange(b []byte) (DateRange, int, error) {
	start, n, err := DecodeDate(b)
	if err != nil {
		return DateRange{}, 0, err
	}
	end, m, err := DecodeDate(b[n:])
	if err != nil {
		return DateRange{}, 0, err
	}
	return DateRange{Start: start, End: end}, n + m, nil
}
