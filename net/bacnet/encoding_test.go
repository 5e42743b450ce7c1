package bacnet_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/GauiStori/bacnet-stack/net/bacnet"
)

func TestDateEncoding(t *testing.T) {
	d := bacnet.Date{Year: 2024, Month: 3, Day: 9, WDay: 6}
	b := bacnet.AppendDate(nil, d)
	want := []byte{0xa4, 124, 3, 9, 6}
	if !bytes.Equal(b, want) {
		t.Fatalf("AppendDate = %x, want %x", b, want)
	}
	got, n, err := bacnet.DecodeDate(b)
	if err != nil || n != len(b) || got != d {
		t.Errorf("DecodeDate = %v, %d, %v", got, n, err)
	}

	b = bacnet.AppendDate(nil, bacnet.DateWildcard())
	if !bytes.Equal(b, []byte{0xa4, 0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("AppendDate wildcard = %x", b)
	}
	got, _, err = bacnet.DecodeDate(b)
	if err != nil || !got.IsWildcard() {
		t.Errorf("DecodeDate wildcard = %v, %v", got, err)
	}
}

func TestTimeEncoding(t *testing.T) {
	tm := bacnet.Time{Hour: 23, Minute: 59, Second: 59, Hundredths: 99}
	b := bacnet.AppendTime(nil, tm)
	want := []byte{0xb4, 0x17, 0x3b, 0x3b, 0x63}
	if !bytes.Equal(b, want) {
		t.Fatalf("AppendTime = %x, want %x", b, want)
	}
	got, n, err := bacnet.DecodeTime(b)
	if err != nil || n != len(b) || got != tm {
		t.Errorf("DecodeTime = %v, %d, %v", got, n, err)
	}
}

func TestBooleanEncoding(t *testing.T) {
	b := bacnet.AppendBoolean(nil, true)
	if !bytes.Equal(b, []byte{0x11}) {
		t.Fatalf("AppendBoolean(true) = %x", b)
	}
	v, n, err := bacnet.DecodeBoolean(b)
	if err != nil || n != 1 || v != true {
		t.Errorf("DecodeBoolean = %v, %d, %v", v, n, err)
	}
	b = bacnet.AppendBoolean(nil, false)
	if !bytes.Equal(b, []byte{0x10}) {
		t.Fatalf("AppendBoolean(false) = %x", b)
	}
	v, _, err = bacnet.DecodeBoolean(b)
	if err != nil || v != false {
		t.Errorf("DecodeBoolean = %v, %v", v, err)
	}
}

func TestNullEncoding(t *testing.T) {
	b := bacnet.AppendNull(nil)
	if !bytes.Equal(b, []byte{0x00}) {
		t.Fatalf("AppendNull = %x", b)
	}
	n, err := bacnet.DecodeNull(b)
	if err != nil || n != 1 {
		t.Errorf("DecodeNull = %d, %v", n, err)
	}
	if _, err = bacnet.DecodeNull([]byte{0x11}); !errors.Is(err, bacnet.ErrInvalidTag) {
		t.Errorf("DecodeNull on boolean: err = %v", err)
	}
}

func TestRealEncoding(t *testing.T) {
	cases := []struct {
		v    float32
		want []byte
	}{
		{0, []byte{0x44, 0x00, 0x00, 0x00, 0x00}},
		{72.0, []byte{0x44, 0x42, 0x90, 0x00, 0x00}},
		{-2.5, []byte{0x44, 0xc0, 0x20, 0x00, 0x00}},
	}
	for _, c := range cases {
		b := bacnet.AppendReal(nil, c.v)
		if !bytes.Equal(b, c.want) {
			t.Errorf("AppendReal(%v) = %x, want %x", c.v, b, c.want)
			continue
		}
		v, n, err := bacnet.DecodeReal(b)
		if err != nil || n != len(b) || v != c.v {
			t.Errorf("DecodeReal(%x) = %v, %d, %v", b, v, n, err)
		}
	}
}

func TestUnsignedEncoding(t *testing.T) {
	cases := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0x21, 0x00}},
		{255, []byte{0x21, 0xff}},
		{256, []byte{0x22, 0x01, 0x00}},
		{4194303, []byte{0x23, 0x3f, 0xff, 0xff}},
		{0x01020304, []byte{0x24, 0x01, 0x02, 0x03, 0x04}},
	}
	for _, c := range cases {
		b := bacnet.AppendUnsigned(nil, c.v)
		if !bytes.Equal(b, c.want) {
			t.Errorf("AppendUnsigned(%d) = %x, want %x", c.v, b, c.want)
			continue
		}
		v, n, err := bacnet.DecodeUnsigned(b)
		if err != nil || n != len(b) || v != c.v {
			t.Errorf("DecodeUnsigned(%x) = %d, %d, %v", b, v, n, err)
		}
	}
}

func TestSignedEncoding(t *testing.T) {
	cases := []struct {
		v    int32
		want []byte
	}{
		{0, []byte{0x31, 0x00}},
		{-1, []byte{0x31, 0xff}},
		{127, []byte{0x31, 0x7f}},
		{128, []byte{0x32, 0x00, 0x80}},
		{480, []byte{0x32, 0x01, 0xe0}},
		{-300, []byte{0x32, 0xfe, 0xd4}},
		{-720, []byte{0x32, 0xfd, 0x30}},
	}
	for _, c := range cases {
		b := bacnet.AppendSigned(nil, c.v)
		if !bytes.Equal(b, c.want) {
			t.Errorf("AppendSigned(%d) = %x, want %x", c.v, b, c.want)
			continue
		}
		v, n, err := bacnet.DecodeSigned(b)
		if err != nil || n != len(b) || v != c.v {
			t.Errorf("DecodeSigned(%x) = %d, %d, %v", b, v, n, err)
		}
	}
}

func TestEnumeratedEncoding(t *testing.T) {
	b := bacnet.AppendEnumerated(nil, 9)
	if !bytes.Equal(b, []byte{0x91, 0x09}) {
		t.Fatalf("AppendEnumerated(9) = %x", b)
	}
	v, _, err := bacnet.DecodeEnumerated(b)
	if err != nil || v != 9 {
		t.Errorf("DecodeEnumerated = %d, %v", v, err)
	}
}

func TestCharacterStringEncoding(t *testing.T) {
	b := bacnet.AppendCharacterString(nil, "Hi")
	if !bytes.Equal(b, []byte{0x73, 0x00, 'H', 'i'}) {
		t.Fatalf("AppendCharacterString = %x", b)
	}
	s, n, err := bacnet.DecodeCharacterString(b)
	if err != nil || n != len(b) || s != "Hi" {
		t.Errorf("DecodeCharacterString = %q, %d, %v", s, n, err)
	}

	// Strings longer than four octets take the extended length form.
	b = bacnet.AppendCharacterString(nil, "bactime")
	if !bytes.Equal(b, []byte{0x75, 0x08, 0x00, 'b', 'a', 'c', 't', 'i', 'm', 'e'}) {
		t.Fatalf("AppendCharacterString long = %x", b)
	}
	s, _, err = bacnet.DecodeCharacterString(b)
	if err != nil || s != "bactime" {
		t.Errorf("DecodeCharacterString long = %q, %v", s, err)
	}
}

func TestObjectIDEncoding(t *testing.T) {
	b := bacnet.AppendObjectID(nil, 8, 1234)
	if !bytes.Equal(b, []byte{0xc4, 0x02, 0x00, 0x04, 0xd2}) {
		t.Fatalf("AppendObjectID = %x", b)
	}
	ot, inst, n, err := bacnet.DecodeObjectID(b)
	if err != nil || n != len(b) || ot != 8 || inst != 1234 {
		t.Errorf("DecodeObjectID = %d, %d, %d, %v", ot, inst, n, err)
	}

	b = bacnet.AppendContextObjectID(nil, 0, 8, 4194302)
	if !bytes.Equal(b, []byte{0x0c, 0x02, 0x3f, 0xff, 0xfe}) {
		t.Fatalf("AppendContextObjectID = %x", b)
	}
	ot, inst, _, err = bacnet.DecodeContextObjectID(b, 0)
	if err != nil || ot != 8 || inst != 4194302 {
		t.Errorf("DecodeContextObjectID = %d, %d, %v", ot, inst, err)
	}
}

func TestContextUnsignedEncoding(t *testing.T) {
	b := bacnet.AppendContextUnsigned(nil, 2, 100)
	if !bytes.Equal(b, []byte{0x29, 0x64}) {
		t.Fatalf("AppendContextUnsigned = %x", b)
	}
	v, n, err := bacnet.DecodeContextUnsigned(b, 2)
	if err != nil || n != len(b) || v != 100 {
		t.Errorf("DecodeContextUnsigned = %d, %d, %v", v, n, err)
	}
	if _, _, err := bacnet.DecodeContextUnsigned(b, 3); !errors.Is(err, bacnet.ErrInvalidTag) {
		t.Errorf("tag number mismatch: %v", err)
	}
}

func TestContextDateTimeEncoding(t *testing.T) {
	dt := bacnet.DateTime{
		Date: bacnet.Date{Year: 2024, Month: 3, Day: 9, WDay: 6},
		Time: bacnet.Time{Hour: 14, Minute: 30},
	}
	b := bacnet.AppendContextDateTime(nil, 3, dt)
	want := []byte{0x3e, 0xa4, 124, 3, 9, 6, 0xb4, 14, 30, 0, 0, 0x3f}
	if !bytes.Equal(b, want) {
		t.Fatalf("AppendContextDateTime = %x, want %x", b, want)
	}
	got, n, err := bacnet.DecodeContextDateTime(b, 3)
	if err != nil || n != len(b) || got != dt {
		t.Errorf("DecodeContextDateTime = %v, %d, %v", got, n, err)
	}
}

func TestDateRangeEncoding(t *testing.T) {
	r := bacnet.DateRange{
		Start: bacnet.Date{Year: 2024, Month: 10, Day: 1, WDay: 2},
		End:   bacnet.Date{Year: 2024, Month: 11, Day: 1, WDay: 5},
	}
	b := bacnet.AppendDateRange(nil, r)
	got, n, err := bacnet.DecodeDateRange(b)
	if err != nil || n != len(b) || got != r {
		t.Errorf("DecodeDateRange = %v, %d, %v", got, n, err)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, _, err := bacnet.DecodeUnsigned(nil); !errors.Is(err, bacnet.ErrBufferTooShort) {
		t.Errorf("empty buffer: %v", err)
	}
	if _, _, err := bacnet.DecodeUnsigned([]byte{0x22, 0x01}); !errors.Is(err, bacnet.ErrBufferTooShort) {
		t.Errorf("truncated value: %v", err)
	}
	if _, _, err := bacnet.DecodeUnsigned([]byte{0x11}); !errors.Is(err, bacnet.ErrInvalidTag) {
		t.Errorf("boolean as unsigned: %v", err)
	}
	if _, _, err := bacnet.DecodeDate([]byte{0xa3, 124, 3, 9}); !errors.Is(err, bacnet.ErrInvalidValue) {
		t.Errorf("short date: %v", err)
	}
	if _, _, err := bacnet.DecodeCharacterString([]byte{0x73, 0x01, 'H', 'i'}); !errors.Is(err, bacnet.ErrInvalidValue) {
		t.Errorf("unknown character set: %v", err)
	}
	if _, err := bacnet.DecodeOpeningTag([]byte{0x3f}, 3); !errors.Is(err, bacnet.ErrInvalidTag) {
		t.Errorf("closing as opening: %v", err)
	}
}
