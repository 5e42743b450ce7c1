package server

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/GauiStori/bacnet-stack/core/client"
	"github.com/GauiStori/bacnet-stack/core/datetime"
	"github.com/GauiStori/bacnet-stack/core/timebase"
	"github.com/GauiStori/bacnet-stack/driver/clocks"
	"github.com/GauiStori/bacnet-stack/net/apdu"
	"github.com/GauiStori/bacnet-stack/net/bacnet"
	"github.com/GauiStori/bacnet-stack/net/bvll"
)

func testDevice(host timebase.HostClock, cfg datetime.Config) *Device {
	clk := datetime.NewSharedClock(datetime.NewClock(host, cfg))
	clk.Init()
	return &Device{
		Instance:         4001,
		Name:             "bactime-test",
		Description:      "device under test",
		VendorName:       "bactime project",
		VendorID:         260,
		ModelName:        "bactime",
		FirmwareRevision: "1.0",
		SoftwareVersion:  "1.0",
		DatabaseRevision: 1,
		Clock:            clk,
	}
}

func systemDevice() *Device {
	host := clocks.NewSystemClock(slog.New(slog.DiscardHandler), time.UTC)
	return testDevice(host, datetime.Config{})
}

func startTestServer(t *testing.T, dev *Device) (*net.UDPAddr, func()) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		defer close(done)
		runIPServer(zap.NewNop(), ipsMtrcs, conn, dev)
	}()
	stop := func() {
		_ = conn.Close()
		<-done
	}
	return conn.LocalAddr().(*net.UDPAddr), stop
}

func TestServerReadProperty(t *testing.T) {
	defer goleak.VerifyNone(t)
	dev := systemDevice()
	remoteAddr, stop := startTestServer(t, dev)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log := zap.NewNop()
	c := &client.IPClient{Log: log}
	localAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}

	v, err := client.ReadPropertyIP(ctx, log, c, localAddr, remoteAddr, apdu.PropObjectName)
	require.NoError(t, err)
	name, n, err := bacnet.DecodeCharacterString(v)
	require.NoError(t, err)
	require.Equal(t, len(v), n)
	require.Equal(t, "bactime-test", name)

	v, err = client.ReadPropertyIP(ctx, log, c, localAddr, remoteAddr, apdu.PropVendorIdentifier)
	require.NoError(t, err)
	vendor, _, err := bacnet.DecodeUnsigned(v)
	require.NoError(t, err)
	require.Equal(t, uint32(260), vendor)

	_, err = client.ReadPropertyIP(ctx, log, c, localAddr, remoteAddr, 9999)
	var svcErr client.ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, uint32(apdu.ErrorClassProperty), svcErr.Class)
	require.Equal(t, uint32(apdu.ErrorCodeUnknownProperty), svcErr.Code)
}

func TestServerWriteProperty(t *testing.T) {
	defer goleak.VerifyNone(t)
	dev := systemDevice()
	remoteAddr, stop := startTestServer(t, dev)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log := zap.NewNop()
	c := &client.IPClient{Log: log}
	localAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}

	err := client.WritePropertyIP(ctx, log, c, localAddr, remoteAddr,
		apdu.PropUTCOffset, bacnet.AppendSigned(nil, -300))
	require.NoError(t, err)
	require.Equal(t, -300, dev.Clock.UTCOffset())

	err = client.WritePropertyIP(ctx, log, c, localAddr, remoteAddr,
		apdu.PropObjectName, bacnet.AppendCharacterString(nil, "override"))
	var svcErr client.ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, uint32(apdu.ErrorClassProperty), svcErr.Class)
	require.Equal(t, uint32(apdu.ErrorCodeWriteAccessDenied), svcErr.Code)
}

func TestServerTimeSync(t *testing.T) {
	defer goleak.VerifyNone(t)
	dev := systemDevice()
	remoteAddr, stop := startTestServer(t, dev)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log := zap.NewNop()
	c := &client.IPClient{Log: log}
	localAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}

	target := time.Now().UTC().Add(2 * time.Minute)
	err := client.SendTimeSyncIP(ctx, log, c, localAddr, remoteAddr,
		false, true, bacnet.DateTimeFromTime(target))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		off := dev.Clock.TrackingOffset()
		return off > time.Minute && off < 3*time.Minute
	}, 5*time.Second, 10*time.Millisecond)
}

func TestServerMeasureClockOffset(t *testing.T) {
	defer goleak.VerifyNone(t)
	dev := systemDevice()
	remoteAddr, stop := startTestServer(t, dev)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log := zap.NewNop()
	c := &client.IPClient{Log: log}
	localAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}

	ts, offset, err := client.MeasureClockOffsetIP(ctx, log, c, localAddr, remoteAddr)
	require.NoError(t, err)
	require.False(t, ts.IsZero())
	require.Less(t, offset.Abs(), 50*time.Millisecond)
}

func TestServerWhoIs(t *testing.T) {
	defer goleak.VerifyNone(t)
	dev := systemDevice()
	remoteAddr, stop := startTestServer(t, dev)
	defer stop()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	msg := bvll.AppendHeader(nil, bvll.FuncOriginalBroadcastNPDU)
	msg = bvll.AppendNPDU(msg, false)
	msg = apdu.AppendWhoIs(msg, apdu.WhoIs{LowLimit: 4001, HighLimit: 4001})
	bvll.FinalizeLength(msg)
	_, err = conn.WriteToUDPAddrPort(msg, remoteAddr.AddrPort())
	require.NoError(t, err)

	buf := make([]byte, 2048)
	n, _, err := conn.ReadFromUDPAddrPort(buf)
	require.NoError(t, err)
	fn, payload, err := bvll.DecodeHeader(buf[:n])
	require.NoError(t, err)
	require.Equal(t, uint8(bvll.FuncOriginalUnicastNPDU), fn)
	body, err := bvll.DecodeNPDU(payload)
	require.NoError(t, err)
	req, err := apdu.DecodeRequest(body)
	require.NoError(t, err)
	require.False(t, req.Confirmed)
	require.Equal(t, uint8(apdu.UnconfirmedServiceIAm), req.Service)
	ia, err := apdu.DecodeIAm(req.Body)
	require.NoError(t, err)
	require.Equal(t, uint32(4001), ia.DeviceID)
	require.Equal(t, uint16(260), ia.VendorID)

	msg = bvll.AppendHeader(msg[:0], bvll.FuncOriginalBroadcastNPDU)
	msg = bvll.AppendNPDU(msg, false)
	msg = apdu.AppendWhoIs(msg, apdu.WhoIs{LowLimit: 1, HighLimit: 10})
	bvll.FinalizeLength(msg)
	_, err = conn.WriteToUDPAddrPort(msg, remoteAddr.AddrPort())
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(250*time.Millisecond)))
	_, _, err = conn.ReadFromUDPAddrPort(buf)
	require.Error(t, err)
}

func TestServerRejectsUnsupportedRequests(t *testing.T) {
	defer goleak.VerifyNone(t)
	dev := systemDevice()
	remoteAddr, stop := startTestServer(t, dev)
	defer stop()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 2048)

	readResponse := func(msg []byte) apdu.Response {
		t.Helper()
		bvll.FinalizeLength(msg)
		_, err := conn.WriteToUDPAddrPort(msg, remoteAddr.AddrPort())
		require.NoError(t, err)
		n, _, err := conn.ReadFromUDPAddrPort(buf)
		require.NoError(t, err)
		_, payload, err := bvll.DecodeHeader(buf[:n])
		require.NoError(t, err)
		body, err := bvll.DecodeNPDU(payload)
		require.NoError(t, err)
		resp, err := apdu.DecodeResponse(body)
		require.NoError(t, err)
		return resp
	}

	// An unknown confirmed service is rejected.
	msg := bvll.AppendHeader(nil, bvll.FuncOriginalUnicastNPDU)
	msg = bvll.AppendNPDU(msg, true)
	msg = append(msg, apdu.PDUTypeConfirmedRequest, 0x05, 43, 99)
	resp := readResponse(msg)
	require.Equal(t, uint8(apdu.PDUTypeReject), resp.PDUType)
	require.Equal(t, uint8(43), resp.InvokeID)
	require.Equal(t, uint8(apdu.RejectReasonUnrecognizedService), resp.Reason)

	// A segmented request is aborted.
	msg = bvll.AppendHeader(msg[:0], bvll.FuncOriginalUnicastNPDU)
	msg = bvll.AppendNPDU(msg, true)
	msg = append(msg, apdu.PDUTypeConfirmedRequest|0x08, 0x05, 44, 0, 1,
		apdu.ConfirmedServiceReadProperty)
	resp = readResponse(msg)
	require.Equal(t, uint8(apdu.PDUTypeAbort), resp.PDUType)
	require.Equal(t, uint8(44), resp.InvokeID)
	require.Equal(t, uint8(apdu.AbortReasonSegmentationNotSupported), resp.Reason)
}

func TestHandleReadPropertyErrors(t *testing.T) {
	host := clocks.NewSimulatedClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	dev := testDevice(host, datetime.Config{})

	cases := []struct {
		name  string
		req   apdu.ReadPropertyReq
		class uint32
		code  uint32
	}{
		{
			name: "unknown instance",
			req: apdu.ReadPropertyReq{ObjectType: apdu.ObjectTypeDevice,
				Instance: 99, Property: apdu.PropObjectName, ArrayIndex: apdu.ArrayAll},
			class: apdu.ErrorClassObject,
			code:  apdu.ErrorCodeUnknownObject,
		},
		{
			name: "not a device object",
			req: apdu.ReadPropertyReq{ObjectType: 0,
				Instance: 4001, Property: apdu.PropObjectName, ArrayIndex: apdu.ArrayAll},
			class: apdu.ErrorClassObject,
			code:  apdu.ErrorCodeUnknownObject,
		},
		{
			name: "array index on scalar",
			req: apdu.ReadPropertyReq{ObjectType: apdu.ObjectTypeDevice,
				Instance: 4001, Property: apdu.PropObjectName, ArrayIndex: 1},
			class: apdu.ErrorClassProperty,
			code:  apdu.ErrorCodePropertyIsNotAnArray,
		},
		{
			name: "unknown property",
			req: apdu.ReadPropertyReq{ObjectType: apdu.ObjectTypeDevice,
				Instance: 4001, Property: 9999, ArrayIndex: apdu.ArrayAll},
			class: apdu.ErrorClassProperty,
			code:  apdu.ErrorCodeUnknownProperty,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := apdu.AppendReadPropertyReq(nil, 9, tc.req)[4:]
			resp, err := apdu.DecodeResponse(handleReadProperty(dev, 9, body, nil))
			require.NoError(t, err)
			require.Equal(t, uint8(apdu.PDUTypeError), resp.PDUType)
			require.Equal(t, tc.class, resp.Class)
			require.Equal(t, tc.code, resp.Code)
		})
	}

	resp, err := apdu.DecodeResponse(handleReadProperty(dev, 9, []byte{0xff, 0xff}, nil))
	require.NoError(t, err)
	require.Equal(t, uint8(apdu.PDUTypeReject), resp.PDUType)
	require.Equal(t, uint8(apdu.RejectReasonInvalidTag), resp.Reason)
}

func TestHandleReadPropertyClockFailure(t *testing.T) {
	host := clocks.NewSimulatedClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	dev := testDevice(host, datetime.Config{})
	host.Fail(true)

	body := apdu.AppendReadPropertyReq(nil, 3, apdu.ReadPropertyReq{
		ObjectType: apdu.ObjectTypeDevice, Instance: 4001,
		Property: apdu.PropLocalTime, ArrayIndex: apdu.ArrayAll,
	})[4:]
	resp, err := apdu.DecodeResponse(handleReadProperty(dev, 3, body, nil))
	require.NoError(t, err)
	require.Equal(t, uint8(apdu.PDUTypeError), resp.PDUType)
	require.Equal(t, uint32(apdu.ErrorClassDevice), resp.Class)
	require.Equal(t, uint32(apdu.ErrorCodeOperationalProblem), resp.Code)

	// The UTC offset keeps answering with the fallback value.
	body = apdu.AppendReadPropertyReq(nil, 4, apdu.ReadPropertyReq{
		ObjectType: apdu.ObjectTypeDevice, Instance: 4001,
		Property: apdu.PropUTCOffset, ArrayIndex: apdu.ArrayAll,
	})[4:]
	resp, err = apdu.DecodeResponse(handleReadProperty(dev, 4, body, nil))
	require.NoError(t, err)
	require.Equal(t, uint8(apdu.PDUTypeComplexACK), resp.PDUType)
	ack, err := apdu.DecodeReadPropertyACK(resp.Body)
	require.NoError(t, err)
	off, _, err := bacnet.DecodeSigned(ack.Value)
	require.NoError(t, err)
	require.Equal(t, int32(480), off)
}

func TestHandleReadPropertyRecipients(t *testing.T) {
	host := clocks.NewSimulatedClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	dev := testDevice(host, datetime.Config{})
	dev.TimeSyncRecipients = []netip.AddrPort{netip.MustParseAddrPort("192.0.2.7:47808")}

	read := func(prop uint32) apdu.ReadPropertyACK {
		t.Helper()
		body := apdu.AppendReadPropertyReq(nil, 5, apdu.ReadPropertyReq{
			ObjectType: apdu.ObjectTypeDevice, Instance: 4001,
			Property: prop, ArrayIndex: apdu.ArrayAll,
		})[4:]
		resp, err := apdu.DecodeResponse(handleReadProperty(dev, 5, body, nil))
		require.NoError(t, err)
		require.Equal(t, uint8(apdu.PDUTypeComplexACK), resp.PDUType)
		ack, err := apdu.DecodeReadPropertyACK(resp.Body)
		require.NoError(t, err)
		return ack
	}

	want := bacnet.AppendOpeningTag(nil, 1)
	want = bacnet.AppendUnsigned(want, 0)
	want = bacnet.AppendOctetString(want, []byte{192, 0, 2, 7, 0xba, 0xc0})
	want = bacnet.AppendClosingTag(want, 1)
	ack := read(apdu.PropTimeSynchronizationRecipients)
	require.Equal(t, want, ack.Value)

	// The UTC flavor answers with an empty list on a local time master.
	ack = read(apdu.PropUTCTimeSynchronizationRecipients)
	require.Empty(t, ack.Value)
}

func writeReq(prop uint32, value []byte) []byte {
	return apdu.AppendWritePropertyReq(nil, 7, apdu.WritePropertyReq{
		ObjectType: apdu.ObjectTypeDevice,
		Instance:   4001,
		Property:   prop,
		ArrayIndex: apdu.ArrayAll,
		Value:      value,
		Priority:   apdu.MaxPriority,
	})[4:]
}

func TestHandleWritePropertyErrors(t *testing.T) {
	host := clocks.NewSimulatedClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	dev := testDevice(host, datetime.Config{})
	log := zap.NewNop()

	cases := []struct {
		name  string
		body  []byte
		class uint32
		code  uint32
	}{
		{
			name: "wildcard time",
			body: writeReq(apdu.PropLocalTime, bacnet.AppendTime(nil,
				bacnet.Time{Hour: 0xff, Minute: 0xff, Second: 0xff, Hundredths: 0xff})),
			class: apdu.ErrorClassProperty,
			code:  apdu.ErrorCodeValueOutOfRange,
		},
		{
			name:  "date value where time expected",
			body:  writeReq(apdu.PropLocalTime, bacnet.AppendDate(nil, bacnet.Date{Year: 2026, Month: 3, Day: 14, WDay: 6})),
			class: apdu.ErrorClassProperty,
			code:  apdu.ErrorCodeInvalidDataType,
		},
		{
			name:  "utc offset out of range",
			body:  writeReq(apdu.PropUTCOffset, bacnet.AppendSigned(nil, 1000)),
			class: apdu.ErrorClassProperty,
			code:  apdu.ErrorCodeValueOutOfRange,
		},
		{
			name:  "read only property",
			body:  writeReq(apdu.PropVendorName, bacnet.AppendCharacterString(nil, "override")),
			class: apdu.ErrorClassProperty,
			code:  apdu.ErrorCodeWriteAccessDenied,
		},
		{
			name:  "unknown property",
			body:  writeReq(9999, bacnet.AppendBoolean(nil, true)),
			class: apdu.ErrorClassProperty,
			code:  apdu.ErrorCodeUnknownProperty,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := apdu.DecodeResponse(handleWriteProperty(log, dev, 7, tc.body, nil))
			require.NoError(t, err)
			require.Equal(t, uint8(apdu.PDUTypeError), resp.PDUType)
			require.Equal(t, tc.class, resp.Class)
			require.Equal(t, tc.code, resp.Code)
		})
	}
	require.Equal(t, time.Duration(0), dev.Clock.TrackingOffset())
}

func TestHandleWritePropertyLocalTime(t *testing.T) {
	host := clocks.NewSimulatedClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	dev := testDevice(host, datetime.Config{})
	log := zap.NewNop()

	body := writeReq(apdu.PropLocalTime, bacnet.AppendTime(nil, bacnet.Time{Hour: 13}))
	resp, err := apdu.DecodeResponse(handleWriteProperty(log, dev, 7, body, nil))
	require.NoError(t, err)
	require.Equal(t, uint8(apdu.PDUTypeSimpleACK), resp.PDUType)
	require.Equal(t, uint8(apdu.ConfirmedServiceWriteProperty), resp.Service)
	require.Equal(t, time.Hour, dev.Clock.TrackingOffset())
}

func TestHandleWritePropertyCoupled(t *testing.T) {
	host := clocks.NewSimulatedClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	dev := testDevice(host, datetime.Config{Coupled: true})
	log := zap.NewNop()

	// Overrides are rejected while the host clock is authoritative.
	body := writeReq(apdu.PropUTCOffset, bacnet.AppendSigned(nil, -60))
	resp, err := apdu.DecodeResponse(handleWriteProperty(log, dev, 7, body, nil))
	require.NoError(t, err)
	require.Equal(t, uint8(apdu.PDUTypeError), resp.PDUType)
	require.Equal(t, uint32(apdu.ErrorClassProperty), resp.Class)
	require.Equal(t, uint32(apdu.ErrorCodeWriteAccessDenied), resp.Code)

	// Absolute sets go to the host clock.
	body = writeReq(apdu.PropLocalTime, bacnet.AppendTime(nil, bacnet.Time{Hour: 13}))
	resp, err = apdu.DecodeResponse(handleWriteProperty(log, dev, 7, body, nil))
	require.NoError(t, err)
	require.Equal(t, uint8(apdu.PDUTypeSimpleACK), resp.PDUType)
	require.Len(t, host.SetCalls(), 1)

	// A denied host set surfaces as a write access error.
	host.DenySet(true)
	body = writeReq(apdu.PropLocalTime, bacnet.AppendTime(nil, bacnet.Time{Hour: 14}))
	resp, err = apdu.DecodeResponse(handleWriteProperty(log, dev, 7, body, nil))
	require.NoError(t, err)
	require.Equal(t, uint8(apdu.PDUTypeError), resp.PDUType)
	require.Equal(t, uint32(apdu.ErrorCodeWriteAccessDenied), resp.Code)
}

func TestHandleTimeSync(t *testing.T) {
	host := clocks.NewSimulatedClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	dev := testDevice(host, datetime.Config{})
	log := zap.NewNop()

	// Wildcard fields make the request unusable; it is ignored.
	dt := bacnet.DateTimeFromTime(time.Date(2026, 3, 14, 13, 0, 0, 0, time.UTC))
	dt.Time.Hour = 0xff
	handleTimeSync(log, dev, apdu.AppendTimeSync(nil, true, dt)[2:], true)
	require.Equal(t, time.Duration(0), dev.Clock.TrackingOffset())

	dt = bacnet.DateTimeFromTime(time.Date(2026, 3, 14, 13, 0, 0, 0, time.UTC))
	handleTimeSync(log, dev, apdu.AppendTimeSync(nil, true, dt)[2:], true)
	require.Equal(t, time.Hour, dev.Clock.TrackingOffset())
}
