// Package server implements the BACnet/IP device server: it answers
// ReadProperty and WriteProperty for the Device object, applies the two time
// synchronization services to the clock engine and announces the device via
// I-Am.
package server

import (
	"context"
	"errors"
	"net"
	"net/netip"

	"github.com/libp2p/go-reuseport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go.uber.org/zap"

	"github.com/GauiStori/bacnet-stack/base/metrics"

	"github.com/GauiStori/bacnet-stack/core/datetime"

	"github.com/GauiStori/bacnet-stack/net/apdu"
	"github.com/GauiStori/bacnet-stack/net/bacnet"
	"github.com/GauiStori/bacnet-stack/net/bvll"
	"github.com/GauiStori/bacnet-stack/net/udp"
)

const (
	ipServerNumGoroutine = 8
)

// Device is the BACnet Device object the server answers for, together with
// the clock engine behind its clock properties. The fields are read only
// once the server is started; the engine serializes its own access.
type Device struct {
	Instance         uint32
	Name             string
	Description      string
	VendorName       string
	VendorID         uint16
	ModelName        string
	FirmwareRevision string
	SoftwareVersion  string
	DatabaseRevision uint32

	// BroadcastAddr is where I-Am announcements go; unset means Who-Is
	// is answered unicast and no startup announcement is sent.
	BroadcastAddr netip.AddrPort

	// Time master configuration, exposed through the time synchronization
	// properties of the Device object.
	TimeSyncRecipients      []netip.AddrPort
	TimeSyncUTC             bool
	TimeSyncIntervalMinutes uint32
	AlignIntervals          bool
	IntervalOffsetMinutes   uint32

	Clock *datetime.SharedClock
}

type ipServerMetrics struct {
	pktsReceived  prometheus.Counter
	pktsForwarded prometheus.Counter
	reqsAccepted  prometheus.Counter
	reqsServed    prometheus.Counter
}

func newIPServerMetrics() *ipServerMetrics {
	return &ipServerMetrics{
		pktsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.IPServerPktsReceivedN,
			Help: metrics.IPServerPktsReceivedH,
		}),
		pktsForwarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.IPServerPktsForwardedN,
			Help: metrics.IPServerPktsForwardedH,
		}),
		reqsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.IPServerReqsAcceptedN,
			Help: metrics.IPServerReqsAcceptedH,
		}),
		reqsServed: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.IPServerReqsServedN,
			Help: metrics.IPServerReqsServedH,
		}),
	}
}

var ipsMtrcs = newIPServerMetrics()

// appendRecipient encodes one BACnetRecipient in its address form: network
// number 0 for the local network, the MAC being the 6 octet B/IP address.
func appendRecipient(b []byte, addr netip.AddrPort) []byte {
	ip4 := addr.Addr().Unmap().As4()
	mac := make([]byte, 0, 6)
	mac = append(mac, ip4[:]...)
	mac = append(mac, uint8(addr.Port()>>8), uint8(addr.Port()))
	b = bacnet.AppendOpeningTag(b, 1)
	b = bacnet.AppendUnsigned(b, 0)
	b = bacnet.AppendOctetString(b, mac)
	return bacnet.AppendClosingTag(b, 1)
}

func appendRecipients(b []byte, addrs []netip.AddrPort) []byte {
	for _, addr := range addrs {
		b = appendRecipient(b, addr)
	}
	return b
}

func handleTimeSync(log *zap.Logger, dev *Device, body []byte, utc bool) {
	dt, err := apdu.DecodeTimeSync(body)
	if err != nil {
		log.Info("failed to decode time synchronization", zap.Error(err))
		return
	}
	if dt.WildcardPresent() || !dt.IsValid() {
		log.Info("ignoring time synchronization with unusable fields",
			zap.Object("data", bacnet.DateTimeMarshaler{DT: &dt}))
		return
	}
	if utc {
		err = dev.Clock.SetUTC(dt.Date, dt.Time)
	} else {
		err = dev.Clock.SetLocal(dt.Date, dt.Time)
	}
	if err != nil {
		log.Info("failed to apply time synchronization", zap.Error(err))
		return
	}
	log.Debug("applied time synchronization",
		zap.Bool("utc", utc),
		zap.Object("data", bacnet.DateTimeMarshaler{DT: &dt}),
	)
}

func handleReadProperty(dev *Device, invokeID uint8, body, tx []byte) []byte {
	rp, err := apdu.DecodeReadPropertyReq(body)
	if err != nil {
		return apdu.AppendReject(tx, invokeID, apdu.RejectReasonInvalidTag)
	}
	if rp.ObjectType != apdu.ObjectTypeDevice ||
		(rp.Instance != dev.Instance && rp.Instance != apdu.MaxObjectInstance) {
		return apdu.AppendError(tx, invokeID, apdu.ConfirmedServiceReadProperty,
			apdu.ErrorClassObject, apdu.ErrorCodeUnknownObject)
	}
	if rp.ArrayIndex != apdu.ArrayAll {
		return apdu.AppendError(tx, invokeID, apdu.ConfirmedServiceReadProperty,
			apdu.ErrorClassProperty, apdu.ErrorCodePropertyIsNotAnArray)
	}

	var val []byte
	switch rp.Property {
	case apdu.PropObjectIdentifier:
		val = bacnet.AppendObjectID(val, apdu.ObjectTypeDevice, dev.Instance)
	case apdu.PropObjectName:
		val = bacnet.AppendCharacterString(val, dev.Name)
	case apdu.PropObjectType:
		val = bacnet.AppendEnumerated(val, apdu.ObjectTypeDevice)
	case apdu.PropSystemStatus:
		val = bacnet.AppendEnumerated(val, apdu.SystemStatusOperational)
	case apdu.PropVendorName:
		val = bacnet.AppendCharacterString(val, dev.VendorName)
	case apdu.PropVendorIdentifier:
		val = bacnet.AppendUnsigned(val, uint32(dev.VendorID))
	case apdu.PropModelName:
		val = bacnet.AppendCharacterString(val, dev.ModelName)
	case apdu.PropFirmwareRevision:
		val = bacnet.AppendCharacterString(val, dev.FirmwareRevision)
	case apdu.PropApplicationSoftwareVersion:
		val = bacnet.AppendCharacterString(val, dev.SoftwareVersion)
	case apdu.PropDescription:
		val = bacnet.AppendCharacterString(val, dev.Description)
	case apdu.PropProtocolVersion:
		val = bacnet.AppendUnsigned(val, apdu.ProtocolVersion)
	case apdu.PropProtocolRevision:
		val = bacnet.AppendUnsigned(val, apdu.ProtocolRevision)
	case apdu.PropSegmentationSupported:
		val = bacnet.AppendEnumerated(val, apdu.SegmentationNone)
	case apdu.PropMaxAPDULengthAccepted:
		val = bacnet.AppendUnsigned(val, apdu.MaxAPDULength)
	case apdu.PropDatabaseRevision:
		val = bacnet.AppendUnsigned(val, dev.DatabaseRevision)
	case apdu.PropLocalDate:
		snap, err := dev.Clock.Local()
		if err != nil {
			return apdu.AppendError(tx, invokeID, apdu.ConfirmedServiceReadProperty,
				apdu.ErrorClassDevice, apdu.ErrorCodeOperationalProblem)
		}
		val = bacnet.AppendDate(val, snap.DateTime.Date)
	case apdu.PropLocalTime:
		snap, err := dev.Clock.Local()
		if err != nil {
			return apdu.AppendError(tx, invokeID, apdu.ConfirmedServiceReadProperty,
				apdu.ErrorClassDevice, apdu.ErrorCodeOperationalProblem)
		}
		val = bacnet.AppendTime(val, snap.DateTime.Time)
	case apdu.PropUTCOffset:
		val = bacnet.AppendSigned(val, int32(dev.Clock.UTCOffset()))
	case apdu.PropDaylightSavingsStatus:
		val = bacnet.AppendBoolean(val, dev.Clock.DST())
	case apdu.PropTimeSynchronizationRecipients:
		if !dev.TimeSyncUTC {
			val = appendRecipients(val, dev.TimeSyncRecipients)
		}
	case apdu.PropUTCTimeSynchronizationRecipients:
		if dev.TimeSyncUTC {
			val = appendRecipients(val, dev.TimeSyncRecipients)
		}
	case apdu.PropTimeSynchronizationInterval:
		val = bacnet.AppendUnsigned(val, dev.TimeSyncIntervalMinutes)
	case apdu.PropAlignIntervals:
		val = bacnet.AppendBoolean(val, dev.AlignIntervals)
	case apdu.PropIntervalOffset:
		val = bacnet.AppendUnsigned(val, dev.IntervalOffsetMinutes)
	default:
		return apdu.AppendError(tx, invokeID, apdu.ConfirmedServiceReadProperty,
			apdu.ErrorClassProperty, apdu.ErrorCodeUnknownProperty)
	}

	return apdu.AppendReadPropertyACK(tx, invokeID, apdu.ReadPropertyACK{
		ObjectType: apdu.ObjectTypeDevice,
		Instance:   dev.Instance,
		Property:   rp.Property,
		ArrayIndex: apdu.ArrayAll,
		Value:      val,
	})
}

// clockWriteError maps an engine error to the WriteProperty error PDU.
func clockWriteError(tx []byte, invokeID uint8, err error) []byte {
	var class, code uint32
	switch {
	case errors.Is(err, datetime.ErrOutOfRange):
		class, code = apdu.ErrorClassProperty, apdu.ErrorCodeValueOutOfRange
	case errors.Is(err, datetime.ErrWriteDenied):
		class, code = apdu.ErrorClassProperty, apdu.ErrorCodeWriteAccessDenied
	default:
		class, code = apdu.ErrorClassDevice, apdu.ErrorCodeOperationalProblem
	}
	return apdu.AppendError(tx, invokeID, apdu.ConfirmedServiceWriteProperty, class, code)
}

func handleWriteProperty(log *zap.Logger, dev *Device, invokeID uint8, body, tx []byte) []byte {
	wp, err := apdu.DecodeWritePropertyReq(body)
	if err != nil {
		return apdu.AppendReject(tx, invokeID, apdu.RejectReasonInvalidTag)
	}
	if wp.ObjectType != apdu.ObjectTypeDevice ||
		(wp.Instance != dev.Instance && wp.Instance != apdu.MaxObjectInstance) {
		return apdu.AppendError(tx, invokeID, apdu.ConfirmedServiceWriteProperty,
			apdu.ErrorClassObject, apdu.ErrorCodeUnknownObject)
	}
	if wp.ArrayIndex != apdu.ArrayAll {
		return apdu.AppendError(tx, invokeID, apdu.ConfirmedServiceWriteProperty,
			apdu.ErrorClassProperty, apdu.ErrorCodePropertyIsNotAnArray)
	}

	switch wp.Property {
	case apdu.PropLocalTime:
		tod, n, err := bacnet.DecodeTime(wp.Value)
		if err != nil || n != len(wp.Value) {
			return apdu.AppendError(tx, invokeID, apdu.ConfirmedServiceWriteProperty,
				apdu.ErrorClassProperty, apdu.ErrorCodeInvalidDataType)
		}
		if tod.WildcardPresent() || !tod.IsValid() {
			return apdu.AppendError(tx, invokeID, apdu.ConfirmedServiceWriteProperty,
				apdu.ErrorClassProperty, apdu.ErrorCodeValueOutOfRange)
		}
		snap, err := dev.Clock.Local()
		if err != nil {
			return clockWriteError(tx, invokeID, err)
		}
		err = dev.Clock.SetLocal(snap.DateTime.Date, tod)
		if err != nil {
			return clockWriteError(tx, invokeID, err)
		}
		log.Debug("local time written", zap.Stringer("time", tod))
	case apdu.PropLocalDate:
		d, n, err := bacnet.DecodeDate(wp.Value)
		if err != nil || n != len(wp.Value) {
			return apdu.AppendError(tx, invokeID, apdu.ConfirmedServiceWriteProperty,
				apdu.ErrorClassProperty, apdu.ErrorCodeInvalidDataType)
		}
		if d.WildcardPresent() || !d.IsValid() {
			return apdu.AppendError(tx, invokeID, apdu.ConfirmedServiceWriteProperty,
				apdu.ErrorClassProperty, apdu.ErrorCodeValueOutOfRange)
		}
		snap, err := dev.Clock.Local()
		if err != nil {
			return clockWriteError(tx, invokeID, err)
		}
		err = dev.Clock.SetLocal(d, snap.DateTime.Time)
		if err != nil {
			return clockWriteError(tx, invokeID, err)
		}
		log.Debug("local date written", zap.Stringer("date", d))
	case apdu.PropUTCOffset:
		off, n, err := bacnet.DecodeSigned(wp.Value)
		if err != nil || n != len(wp.Value) {
			return apdu.AppendError(tx, invokeID, apdu.ConfirmedServiceWriteProperty,
				apdu.ErrorClassProperty, apdu.ErrorCodeInvalidDataType)
		}
		err = dev.Clock.SetUTCOffset(int(off))
		if err != nil {
			return clockWriteError(tx, invokeID, err)
		}
		log.Debug("utc offset written", zap.Int32("minutes", off))
	case apdu.PropDaylightSavingsStatus:
		active, n, err := bacnet.DecodeBoolean(wp.Value)
		if err != nil || n != len(wp.Value) {
			return apdu.AppendError(tx, invokeID, apdu.ConfirmedServiceWriteProperty,
				apdu.ErrorClassProperty, apdu.ErrorCodeInvalidDataType)
		}
		err = dev.Clock.SetDST(active)
		if err != nil {
			return clockWriteError(tx, invokeID, err)
		}
		log.Debug("daylight savings status written", zap.Bool("active", active))
	case apdu.PropObjectIdentifier, apdu.PropObjectName, apdu.PropObjectType,
		apdu.PropSystemStatus, apdu.PropVendorName, apdu.PropVendorIdentifier,
		apdu.PropModelName, apdu.PropFirmwareRevision,
		apdu.PropApplicationSoftwareVersion, apdu.PropDescription,
		apdu.PropProtocolVersion, apdu.PropProtocolRevision,
		apdu.PropSegmentationSupported, apdu.PropMaxAPDULengthAccepted,
		apdu.PropDatabaseRevision, apdu.PropTimeSynchronizationRecipients,
		apdu.PropUTCTimeSynchronizationRecipients,
		apdu.PropTimeSynchronizationInterval, apdu.PropAlignIntervals,
		apdu.PropIntervalOffset:
		return apdu.AppendError(tx, invokeID, apdu.ConfirmedServiceWriteProperty,
			apdu.ErrorClassProperty, apdu.ErrorCodeWriteAccessDenied)
	default:
		return apdu.AppendError(tx, invokeID, apdu.ConfirmedServiceWriteProperty,
			apdu.ErrorClassProperty, apdu.ErrorCodeUnknownProperty)
	}

	return apdu.AppendSimpleACK(tx, invokeID, apdu.ConfirmedServiceWriteProperty)
}

// appendIAmFrame builds a complete I-Am announcement frame.
func appendIAmFrame(tx []byte, dev *Device, function uint8) []byte {
	tx = bvll.AppendHeader(tx, function)
	tx = bvll.AppendNPDU(tx, false)
	tx = apdu.AppendIAm(tx, apdu.IAm{
		DeviceID:     dev.Instance,
		MaxAPDU:      apdu.MaxAPDULength,
		Segmentation: apdu.SegmentationNone,
		VendorID:     dev.VendorID,
	})
	bvll.FinalizeLength(tx)
	return tx
}

func runIPServer(log *zap.Logger, mtrcs *ipServerMetrics, conn *net.UDPConn, dev *Device) {
	defer func() { _ = conn.Close() }()
	err := udp.EnableBroadcast(conn)
	if err != nil {
		log.Error("failed to enable broadcast", zap.Error(err))
	}

	buf := make([]byte, 2048)
	tx := make([]byte, 0, 512)
	for {
		buf = buf[:cap(buf)]
		n, _, flags, srcAddr, err := conn.ReadMsgUDPAddrPort(buf, nil)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Error("failed to read packet", zap.Error(err))
			continue
		}
		if flags != 0 {
			log.Error("failed to read packet", zap.Int("flags", flags))
			continue
		}
		buf = buf[:n]
		mtrcs.pktsReceived.Inc()

		fn, payload, err := bvll.DecodeHeader(buf)
		if err != nil {
			log.Info("failed to decode packet", zap.Error(err))
			continue
		}
		if fn == bvll.FuncResult {
			continue
		}
		if fn == bvll.FuncForwardedNPDU {
			mtrcs.pktsForwarded.Inc()
		}
		body, err := bvll.DecodeNPDU(payload)
		if err != nil {
			log.Info("failed to decode packet payload", zap.Error(err))
			continue
		}
		req, err := apdu.DecodeRequest(body)
		if err != nil {
			log.Info("failed to decode packet payload", zap.Error(err))
			continue
		}

		clientID := srcAddr.Addr().String()

		mtrcs.reqsAccepted.Inc()
		log.Debug("received request",
			zap.String("from", clientID),
			zap.Bool("confirmed", req.Confirmed),
			zap.Uint8("service", req.Service),
		)

		if !req.Confirmed {
			switch req.Service {
			case apdu.UnconfirmedServiceTimeSync:
				handleTimeSync(log, dev, req.Body, false)
			case apdu.UnconfirmedServiceUTCTimeSync:
				handleTimeSync(log, dev, req.Body, true)
			case apdu.UnconfirmedServiceWhoIs:
				w, err := apdu.DecodeWhoIs(req.Body)
				if err != nil {
					log.Info("failed to decode who-is", zap.Error(err))
					continue
				}
				if !w.Matches(dev.Instance) {
					continue
				}
				dstAddr := srcAddr
				function := uint8(bvll.FuncOriginalUnicastNPDU)
				if dev.BroadcastAddr.IsValid() {
					dstAddr = dev.BroadcastAddr
					function = bvll.FuncOriginalBroadcastNPDU
				}
				tx = appendIAmFrame(tx[:0], dev, function)
				n, err = conn.WriteToUDPAddrPort(tx, dstAddr)
				if err != nil || n != len(tx) {
					log.Error("failed to write packet", zap.Error(err))
					continue
				}
				mtrcs.reqsServed.Inc()
			}
			continue
		}

		tx = tx[:0]
		tx = bvll.AppendHeader(tx, bvll.FuncOriginalUnicastNPDU)
		tx = bvll.AppendNPDU(tx, false)
		switch {
		case req.Segmented:
			tx = apdu.AppendAbort(tx, req.InvokeID, apdu.AbortReasonSegmentationNotSupported, true)
		case req.Service == apdu.ConfirmedServiceReadProperty:
			tx = handleReadProperty(dev, req.InvokeID, req.Body, tx)
		case req.Service == apdu.ConfirmedServiceWriteProperty:
			tx = handleWriteProperty(log, dev, req.InvokeID, req.Body, tx)
		default:
			tx = apdu.AppendReject(tx, req.InvokeID, apdu.RejectReasonUnrecognizedService)
		}
		bvll.FinalizeLength(tx)

		n, err = conn.WriteToUDPAddrPort(tx, srcAddr)
		if err != nil || n != len(tx) {
			log.Error("failed to write packet", zap.Error(err))
			continue
		}

		mtrcs.reqsServed.Inc()
	}
}

// StartIPServer starts the listener goroutines and, when a broadcast address
// is configured, announces the device with one I-Am.
func StartIPServer(ctx context.Context, log *zap.Logger,
	localHost *net.UDPAddr, dev *Device) {
	log.Info("server listening via IP",
		zap.Stringer("ip", localHost.IP),
		zap.Int("port", localHost.Port),
	)

	var conn *net.UDPConn
	if ipServerNumGoroutine == 1 {
		var err error
		conn, err = net.ListenUDP("udp", localHost)
		if err != nil {
			log.Fatal("failed to listen for packets", zap.Error(err))
		}
		go runIPServer(log, ipsMtrcs, conn, dev)
	} else {
		for i := ipServerNumGoroutine; i > 0; i-- {
			pconn, err := reuseport.ListenPacket("udp", localHost.String())
			if err != nil {
				log.Fatal("failed to listen for packets", zap.Error(err))
			}
			conn = pconn.(*net.UDPConn)
			go runIPServer(log, ipsMtrcs, conn, dev)
		}
	}

	if dev.BroadcastAddr.IsValid() {
		tx := appendIAmFrame(nil, dev, bvll.FuncOriginalBroadcastNPDU)
		_, err := conn.WriteToUDPAddrPort(tx, dev.BroadcastAddr)
		if err != nil {
			log.Error("failed to announce device", zap.Error(err))
		}
	}
}
