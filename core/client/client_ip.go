package client

import (
	"context"
	"net"
	"net/netip"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"go.uber.org/zap"

	"github.com/GauiStori/bacnet-stack/net/apdu"
	"github.com/GauiStori/bacnet-stack/net/bacnet"
	"github.com/GauiStori/bacnet-stack/net/bvll"
	"github.com/GauiStori/bacnet-stack/net/ip"
	"github.com/GauiStori/bacnet-stack/net/udp"

	"github.com/GauiStori/bacnet-stack/core/measurements"
)

// IPClient talks to one remote BACnet/IP device. Methods are not safe for
// concurrent use; each follower goroutine owns its own client.
type IPClient struct {
	Log    *zap.Logger
	DSCP   uint8
	Filter measurements.Filter

	// Histogram, when set, collects the round trip delay of every
	// evaluated probe in microseconds.
	Histogram *hdrhistogram.Histogram

	invokeID uint8
}

func (c *IPClient) nextInvokeID() uint8 {
	id := c.invokeID
	c.invokeID++
	return id
}

// exchange sends one confirmed request frame and reads packets until the
// answer with the matching invoke id arrives. Unrelated or malformed packets
// are skipped while retries remain and the deadline has not passed; Error,
// Reject and Abort answers are terminal. cTx and cRx are the local host
// instants bracketing the exchange, cRx taken from the kernel receive
// timestamp when available.
func (c *IPClient) exchange(ctx context.Context, log *zap.Logger, conn *net.UDPConn,
	remoteAddr *net.UDPAddr, invokeID, service uint8, req, rx, oob []byte) (
	resp apdu.Response, cTx, cRx time.Time, err error) {

	const maxNumRetries = 3

	deadline, deadlineIsSet := ctx.Deadline()

	cTx = time.Now().UTC()
	n, err := conn.WriteToUDPAddrPort(req, remoteAddr.AddrPort())
	if err != nil {
		return resp, cTx, cRx, err
	}
	if n != len(req) {
		return resp, cTx, cRx, errWrite
	}
	ipcMtrcs.reqsSent.Inc()

	numRetries := 0
	for {
		rx = rx[:cap(rx)]
		oob = oob[:cap(oob)]
		n, oobn, flags, srcAddr, err := conn.ReadMsgUDPAddrPort(rx, oob)
		if err != nil {
			if numRetries != maxNumRetries && deadlineIsSet && time.Now().Before(deadline) {
				log.Info("failed to read packet", zap.Error(err))
				numRetries++
				continue
			}
			return resp, cTx, cRx, err
		}
		if flags != 0 {
			err = errUnexpectedPacketFlags
			if numRetries != maxNumRetries && deadlineIsSet && time.Now().Before(deadline) {
				log.Info("failed to read packet", zap.Int("flags", flags))
				numRetries++
				continue
			}
			return resp, cTx, cRx, err
		}
		oob = oob[:oobn]
		if len(oob) != 0 {
			cRx, err = udp.TimestampFromOOBData(oob)
			if err != nil {
				cRx = time.Now().UTC()
				log.Error("failed to read packet rx timestamp", zap.Error(err))
			}
		} else {
			cRx = time.Now().UTC()
		}
		rx = rx[:n]
		ipcMtrcs.pktsReceived.Inc()

		if ip.CompareAddrs(srcAddr.Addr(), remoteAddr.AddrPort().Addr()) != 0 {
			err = errUnexpectedPacketSource
			if numRetries != maxNumRetries && deadlineIsSet && time.Now().Before(deadline) {
				log.Info("received packet from unexpected source")
				numRetries++
				continue
			}
			return resp, cTx, cRx, err
		}

		fn, payload, err := bvll.DecodeHeader(rx)
		if err == nil && fn != bvll.FuncOriginalUnicastNPDU && fn != bvll.FuncForwardedNPDU {
			err = errUnexpectedPacket
		}
		var body []byte
		if err == nil {
			body, err = bvll.DecodeNPDU(payload)
		}
		if err == nil {
			resp, err = apdu.DecodeResponse(body)
		}
		if err != nil {
			if numRetries != maxNumRetries && deadlineIsSet && time.Now().Before(deadline) {
				log.Info("failed to decode packet payload", zap.Error(err))
				numRetries++
				continue
			}
			return resp, cTx, cRx, err
		}
		if resp.InvokeID != invokeID {
			err = errUnexpectedPacket
			if numRetries != maxNumRetries && deadlineIsSet && time.Now().Before(deadline) {
				log.Info("received packet with unexpected type or structure")
				numRetries++
				continue
			}
			return resp, cTx, cRx, err
		}

		switch resp.PDUType {
		case apdu.PDUTypeSimpleACK, apdu.PDUTypeComplexACK:
			if resp.Service != service {
				err = errUnexpectedPacket
				if numRetries != maxNumRetries && deadlineIsSet && time.Now().Before(deadline) {
					log.Info("received packet with unexpected type or structure")
					numRetries++
					continue
				}
				return resp, cTx, cRx, err
			}
		case apdu.PDUTypeError:
			return resp, cTx, cRx, ServiceError{Class: resp.Class, Code: resp.Code}
		case apdu.PDUTypeReject:
			log.Info("request rejected", zap.Uint8("reason", resp.Reason))
			return resp, cTx, cRx, errRequestRejected
		case apdu.PDUTypeAbort:
			log.Info("request aborted", zap.Uint8("reason", resp.Reason))
			return resp, cTx, cRx, errRequestAborted
		default:
			err = errUnexpectedPacket
			if numRetries != maxNumRetries && deadlineIsSet && time.Now().Before(deadline) {
				log.Info("received packet with unexpected type or structure")
				numRetries++
				continue
			}
			return resp, cTx, cRx, err
		}

		ipcMtrcs.respsAccepted.Inc()
		log.Debug("received response",
			zap.Time("at", cRx),
			zap.String("from", remoteAddr.String()),
			zap.Uint8("invoke id", resp.InvokeID),
			zap.Uint8("service", resp.Service),
		)
		return resp, cTx, cRx, nil
	}
}

// readDeviceProperty reads one property of the remote Device object, using
// the wildcard instance so the remote's device id need not be known.
func (c *IPClient) readDeviceProperty(ctx context.Context, log *zap.Logger, conn *net.UDPConn,
	remoteAddr *net.UDPAddr, prop uint32, tx, rx, oob []byte) (
	value []byte, cTx, cRx time.Time, err error) {

	id := c.nextInvokeID()
	tx = bvll.AppendHeader(tx[:0], bvll.FuncOriginalUnicastNPDU)
	tx = bvll.AppendNPDU(tx, true)
	tx = apdu.AppendReadPropertyReq(tx, id, apdu.ReadPropertyReq{
		ObjectType: apdu.ObjectTypeDevice,
		Instance:   apdu.MaxObjectInstance,
		Property:   prop,
		ArrayIndex: apdu.ArrayAll,
	})
	bvll.FinalizeLength(tx)

	var resp apdu.Response
	resp, cTx, cRx, err = c.exchange(ctx, log, conn, remoteAddr,
		id, apdu.ConfirmedServiceReadProperty, tx, rx, oob)
	if err != nil {
		return nil, cTx, cRx, err
	}
	ack, err := apdu.DecodeReadPropertyACK(resp.Body)
	if err != nil {
		return nil, cTx, cRx, err
	}
	if ack.ObjectType != apdu.ObjectTypeDevice || ack.Property != prop {
		return nil, cTx, cRx, errUnexpectedPacket
	}
	return ack.Value, cTx, cRx, nil
}

// MeasureClockOffsetIP measures the offset between the local host clock and
// the clock of the remote device. The remote's UTC offset, daylight saving
// state and date are read once per round; local time probes then run until
// the sample filter yields an estimate, a single probe when no filter is set.
// A final date read discards rounds that straddled the remote's midnight.
func MeasureClockOffsetIP(ctx context.Context, log *zap.Logger, c *IPClient,
	localAddr, remoteAddr *net.UDPAddr) (time.Time, time.Duration, error) {

	var lc net.ListenConfig
	pconn, err := lc.ListenPacket(ctx, "udp",
		netip.AddrPortFrom(localAddr.AddrPort().Addr(), 0).String())
	if err != nil {
		return time.Time{}, 0, err
	}
	conn := pconn.(*net.UDPConn)
	defer func() { _ = conn.Close() }()
	deadline, deadlineIsSet := ctx.Deadline()
	if deadlineIsSet {
		err = conn.SetDeadline(deadline)
		if err != nil {
			return time.Time{}, 0, err
		}
	}
	err = udp.EnableRxTimestamps(conn)
	if err != nil {
		log.Error("failed to enable timestamping", zap.Error(err))
	}
	err = udp.SetDSCP(conn, c.DSCP)
	if err != nil {
		log.Info("failed to set DSCP", zap.Error(err))
	}

	reference := remoteAddr.String()
	tx := make([]byte, 0, 128)
	rx := make([]byte, 2048)
	oob := make([]byte, udp.TimestampLen())

	v, _, _, err := c.readDeviceProperty(ctx, log, conn, remoteAddr, apdu.PropUTCOffset, tx, rx, oob)
	if err != nil {
		return time.Time{}, 0, err
	}
	offMin, n, err := bacnet.DecodeSigned(v)
	if err != nil || n != len(v) {
		return time.Time{}, 0, errUnexpectedPacket
	}

	v, _, _, err = c.readDeviceProperty(ctx, log, conn, remoteAddr, apdu.PropDaylightSavingsStatus, tx, rx, oob)
	if err != nil {
		return time.Time{}, 0, err
	}
	dst, n, err := bacnet.DecodeBoolean(v)
	if err != nil || n != len(v) {
		return time.Time{}, 0, errUnexpectedPacket
	}
	dstAdjust := 0
	if dst {
		dstAdjust = 60
	}

	v, _, _, err = c.readDeviceProperty(ctx, log, conn, remoteAddr, apdu.PropLocalDate, tx, rx, oob)
	if err != nil {
		return time.Time{}, 0, err
	}
	d0, n, err := bacnet.DecodeDate(v)
	if err != nil || n != len(v) {
		return time.Time{}, 0, errUnexpectedPacket
	}
	if d0.WildcardPresent() || !d0.IsValid() {
		return time.Time{}, 0, errRemoteClock
	}

	var ts time.Time
	var offset time.Duration
	for {
		v, cTx, cRx, err := c.readDeviceProperty(ctx, log, conn, remoteAddr, apdu.PropLocalTime, tx, rx, oob)
		if err != nil {
			return time.Time{}, 0, err
		}
		tod, n, err := bacnet.DecodeTime(v)
		if err != nil || n != len(v) {
			return time.Time{}, 0, errUnexpectedPacket
		}
		if tod.WildcardPresent() {
			return time.Time{}, 0, errRemoteClock
		}

		utc := bacnet.LocalToUTC(bacnet.DateTime{Date: d0, Time: tod}, int(offMin), dstAdjust)
		sTime := bacnet.TimeFromDateTime(utc)
		rtd := cRx.Sub(cTx)
		off := sTime.Sub(cTx.Add(rtd / 2))

		if c.Histogram != nil {
			_ = c.Histogram.RecordValue(rtd.Microseconds())
		}

		log.Debug("evaluated response",
			zap.String("from", reference),
			zap.Duration("clock offset", off),
			zap.Duration("round trip delay", rtd),
		)

		ts = cRx
		if c.Filter == nil {
			offset = off
			break
		}
		var ok bool
		offset, ok = c.Filter.Do(cTx, sTime, cRx)
		if ok {
			break
		}
	}

	v, _, _, err = c.readDeviceProperty(ctx, log, conn, remoteAddr, apdu.PropLocalDate, tx, rx, oob)
	if err != nil {
		return time.Time{}, 0, err
	}
	d1, n, err := bacnet.DecodeDate(v)
	if err != nil || n != len(v) {
		return time.Time{}, 0, errUnexpectedPacket
	}
	if d1.Compare(d0) != 0 {
		if c.Filter != nil {
			c.Filter.Reset()
		}
		return time.Time{}, 0, errDateRollover
	}

	return ts, offset, nil
}

// SendTimeSyncIP sends one unconfirmed TimeSynchronization request, or the
// UTC variant, to the given recipient. Broadcast recipients get the
// broadcast link layer framing and a broadcast enabled socket.
func SendTimeSyncIP(ctx context.Context, log *zap.Logger, c *IPClient,
	localAddr, remoteAddr *net.UDPAddr, broadcast, utc bool, dt bacnet.DateTime) error {

	var lc net.ListenConfig
	pconn, err := lc.ListenPacket(ctx, "udp",
		netip.AddrPortFrom(localAddr.AddrPort().Addr(), 0).String())
	if err != nil {
		return err
	}
	conn := pconn.(*net.UDPConn)
	defer func() { _ = conn.Close() }()
	if broadcast {
		err = udp.EnableBroadcast(conn)
		if err != nil {
			return err
		}
	}
	err = udp.SetDSCP(conn, c.DSCP)
	if err != nil {
		log.Info("failed to set DSCP", zap.Error(err))
	}

	fn := uint8(bvll.FuncOriginalUnicastNPDU)
	if broadcast {
		fn = bvll.FuncOriginalBroadcastNPDU
	}
	buf := make([]byte, 0, 64)
	buf = bvll.AppendHeader(buf, fn)
	buf = bvll.AppendNPDU(buf, false)
	buf = apdu.AppendTimeSync(buf, utc, dt)
	bvll.FinalizeLength(buf)

	n, err := conn.WriteToUDPAddrPort(buf, remoteAddr.AddrPort())
	if err != nil {
		return err
	}
	if n != len(buf) {
		return errWrite
	}
	log.Debug("sent time synchronization",
		zap.String("to", remoteAddr.String()),
		zap.Bool("utc", utc),
		zap.Object("data", bacnet.DateTimeMarshaler{DT: &dt}),
	)
	return nil
}

// ReadPropertyIP reads one property of the remote Device object and returns
// the application tagged value octets.
func ReadPropertyIP(ctx context.Context, log *zap.Logger, c *IPClient,
	localAddr, remoteAddr *net.UDPAddr, prop uint32) ([]byte, error) {

	var lc net.ListenConfig
	pconn, err := lc.ListenPacket(ctx, "udp",
		netip.AddrPortFrom(localAddr.AddrPort().Addr(), 0).String())
	if err != nil {
		return nil, err
	}
	conn := pconn.(*net.UDPConn)
	defer func() { _ = conn.Close() }()
	deadline, deadlineIsSet := ctx.Deadline()
	if deadlineIsSet {
		err = conn.SetDeadline(deadline)
		if err != nil {
			return nil, err
		}
	}
	err = udp.SetDSCP(conn, c.DSCP)
	if err != nil {
		log.Info("failed to set DSCP", zap.Error(err))
	}

	tx := make([]byte, 0, 128)
	rx := make([]byte, 2048)
	oob := make([]byte, udp.TimestampLen())

	value, _, _, err := c.readDeviceProperty(ctx, log, conn, remoteAddr, prop, tx, rx, oob)
	return value, err
}

// WritePropertyIP writes one property of the remote Device object. The value
// octets carry the application tagged property value.
func WritePropertyIP(ctx context.Context, log *zap.Logger, c *IPClient,
	localAddr, remoteAddr *net.UDPAddr, prop uint32, value []byte) error {

	var lc net.ListenConfig
	pconn, err := lc.ListenPacket(ctx, "udp",
		netip.AddrPortFrom(localAddr.AddrPort().Addr(), 0).String())
	if err != nil {
		return err
	}
	conn := pconn.(*net.UDPConn)
	defer func() { _ = conn.Close() }()
	deadline, deadlineIsSet := ctx.Deadline()
	if deadlineIsSet {
		err = conn.SetDeadline(deadline)
		if err != nil {
			return err
		}
	}
	err = udp.SetDSCP(conn, c.DSCP)
	if err != nil {
		log.Info("failed to set DSCP", zap.Error(err))
	}

	id := c.nextInvokeID()
	tx := make([]byte, 0, 128)
	tx = bvll.AppendHeader(tx, bvll.FuncOriginalUnicastNPDU)
	tx = bvll.AppendNPDU(tx, true)
	tx = apdu.AppendWritePropertyReq(tx, id, apdu.WritePropertyReq{
		ObjectType: apdu.ObjectTypeDevice,
		Instance:   apdu.MaxObjectInstance,
		Property:   prop,
		ArrayIndex: apdu.ArrayAll,
		Value:      value,
		Priority:   apdu.MaxPriority,
	})
	bvll.FinalizeLength(tx)

	rx := make([]byte, 2048)
	oob := make([]byte, udp.TimestampLen())

	resp, _, _, err := c.exchange(ctx, log, conn, remoteAddr,
		id, apdu.ConfirmedServiceWriteProperty, tx, rx, oob)
	if err != nil {
		return err
	}
	if resp.PDUType != apdu.PDUTypeSimpleACK {
		return errUnexpectedPacket
	}
	return nil
}
