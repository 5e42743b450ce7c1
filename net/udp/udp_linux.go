package udp

import (
	"unsafe"

	"net"
	"time"

	"golang.org/x/sys/unix"
)

// TimestampLen returns the control message buffer size needed to receive
// packet timestamps.
func TimestampLen() int {
	return unix.CmsgSpace(int(unsafe.Sizeof(unix.Timespec{})))
}

// EnableRxTimestamps requests kernel receive timestamps on the connection.
func EnableRxTimestamps(conn *net.UDPConn) error {
	sconn, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var res struct {
		err error
	}
	err = sconn.Control(func(fd uintptr) {
		res.err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_TIMESTAMPNS, 1)
	})
	if err != nil {
		return err
	}
	return res.err
}

// TimestampFromOOBData extracts the kernel receive timestamp from the out of
// band data of a received packet.
func TimestampFromOOBData(oob []byte) (time.Time, error) {
	for unix.CmsgSpace(0) <= len(oob) {
		h := (*unix.Cmsghdr)(unsafe.Pointer(&oob[0]))
		if h.Len < unix.SizeofCmsghdr || h.Len > uint64(len(oob)) {
			return time.Time{}, errUnexpectedData
		}
		if h.Level == unix.SOL_SOCKET && h.Type == unix.SCM_TIMESTAMPNS {
			if h.Len != uint64(unix.CmsgSpace(int(unsafe.Sizeof(unix.Timespec{})))) {
				return time.Time{}, errUnexpectedData
			}
			ts := (*unix.Timespec)(unsafe.Pointer(&oob[unix.CmsgSpace(0)]))
			return time.Unix(ts.Unix()).UTC(), nil
		}
		oob = oob[unix.CmsgSpace(int(h.Len)-unix.SizeofCmsghdr):]
	}
	return time.Time{}, errTimestampNotFound
}

// EnableBroadcast allows sending to broadcast addresses, as the device does
// for I-Am and time synchronization recipients of the broadcast form.
func EnableBroadcast(conn *net.UDPConn) error {
	sconn, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var res struct {
		err error
	}
	err = sconn.Control(func(fd uintptr) {
		res.err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return res.err
}

// SetDSCP sets the differentiated services codepoint for outgoing packets.
func SetDSCP(conn *net.UDPConn, dscp uint8) error {
	sconn, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var res struct {
		err error
	}
	err = sconn.Control(func(fd uintptr) {
		res.err = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, int(dscp)<<2)
		if res.err != nil {
			res.err = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_TCLASS, int(dscp)<<2)
		}
	})
	if err != nil {
		return err
	}
	return res.err
}
