//go:build !linux

package udp

import (
	"net"
	"time"
)

func TimestampLen() int {
	return 0
}

func EnableRxTimestamps(conn *net.UDPConn) error {
	return errNotSupported
}

func TimestampFromOOBData(oob []byte) (time.Time, error) {
	return time.Time{}, errNotSupported
}

func EnableBroadcast(conn *net.UDPConn) error {
	return errNotSupported
}

func SetDSCP(conn *net.UDPConn, dscp uint8) error {
	return errNotSupported
}
