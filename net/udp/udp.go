// Package udp provides the socket options the BACnet/IP client and server
// rely on: kernel receive timestamps for offset probes, broadcast sends and
// DSCP marking.
package udp

import "errors"

var (
	errNotSupported      = errors.New("operation not supported")
	errUnexpectedData    = errors.New("unexpected control message data")
	errTimestampNotFound = errors.New("no timestamp control message found")
)
