package measurements

import "time"

// Filter condenses raw probe timestamps into offset estimates. cTx and cRx
// are the local transmit and receive instants of a probe, sTime the remote
// clock reading carried in the response.
type Filter interface {
	Do(cTx, sTime, cRx time.Time) (offset time.Duration, ok bool)
	Reset()
}
