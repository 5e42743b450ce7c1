package ip

import (
	"net/netip"
)

func CompareAddrs(x, y netip.Addr) int {
	return x.Unmap().Compare(y.Unmap())
}
