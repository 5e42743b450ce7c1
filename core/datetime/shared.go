package datetime

import (
	"sync"
	"time"

	"github.com/GauiStori/bacnet-stack/net/bacnet"
)

// SharedClock serializes access to a Clock for the embedders that share it:
// the device server, the follower loop and the time master service.
type SharedClock struct {
	mu  sync.Mutex
	clk *Clock
}

func NewSharedClock(clk *Clock) *SharedClock {
	if clk == nil {
		panic("clock must not be nil")
	}
	return &SharedClock{clk: clk}
}

func (s *SharedClock) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clk.Init()
}

func (s *SharedClock) Coupled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clk.Coupled()
}

func (s *SharedClock) TrackingOffset() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clk.TrackingOffset()
}

func (s *SharedClock) Local() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clk.Local()
}

func (s *SharedClock) UTC() (bacnet.DateTime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clk.UTC()
}

func (s *SharedClock) SetLocal(d bacnet.Date, t bacnet.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clk.SetLocal(d, t)
}

func (s *SharedClock) SetUTC(d bacnet.Date, t bacnet.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clk.SetUTC(d, t)
}

func (s *SharedClock) Adjust(offset time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clk.Adjust(offset)
}

func (s *SharedClock) SetUTCOffset(minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clk.SetUTCOffset(minutes)
}

func (s *SharedClock) UTCOffset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clk.UTCOffset()
}

func (s *SharedClock) SetDST(active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clk.SetDST(active)
}

func (s *SharedClock) DST() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clk.DST()
}
