// Package client implements the BACnet/IP side of following a remote time
// source: confirmed ReadProperty and WriteProperty exchanges, the
// TimeSynchronization notifications, and clock offset measurement against a
// remote device clock.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GauiStori/bacnet-stack/base/metrics"

	"github.com/GauiStori/bacnet-stack/core/measurements"
)

// ReferenceClock measures the offset between the local clock and one remote
// time source.
type ReferenceClock interface {
	MeasureClockOffset(ctx context.Context) (time.Time, time.Duration, error)
}

var (
	errWrite                  = errors.New("failed to write packet")
	errUnexpectedPacket       = errors.New("failed to read packet: unexpected type or structure")
	errUnexpectedPacketFlags  = errors.New("failed to read packet: unexpected flags")
	errUnexpectedPacketSource = errors.New("failed to read packet: unexpected source")
	errRequestRejected        = errors.New("request rejected by remote device")
	errRequestAborted         = errors.New("request aborted by remote device")
	errRemoteClock            = errors.New("remote device clock is not usable")
	errDateRollover           = errors.New("remote date changed during measurement")
)

// ServiceError is a BACnet Error PDU received in answer to a confirmed
// request.
type ServiceError struct {
	Class uint32
	Code  uint32
}

func (e ServiceError) Error() string {
	return fmt.Sprintf("service error: class %d, code %d", e.Class, e.Code)
}

type ipClientMetrics struct {
	reqsSent      prometheus.Counter
	pktsReceived  prometheus.Counter
	respsAccepted prometheus.Counter
}

func newIPClientMetrics() *ipClientMetrics {
	return &ipClientMetrics{
		reqsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.IPClientReqsSentN,
			Help: metrics.IPClientReqsSentH,
		}),
		pktsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.IPClientPktsReceivedN,
			Help: metrics.IPClientPktsReceivedH,
		}),
		respsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.IPClientRespsAcceptedN,
			Help: metrics.IPClientRespsAcceptedH,
		}),
	}
}

var ipcMtrcs = newIPClientMetrics()

// MeasureClockOffsets measures against all reference clocks in parallel and
// stores each result at the corresponding position in ms.
func MeasureClockOffsets(ctx context.Context, log *slog.Logger,
	clks []ReferenceClock, ms []measurements.Measurement) {
	if len(ms) != len(clks) {
		panic("number of result entries must be equal to the number of reference clocks")
	}
	var wg sync.WaitGroup
	wg.Add(len(clks))
	for i, clk := range clks {
		go func(ctx context.Context, log *slog.Logger, clk ReferenceClock, m *measurements.Measurement) {
			defer wg.Done()
			ts, off, err := clk.MeasureClockOffset(ctx)
			if err != nil {
				log.LogAttrs(ctx, slog.LevelInfo, "failed to measure clock offset",
					slog.Any("clock", clk), slog.Any("error", err))
			}
			m.Timestamp = ts
			m.Offset = off
			m.Error = err
		}(ctx, log, clk, &ms[i])
	}
	wg.Wait()
}
