package utils

import (
	"time"

	"github.com/draftquic/draftquic/internal/protocol"
)

const rttAlpha = 0.125
const oneMinusAlpha = 1 - rttAlpha
const rttBeta = 0.25
const oneMinusBeta = 1 - rttBeta

// RTTStats tracks the smoothed round-trip-time estimate used by loss
// detection and the PTO timer. The zero value is ready to use.
type RTTStats struct {
	hasMeasurement bool

	minRTT      time.Duration
	latestRTT   time.Duration
	smoothedRTT time.Duration
	meanDeviation time.Duration

	maxAckDelay time.Duration
}

// MinRTT returns the lowest RTT sample seen, ignoring ack delay.
func (r *RTTStats) MinRTT() time.Duration { return r.minRTT }

// LatestRTT returns the most recent RTT sample.
func (r *RTTStats) LatestRTT() time.Duration { return r.latestRTT }

// SmoothedRTT returns the exponentially-weighted moving average RTT.
func (r *RTTStats) SmoothedRTT() time.Duration { return r.smoothedRTT }

// MeanDeviation returns the mean deviation used to size the PTO.
func (r *RTTStats) MeanDeviation() time.Duration { return r.meanDeviation }

// MaxAckDelay returns the peer's advertised max_ack_delay.
func (r *RTTStats) MaxAckDelay() time.Duration { return r.maxAckDelay }

// SetMaxAckDelay records the peer's max_ack_delay transport parameter.
func (r *RTTStats) SetMaxAckDelay(mad time.Duration) { r.maxAckDelay = mad }

// SetInitialRTT seeds the estimator before any real measurement exists.
// A later real measurement immediately supersedes it.
func (r *RTTStats) SetInitialRTT(rtt time.Duration) {
	if r.hasMeasurement {
		return
	}
	r.latestRTT = rtt
	r.smoothedRTT = rtt
}

// UpdateRTT folds a new (send, ack) round-trip sample into the estimate.
// sentTime is not used; a
// zero sendDelta or negative delta is treated as a bad sample and
// ignored, per the standard RTT estimator's clock-skew guard.
func (r *RTTStats) UpdateRTT(sendDelta, ackDelay time.Duration, sentTime time.Time) {
	if sendDelta <= 0 {
		return
	}

	if r.minRTT == 0 || sendDelta < r.minRTT {
		r.minRTT = sendDelta
	}

	sample := sendDelta
	if sample-r.minRTT >= ackDelay {
		sample -= ackDelay
	}
	r.latestRTT = sample

	if !r.hasMeasurement {
		r.smoothedRTT = sample
		r.meanDeviation = sample / 2
		r.hasMeasurement = true
		return
	}

	r.meanDeviation = time.Duration(oneMinusBeta*float64(r.meanDeviation) + rttBeta*float64(abs(r.smoothedRTT-sample)))
	r.smoothedRTT = time.Duration(oneMinusAlpha*float64(r.smoothedRTT) + rttAlpha*float64(sample))
}

// PTO computes the probe timeout duration: smoothed RTT plus four times
// the mean deviation, plus max_ack_delay when includeMaxAckDelay is set
// (the handshake and 0-RTT/1-RTT spaces omit it while unconfirmed).
func (r *RTTStats) PTO(includeMaxAckDelay bool) time.Duration {
	if r.smoothedRTT == 0 {
		return 2 * protocol.DefaultInitialRTT
	}
	pto := r.smoothedRTT + max(4*r.meanDeviation, protocol.TimerGranularity)
	if includeMaxAckDelay {
		pto += r.maxAckDelay
	}
	return pto
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
