package congestion

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/draftquic/draftquic/internal/protocol"
)

// Pacer spreads the congestion window's worth of sends across an RTT
// instead of releasing it all at once, using a token-bucket limiter keyed
// on bytes rather than packets.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer builds a pacer whose rate is recalculated by the caller as the
// congestion window and RTT estimate change; call SetRate after every
// update.
func NewPacer() *Pacer {
	return &Pacer{limiter: rate.NewLimiter(rate.Inf, int(protocol.MaxPacketBufferSize)*2)}
}

// SetRate updates the pacing rate to window bytes per rtt.
func (p *Pacer) SetRate(window protocol.ByteCount, rtt time.Duration) {
	if rtt <= 0 {
		p.limiter.SetLimit(rate.Inf)
		return
	}
	bytesPerSecond := float64(window) / rtt.Seconds()
	p.limiter.SetLimit(rate.Limit(bytesPerSecond))
	burst := int(protocol.MaxPacketBufferSize) * 2
	if int(window) > burst {
		burst = int(window)
	}
	p.limiter.SetBurst(burst)
}

// Allow reports whether a datagram of the given size may be sent right
// now, consuming from the bucket if so.
func (p *Pacer) Allow(size protocol.ByteCount) bool {
	return p.limiter.AllowN(time.Now(), int(size))
}

// TimeUntilSend estimates when a datagram of the given size would next be
// permitted, without consuming from the bucket.
func (p *Pacer) TimeUntilSend(size protocol.ByteCount) time.Duration {
	r := p.limiter.ReserveN(time.Now(), int(size))
	defer r.Cancel()
	return r.Delay()
}
