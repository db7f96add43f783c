package ackhandler

import (
	"github.com/draftquic/draftquic/internal/congestion"
	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/utils"
)

// NewAckHandler builds the matched pair of handlers a connection needs:
// one side tracks what this endpoint sent and is waiting to have acked,
// the other tracks what it has received and owes an ACK for.
func NewAckHandler(pers protocol.Perspective, rttStats *utils.RTTStats, cong congestion.SendAlgorithm, logger utils.Logger) (*SentPacketHandler, *ReceivedPacketHandler) {
	return NewSentPacketHandler(pers, rttStats, cong, logger), NewReceivedPacketHandler(logger)
}
