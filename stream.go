package quic

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/draftquic/draftquic/internal/flowcontrol"
	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/wire"
)

// sendState is the send-side lifecycle of a stream.
type sendState int

const (
	sendStateReady sendState = iota
	sendStateSend
	sendStateDataSent
	sendStateResetSent
	sendStateDataRecvd
	sendStateResetRecvd
)

// receiveState is the receive-side lifecycle of a stream.
type receiveState int

const (
	receiveStateRecv receiveState = iota
	receiveStateSizeKnown
	receiveStateDataRecvd
	receiveStateResetRecvd
	receiveStateDataRead
	receiveStateResetRead
)

// streamSender is the connection-side handle a stream uses to get frames
// out onto the wire without holding a back-pointer to the whole Connection.
type streamSender interface {
	queueControlFrame(wire.Frame)
	scheduleSending()
}

// Stream is a bidirectional, ordered byte stream multiplexed over a
// Connection. It satisfies io.ReadWriteCloser.
type Stream struct {
	mutex sync.Mutex
	cond  sync.Cond

	ctx       context.Context
	ctxCancel context.CancelFunc

	streamID protocol.StreamID
	sender   streamSender
	flowCtrl *flowcontrol.StreamFlowController

	sendState sendState
	writeErr  error

	writeOffset    protocol.ByteCount
	dataForWriting []byte
	finRequested   bool
	finSent        bool
	writeDeadline  time.Time

	receiveState  receiveState
	readErr       error
	readOffset    protocol.ByteCount
	finalOffset   protocol.ByteCount
	reassembly    map[protocol.ByteCount][]byte
	readBuf       []byte
	readDeadline  time.Time

	closedForShutdown bool
}

func newStream(streamID protocol.StreamID, sender streamSender, flowCtrl *flowcontrol.StreamFlowController) *Stream {
	s := &Stream{
		streamID: streamID,
		sender:   sender,
		flowCtrl:   flowCtrl,
		reassembly: make(map[protocol.ByteCount][]byte),
	}
	s.cond.L = &s.mutex
	s.ctx, s.ctxCancel = context.WithCancel(context.Background())
	return s
}

// StreamID returns the stream's identifier.
func (s *Stream) StreamID() protocol.StreamID { return s.streamID }

// Context is canceled once the stream's write side is closed, reset, or
// the connection is torn down.
func (s *Stream) Context() context.Context { return s.ctx }

// Write blocks until all of p has been queued for sending or the stream's
// write side is closed, reset, or its deadline expires.
func (s *Stream) Write(p []byte) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.sendState == sendStateDataSent || s.sendState == sendStateDataRecvd {
		return 0, fmt.Errorf("quic: write on closed stream %d", s.streamID)
	}
	if s.sendState == sendStateResetSent || s.sendState == sendStateResetRecvd {
		return 0, s.writeErr
	}
	if s.closedForShutdown {
		return 0, s.writeErr
	}
	if len(p) == 0 {
		return 0, nil
	}
	if !s.writeDeadline.IsZero() && !time.Now().Before(s.writeDeadline) {
		return 0, errStreamDeadline
	}

	if s.sendState == sendStateReady {
		s.sendState = sendStateSend
	}
	s.dataForWriting = append(s.dataForWriting[:0:0], p...)
	s.sender.scheduleSending()

	var written int
	for {
		written = len(p) - len(s.dataForWriting)
		if s.dataForWriting == nil {
			break
		}
		if s.sendState == sendStateResetSent || s.sendState == sendStateResetRecvd || s.closedForShutdown {
			return written, s.writeErr
		}
		if !s.writeDeadline.IsZero() && !time.Now().Before(s.writeDeadline) {
			s.dataForWriting = nil
			return written, errStreamDeadline
		}
		s.cond.Wait()
	}
	return written, nil
}

// popStreamFrame returns the next STREAM frame to send on this stream, or
// nil if there is nothing to send and no FIN pending. maxBytes bounds the
// serialized frame length including its header.
func (s *Stream) popStreamFrame(maxBytes protocol.ByteCount) *wire.StreamFrame {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	frame := &wire.StreamFrame{
		StreamID:       s.streamID,
		Offset:         s.writeOffset,
		DataLenPresent: true,
	}
	headerLen := frame.Length(0) - protocol.ByteCount(len(frame.Data))
	if headerLen >= maxBytes {
		return nil
	}

	data, fin := s.dataToSend(maxBytes - headerLen)
	if len(data) == 0 && !fin {
		return nil
	}
	frame.Data = data
	frame.Fin = fin
	if fin {
		s.finSent = true
		if s.sendState == sendStateSend {
			s.sendState = sendStateDataSent
		}
	}
	return frame
}

func (s *Stream) dataToSend(maxBytes protocol.ByteCount) ([]byte, bool) {
	if s.dataForWriting == nil {
		return nil, s.finRequested && !s.finSent
	}
	maxBytes = minByteCount(maxBytes, s.flowCtrl.SendWindowSize())
	if maxBytes == 0 {
		return nil, false
	}
	var out []byte
	if protocol.ByteCount(len(s.dataForWriting)) > maxBytes {
		out = s.dataForWriting[:maxBytes]
		s.dataForWriting = s.dataForWriting[maxBytes:]
	} else {
		out = s.dataForWriting
		s.dataForWriting = nil
		s.cond.Broadcast()
	}
	s.writeOffset += protocol.ByteCount(len(out))
	s.flowCtrl.AddBytesSent(protocol.ByteCount(len(out)))
	return out, s.finRequested && s.dataForWriting == nil && !s.finSent
}

// Close finishes the write side of the stream: any buffered data is sent,
// followed by a FIN. It does not wait for the peer to acknowledge it.
func (s *Stream) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.sendState == sendStateResetSent || s.sendState == sendStateResetRecvd {
		return fmt.Errorf("quic: Close on reset stream %d", s.streamID)
	}
	s.finRequested = true
	if s.sendState == sendStateReady {
		s.sendState = sendStateSend
	}
	s.sender.scheduleSending()
	s.ctxCancel()
	return nil
}

// CancelWrite abandons the write side immediately, queuing an RST_STREAM
// carrying errorCode instead of a FIN.
func (s *Stream) CancelWrite(errorCode StreamErrorCode) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.cancelWriteLocked(errorCode, &StreamError{StreamID: s.streamID, ErrorCode: errorCode})
}

func (s *Stream) cancelWriteLocked(errorCode StreamErrorCode, writeErr error) error {
	if s.sendState == sendStateResetSent || s.sendState == sendStateResetRecvd {
		return nil
	}
	if s.sendState == sendStateDataRecvd {
		return fmt.Errorf("quic: CancelWrite on finished stream %d", s.streamID)
	}
	s.sendState = sendStateResetSent
	s.writeErr = writeErr
	s.dataForWriting = nil
	s.cond.Broadcast()
	s.sender.queueControlFrame(&wire.RstStreamFrame{
		StreamID:    s.streamID,
		ErrorCode:   uint16(errorCode),
		FinalOffset: s.writeOffset,
	})
	s.ctxCancel()
	return nil
}

// handleStopSendingFrame reacts to a peer's STOP_SENDING by canceling our
// write side, as if CancelWrite had been called locally.
func (s *Stream) handleStopSendingFrame(f *wire.StopSendingFrame) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	errorCode := StreamErrorCode(f.ErrorCode)
	s.cancelWriteLocked(errorCode, &StreamError{StreamID: s.streamID, ErrorCode: errorCode, Remote: true})
}

// handleMaxStreamDataFrame raises the send window after a peer's
// MAX_STREAM_DATA.
func (s *Stream) handleMaxStreamDataFrame(f *wire.MaxStreamDataFrame) {
	s.flowCtrl.UpdateSendWindow(f.MaximumStreamData)
}

// SetWriteDeadline aborts a blocked Write once t passes.
func (s *Stream) SetWriteDeadline(t time.Time) error {
	s.mutex.Lock()
	s.writeDeadline = t
	s.mutex.Unlock()
	s.cond.Broadcast()
	return nil
}

// Read blocks until data in strictly increasing offset order is available,
// returning io.EOF once the peer's FIN has been delivered and every byte
// before it has been read, or the stream's reset error, or the deadline
// error.
func (s *Stream) Read(p []byte) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for len(s.readBuf) == 0 {
		if s.receiveState == receiveStateResetRecvd || s.receiveState == receiveStateResetRead {
			s.receiveState = receiveStateResetRead
			return 0, s.readErr
		}
		if s.receiveState == receiveStateDataRecvd || s.receiveState == receiveStateDataRead {
			s.receiveState = receiveStateDataRead
			return 0, io.EOF
		}
		if s.closedForShutdown {
			return 0, s.readErr
		}
		if !s.readDeadline.IsZero() && !time.Now().Before(s.readDeadline) {
			return 0, errStreamDeadline
		}
		s.cond.Wait()
	}
	n := copy(p, s.readBuf)
	s.readBuf = s.readBuf[n:]
	return n, nil
}

// SetReadDeadline aborts a blocked Read once t passes.
func (s *Stream) SetReadDeadline(t time.Time) error {
	s.mutex.Lock()
	s.readDeadline = t
	s.mutex.Unlock()
	s.cond.Broadcast()
	return nil
}

// handleStreamFrame merges the payload of an inbound STREAM frame into the
// reassembly buffer, delivering any newly-contiguous prefix to readBuf.
func (s *Stream) handleStreamFrame(f *wire.StreamFrame) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.receiveState == receiveStateResetRecvd || s.receiveState == receiveStateResetRead {
		return nil
	}

	byteOffset := f.Offset + protocol.ByteCount(len(f.Data))
	if violation := s.flowCtrl.UpdateHighestReceived(byteOffset); violation {
		return fmt.Errorf("quic: flow control violation on stream %d", s.streamID)
	}

	if f.Fin {
		if s.receiveState == receiveStateSizeKnown && s.finalOffset != byteOffset {
			return fmt.Errorf("quic: inconsistent final size on stream %d", s.streamID)
		}
		s.finalOffset = byteOffset
		if s.receiveState == receiveStateRecv {
			s.receiveState = receiveStateSizeKnown
		}
	}

	if len(f.Data) > 0 {
		s.mergeIntoReassembly(f.Offset, f.Data)
	}
	s.deliverContiguous()

	if s.receiveState == receiveStateSizeKnown && s.readOffset == s.finalOffset && len(s.reassembly) == 0 {
		s.receiveState = receiveStateDataRecvd
	}
	s.cond.Broadcast()
	return nil
}

// mergeIntoReassembly records data at offset, trimming away any prefix
// already delivered or already buffered so retransmitted or overlapping
// STREAM frames don't duplicate bytes in the delivered stream.
func (s *Stream) mergeIntoReassembly(offset protocol.ByteCount, data []byte) {
	if offset < s.readOffset {
		skip := s.readOffset - offset
		if skip >= protocol.ByteCount(len(data)) {
			return
		}
		offset = s.readOffset
		data = data[skip:]
	}
	if existing, ok := s.reassembly[offset]; !ok || len(data) > len(existing) {
		s.reassembly[offset] = append([]byte(nil), data...)
	}
}

// deliverContiguous moves every buffered chunk starting at readOffset into
// readBuf, in offset order, stopping at the first hole.
func (s *Stream) deliverContiguous() {
	for {
		data, ok := s.reassembly[s.readOffset]
		if !ok {
			return
		}
		delete(s.reassembly, s.readOffset)
		s.readBuf = append(s.readBuf, data...)
		s.readOffset += protocol.ByteCount(len(data))

		if streamUpdate, connUpdate := s.flowCtrl.AddBytesRead(protocol.ByteCount(len(data))); streamUpdate > 0 || connUpdate > 0 {
			if streamUpdate > 0 {
				s.sender.queueControlFrame(&wire.MaxStreamDataFrame{StreamID: s.streamID, MaximumStreamData: streamUpdate})
			}
			if connUpdate > 0 {
				s.sender.queueControlFrame(&wire.MaxDataFrame{MaximumData: connUpdate})
			}
		}
	}
}

// handleRstStreamFrame reacts to a peer's RST_STREAM by unblocking any
// pending Read with the reset error.
func (s *Stream) handleRstStreamFrame(f *wire.RstStreamFrame) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.receiveState == receiveStateResetRecvd || s.receiveState == receiveStateResetRead || s.receiveState == receiveStateDataRecvd {
		return
	}
	s.receiveState = receiveStateResetRecvd
	s.readErr = &StreamError{StreamID: s.streamID, ErrorCode: StreamErrorCode(f.ErrorCode), Remote: true}
	s.cond.Broadcast()
}

// StopSending asks the peer to abandon its send side, mirroring a local
// decision to stop reading.
func (s *Stream) StopSending(errorCode StreamErrorCode) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.receiveState == receiveStateResetRecvd || s.receiveState == receiveStateDataRecvd {
		return
	}
	s.sender.queueControlFrame(&wire.StopSendingFrame{StreamID: s.streamID, ErrorCode: uint16(errorCode)})
}

// closeForShutdown tears down both halves of the stream without notifying
// the peer, used when the connection itself is closing.
func (s *Stream) closeForShutdown(err error) {
	s.mutex.Lock()
	s.closedForShutdown = true
	s.writeErr = err
	s.readErr = err
	s.mutex.Unlock()
	s.cond.Broadcast()
	s.ctxCancel()
}

func minByteCount(a, b protocol.ByteCount) protocol.ByteCount {
	if a < b {
		return a
	}
	return b
}
