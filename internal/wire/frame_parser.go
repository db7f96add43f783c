package wire

import (
	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/draftquic/draftquic/internal/qerr"
	"github.com/draftquic/draftquic/internal/quicvarint"
)

// ParseNextFrame parses a single frame from the front of data, returning
// the frame and the number of bytes consumed. An unrecognized frame type,
// or any malformed frame body, is reported as a FRAME_ENCODING_ERROR
// transport error.
func ParseNextFrame(data []byte, version uint32) (Frame, int, error) {
	if len(data) == 0 {
		return nil, 0, nil
	}
	typeVal, n, err := quicvarint.Parse(data)
	if err != nil {
		return nil, 0, qerr.NewError(qerr.FrameEncodingError, "cannot parse frame type")
	}
	typ := FrameType(typeVal)
	rest := data[n:]

	if typ.isStreamType() {
		f, m, err := parseStreamFrame(rest, typ)
		if err != nil {
			return nil, 0, qerr.NewErrorWithFrameType(qerr.FrameEncodingError, "invalid STREAM frame", uint64(typ))
		}
		return f, n + m, nil
	}

	switch typ {
	case FrameTypePadding:
		count := 0
		for count < len(rest) && rest[count] == 0x00 {
			count++
		}
		return &PaddingFrame{NumBytes: protocol.ByteCount(count + 1)}, n + count, nil
	case FrameTypePing:
		return &PingFrame{}, n, nil
	case FrameTypeAck:
		f, m, err := parseAckFrame(rest)
		if err != nil {
			return nil, 0, qerr.NewErrorWithFrameType(qerr.FrameEncodingError, "invalid ACK frame", uint64(typ))
		}
		return f, n + m, nil
	case FrameTypeCrypto:
		f, m, err := parseCryptoFrame(rest)
		if err != nil {
			return nil, 0, qerr.NewErrorWithFrameType(qerr.FrameEncodingError, "invalid CRYPTO frame", uint64(typ))
		}
		return f, n + m, nil
	case FrameTypeRstStream:
		f, m, err := parseRstStreamFrame(rest)
		if err != nil {
			return nil, 0, qerr.NewErrorWithFrameType(qerr.FrameEncodingError, "invalid RST_STREAM frame", uint64(typ))
		}
		return f, n + m, nil
	case FrameTypeStopSending:
		f, m, err := parseStopSendingFrame(rest)
		if err != nil {
			return nil, 0, qerr.NewErrorWithFrameType(qerr.FrameEncodingError, "invalid STOP_SENDING frame", uint64(typ))
		}
		return f, n + m, nil
	case FrameTypeConnectionClose:
		f, m, err := parseConnectionCloseFrame(rest)
		if err != nil {
			return nil, 0, qerr.NewErrorWithFrameType(qerr.FrameEncodingError, "invalid CONNECTION_CLOSE frame", uint64(typ))
		}
		return f, n + m, nil
	case FrameTypeApplicationClose:
		f, m, err := parseApplicationCloseFrame(rest)
		if err != nil {
			return nil, 0, qerr.NewErrorWithFrameType(qerr.FrameEncodingError, "invalid APPLICATION_CLOSE frame", uint64(typ))
		}
		return f, n + m, nil
	case FrameTypeMaxData:
		f, m, err := parseMaxDataFrame(rest)
		if err != nil {
			return nil, 0, qerr.NewErrorWithFrameType(qerr.FrameEncodingError, "invalid MAX_DATA frame", uint64(typ))
		}
		return f, n + m, nil
	case FrameTypeMaxStreamData:
		f, m, err := parseMaxStreamDataFrame(rest)
		if err != nil {
			return nil, 0, qerr.NewErrorWithFrameType(qerr.FrameEncodingError, "invalid MAX_STREAM_DATA frame", uint64(typ))
		}
		return f, n + m, nil
	case FrameTypeMaxStreamID:
		f, m, err := parseMaxStreamIDFrame(rest)
		if err != nil {
			return nil, 0, qerr.NewErrorWithFrameType(qerr.FrameEncodingError, "invalid MAX_STREAM_ID frame", uint64(typ))
		}
		return f, n + m, nil
	case FrameTypeBlocked:
		f, m, err := parseBlockedFrame(rest)
		if err != nil {
			return nil, 0, qerr.NewErrorWithFrameType(qerr.FrameEncodingError, "invalid BLOCKED frame", uint64(typ))
		}
		return f, n + m, nil
	case FrameTypeStreamBlocked:
		f, m, err := parseStreamBlockedFrame(rest)
		if err != nil {
			return nil, 0, qerr.NewErrorWithFrameType(qerr.FrameEncodingError, "invalid STREAM_BLOCKED frame", uint64(typ))
		}
		return f, n + m, nil
	case FrameTypeStreamIDBlocked:
		f, m, err := parseStreamIDBlockedFrame(rest)
		if err != nil {
			return nil, 0, qerr.NewErrorWithFrameType(qerr.FrameEncodingError, "invalid STREAM_ID_BLOCKED frame", uint64(typ))
		}
		return f, n + m, nil
	case FrameTypeNewConnectionID:
		f, m, err := parseNewConnectionIDFrame(rest)
		if err != nil {
			return nil, 0, qerr.NewErrorWithFrameType(qerr.FrameEncodingError, "invalid NEW_CONNECTION_ID frame", uint64(typ))
		}
		return f, n + m, nil
	case FrameTypePathChallenge:
		f, m, err := parsePathChallengeFrame(rest)
		if err != nil {
			return nil, 0, qerr.NewErrorWithFrameType(qerr.FrameEncodingError, "invalid PATH_CHALLENGE frame", uint64(typ))
		}
		return f, n + m, nil
	case FrameTypePathResponse:
		f, m, err := parsePathResponseFrame(rest)
		if err != nil {
			return nil, 0, qerr.NewErrorWithFrameType(qerr.FrameEncodingError, "invalid PATH_RESPONSE frame", uint64(typ))
		}
		return f, n + m, nil
	default:
		return nil, 0, qerr.NewErrorWithFrameType(qerr.FrameEncodingError, "unknown frame type", uint64(typ))
	}
}
