package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamIDQuadrant(t *testing.T) {
	tests := []struct {
		id            StreamID
		initiator     Perspective
		uni           bool
		streamType    StreamType
	}{
		{0, PerspectiveClient, false, StreamTypeClientBidi},
		{1, PerspectiveServer, false, StreamTypeServerBidi},
		{2, PerspectiveClient, true, StreamTypeClientUni},
		{3, PerspectiveServer, true, StreamTypeServerUni},
		{4, PerspectiveClient, false, StreamTypeClientBidi},
	}
	for _, tt := range tests {
		require.Equal(t, tt.initiator, tt.id.InitiatedBy())
		require.Equal(t, tt.uni, tt.id.IsUniDirectional())
		require.Equal(t, tt.streamType, tt.id.Type())
	}
}

func TestStreamTypeFor(t *testing.T) {
	require.Equal(t, StreamTypeClientBidi, StreamTypeFor(PerspectiveClient, false))
	require.Equal(t, StreamTypeServerBidi, StreamTypeFor(PerspectiveServer, false))
	require.Equal(t, StreamTypeClientUni, StreamTypeFor(PerspectiveClient, true))
	require.Equal(t, StreamTypeServerUni, StreamTypeFor(PerspectiveServer, true))
}

func TestFirstStreamID(t *testing.T) {
	require.Equal(t, StreamID(0), FirstStreamID(StreamTypeClientBidi))
	require.Equal(t, StreamID(1), FirstStreamID(StreamTypeServerBidi))
	require.Equal(t, StreamID(2), FirstStreamID(StreamTypeClientUni))
	require.Equal(t, StreamID(3), FirstStreamID(StreamTypeServerUni))
}
