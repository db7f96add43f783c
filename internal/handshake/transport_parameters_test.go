package handshake

import (
	"testing"

	"github.com/draftquic/draftquic/internal/protocol"
	"github.com/stretchr/testify/require"
)

func TestTransportParametersRoundTrip(t *testing.T) {
	p := DefaultTransportParameters()
	p.DisableMigration = true
	token := [16]byte{1, 2, 3, 4}
	p.StatelessResetToken = &token
	p.OriginalConnectionID = protocol.ConnectionID{0x01, 0x02, 0x03}

	data := p.Marshal()

	got := &TransportParameters{}
	require.NoError(t, got.Unmarshal(data, protocol.PerspectiveServer))

	require.Equal(t, p.InitialMaxData, got.InitialMaxData)
	require.Equal(t, p.InitialMaxStreamDataBidiLocal, got.InitialMaxStreamDataBidiLocal)
	require.Equal(t, p.InitialMaxStreamsBidi, got.InitialMaxStreamsBidi)
	require.Equal(t, p.AckDelayExponent, got.AckDelayExponent)
	require.True(t, got.DisableMigration)
	require.Equal(t, &token, got.StatelessResetToken)
	require.True(t, p.OriginalConnectionID.Equal(got.OriginalConnectionID))
}

func TestTransportParametersClientCannotSendStatelessResetToken(t *testing.T) {
	p := DefaultTransportParameters()
	token := [16]byte{1}
	p.StatelessResetToken = &token
	data := p.Marshal()

	got := &TransportParameters{}
	err := got.Unmarshal(data, protocol.PerspectiveClient)
	require.Error(t, err)
}

func TestTransportParametersUnknownParameterIsSkipped(t *testing.T) {
	p := DefaultTransportParameters()
	data := p.Marshal()

	// append an unknown parameter (id 0xff, 3-byte value) after the known ones
	data = append(data, 0x00, 0xff, 0x00, 0x03, 'x', 'y', 'z')

	got := &TransportParameters{}
	require.NoError(t, got.Unmarshal(data, protocol.PerspectiveServer))
	require.Equal(t, p.InitialMaxData, got.InitialMaxData)
}
