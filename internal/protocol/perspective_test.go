package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPerspectiveString(t *testing.T) {
	require.Equal(t, "server", PerspectiveServer.String())
	require.Equal(t, "client", PerspectiveClient.String())
}

func TestPerspectiveOpposite(t *testing.T) {
	require.Equal(t, PerspectiveClient, PerspectiveServer.Opposite())
	require.Equal(t, PerspectiveServer, PerspectiveClient.Opposite())
}
