package quicvarint

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLimits(t *testing.T) {
	require.Equal(t, 0, Min)
	require.Equal(t, uint64(1<<62-1), uint64(Max))
}

func TestRead(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected uint64
	}{
		{"1 byte", []byte{0b00011001}, 25},
		{"2 byte", []byte{0b01111011, 0xbd}, 15293},
		{"4 byte", []byte{0b10011101, 0x7f, 0x3e, 0x7d}, 494878333},
		{"8 byte", []byte{0b11000010, 0x19, 0x7c, 0x5e, 0xff, 0x14, 0xe8, 0x8c}, 151288809941952652},
		{"non-minimal encoding", []byte{0b01000000, 0x25}, 37},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(bytes.NewReader(tt.input))
			val, err := Read(r)
			require.NoError(t, err)
			require.Equal(t, tt.expected, val)
		})
	}
}

func TestReadNotEnoughBytes(t *testing.T) {
	_, err := Read(NewReader(bytes.NewReader(nil)))
	require.Equal(t, io.EOF, err)

	_, err = Read(NewReader(bytes.NewReader([]byte{0b01000000})))
	require.Error(t, err)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		value uint64
		n     int
	}{
		{"1 byte", []byte{0b00011001}, 25, 1},
		{"2 byte", []byte{0b01111011, 0xbd}, 15293, 2},
		{"4 byte", []byte{0b10011101, 0x7f, 0x3e, 0x7d}, 494878333, 4},
		{"8 byte", []byte{0b11000010, 0x19, 0x7c, 0x5e, 0xff, 0x14, 0xe8, 0x8c}, 151288809941952652, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, n, err := Parse(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.value, v)
			require.Equal(t, tt.n, n)
		})
	}
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		err   error
	}{
		{"empty", []byte{}, io.EOF},
		{"2-byte encoding truncated", []byte{0b01000001}, io.ErrUnexpectedEOF},
		{"4-byte encoding truncated", []byte{0b10000000, 0, 0}, io.ErrUnexpectedEOF},
		{"8-byte encoding truncated", []byte{0b11000000, 0, 0, 0, 0, 0, 0}, io.ErrUnexpectedEOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, n, err := Parse(tt.input)
			require.Equal(t, tt.err, err)
			require.Zero(t, v)
			require.Zero(t, n)
		})
	}
}

func TestAppend(t *testing.T) {
	tests := []struct {
		name     string
		value    uint64
		expected []byte
	}{
		{"1 byte", 37, []byte{0x25}},
		{"max 1 byte", maxVarInt1, []byte{0b00111111}},
		{"min 2 byte", maxVarInt1 + 1, []byte{0x40, maxVarInt1 + 1}},
		{"max 2 byte", maxVarInt2, []byte{0b01111111, 0xff}},
		{"min 4 byte", maxVarInt2 + 1, []byte{0b10000000, 0, 0x40, 0}},
		{"max 4 byte", maxVarInt4, []byte{0b10111111, 0xff, 0xff, 0xff}},
		{"min 8 byte", maxVarInt4 + 1, []byte{0b11000000, 0, 0, 0, 0x40, 0, 0, 0}},
		{"max 8 byte", maxVarInt8, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Append(nil, tt.value))
		})
	}

	require.PanicsWithError(t,
		fmt.Sprintf("value doesn't fit into 62 bits: %d", uint64(maxVarInt8+1)),
		func() { Append(nil, maxVarInt8+1) },
	)
}

func TestAppendWithLen(t *testing.T) {
	tests := []struct {
		name     string
		value    uint64
		length   int
		expected []byte
	}{
		{"1-byte in 1", 37, 1, []byte{0x25}},
		{"1-byte in 2", 37, 2, []byte{0b01000000, 0x25}},
		{"1-byte in 4", 37, 4, []byte{0b10000000, 0, 0, 0x25}},
		{"1-byte in 8", 37, 8, []byte{0b11000000, 0, 0, 0, 0, 0, 0, 0x25}},
		{"2-byte in 4", 15293, 4, []byte{0b10000000, 0, 0x3b, 0xbd}},
		{"4-byte in 8", 494878333, 8, []byte{0b11000000, 0, 0, 0, 0x1d, 0x7f, 0x3e, 0x7d}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := AppendWithLen(nil, tt.value, tt.length)
			require.Equal(t, tt.expected, b)
			if tt.length > 1 {
				v, n, err := Parse(b)
				require.NoError(t, err)
				require.Equal(t, tt.length, n)
				require.Equal(t, tt.value, v)
			}
		})
	}
}

func TestAppendWithLenFailures(t *testing.T) {
	require.Panics(t, func() { AppendWithLen(nil, 25, 3) })
	require.Panics(t, func() { AppendWithLen(nil, maxVarInt1+1, 1) })
	require.Panics(t, func() { AppendWithLen(nil, maxVarInt2+1, 2) })
	require.Panics(t, func() { AppendWithLen(nil, maxVarInt4+1, 4) })
}

func TestLen(t *testing.T) {
	tests := []struct {
		input    uint64
		expected int
	}{
		{0, 1},
		{maxVarInt1, 1},
		{maxVarInt1 + 1, 2},
		{maxVarInt2, 2},
		{maxVarInt2 + 1, 4},
		{maxVarInt4, 4},
		{maxVarInt4 + 1, 8},
		{maxVarInt8, 8},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, Len(tt.input))
	}

	require.PanicsWithError(t,
		fmt.Sprintf("value doesn't fit into 62 bits: %d", uint64(maxVarInt8+1)),
		func() { Len(maxVarInt8 + 1) },
	)
}
