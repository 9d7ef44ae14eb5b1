package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeValue(t *testing.T) {
	payload := []byte(`{"id":"a","message":"hello"}`)
	framed := EncodeValue(payload)

	got, err := DecodeValue(framed)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDecodeValueRejectsCorruption(t *testing.T) {
	framed := EncodeValue([]byte("payload"))

	// flip a payload byte
	bad := append([]byte(nil), framed...)
	bad[3] ^= 0xff
	_, err := DecodeValue(bad)
	assert.ErrorIs(t, err, ErrCorruptValue)

	// truncate
	_, err = DecodeValue(framed[:len(framed)-2])
	assert.ErrorIs(t, err, ErrCorruptValue)

	// too short
	_, err = DecodeValue([]byte{0x01})
	assert.ErrorIs(t, err, ErrCorruptValue)
}

func TestDecodeValueEmptyPayload(t *testing.T) {
	framed := EncodeValue(nil)
	got, err := DecodeValue(framed)
	require.NoError(t, err)
	assert.Empty(t, got)
}
