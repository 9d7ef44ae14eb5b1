package record

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// Stored value framing: varint payloadLen | payload | crc32c(payload).
// The checksum catches torn or corrupted values before they reach a caller.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ErrCorruptValue reports a stored value whose framing or checksum is invalid.
var ErrCorruptValue = errors.New("record: corrupt stored value")

// EncodeValue frames a canonical payload for storage.
func EncodeValue(payload []byte) []byte {
	out := make([]byte, 0, 10+len(payload)+4)
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(payload)))
	out = append(out, tmp[:n]...)
	out = append(out, payload...)

	crc := crc32.Checksum(payload, castagnoli)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	out = append(out, crcb[:]...)
	return out
}

// DecodeValue unframes a stored value, verifying length and checksum.
func DecodeValue(b []byte) ([]byte, error) {
	if len(b) < 1+4 {
		return nil, ErrCorruptValue
	}
	plen, n := binary.Uvarint(b)
	if n <= 0 {
		return nil, ErrCorruptValue
	}
	if n+int(plen)+4 != len(b) {
		return nil, ErrCorruptValue
	}
	payload := b[n : n+int(plen)]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(payload, castagnoli) != expect {
		return nil, ErrCorruptValue
	}
	return append([]byte(nil), payload...), nil
}
