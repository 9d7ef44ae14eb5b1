package logstore

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeIndexKeysSortByTimestamp(t *testing.T) {
	a := KeyTimeIndex(1000, "z")
	b := KeyTimeIndex(2000, "a")
	assert.Negative(t, bytes.Compare(a, b), "older timestamp must sort first regardless of id")
}

func TestDomainIndexKeysGroupByDomain(t *testing.T) {
	a := KeyDomainIndex("a.com", 9000, "x")
	b := KeyDomainIndex("b.com", 1000, "y")
	assert.Negative(t, bytes.Compare(a, b), "domain groups before timestamp")

	prefix := prefixDomainIndex("a.com")
	assert.True(t, bytes.HasPrefix(a, prefix))
	assert.False(t, bytes.HasPrefix(b, prefix))
}

func TestParseIndexEntry(t *testing.T) {
	key := KeyTimeIndex(1234, "some-id")
	val := appendBE4(nil, 77)

	ts, id, size, ok := parseIndexEntry(prefixTimeIndex(), key, val)
	require.True(t, ok)
	assert.EqualValues(t, 1234, ts)
	assert.Equal(t, "some-id", id)
	assert.Equal(t, 77, size)
}

func TestPrefixUpperBound(t *testing.T) {
	prefix := []byte("idx/ts/")
	upper := prefixUpperBound(prefix)
	assert.Positive(t, bytes.Compare(upper, prefix))
	assert.True(t, bytes.Compare(KeyTimeIndex(1<<60, "zzz"), upper) < 0)

	assert.Nil(t, prefixUpperBound([]byte{0xff, 0xff}))
}
