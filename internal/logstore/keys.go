package logstore

import (
	"encoding/binary"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
//   - rec/{id}                           (framed canonical record)
//   - idx/ts/{ts_be8}/{id}               (time ordering; value: size_be4)
//   - idx/dom/{domain}/{ts_be8}/{id}     ((domain, time) ordering; value: size_be4)
//   - idx/lvl/{level}/{ts_be8}/{id}      ((level, time) ordering; value: size_be4)
//   - idx/sess/{session}/{ts_be8}/{id}   (session grouping; value: size_be4)
//   - meta/count, meta/bytes             (store-wide counters, be8)
//
// Timestamps are encoded big-endian so the byte order matches the numeric
// order. Validation rejects non-positive timestamps, so the sign bit never
// flips the ordering.

var (
	sep            = byte('/')
	recPrefix      = []byte("rec/")
	tsIdxPrefix    = []byte("idx/ts/")
	domIdxPrefix   = []byte("idx/dom/")
	lvlIdxPrefix   = []byte("idx/lvl/")
	sessIdxPrefix  = []byte("idx/sess/")
	metaCountKey   = []byte("meta/count")
	metaBytesKey   = []byte("meta/bytes")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func appendBE4(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

// KeyRecord builds the primary record key.
func KeyRecord(id string) []byte {
	k := make([]byte, 0, len(recPrefix)+len(id))
	k = append(k, recPrefix...)
	k = append(k, id...)
	return k
}

// KeyTimeIndex builds the time-ordering entry key.
func KeyTimeIndex(tsMs int64, id string) []byte {
	k := make([]byte, 0, len(tsIdxPrefix)+9+len(id))
	k = append(k, tsIdxPrefix...)
	k = appendBE8(k, uint64(tsMs))
	k = append(k, sep)
	k = append(k, id...)
	return k
}

// KeyDomainIndex builds the (domain, time) ordering entry key.
func KeyDomainIndex(domain string, tsMs int64, id string) []byte {
	k := make([]byte, 0, len(domIdxPrefix)+len(domain)+10+len(id))
	k = append(k, domIdxPrefix...)
	k = append(k, domain...)
	k = append(k, sep)
	k = appendBE8(k, uint64(tsMs))
	k = append(k, sep)
	k = append(k, id...)
	return k
}

// KeyLevelIndex builds the (level, time) ordering entry key.
func KeyLevelIndex(level string, tsMs int64, id string) []byte {
	k := make([]byte, 0, len(lvlIdxPrefix)+len(level)+10+len(id))
	k = append(k, lvlIdxPrefix...)
	k = append(k, level...)
	k = append(k, sep)
	k = appendBE8(k, uint64(tsMs))
	k = append(k, sep)
	k = append(k, id...)
	return k
}

// KeySessionIndex builds the session grouping entry key.
func KeySessionIndex(session string, tsMs int64, id string) []byte {
	k := make([]byte, 0, len(sessIdxPrefix)+len(session)+10+len(id))
	k = append(k, sessIdxPrefix...)
	k = append(k, session...)
	k = append(k, sep)
	k = appendBE8(k, uint64(tsMs))
	k = append(k, sep)
	k = append(k, id...)
	return k
}

// prefixTimeIndex returns the scan prefix for the time index.
func prefixTimeIndex() []byte {
	return append([]byte(nil), tsIdxPrefix...)
}

// prefixDomainIndex returns the scan prefix for one domain's entries.
func prefixDomainIndex(domain string) []byte {
	k := make([]byte, 0, len(domIdxPrefix)+len(domain)+1)
	k = append(k, domIdxPrefix...)
	k = append(k, domain...)
	k = append(k, sep)
	return k
}

// prefixLevelIndex returns the scan prefix for one level's entries.
func prefixLevelIndex(level string) []byte {
	k := make([]byte, 0, len(lvlIdxPrefix)+len(level)+1)
	k = append(k, lvlIdxPrefix...)
	k = append(k, level...)
	k = append(k, sep)
	return k
}

// prefixSessionIndex returns the scan prefix for one session's entries.
func prefixSessionIndex(session string) []byte {
	k := make([]byte, 0, len(sessIdxPrefix)+len(session)+1)
	k = append(k, sessIdxPrefix...)
	k = append(k, session...)
	k = append(k, sep)
	return k
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix, for use as an exclusive iterator upper bound.
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // entire keyspace
}

// parseIndexEntry extracts (timestamp, id) from an index key under the given
// scan prefix and the record size from the entry value.
func parseIndexEntry(prefix, key, value []byte) (int64, string, int, bool) {
	if len(key) < len(prefix)+9 {
		return 0, "", 0, false
	}
	ts := int64(binary.BigEndian.Uint64(key[len(prefix) : len(prefix)+8]))
	id := string(key[len(prefix)+9:])
	size := 0
	if len(value) >= 4 {
		size = int(binary.BigEndian.Uint32(value[:4]))
	}
	return ts, id, size, true
}
