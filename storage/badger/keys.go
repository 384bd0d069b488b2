package badger

import (
	"encoding/binary"

	"github.com/poiesic/newsrag/core"
)

// Key prefixes for different data types
const (
	collectionPrefix = "vidxcol"
	pointPrefix      = "vidxpt"
)

// makeCollectionKey generates the key holding a collection's info.
// Format: prefix:name
func makeCollectionKey(name string) []byte {
	return []byte(collectionPrefix + ":" + name)
}

// makePointPrefix generates the prefix shared by all points of a collection.
// Format: prefix:name:
func makePointPrefix(name string) []byte {
	return []byte(pointPrefix + ":" + name + ":")
}

// makePointKey generates a composite key for a point.
// Format: prefix:name:id
func makePointKey(name string, id core.ID) []byte {
	prefix := makePointPrefix(name)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so iteration follows ID order
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}
