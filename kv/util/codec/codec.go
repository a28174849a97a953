package codec

import (
	"encoding/binary"

	"github.com/dgryski/go-farm"
	"github.com/pingcap/errors"
)

const (
	signMask uint64 = 0x8000000000000000

	intLen = 8
)

// EncodeInt encodes an integer key so that the encoded bytes compare in the same order as the integers. The sign bit
// is flipped so negative keys sort before positive ones. The encoding is based on
// https://github.com/facebook/mysql-5.6/wiki/MyRocks-record-format#memcomparable-format.
func EncodeInt(key int64) []byte {
	return AppendInt(make([]byte, 0, intLen+intLen), key)
}

// AppendInt appends the memcomparable encoding of key to b.
func AppendInt(b []byte, key int64) []byte {
	var data [intLen]byte
	binary.BigEndian.PutUint64(data[:], uint64(key)^signMask)
	return append(b, data[:]...)
}

// DecodeInt decodes an integer encoded by EncodeInt, returning the leftover bytes.
func DecodeInt(b []byte) ([]byte, int64, error) {
	if len(b) < intLen {
		return nil, 0, errors.New("insufficient bytes to decode value")
	}
	u := binary.BigEndian.Uint64(b[:intLen])
	return b[intLen:], int64(u ^ signMask), nil
}

// Fingerprint returns a well mixed hash of an integer key, computed over its encoded form.
func Fingerprint(key int64) uint64 {
	var buf [intLen]byte
	return farm.Fingerprint64(AppendInt(buf[:0], key))
}
