package surface

import (
	"bytes"
	"encoding/binary"
)

const fingerprintStride = 8

// Fingerprint returns the verification content of one sector: the big-endian
// encoding of the sector's absolute index repeated every 8 bytes. A trailing
// remainder shorter than 8 bytes is left zero.
func Fingerprint(sector uint64, bytesPerSector int) []byte {
	b := make([]byte, bytesPerSector)
	putFingerprint(b, sector)
	return b
}

// Pattern returns the fingerprints of count consecutive sectors starting at
// sector, concatenated in sector order.
func Pattern(sector uint64, count, bytesPerSector int) []byte {
	b := make([]byte, count*bytesPerSector)
	for i := 0; i < count; i++ {
		putFingerprint(b[i*bytesPerSector:(i+1)*bytesPerSector], sector+uint64(i))
	}
	return b
}

func putFingerprint(dst []byte, sector uint64) {
	for off := 0; off+fingerprintStride <= len(dst); off += fingerprintStride {
		binary.BigEndian.PutUint64(dst[off:], sector)
	}
}

// fingerprinted returns the part of a sector covered by the fingerprint.
func fingerprinted(b []byte) []byte {
	return b[:len(b)-len(b)%fingerprintStride]
}

// VerifySector reports whether data holds the fingerprint of sector.
func VerifySector(data []byte, sector uint64) bool {
	want := Fingerprint(sector, len(data))
	return bytes.Equal(fingerprinted(data), fingerprinted(want))
}

// DecodeFingerprint returns the index stored in the first 8 bytes of a sector.
// ok is false when the sector is too short to hold one.
func DecodeFingerprint(data []byte) (sector uint64, ok bool) {
	if len(data) < fingerprintStride {
		return 0, false
	}
	return binary.BigEndian.Uint64(data), true
}

// Mismatch describes a sector whose content differs from its fingerprint.
type Mismatch struct {
	Sector uint64
	Found  uint64
}

// VerifyPattern compares every sector of data, which starts at sector, with
// its expected fingerprint. It never stops at the first difference and
// returns every mismatching sector in order.
func VerifyPattern(data []byte, sector uint64, bytesPerSector int) []Mismatch {
	var out []Mismatch
	count := len(data) / bytesPerSector
	for i := 0; i < count; i++ {
		sec := data[i*bytesPerSector : (i+1)*bytesPerSector]
		idx := sector + uint64(i)
		if VerifySector(sec, idx) {
			continue
		}
		found, _ := DecodeFingerprint(sec)
		out = append(out, Mismatch{Sector: idx, Found: found})
	}
	return out
}
