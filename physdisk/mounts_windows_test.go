//go:build windows

package physdisk

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func diskExtents(disks ...uint32) []byte {
	b := make([]byte, 8+len(disks)*diskExtentSize)
	binary.LittleEndian.PutUint32(b, uint32(len(disks)))
	for i, d := range disks {
		off := 8 + i*diskExtentSize
		binary.LittleEndian.PutUint32(b[off:], d)
		binary.LittleEndian.PutUint64(b[off+8:], uint64(i)<<20)
		binary.LittleEndian.PutUint64(b[off+16:], 1<<30)
	}
	return b
}

func TestDecodeDiskExtents(t *testing.T) {
	assert.Equal(t, []string{`\\.\PhysicalDrive0`}, decodeDiskExtents(diskExtents(0)))
	assert.Equal(t, []string{`\\.\PhysicalDrive1`, `\\.\PhysicalDrive3`},
		decodeDiskExtents(diskExtents(1, 3, 1)), "a spanned volume lists each disk once")

	truncated := diskExtents(2, 4)
	assert.Equal(t, []string{`\\.\PhysicalDrive2`}, decodeDiskExtents(truncated[:8+diskExtentSize+4]))
	assert.Nil(t, decodeDiskExtents([]byte{1, 0, 0}))
}

func TestMountedVolumesMapToDisks(t *testing.T) {
	for _, m := range ListMounted() {
		for _, d := range m.Disks {
			assert.Contains(t, MountedOn(d), m, "%s lives on %s", m.MountPoint, d)
		}
	}
}
