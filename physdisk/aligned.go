package physdisk

import "unsafe"

// pageAlign is the buffer alignment for unbuffered I/O. It covers every
// logical block size up to 4 KiB.
const pageAlign = 4096

// alignedBuffer returns n zero bytes whose first byte sits on an align
// boundary. align must be a power of two.
func alignedBuffer(n, align int) []byte {
	buf := make([]byte, n+align)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(unsafe.SliceData(buf))) & uintptr(align-1)); rem != 0 {
		off = align - rem
	}
	return buf[off : off+n : off+n]
}

func isAligned(b []byte, align int) bool {
	return len(b) == 0 || uintptr(unsafe.Pointer(unsafe.SliceData(b)))&uintptr(align-1) == 0
}
