package qspi

import "golang.org/x/exp/constraints"

// alignDown rounds v down to a multiple of align.
func alignDown[T constraints.Unsigned](v, align T) T {
	return v - v%align
}

// alignUp rounds v up to a multiple of align.
func alignUp[T constraints.Unsigned](v, align T) T {
	return alignDown(v+align-1, align)
}

// chunk is one page program: n bytes of the source buffer from off, written
// at addr.
type chunk struct {
	addr uint32
	off  int
	n    int
}

// pageChunks splits a write of n bytes at addr so that no chunk crosses a
// page boundary. The first chunk runs up to the next boundary, the others
// are full pages except possibly the last.
func pageChunks(addr uint32, n int, pageSize uint32) []chunk {
	if n <= 0 {
		return nil
	}
	size := min(n, int(pageSize-addr%pageSize))
	chunks := make([]chunk, 0, 1+(n-size+int(pageSize)-1)/int(pageSize))
	for off := 0; off < n; {
		chunks = append(chunks, chunk{addr: addr, off: off, n: size})
		addr += uint32(size)
		off += size
		size = min(n-off, int(pageSize))
	}
	return chunks
}

// sectorStarts returns the sector addresses erased for [start, end]: start is
// rounded down to its sector and sectors follow while end >= current.
func sectorStarts(start, end, sectorSize uint32) []uint32 {
	var starts []uint32
	// 64 bits so that the last sector of a 4GiB space terminates.
	for cur := uint64(alignDown(start, sectorSize)); uint64(end) >= cur; cur += uint64(sectorSize) {
		starts = append(starts, uint32(cur))
	}
	return starts
}
