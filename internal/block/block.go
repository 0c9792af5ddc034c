// Package block implements the fixed-size logical block that backs file
// content storage, and the compression boundary applied to it before it
// touches a row.
package block

// Size is the fixed logical block size. Every block row holds at most this
// many bytes of uncompressed file content.
const Size uint64 = 128 * 1024

// Block is a single uncompressed logical block of file content.
type Block struct {
	Ino  uint64
	Bno  uint64
	Data []byte
}

// Empty returns a zero-length block for the given inode and block number.
func Empty(ino, bno uint64) *Block {
	return &Block{Ino: ino, Bno: bno, Data: nil}
}

// OffsetToBno maps an absolute file offset to the block number that contains
// it.
func OffsetToBno(offset uint64) uint64 {
	return offset / Size
}

// StartOffset returns the absolute file offset of the first byte of b.
func (b *Block) StartOffset() uint64 {
	return b.Bno * Size
}

// EndOffset returns the absolute file offset one past the last byte b can
// hold.
func (b *Block) EndOffset() uint64 {
	return (b.Bno + 1) * Size
}

// available returns how many more bytes b can hold before it is full.
func (b *Block) available() uint32 {
	return uint32(Size - uint64(len(b.Data)))
}

// Consume appends as much of data as fits in the remaining space of b and
// returns how many bytes were written.
func (b *Block) Consume(data []byte) uint64 {
	avail := b.available()
	maxWrite := len(data)
	if uint32(maxWrite) > avail {
		maxWrite = int(avail)
	}
	b.Data = append(b.Data, data[:maxWrite]...)
	return uint64(maxWrite)
}

// WriteAt writes data at the given absolute file offset, which must fall
// within [b.StartOffset(), b.EndOffset()). Any gap between the current end
// of b.Data and the relative offset is zero-filled. It returns the number of
// bytes written and the signed change in b's length.
func (b *Block) WriteAt(inodeOffset uint64, data []byte) (written uint64, sizeDelta int64) {
	startLen := len(b.Data)
	relOffset := inodeOffset - b.StartOffset()
	if int(relOffset) > len(b.Data) {
		grown := make([]byte, int(relOffset))
		copy(grown, b.Data)
		b.Data = grown
	} else {
		b.Data = b.Data[:relOffset]
	}
	written = b.Consume(data)
	sizeDelta = int64(len(b.Data)) - int64(startLen)
	return written, sizeDelta
}

// CopyInto appends as much of b's content at or after the given absolute
// offset as fits in the remaining capacity of dest, and returns the number
// of bytes copied. Capacity is tracked explicitly via max, mirroring the
// original's Vec::capacity()-bounded copy.
func (b *Block) CopyInto(dest *[]byte, max int, offset uint64) int {
	relOffset := int64(offset) - int64(b.StartOffset())
	if relOffset < 0 {
		relOffset = 0
	}
	remaining := max - len(*dest)
	avail := len(b.Data) - int(relOffset)
	maxWrite := remaining
	if avail < maxWrite {
		maxWrite = avail
	}
	if maxWrite < 0 {
		maxWrite = 0
	}
	*dest = append(*dest, b.Data[relOffset:][:maxWrite]...)
	return maxWrite
}

// Truncate shrinks b so that it ends exactly at the given absolute file
// offset, which must fall within b's range.
func (b *Block) Truncate(inodeOffset uint64) {
	relSize := inodeOffset - b.StartOffset()
	b.Data = b.Data[:relSize]
}
