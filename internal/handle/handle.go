package handle

import (
	"database/sql"

	"github.com/cellarfs/cellarfs/internal/block"
	"github.com/cellarfs/cellarfs/internal/codec"
	"github.com/cellarfs/cellarfs/internal/logger"
	"github.com/cellarfs/cellarfs/internal/storage"
)

// bufferSize is the per-handle write-coalescing buffer capacity. The
// kernel's own write bursts land in 4-128 KiB chunks; absorbing them here
// turns many small writes into one transaction per buffer-full.
const bufferSize = 2 * 1024 * 1024

// FileHandle is the open-file state attached to one fuse file handle: the
// inode it was opened against, the flags it was opened with, and the
// write-coalescing buffer sitting in front of the block table.
type FileHandle struct {
	Ino   uint64
	Size  uint64
	Flags codec.OpenFlags

	writeOffset uint64
	buf         []byte
	compression block.Compression
}

// New creates a fresh, empty handle for ino.
func New(ino, size uint64, flags codec.OpenFlags, compression block.Compression) *FileHandle {
	return &FileHandle{
		Ino:         ino,
		Size:        size,
		Flags:       flags,
		buf:         make([]byte, 0, bufferSize),
		compression: compression,
	}
}

func (h *FileHandle) bufferRemaining() int {
	return cap(h.buf) - len(h.buf)
}

// BufferEmpty reports whether there is nothing staged to flush.
func (h *FileHandle) BufferEmpty() bool {
	return len(h.buf) == 0
}

// BufferFull reports whether the staging buffer has no remaining capacity.
func (h *FileHandle) BufferFull() bool {
	return h.bufferRemaining() == 0
}

// WriteOffset returns the absolute file offset the next consumed byte would
// land at.
func (h *FileHandle) WriteOffset() uint64 {
	return h.writeOffset + uint64(len(h.buf))
}

// SeekTo repositions the handle's write cursor. The buffer must be empty —
// callers are expected to flush before seeking, which is exactly the seek
// detection the handle owner performs on every write whose offset disagrees
// with WriteOffset().
func (h *FileHandle) SeekTo(offset uint64) {
	if len(h.buf) != 0 {
		panic("handle: SeekTo called with a non-empty buffer")
	}
	h.writeOffset = offset
}

// ConsumeInput appends as much of data as fits in the remaining buffer
// capacity and returns how many bytes were consumed.
func (h *FileHandle) ConsumeInput(data []byte) int {
	n := len(data)
	if r := h.bufferRemaining(); n > r {
		n = r
	}
	h.buf = append(h.buf, data[:n]...)
	return n
}

// Flush persists the staged buffer to the block table and updates the
// inode's size and block count, within tx. It is a no-op if the buffer is
// empty.
func (h *FileHandle) Flush(tx *sql.Tx) error {
	if len(h.buf) == 0 {
		return nil
	}
	logger.Debugf("flush handle ino=%d buf.len=%d buf.cap=%d", h.Ino, len(h.buf), cap(h.buf))

	attr, err := storage.LookupInode(tx, h.Ino)
	if err != nil {
		return err
	}

	newOffset := h.writeOffset
	data := h.buf
	var modifiedBlocks []*block.Block

	err = storage.IterBlocksFrom(tx, h.Ino, newOffset, func(b *block.Block) (bool, error) {
		written, diff := b.WriteAt(newOffset, data)
		data = data[written:]
		newOffset += written
		attr.Size = uint64(int64(attr.Size) + diff)
		if written > 0 {
			modifiedBlocks = append(modifiedBlocks, b)
		}
		return len(data) > 0, nil
	})
	if err != nil {
		return err
	}

	for _, b := range modifiedBlocks {
		if err := storage.UpdateBlock(tx, b, h.compression); err != nil {
			return err
		}
	}

	for len(data) > 0 {
		written, err := storage.CreateBlock(tx, h.Ino, newOffset, data, h.compression)
		if err != nil {
			return err
		}
		data = data[written:]
		newOffset += written
		attr.Size += written
	}

	attr.Blocks = ceilDiv(attr.Size, uint64(attr.Blksize))
	if err := storage.SetInodeAttr(tx, h.Ino, "size", attr.Size); err != nil {
		return err
	}
	if err := storage.SetInodeAttr(tx, h.Ino, "blocks", attr.Blocks); err != nil {
		return err
	}

	h.buf = h.buf[:0]
	h.writeOffset = newOffset
	h.Size = attr.Size
	return nil
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
