// Package driver implements the filesystem's request handlers: the pure
// logic that turns a kernel operation into a sequence of query-layer calls
// inside a transaction. The thin kernel-facing adapter lives in ops.go.
package driver

import (
	"database/sql"
	"math"
	"sync/atomic"
	"time"

	"github.com/cellarfs/cellarfs/internal/block"
	"github.com/cellarfs/cellarfs/internal/codec"
	"github.com/cellarfs/cellarfs/internal/fserrors"
	"github.com/cellarfs/cellarfs/internal/handle"
	"github.com/cellarfs/cellarfs/internal/logger"
	"github.com/cellarfs/cellarfs/internal/storage"
)

// RootIno is the inode number of the filesystem root, created on first
// mount if it does not already exist.
const RootIno uint64 = 1

// RequestInfo carries the calling process's identity for operations whose
// result depends on it (new-inode ownership).
type RequestInfo struct {
	UID uint32
	GID uint32
}

// Driver holds the process-wide state a mount owns: the database gateway,
// the compression preference new blocks are written with, and the table of
// open file handles. Construction and teardown are tied to mount and
// unmount; no global mutable state exists outside of it.
type Driver struct {
	gateway      *storage.Gateway
	compression  block.Compression
	handles      *handle.Slab[*handle.FileHandle]
	lastActivity atomic.Int64
}

// New constructs a Driver over an already-open gateway.
func New(gateway *storage.Gateway, compression block.Compression) *Driver {
	d := &Driver{
		gateway:     gateway,
		compression: compression,
		handles:     handle.NewSlab[*handle.FileHandle](),
	}
	d.touch()
	return d
}

func (d *Driver) touch() {
	d.lastActivity.Store(time.Now().UnixNano())
}

// IdleFor reports how long it has been since the last mutating operation.
// mount.go's optional auto-vacuum timer polls this to decide when the
// filesystem has gone quiet enough to run VACUUM without fighting active
// writers for database locks.
func (d *Driver) IdleFor() time.Duration {
	return time.Since(time.Unix(0, d.lastActivity.Load()))
}

// EnsureRootExists creates the root directory inode if this is a brand new
// database.
func (d *Driver) EnsureRootExists() error {
	return d.gateway.WriteTx(func(tx *sql.Tx) error {
		_, err := storage.LookupInode(tx, RootIno)
		if err == nil {
			return nil
		}
		if !fserrors.Is(err, fserrors.KindNotFound) {
			return err
		}
		logger.Debugf("ino=1 requested, but does not exist yet, will create.")
		a := NewDirectoryAttr().Build()
		return storage.CreateInode(tx, &a)
	})
}

// GetAttr reads ino's attributes directly, for the kernel's periodic
// attribute revalidation rather than a name-based lookup.
func (d *Driver) GetAttr(ino uint64) (*storage.InodeAttr, error) {
	var attr *storage.InodeAttr
	err := d.gateway.ReadTx(func(tx *sql.Tx) error {
		var err error
		attr, err = storage.LookupInode(tx, ino)
		return err
	})
	return attr, err
}

func (d *Driver) Lookup(parent uint64, name []byte) (*storage.InodeAttr, error) {
	var attr *storage.InodeAttr
	err := d.gateway.ReadTx(func(tx *sql.Tx) error {
		ino, err := storage.LookupDirEntry(tx, parent, name)
		if err != nil {
			return err
		}
		attr, err = storage.LookupInode(tx, ino)
		return err
	})
	return attr, err
}

// SetAttrInput carries the optional fields setattr may update; a nil field
// means "leave unchanged", mirroring the kernel's sparse setattr request.
type SetAttrInput struct {
	Mode   *uint32
	UID    *uint32
	GID    *uint32
	Size   *uint64
	Atime  *codec.TimeSpec
	Mtime  *codec.TimeSpec
	Ctime  *codec.TimeSpec
	Crtime *codec.TimeSpec
	Flags  *uint32
}

func (d *Driver) SetAttr(ino uint64, in SetAttrInput) (*storage.InodeAttr, error) {
	d.touch()
	var attr *storage.InodeAttr
	err := d.gateway.WriteTx(func(tx *sql.Tx) error {
		if in.Mode != nil {
			if err := storage.SetInodeAttr(tx, ino, "perm", *in.Mode); err != nil {
				return err
			}
		}
		if in.UID != nil {
			if err := storage.SetInodeAttr(tx, ino, "uid", *in.UID); err != nil {
				return err
			}
		}
		if in.GID != nil {
			if err := storage.SetInodeAttr(tx, ino, "gid", *in.GID); err != nil {
				return err
			}
		}
		if in.Size != nil {
			size := *in.Size
			bno := block.OffsetToBno(size)
			if err := storage.RemoveBlocksFrom(tx, ino, bno+1); err != nil {
				return err
			}
			b, err := storage.GetBlock(tx, ino, bno)
			if err != nil && !fserrors.Is(err, fserrors.KindNotFound) {
				return err
			}
			if err == nil {
				b.Truncate(size)
				if err := storage.UpdateBlock(tx, b, d.compression); err != nil {
					return err
				}
			}
			if err := storage.SetInodeAttr(tx, ino, "size", size); err != nil {
				return err
			}
		}
		if in.Atime != nil {
			if err := storage.SetInodeAttr(tx, ino, "atime_secs", in.Atime.Secs); err != nil {
				return err
			}
			if err := storage.SetInodeAttr(tx, ino, "atime_nanos", in.Atime.Nanos); err != nil {
				return err
			}
		}
		if in.Mtime != nil {
			if err := storage.SetInodeAttr(tx, ino, "mtime_secs", in.Mtime.Secs); err != nil {
				return err
			}
			if err := storage.SetInodeAttr(tx, ino, "mtime_nanos", in.Mtime.Nanos); err != nil {
				return err
			}
		}
		if in.Ctime != nil {
			if err := storage.SetInodeAttr(tx, ino, "ctime_secs", in.Ctime.Secs); err != nil {
				return err
			}
			if err := storage.SetInodeAttr(tx, ino, "ctime_nanos", in.Ctime.Nanos); err != nil {
				return err
			}
		}
		if in.Crtime != nil {
			if err := storage.SetInodeAttr(tx, ino, "crtime_secs", in.Crtime.Secs); err != nil {
				return err
			}
			if err := storage.SetInodeAttr(tx, ino, "crtime_nanos", in.Crtime.Nanos); err != nil {
				return err
			}
		}
		if in.Flags != nil {
			if err := storage.SetInodeAttr(tx, ino, "flags", *in.Flags); err != nil {
				return err
			}
		}

		var err error
		attr, err = storage.LookupInode(tx, ino)
		return err
	})
	return attr, err
}

func (d *Driver) MkNod(req RequestInfo, parent uint64, name []byte, mode, umask, rdev uint32) (*storage.InodeAttr, error) {
	kind, ok := codec.FileTypeFromMode(mode)
	if !ok {
		return nil, fserrors.InvalidArgument("mode does not encode a recognized file type")
	}

	d.touch()
	a := NewNodeAttr(kind).WithUID(req.UID).WithGID(req.GID).WithModeUmask(mode, umask).WithRdev(rdev).Build()

	err := d.gateway.WriteTx(func(tx *sql.Tx) error {
		if err := storage.CreateInode(tx, &a); err != nil {
			return err
		}
		return storage.CreateDirEntry(tx, parent, name, a.Ino)
	})
	return &a, err
}

func (d *Driver) Link(ino, newParent uint64, newName []byte) (*storage.InodeAttr, error) {
	d.touch()
	var attr *storage.InodeAttr
	err := d.gateway.WriteTx(func(tx *sql.Tx) error {
		var err error
		attr, err = storage.LookupInode(tx, ino)
		if err != nil {
			return err
		}
		attr.Nlink++
		if err := storage.CreateDirEntry(tx, newParent, newName, ino); err != nil {
			return err
		}
		return storage.SetInodeAttr(tx, ino, "nlink", attr.Nlink)
	})
	return attr, err
}

func (d *Driver) Unlink(parent uint64, name []byte) error {
	d.touch()
	return d.gateway.WriteTx(func(tx *sql.Tx) error {
		ino, err := storage.LookupDirEntry(tx, parent, name)
		if err != nil {
			return err
		}
		attr, err := storage.LookupInode(tx, ino)
		if err != nil {
			return err
		}
		attr.Nlink--
		if attr.Nlink > 0 {
			if err := storage.SetInodeAttr(tx, ino, "nlink", attr.Nlink); err != nil {
				return err
			}
			return storage.RemoveDirEntry(tx, parent, name)
		}
		// nlink reached zero: removing the inode cascades to its dir_entry
		// and block rows.
		return storage.RemoveInode(tx, ino)
	})
}

func (d *Driver) MkDir(req RequestInfo, parent uint64, name []byte, mode, umask uint32) (*storage.InodeAttr, error) {
	d.touch()
	a := NewDirectoryAttr().WithModeUmask(mode, umask).WithUID(req.UID).WithGID(req.GID).Build()

	err := d.gateway.WriteTx(func(tx *sql.Tx) error {
		if err := storage.CreateInode(tx, &a); err != nil {
			return err
		}
		return storage.CreateDirEntry(tx, parent, name, a.Ino)
	})
	return &a, err
}

func (d *Driver) RmDir(parent uint64, name []byte) error {
	d.touch()
	return d.gateway.WriteTx(func(tx *sql.Tx) error {
		ino, err := storage.LookupDirEntry(tx, parent, name)
		if err != nil {
			return err
		}
		empty, err := storage.IsDirEmpty(tx, ino)
		if err != nil {
			return err
		}
		if !empty {
			return fserrors.NotEmpty()
		}
		return storage.RemoveInode(tx, ino)
	})
}

func (d *Driver) ReadDir(ino uint64, offset int64, iter func(storage.ListDirEntry) bool) error {
	return d.gateway.ReadTx(func(tx *sql.Tx) error {
		return storage.ListDir(tx, ino, offset, iter)
	})
}

// handleKey narrows a kernel-supplied handle id to the slab's int index
// type. The slab itself hands out keys starting at 0 and growing by one, so
// it can never produce a key this narrowing would lose; the conversion can
// only fail for a handle id the kernel invented, which should not happen
// but is checked rather than silently truncated.
func handleKey(fh uint64) (int, error) {
	if fh > uint64(math.MaxInt) {
		return 0, fserrors.Overflow()
	}
	return int(fh), nil
}

func (d *Driver) Open(ino uint64, flags codec.OpenFlags) (uint64, error) {
	var attr *storage.InodeAttr
	err := d.gateway.ReadTx(func(tx *sql.Tx) error {
		var err error
		attr, err = storage.LookupInode(tx, ino)
		return err
	})
	if err != nil {
		return 0, err
	}
	fh := d.handles.Insert(handle.New(ino, attr.Size, flags, d.compression))
	return uint64(fh), nil
}

func (d *Driver) Release(fh uint64) error {
	key, err := handleKey(fh)
	if err != nil {
		return err
	}
	h, ok := d.handles.TryRemove(key)
	if !ok {
		return fserrors.NotFound()
	}
	return d.gateway.WriteTx(func(tx *sql.Tx) error { return h.Flush(tx) })
}

func (d *Driver) Read(ino, fh uint64, offset int64, size uint32) ([]byte, error) {
	key, err := handleKey(fh)
	if err != nil {
		return nil, err
	}
	h := d.handles.GetPtr(key)
	if h == nil {
		return nil, fserrors.NotFound()
	}
	hh := *h

	if !hh.BufferEmpty() {
		if err := d.gateway.WriteTx(func(tx *sql.Tx) error { return hh.Flush(tx) }); err != nil {
			return nil, err
		}
	}

	var buf []byte
	err = d.gateway.ReadTx(func(tx *sql.Tx) error {
		attr, err := storage.LookupInode(tx, ino)
		if err != nil {
			return err
		}
		off := uint64(offset)
		var remaining uint64
		if attr.Size > off {
			remaining = attr.Size - off
		}
		capacity := uint64(size)
		if remaining < capacity {
			capacity = remaining
		}
		buf = make([]byte, 0, capacity)

		return storage.IterBlocksFrom(tx, ino, off, func(b *block.Block) (bool, error) {
			b.CopyInto(&buf, int(capacity), off)
			return len(buf) < int(capacity), nil
		})
	})
	return buf, err
}

func (d *Driver) Write(fh uint64, offset int64, data []byte) (uint32, error) {
	d.touch()
	key, err := handleKey(fh)
	if err != nil {
		return 0, err
	}
	h := d.handles.GetPtr(key)
	if h == nil {
		return 0, fserrors.NotFound()
	}
	hh := *h
	startSize := len(data)
	off := uint64(offset)

	if hh.WriteOffset() != off {
		logger.Debugf("seek occurred, flushing, old offset = %d, new offset = %d", hh.WriteOffset(), off)
		if err := d.gateway.WriteTx(func(tx *sql.Tx) error { return hh.Flush(tx) }); err != nil {
			return 0, err
		}
		hh.SeekTo(off)
	}

	for len(data) > 0 {
		if hh.BufferFull() {
			if err := d.gateway.WriteTx(func(tx *sql.Tx) error { return hh.Flush(tx) }); err != nil {
				return 0, err
			}
		}
		consumed := hh.ConsumeInput(data)
		data = data[consumed:]
	}
	return uint32(startSize), nil
}

func (d *Driver) FlushHandle(fh uint64) error {
	key, err := handleKey(fh)
	if err != nil {
		return err
	}
	h := d.handles.GetPtr(key)
	if h == nil {
		return fserrors.NotFound()
	}
	hh := *h
	return d.gateway.WriteTx(func(tx *sql.Tx) error { return hh.Flush(tx) })
}

func (d *Driver) Rename(parent uint64, name []byte, newParent uint64, newName []byte) error {
	d.touch()
	return d.gateway.WriteTx(func(tx *sql.Tx) error {
		return storage.RenameDirEntry(tx, parent, name, newParent, newName)
	})
}
