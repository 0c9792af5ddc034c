package driver

import (
	"os"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/cellarfs/cellarfs/internal/codec"
	"github.com/cellarfs/cellarfs/internal/fserrors"
	"github.com/cellarfs/cellarfs/internal/storage"
)

// entryTTL bounds how long the kernel may cache a lookup or attribute
// result before revalidating it. Every value in this single-file database
// can change out from under the kernel only through this same process, so
// a short, fixed TTL (rather than zero, which disables caching entirely)
// is enough.
const entryTTL = time.Second

// Server adapts a Driver to the fuseutil.FileSystem interface the kernel
// loop in github.com/jacobsa/fuse drives. It is a thin translation layer:
// every method unpacks an Op's request fields, calls the matching pure
// Driver method, and packs the result back into the Op's response fields or
// translates the error into the errno the kernel expects.
//
// NotImplementedFileSystem is embedded to pick up the rest of the interface
// (symlinks, xattrs, statfs, fallocate, batch forget) that cellarfs has no
// use for, the same way fs/fs.go does in the teacher.
type Server struct {
	fuseutil.NotImplementedFileSystem

	driver *Driver
}

// NewServer wraps driver for use with fuse.Mount.
func NewServer(driver *Driver) *Server {
	return &Server{driver: driver}
}

// requestInfo extracts the calling process's identity from an Op's header.
func requestInfo(h fuseops.OpHeader) RequestInfo {
	return RequestInfo{UID: h.Uid, GID: h.Gid}
}

func toEntry(attr *storage.InodeAttr) fuseops.ChildInodeEntry {
	return fuseops.ChildInodeEntry{
		Child:                fuseops.InodeID(attr.Ino),
		Attributes:           toAttributes(attr),
		AttributesExpiration: time.Now().Add(entryTTL),
		EntryExpiration:      time.Now().Add(entryTTL),
	}
}

func toAttributes(attr *storage.InodeAttr) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:   attr.Size,
		Nlink:  attr.Nlink,
		Mode:   os.FileMode(attr.Perm) | attr.Kind.ToOSMode(),
		Atime:  attr.Atime.Time(),
		Mtime:  attr.Mtime.Time(),
		Ctime:  attr.Ctime.Time(),
		Crtime: attr.Crtime.Time(),
		Uid:    attr.UID,
		Gid:    attr.GID,
	}
}

func (s *Server) Init(op *fuseops.InitOp) error {
	return fserrors.ToError(s.driver.EnsureRootExists())
}

func (s *Server) LookUpInode(op *fuseops.LookUpInodeOp) error {
	attr, err := s.driver.Lookup(uint64(op.Parent), []byte(op.Name))
	if err != nil {
		return fserrors.ToError(err)
	}
	op.Entry = toEntry(attr)
	return nil
}

func (s *Server) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) error {
	attr, err := s.driver.GetAttr(uint64(op.Inode))
	if err != nil {
		return fserrors.ToError(err)
	}
	op.Attributes = toAttributes(attr)
	op.AttributesExpiration = time.Now().Add(entryTTL)
	return nil
}

func (s *Server) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) error {
	in := SetAttrInput{}
	if op.Mode != nil {
		m := uint32(*op.Mode)
		in.Mode = &m
	}
	if op.Size != nil {
		in.Size = op.Size
	}
	if op.Atime != nil {
		t := codec.FromTime(*op.Atime)
		in.Atime = &t
	}
	if op.Mtime != nil {
		t := codec.FromTime(*op.Mtime)
		in.Mtime = &t
	}

	attr, err := s.driver.SetAttr(uint64(op.Inode), in)
	if err != nil {
		return fserrors.ToError(err)
	}
	op.Attributes = toAttributes(attr)
	op.AttributesExpiration = time.Now().Add(entryTTL)
	return nil
}

func (s *Server) ForgetInode(op *fuseops.ForgetInodeOp) error {
	return nil
}

func (s *Server) MkDir(op *fuseops.MkDirOp) error {
	attr, err := s.driver.MkDir(requestInfo(op.Header), uint64(op.Parent), []byte(op.Name), uint32(op.Mode), 0)
	if err != nil {
		return fserrors.ToError(err)
	}
	op.Entry = toEntry(attr)
	return nil
}

func (s *Server) MkNode(op *fuseops.MkNodeOp) error {
	attr, err := s.driver.MkNod(requestInfo(op.Header), uint64(op.Parent), []byte(op.Name), uint32(op.Mode), 0, 0)
	if err != nil {
		return fserrors.ToError(err)
	}
	op.Entry = toEntry(attr)
	return nil
}

func (s *Server) CreateFile(op *fuseops.CreateFileOp) error {
	attr, err := s.driver.MkNod(requestInfo(op.Header), uint64(op.Parent), []byte(op.Name), uint32(op.Mode)|0o100000, 0, 0)
	if err != nil {
		return fserrors.ToError(err)
	}
	fh, err := s.driver.Open(attr.Ino, codec.NewOpenFlags(0))
	if err != nil {
		return fserrors.ToError(err)
	}
	op.Entry = toEntry(attr)
	op.Handle = fuseops.HandleID(fh)
	return nil
}

func (s *Server) CreateLink(op *fuseops.CreateLinkOp) error {
	attr, err := s.driver.Link(uint64(op.Target), uint64(op.Parent), []byte(op.Name))
	if err != nil {
		return fserrors.ToError(err)
	}
	op.Entry = toEntry(attr)
	return nil
}

func (s *Server) Rename(op *fuseops.RenameOp) error {
	err := s.driver.Rename(uint64(op.OldParent), []byte(op.OldName), uint64(op.NewParent), []byte(op.NewName))
	return fserrors.ToError(err)
}

func (s *Server) RmDir(op *fuseops.RmDirOp) error {
	return fserrors.ToError(s.driver.RmDir(uint64(op.Parent), []byte(op.Name)))
}

func (s *Server) Unlink(op *fuseops.UnlinkOp) error {
	return fserrors.ToError(s.driver.Unlink(uint64(op.Parent), []byte(op.Name)))
}

func (s *Server) OpenDir(op *fuseops.OpenDirOp) error {
	return nil
}

func (s *Server) ReadDir(op *fuseops.ReadDirOp) error {
	buf := make([]byte, op.Size)
	var written int
	err := s.driver.ReadDir(uint64(op.Inode), int64(op.Offset), func(e storage.ListDirEntry) bool {
		n := fuseutil.WriteDirent(buf[written:], fuseops.Dirent{
			Offset: fuseops.DirOffset(e.Offset),
			Inode:  fuseops.InodeID(e.Ino),
			Name:   string(e.Name),
			Type:   direntType(e.Kind),
		})
		if n == 0 {
			return false
		}
		written += n
		return true
	})
	op.Data = buf[:written]
	return fserrors.ToError(err)
}

// direntType maps a stored file kind to the dirent type byte the kernel's
// getdents(2) format expects (the DT_* constants from dirent.h).
func direntType(kind codec.FileType) uint32 {
	const dtDir = 4
	const dtReg = 8
	if kind == codec.Directory {
		return dtDir
	}
	return dtReg
}

func (s *Server) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) error {
	return nil
}

func (s *Server) OpenFile(op *fuseops.OpenFileOp) error {
	fh, err := s.driver.Open(uint64(op.Inode), codec.NewOpenFlags(0))
	if err != nil {
		return fserrors.ToError(err)
	}
	op.Handle = fuseops.HandleID(fh)
	return nil
}

func (s *Server) ReadFile(op *fuseops.ReadFileOp) error {
	data, err := s.driver.Read(uint64(op.Inode), uint64(op.Handle), op.Offset, uint32(op.Size))
	if err != nil && !fserrors.Is(err, fserrors.KindNotFound) {
		return fserrors.ToError(err)
	}
	op.Data = data
	return nil
}

func (s *Server) WriteFile(op *fuseops.WriteFileOp) error {
	_, err := s.driver.Write(uint64(op.Handle), op.Offset, op.Data)
	return fserrors.ToError(err)
}

func (s *Server) SyncFile(op *fuseops.SyncFileOp) error {
	return fserrors.ToError(s.driver.FlushHandle(uint64(op.Handle)))
}

func (s *Server) FlushFile(op *fuseops.FlushFileOp) error {
	return fserrors.ToError(s.driver.FlushHandle(uint64(op.Handle)))
}

func (s *Server) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) error {
	return fserrors.ToError(s.driver.Release(uint64(op.Handle)))
}

func (s *Server) Destroy() {}
