package driver

import (
	"time"

	"github.com/cellarfs/cellarfs/internal/codec"
	"github.com/cellarfs/cellarfs/internal/storage"
)

const posixBlockSize = 512

// sIFMT mirrors the S_IFMT mask used to strip the file-type bits out of a
// mode passed to mknod/mkdir before it is stored as a permission mask.
const sIFMT = 0o170000

// attrBuilder assembles a fresh InodeAttr for a new inode the way the
// kernel expects a brand-new file or directory to look, before it has ever
// been written to.
type attrBuilder struct {
	attr storage.InodeAttr
}

// NewDirectoryAttr starts building a fresh directory's attributes.
func NewDirectoryAttr() *attrBuilder {
	now := codec.FromTime(time.Now())
	return &attrBuilder{attr: storage.InodeAttr{
		Atime: now, Mtime: now, Ctime: now, Crtime: now,
		Kind: codec.Directory, Perm: 0o755, Nlink: 2, Blksize: posixBlockSize,
	}}
}

// NewNodeAttr starts building a fresh non-directory inode's attributes.
func NewNodeAttr(kind codec.FileType) *attrBuilder {
	now := codec.FromTime(time.Now())
	return &attrBuilder{attr: storage.InodeAttr{
		Atime: now, Mtime: now, Ctime: now, Crtime: now,
		Kind: kind, Perm: 0o644, Nlink: 1, Blksize: posixBlockSize,
	}}
}

func (b *attrBuilder) WithUID(uid uint32) *attrBuilder {
	b.attr.UID = uid
	return b
}

func (b *attrBuilder) WithGID(gid uint32) *attrBuilder {
	b.attr.GID = gid
	return b
}

// WithModeUmask strips the file-type bits from mode and applies umask,
// setting the resulting permission bits.
func (b *attrBuilder) WithModeUmask(mode, umask uint32) *attrBuilder {
	mode &^= sIFMT
	b.attr.Perm = uint16(mode &^ umask)
	return b
}

func (b *attrBuilder) WithRdev(rdev uint32) *attrBuilder {
	b.attr.Rdev = rdev
	return b
}

func (b *attrBuilder) Build() storage.InodeAttr {
	return b.attr
}
