// Package codec converts between the on-disk row encoding of filesystem
// metadata and the in-memory types the driver and storage layers operate on.
package codec

import "os"

// FileType is the stable numeric encoding of a POSIX file kind stored in the
// inode table's kind column. The values are part of the persistent format:
// never renumber them.
type FileType uint8

const (
	NamedPipe FileType = 1
	CharDevice FileType = 2
	BlockDevice FileType = 3
	Directory FileType = 4
	RegularFile FileType = 5
	Symlink FileType = 6
	Socket FileType = 7
)

// syscall-level S_IFMT constants, duplicated here rather than imported from
// "syscall" so FileTypeFromMode works identically on every GOOS this package
// is compiled for.
const (
	sIFIFO  = 0o010000
	sIFCHR  = 0o020000
	sIFDIR  = 0o040000
	sIFBLK  = 0o060000
	sIFREG  = 0o100000
	sIFLNK  = 0o120000
	sIFSOCK = 0o140000
	sIFMT   = 0o170000
)

// FileTypeFromMode maps the S_IFMT bits of a mknod(2) mode argument to a
// FileType. It deliberately does not recognize S_IFDIR or S_IFLNK: mknod
// never creates directories or symlinks, only regular files, device nodes,
// FIFOs and sockets.
func FileTypeFromMode(mode uint32) (FileType, bool) {
	switch mode & sIFMT {
	case sIFREG:
		return RegularFile, true
	case sIFCHR:
		return CharDevice, true
	case sIFBLK:
		return BlockDevice, true
	case sIFIFO:
		return NamedPipe, true
	case sIFSOCK:
		return Socket, true
	default:
		return 0, false
	}
}

// Valid reports whether v is one of the seven recognized encodings.
func (t FileType) Valid() bool {
	return t >= NamedPipe && t <= Socket
}

// ToOSMode returns the os.FileMode type bits corresponding to t, for
// populating fuseops.InodeAttributes.Mode.
func (t FileType) ToOSMode() os.FileMode {
	switch t {
	case Directory:
		return os.ModeDir
	case Symlink:
		return os.ModeSymlink
	case NamedPipe:
		return os.ModeNamedPipe
	case Socket:
		return os.ModeSocket
	case CharDevice:
		return os.ModeDevice | os.ModeCharDevice
	case BlockDevice:
		return os.ModeDevice
	case RegularFile:
		return 0
	default:
		return 0
	}
}
