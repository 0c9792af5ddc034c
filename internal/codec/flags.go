package codec

import "syscall"

// OpenFlags decodes the raw O_* bits the kernel passes to open/create/mknod
// into the individual intents the handle and attribute layers branch on.
type OpenFlags struct {
	Bits     int32
	Read     bool
	Write    bool
	Create   bool
	Append   bool
	Truncate bool
	Sync     bool
}

// NewOpenFlags decodes raw open(2) flag bits.
func NewOpenFlags(flags int32) OpenFlags {
	f := int(flags)
	return OpenFlags{
		Bits:     flags,
		Read:     f&syscall.O_WRONLY == 0 || f&syscall.O_RDWR == syscall.O_RDWR,
		Write:    f&syscall.O_WRONLY != 0 || f&syscall.O_RDWR == syscall.O_RDWR,
		Create:   f&syscall.O_CREAT == syscall.O_CREAT,
		Append:   f&syscall.O_APPEND == syscall.O_APPEND,
		Truncate: f&syscall.O_TRUNC == syscall.O_TRUNC,
		Sync:     f&syscall.O_SYNC == syscall.O_SYNC,
	}
}
