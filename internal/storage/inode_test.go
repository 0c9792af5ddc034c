package storage

import (
	"database/sql"
	"testing"
	"time"

	"github.com/cellarfs/cellarfs/internal/codec"
	"github.com/cellarfs/cellarfs/internal/fserrors"
)

func newAttr(kind codec.FileType) *InodeAttr {
	now := codec.FromTime(time.Now())
	return &InodeAttr{
		Size: 0, Blocks: 0,
		Atime: now, Mtime: now, Ctime: now, Crtime: now,
		Kind: kind, Perm: 0o644, Nlink: 1,
		UID: 1000, GID: 1000, Blksize: 512,
	}
}

func TestCreateAndLookupInode(t *testing.T) {
	g := openTestGateway(t)

	var ino uint64
	err := g.WriteTx(func(tx *sql.Tx) error {
		a := newAttr(codec.RegularFile)
		if err := CreateInode(tx, a); err != nil {
			return err
		}
		ino = a.Ino
		return nil
	})
	if err != nil {
		t.Fatalf("CreateInode: %v", err)
	}
	if ino == 0 {
		t.Fatalf("expected nonzero assigned ino")
	}

	err = g.ReadTx(func(tx *sql.Tx) error {
		got, err := LookupInode(tx, ino)
		if err != nil {
			return err
		}
		if got.Kind != codec.RegularFile || got.Perm != 0o644 || got.Nlink != 1 {
			t.Fatalf("unexpected attr: %+v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ReadTx: %v", err)
	}
}

func TestLookupInodeNotFound(t *testing.T) {
	g := openTestGateway(t)
	err := g.ReadTx(func(tx *sql.Tx) error {
		_, err := LookupInode(tx, 99999)
		return err
	})
	if !fserrors.Is(err, fserrors.KindNotFound) {
		t.Fatalf("LookupInode(missing) = %v, want NotFound", err)
	}
}

func TestSetInodeAttrRejectsUnknownColumn(t *testing.T) {
	g := openTestGateway(t)
	err := g.WriteTx(func(tx *sql.Tx) error {
		return SetInodeAttr(tx, 1, "drop table inode; --", 0)
	})
	if !fserrors.Is(err, fserrors.KindInvalidArgument) {
		t.Fatalf("SetInodeAttr(bad column) = %v, want InvalidArgument", err)
	}
}

func TestSetInodeAttrNotFound(t *testing.T) {
	g := openTestGateway(t)
	err := g.WriteTx(func(tx *sql.Tx) error {
		return SetInodeAttr(tx, 42, "size", 10)
	})
	if !fserrors.Is(err, fserrors.KindNotFound) {
		t.Fatalf("SetInodeAttr(missing ino) = %v, want NotFound", err)
	}
}

func TestSetInodeAttrUpdatesColumn(t *testing.T) {
	g := openTestGateway(t)
	var ino uint64
	g.WriteTx(func(tx *sql.Tx) error {
		a := newAttr(codec.RegularFile)
		CreateInode(tx, a)
		ino = a.Ino
		return nil
	})

	err := g.WriteTx(func(tx *sql.Tx) error {
		return SetInodeAttr(tx, ino, "size", 4096)
	})
	if err != nil {
		t.Fatalf("SetInodeAttr: %v", err)
	}

	g.ReadTx(func(tx *sql.Tx) error {
		got, err := LookupInode(tx, ino)
		if err != nil {
			t.Fatalf("LookupInode: %v", err)
		}
		if got.Size != 4096 {
			t.Fatalf("Size = %d, want 4096", got.Size)
		}
		return nil
	})
}

func TestRemoveInode(t *testing.T) {
	g := openTestGateway(t)
	var ino uint64
	g.WriteTx(func(tx *sql.Tx) error {
		a := newAttr(codec.RegularFile)
		CreateInode(tx, a)
		ino = a.Ino
		return nil
	})

	if err := g.WriteTx(func(tx *sql.Tx) error { return RemoveInode(tx, ino) }); err != nil {
		t.Fatalf("RemoveInode: %v", err)
	}

	err := g.ReadTx(func(tx *sql.Tx) error {
		_, err := LookupInode(tx, ino)
		return err
	})
	if !fserrors.Is(err, fserrors.KindNotFound) {
		t.Fatalf("lookup after remove = %v, want NotFound", err)
	}
}

func TestRemoveInodeNotFound(t *testing.T) {
	g := openTestGateway(t)
	err := g.WriteTx(func(tx *sql.Tx) error { return RemoveInode(tx, 4242) })
	if !fserrors.Is(err, fserrors.KindNotFound) {
		t.Fatalf("RemoveInode(missing) = %v, want NotFound", err)
	}
}
