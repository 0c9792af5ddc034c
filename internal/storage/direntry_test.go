package storage

import (
	"database/sql"
	"testing"
	"time"

	"github.com/cellarfs/cellarfs/internal/codec"
	"github.com/cellarfs/cellarfs/internal/fserrors"
)

func createTestInode(t *testing.T, g *Gateway, kind codec.FileType) uint64 {
	t.Helper()
	var ino uint64
	err := g.WriteTx(func(tx *sql.Tx) error {
		now := codec.FromTime(time.Now())
		a := &InodeAttr{Kind: kind, Perm: 0o644, Nlink: 1, Atime: now, Mtime: now, Ctime: now, Crtime: now}
		if err := CreateInode(tx, a); err != nil {
			return err
		}
		ino = a.Ino
		return nil
	})
	if err != nil {
		t.Fatalf("createTestInode: %v", err)
	}
	return ino
}

func TestDirEntryCreateAndLookup(t *testing.T) {
	g := openTestGateway(t)
	parent := createTestInode(t, g, codec.Directory)
	child := createTestInode(t, g, codec.RegularFile)

	err := g.WriteTx(func(tx *sql.Tx) error {
		return CreateDirEntry(tx, parent, []byte("foo.txt"), child)
	})
	if err != nil {
		t.Fatalf("CreateDirEntry: %v", err)
	}

	err = g.ReadTx(func(tx *sql.Tx) error {
		got, err := LookupDirEntry(tx, parent, []byte("foo.txt"))
		if err != nil {
			return err
		}
		if got != child {
			t.Fatalf("LookupDirEntry = %d, want %d", got, child)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ReadTx: %v", err)
	}
}

func TestDirEntryCreateDuplicateFails(t *testing.T) {
	g := openTestGateway(t)
	parent := createTestInode(t, g, codec.Directory)
	child := createTestInode(t, g, codec.RegularFile)
	child2 := createTestInode(t, g, codec.RegularFile)

	g.WriteTx(func(tx *sql.Tx) error { return CreateDirEntry(tx, parent, []byte("foo.txt"), child) })

	err := g.WriteTx(func(tx *sql.Tx) error {
		return CreateDirEntry(tx, parent, []byte("foo.txt"), child2)
	})
	if !fserrors.Is(err, fserrors.KindAlreadyExists) {
		t.Fatalf("duplicate create = %v, want AlreadyExists", err)
	}
}

func TestDirEntryLookupNotFound(t *testing.T) {
	g := openTestGateway(t)
	err := g.ReadTx(func(tx *sql.Tx) error {
		_, err := LookupDirEntry(tx, 1, []byte("missing"))
		return err
	})
	if !fserrors.Is(err, fserrors.KindNotFound) {
		t.Fatalf("LookupDirEntry(missing) = %v, want NotFound", err)
	}
}

func TestDirEntryRemove(t *testing.T) {
	g := openTestGateway(t)
	parent := createTestInode(t, g, codec.Directory)
	child := createTestInode(t, g, codec.RegularFile)
	g.WriteTx(func(tx *sql.Tx) error { return CreateDirEntry(tx, parent, []byte("foo.txt"), child) })

	if err := g.WriteTx(func(tx *sql.Tx) error { return RemoveDirEntry(tx, parent, []byte("foo.txt")) }); err != nil {
		t.Fatalf("RemoveDirEntry: %v", err)
	}

	err := g.ReadTx(func(tx *sql.Tx) error {
		_, err := LookupDirEntry(tx, parent, []byte("foo.txt"))
		return err
	})
	if !fserrors.Is(err, fserrors.KindNotFound) {
		t.Fatalf("lookup after remove = %v, want NotFound", err)
	}
}

func TestDirEntryRemoveNotFound(t *testing.T) {
	g := openTestGateway(t)
	err := g.WriteTx(func(tx *sql.Tx) error { return RemoveDirEntry(tx, 1, []byte("missing")) })
	if !fserrors.Is(err, fserrors.KindNotFound) {
		t.Fatalf("RemoveDirEntry(missing) = %v, want NotFound", err)
	}
}

func TestDirEntryRename(t *testing.T) {
	g := openTestGateway(t)
	parent := createTestInode(t, g, codec.Directory)
	child := createTestInode(t, g, codec.RegularFile)
	g.WriteTx(func(tx *sql.Tx) error { return CreateDirEntry(tx, parent, []byte("foo.txt"), child) })

	err := g.WriteTx(func(tx *sql.Tx) error {
		return RenameDirEntry(tx, parent, []byte("foo.txt"), parent, []byte("foo2.txt"))
	})
	if err != nil {
		t.Fatalf("RenameDirEntry: %v", err)
	}

	g.ReadTx(func(tx *sql.Tx) error {
		if _, err := LookupDirEntry(tx, parent, []byte("foo.txt")); !fserrors.Is(err, fserrors.KindNotFound) {
			t.Fatalf("old name lookup = %v, want NotFound", err)
		}
		got, err := LookupDirEntry(tx, parent, []byte("foo2.txt"))
		if err != nil || got != child {
			t.Fatalf("new name lookup = (%d, %v), want (%d, nil)", got, err, child)
		}
		return nil
	})
}

func TestDirEntryRenameConflict(t *testing.T) {
	g := openTestGateway(t)
	parent := createTestInode(t, g, codec.Directory)
	a := createTestInode(t, g, codec.RegularFile)
	b := createTestInode(t, g, codec.RegularFile)
	g.WriteTx(func(tx *sql.Tx) error { return CreateDirEntry(tx, parent, []byte("a.txt"), a) })
	g.WriteTx(func(tx *sql.Tx) error { return CreateDirEntry(tx, parent, []byte("b.txt"), b) })

	err := g.WriteTx(func(tx *sql.Tx) error {
		return RenameDirEntry(tx, parent, []byte("a.txt"), parent, []byte("b.txt"))
	})
	if !fserrors.Is(err, fserrors.KindAlreadyExists) {
		t.Fatalf("rename onto existing name = %v, want AlreadyExists", err)
	}
}

func TestIsDirEmpty(t *testing.T) {
	g := openTestGateway(t)
	parent := createTestInode(t, g, codec.Directory)

	empty, err := queryIsDirEmpty(t, g, parent)
	if err != nil || !empty {
		t.Fatalf("IsDirEmpty(fresh dir) = (%v, %v), want (true, nil)", empty, err)
	}

	child := createTestInode(t, g, codec.RegularFile)
	g.WriteTx(func(tx *sql.Tx) error { return CreateDirEntry(tx, parent, []byte("f"), child) })

	empty, err = queryIsDirEmpty(t, g, parent)
	if err != nil || empty {
		t.Fatalf("IsDirEmpty(nonempty dir) = (%v, %v), want (false, nil)", empty, err)
	}
}

func queryIsDirEmpty(t *testing.T, g *Gateway, ino uint64) (bool, error) {
	t.Helper()
	var empty bool
	err := g.ReadTx(func(tx *sql.Tx) error {
		var err error
		empty, err = IsDirEmpty(tx, ino)
		return err
	})
	return empty, err
}

func TestListDir(t *testing.T) {
	g := openTestGateway(t)
	parent := createTestInode(t, g, codec.Directory)
	for _, name := range []string{"a", "b", "c"} {
		child := createTestInode(t, g, codec.RegularFile)
		n := name
		g.WriteTx(func(tx *sql.Tx) error { return CreateDirEntry(tx, parent, []byte(n), child) })
	}

	var names []string
	err := g.ReadTx(func(tx *sql.Tx) error {
		return ListDir(tx, parent, 0, func(e ListDirEntry) bool {
			names = append(names, string(e.Name))
			return true
		})
	})
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("got %d entries, want 3: %v", len(names), names)
	}
}

func TestListDirStopsEarly(t *testing.T) {
	g := openTestGateway(t)
	parent := createTestInode(t, g, codec.Directory)
	for _, name := range []string{"a", "b", "c"} {
		child := createTestInode(t, g, codec.RegularFile)
		n := name
		g.WriteTx(func(tx *sql.Tx) error { return CreateDirEntry(tx, parent, []byte(n), child) })
	}

	count := 0
	err := g.ReadTx(func(tx *sql.Tx) error {
		return ListDir(tx, parent, 0, func(e ListDirEntry) bool {
			count++
			return false
		})
	})
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}
