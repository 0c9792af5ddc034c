package storage

import (
	"database/sql"
	"testing"

	"github.com/cellarfs/cellarfs/internal/block"
	"github.com/cellarfs/cellarfs/internal/fserrors"
)

func TestCreateAndGetBlock(t *testing.T) {
	g := openTestGateway(t)
	ino := createTestInode(t, g, 5)

	var written uint64
	err := g.WriteTx(func(tx *sql.Tx) error {
		var err error
		written, err = CreateBlock(tx, ino, 0, []byte("hello world!"), block.CompressionNone)
		return err
	})
	if err != nil {
		t.Fatalf("CreateBlock: %v", err)
	}
	if written != 12 {
		t.Fatalf("written = %d, want 12", written)
	}

	err = g.ReadTx(func(tx *sql.Tx) error {
		b, err := GetBlock(tx, ino, 0)
		if err != nil {
			return err
		}
		if string(b.Data) != "hello world!" {
			t.Fatalf("GetBlock data = %q", b.Data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ReadTx: %v", err)
	}
}

func TestGetBlockNotFound(t *testing.T) {
	g := openTestGateway(t)
	err := g.ReadTx(func(tx *sql.Tx) error {
		_, err := GetBlock(tx, 1, 0)
		return err
	})
	if !fserrors.Is(err, fserrors.KindNotFound) {
		t.Fatalf("GetBlock(missing) = %v, want NotFound", err)
	}
}

func TestUpdateBlock(t *testing.T) {
	g := openTestGateway(t)
	ino := createTestInode(t, g, 5)
	g.WriteTx(func(tx *sql.Tx) error {
		_, err := CreateBlock(tx, ino, 0, []byte("aaaa"), block.CompressionNone)
		return err
	})

	err := g.WriteTx(func(tx *sql.Tx) error {
		b, err := GetBlock(tx, ino, 0)
		if err != nil {
			return err
		}
		b.Data = []byte("bbbbbbbb")
		return UpdateBlock(tx, b, block.CompressionLZ4)
	})
	if err != nil {
		t.Fatalf("UpdateBlock: %v", err)
	}

	err = g.ReadTx(func(tx *sql.Tx) error {
		b, err := GetBlock(tx, ino, 0)
		if err != nil {
			return err
		}
		if string(b.Data) != "bbbbbbbb" {
			t.Fatalf("GetBlock after update = %q", b.Data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ReadTx: %v", err)
	}
}

func TestIterBlocksFromOrdersByBno(t *testing.T) {
	g := openTestGateway(t)
	ino := createTestInode(t, g, 5)
	g.WriteTx(func(tx *sql.Tx) error {
		CreateBlock(tx, ino, 0, make([]byte, block.Size), block.CompressionNone)
		CreateBlock(tx, ino, block.Size, make([]byte, block.Size), block.CompressionNone)
		CreateBlock(tx, ino, block.Size*2, []byte("tail"), block.CompressionNone)
		return nil
	})

	var bnos []uint64
	err := g.ReadTx(func(tx *sql.Tx) error {
		return IterBlocksFrom(tx, ino, block.Size, func(b *block.Block) (bool, error) {
			bnos = append(bnos, b.Bno)
			return true, nil
		})
	})
	if err != nil {
		t.Fatalf("IterBlocksFrom: %v", err)
	}
	if len(bnos) != 2 || bnos[0] != 1 || bnos[1] != 2 {
		t.Fatalf("bnos = %v, want [1 2]", bnos)
	}
}

func TestRemoveBlocksFrom(t *testing.T) {
	g := openTestGateway(t)
	ino := createTestInode(t, g, 5)
	g.WriteTx(func(tx *sql.Tx) error {
		CreateBlock(tx, ino, 0, []byte("a"), block.CompressionNone)
		CreateBlock(tx, ino, block.Size, []byte("b"), block.CompressionNone)
		return nil
	})

	if err := g.WriteTx(func(tx *sql.Tx) error { return RemoveBlocksFrom(tx, ino, 1) }); err != nil {
		t.Fatalf("RemoveBlocksFrom: %v", err)
	}

	err := g.ReadTx(func(tx *sql.Tx) error {
		if _, err := GetBlock(tx, ino, 0); err != nil {
			t.Fatalf("block 0 should survive: %v", err)
		}
		_, err := GetBlock(tx, ino, 1)
		return err
	})
	if !fserrors.Is(err, fserrors.KindNotFound) {
		t.Fatalf("block 1 after RemoveBlocksFrom = %v, want NotFound", err)
	}
}
