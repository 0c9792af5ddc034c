package storage

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func openTestGateway(t *testing.T) *Gateway {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	g, err := Open(path, "test-key")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func TestOpenAppliesMigrations(t *testing.T) {
	g := openTestGateway(t)

	var version int
	if err := g.writeDB.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("PRAGMA user_version: %v", err)
	}
	if version != 2 {
		t.Fatalf("user_version = %d, want 2", version)
	}

	var count int
	if err := g.writeDB.QueryRow("SELECT count(*) FROM sqlite_master WHERE type='table' AND name IN ('inode','dir_entry','block')").Scan(&count); err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 tables, got %d", count)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	g1, err := Open(path, "k")
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	g1.Close()

	g2, err := Open(path, "k")
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer g2.Close()
}

func TestWriteTxCommitsOnSuccess(t *testing.T) {
	g := openTestGateway(t)

	err := g.WriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO inode (size, blocks, nlink) VALUES (0, 0, 1)")
		return err
	})
	if err != nil {
		t.Fatalf("WriteTx: %v", err)
	}

	var count int
	if err := g.ReadTx(func(tx *sql.Tx) error {
		return tx.QueryRow("SELECT count(*) FROM inode").Scan(&count)
	}); err != nil {
		t.Fatalf("ReadTx: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestWriteTxRollsBackOnError(t *testing.T) {
	g := openTestGateway(t)

	err := g.WriteTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO inode (size, blocks, nlink) VALUES (0, 0, 1)"); err != nil {
			return err
		}
		return sql.ErrTxDone
	})
	if err == nil {
		t.Fatalf("expected error to propagate")
	}

	var count int
	if err := g.ReadTx(func(tx *sql.Tx) error {
		return tx.QueryRow("SELECT count(*) FROM inode").Scan(&count)
	}); err != nil {
		t.Fatalf("ReadTx: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0 after rollback", count)
	}
}

func TestOpenAcceptsKeyContainingQuote(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	g, err := Open(path, "it's a secret")
	if err != nil {
		t.Fatalf("Open with a quote-containing key: %v", err)
	}
	defer g.Close()
}

func TestSqlQuoteEscapesEmbeddedQuotes(t *testing.T) {
	got := sqlQuote("it's a secret")
	want := "it''s a secret"
	if got != want {
		t.Fatalf("sqlQuote() = %q, want %q", got, want)
	}
}

func TestVacuum(t *testing.T) {
	g := openTestGateway(t)
	if err := g.Vacuum(); err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
}
