package storage

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cellarfs/cellarfs/internal/logger"
)

// Gateway owns the connections to the encrypted database file and exposes
// the two transaction shapes every query-layer call runs under. SQLite's
// own writer lock is the only concurrency control: each pool is pinned to
// one connection so two goroutines never interleave statements against it,
// and reads and writes use separate pools only so that write transactions
// can request BEGIN IMMEDIATE (via the driver's _txlock DSN parameter)
// without affecting the read pool's plain BEGIN.
type Gateway struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

// Open opens (and, if necessary, creates and migrates) the database at
// path, using key as the encryption passphrase.
func Open(path string, key string) (*Gateway, error) {
	readDB, err := sql.Open("sqlite3", path+"?_txlock=deferred")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	readDB.SetMaxOpenConns(1)
	readDB.SetMaxIdleConns(1)

	writeDB, err := sql.Open("sqlite3", path+"?_txlock=immediate")
	if err != nil {
		readDB.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)

	g := &Gateway{readDB: readDB, writeDB: writeDB}

	for _, db := range []*sql.DB{readDB, writeDB} {
		if err := setCipherKey(db, key); err != nil {
			g.Close()
			return nil, err
		}
		if _, err := db.Exec(pragmas); err != nil {
			g.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
	}
	if err := migrate(writeDB); err != nil {
		g.Close()
		return nil, fmt.Errorf("migration error: rolled back all changes: %w", err)
	}
	return g, nil
}

func setCipherKey(db *sql.DB, key string) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA key = '%s'", sqlQuote(key))); err != nil {
		return fmt.Errorf("pragma key: %w", err)
	}
	if _, err := db.Exec("SELECT count(*) FROM sqlite_master"); err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}
	return nil
}

// sqlQuote escapes a string for interpolation inside a single-quoted SQL
// literal by doubling embedded single quotes, since PRAGMA statements don't
// accept bound parameters.
func sqlQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current int
	if err := tx.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	versions := make([]int, 0, len(migrations))
	for v := range migrations {
		versions = append(versions, v)
	}
	sort.Ints(versions)

	lastVersion := current
	for _, v := range versions {
		if v > current {
			logger.Infof("Running migration #%d because current_version is #%d", v, current)
			if _, err := tx.Exec(migrations[v]); err != nil {
				return fmt.Errorf("migration #%d: %w", v, err)
			}
		} else {
			logger.Tracef("Skipping migration #%d because current version is #%d", v, current)
		}
		lastVersion = v
	}

	if lastVersion > current {
		logger.Infof("Updating current_version to #%d", lastVersion)
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", lastVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return tx.Commit()
}

// ReadTx runs scope inside a transaction whose result is always discarded:
// no commit is ever issued, so any statements scope runs are rolled back
// when the transaction is closed. It exists to give read-only query-layer
// calls the same consistent-snapshot semantics as writes, without paying
// for a write lock.
func (g *Gateway) ReadTx(scope func(*sql.Tx) error) error {
	tx, err := g.readDB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return scope(tx)
}

// WriteTx runs scope inside an immediate transaction — the writer lock is
// acquired at BEGIN rather than on first write, so two concurrent write
// attempts fail fast instead of deadlocking on lock promotion — and commits
// on success. Any error from scope skips the commit; the deferred Rollback
// then unwinds everything scope did.
func (g *Gateway) WriteTx(scope func(*sql.Tx) error) error {
	tx, err := g.writeDB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := scope(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Vacuum rebuilds the database file to reclaim space freed by deletes.
func (g *Gateway) Vacuum() error {
	_, err := g.writeDB.Exec("VACUUM")
	return err
}

// Close releases the underlying connections.
func (g *Gateway) Close() error {
	err1 := g.readDB.Close()
	err2 := g.writeDB.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
