package storage

import (
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"

	"github.com/cellarfs/cellarfs/internal/codec"
	"github.com/cellarfs/cellarfs/internal/fserrors"
)

// LookupDirEntry returns the inode number bound to (parentIno, name).
func LookupDirEntry(tx *sql.Tx, parentIno uint64, name []byte) (uint64, error) {
	var ino uint64
	err := tx.QueryRow("SELECT ino FROM dir_entry WHERE parent_ino = ? AND name = ?", parentIno, name).Scan(&ino)
	if err != nil {
		return 0, fserrors.FromSQL(err)
	}
	return ino, nil
}

// CreateDirEntry binds name under parentIno to ino. A name collision
// surfaces as AlreadyExists via the table's UNIQUE(parent_ino, name)
// constraint.
func CreateDirEntry(tx *sql.Tx, parentIno uint64, name []byte, ino uint64) error {
	_, err := tx.Exec("INSERT INTO dir_entry (parent_ino, name, ino) VALUES (?, ?, ?)", parentIno, name, ino)
	return translateConstraintError(err)
}

// RemoveDirEntry unbinds name from parentIno.
func RemoveDirEntry(tx *sql.Tx, parentIno uint64, name []byte) error {
	res, err := tx.Exec("DELETE FROM dir_entry WHERE parent_ino = ? AND name = ?", parentIno, name)
	if err != nil {
		return fserrors.FromSQL(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fserrors.FromSQL(err)
	}
	if affected == 0 {
		return fserrors.NotFound()
	}
	return nil
}

// RenameDirEntry moves (parent, name) to (newParent, newName). A collision
// with an existing (newParent, newName) entry surfaces as AlreadyExists:
// this design does not support atomic replace.
func RenameDirEntry(tx *sql.Tx, parent uint64, name []byte, newParent uint64, newName []byte) error {
	_, err := tx.Exec(
		"UPDATE dir_entry SET parent_ino = ?, name = ? WHERE parent_ino = ? AND name = ?",
		newParent, newName, parent, name,
	)
	return translateConstraintError(err)
}

// IsDirEmpty reports whether ino has no children.
func IsDirEmpty(tx *sql.Tx, ino uint64) (bool, error) {
	var empty bool
	err := tx.QueryRow("SELECT NOT EXISTS(SELECT 1 FROM dir_entry WHERE parent_ino = ?)", ino).Scan(&empty)
	if err != nil {
		return false, fserrors.FromSQL(err)
	}
	return empty, nil
}

// ListDirEntry is one row of a directory listing, offset by rowid so a
// readdir resuming from a prior offset can pick up where it left off.
type ListDirEntry struct {
	Offset int64
	Ino    uint64
	Name   []byte
	Kind   codec.FileType
}

const listDirSQL = `
SELECT de.rowid, de.ino, de.name, i.kind
FROM dir_entry de JOIN inode i ON i.ino = de.ino
WHERE de.parent_ino = ? AND de.rowid > ?
ORDER BY de.rowid
`

// ListDir streams parentIno's children in rowid order starting after
// offset, invoking iter for each; iter returning false stops iteration
// early (a short readdir buffer, say).
func ListDir(tx *sql.Tx, parentIno uint64, offset int64, iter func(ListDirEntry) bool) error {
	rows, err := tx.Query(listDirSQL, parentIno, offset)
	if err != nil {
		return fserrors.FromSQL(err)
	}
	defer rows.Close()

	for rows.Next() {
		var e ListDirEntry
		var kind uint8
		if err := rows.Scan(&e.Offset, &e.Ino, &e.Name, &kind); err != nil {
			return fserrors.FromSQL(err)
		}
		e.Kind = codec.FileType(kind)
		if !iter(e) {
			break
		}
	}
	return fserrors.FromSQL(rows.Err())
}

func translateConstraintError(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fserrors.AlreadyExists()
	}
	return fserrors.FromSQL(err)
}
