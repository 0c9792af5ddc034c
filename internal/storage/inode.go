package storage

import (
	"database/sql"

	"github.com/cellarfs/cellarfs/internal/codec"
	"github.com/cellarfs/cellarfs/internal/fserrors"
)

// InodeAttr is the row shape of the inode table, independent of any
// particular kernel-facing attribute struct.
type InodeAttr struct {
	Ino     uint64
	Size    uint64
	Blocks  uint64
	Atime   codec.TimeSpec
	Mtime   codec.TimeSpec
	Ctime   codec.TimeSpec
	Crtime  codec.TimeSpec
	Kind    codec.FileType
	Perm    uint16
	Nlink   uint32
	UID     uint32
	GID     uint32
	Rdev    uint32
	Blksize uint32
	Flags   uint32
}

const lookupInodeSQL = `
SELECT ino, size, blocks,
       atime_secs, atime_nanos, mtime_secs, mtime_nanos,
       ctime_secs, ctime_nanos, crtime_secs, crtime_nanos,
       kind, perm, nlink, uid, gid, rdev, blksize, flags
FROM inode WHERE ino = ?
`

// LookupInode reads the full attribute row for ino.
func LookupInode(tx *sql.Tx, ino uint64) (*InodeAttr, error) {
	row := tx.QueryRow(lookupInodeSQL, ino)

	var a InodeAttr
	var atimeSecs, mtimeSecs, ctimeSecs, crtimeSecs int64
	var atimeNanos, mtimeNanos, ctimeNanos, crtimeNanos int32
	var kind uint8

	err := row.Scan(
		&a.Ino, &a.Size, &a.Blocks,
		&atimeSecs, &atimeNanos, &mtimeSecs, &mtimeNanos,
		&ctimeSecs, &ctimeNanos, &crtimeSecs, &crtimeNanos,
		&kind, &a.Perm, &a.Nlink, &a.UID, &a.GID, &a.Rdev, &a.Blksize, &a.Flags,
	)
	if err != nil {
		return nil, fserrors.FromSQL(err)
	}

	a.Atime = codec.NewTimeSpec(atimeSecs, atimeNanos)
	a.Mtime = codec.NewTimeSpec(mtimeSecs, mtimeNanos)
	a.Ctime = codec.NewTimeSpec(ctimeSecs, ctimeNanos)
	a.Crtime = codec.NewTimeSpec(crtimeSecs, crtimeNanos)
	a.Kind = codec.FileType(kind)
	return &a, nil
}

const createInodeSQL = `
INSERT INTO inode (
	size, blocks,
	atime_secs, atime_nanos, mtime_secs, mtime_nanos,
	ctime_secs, ctime_nanos, crtime_secs, crtime_nanos,
	kind, perm, nlink, uid, gid, rdev, blksize, flags
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateInode inserts a. On success a.Ino is set to the assigned row id.
func CreateInode(tx *sql.Tx, a *InodeAttr) error {
	res, err := tx.Exec(createInodeSQL,
		a.Size, a.Blocks,
		a.Atime.Secs, a.Atime.Nanos, a.Mtime.Secs, a.Mtime.Nanos,
		a.Ctime.Secs, a.Ctime.Nanos, a.Crtime.Secs, a.Crtime.Nanos,
		uint8(a.Kind), a.Perm, a.Nlink, a.UID, a.GID, a.Rdev, a.Blksize, a.Flags,
	)
	if err != nil {
		return fserrors.FromSQL(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fserrors.FromSQL(err)
	}
	a.Ino = uint64(id)
	return nil
}

// inodeColumns is the closed allow-list of columns SetInodeAttr may target.
// It exists so the column name can be interpolated into the UPDATE
// statement (database/sql has no placeholder for identifiers) without ever
// passing caller-controlled input through to SQL text.
var inodeColumns = map[string]bool{
	"size": true, "blocks": true,
	"atime_secs": true, "atime_nanos": true,
	"mtime_secs": true, "mtime_nanos": true,
	"ctime_secs": true, "ctime_nanos": true,
	"crtime_secs": true, "crtime_nanos": true,
	"perm": true, "uid": true, "gid": true,
	"flags": true, "nlink": true, "kind": true, "rdev": true, "blksize": true,
}

// SetInodeAttr updates a single column of ino's row. column must be one of
// inodeColumns; this is an internal invariant enforced by the driver layer,
// which only ever passes compile-time constant column names.
func SetInodeAttr(tx *sql.Tx, ino uint64, column string, value any) error {
	if !inodeColumns[column] {
		return fserrors.InvalidArgument("unknown inode column: " + column)
	}
	res, err := tx.Exec("UPDATE inode SET "+column+" = ? WHERE ino = ?", value, ino)
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

// RemoveInode deletes ino's row. Cascading dir_entry and block rows are
// removed by the foreign-key ON DELETE CASCADE actions, not by this
// function.
func RemoveInode(tx *sql.Tx, ino uint64) error {
	res, err := tx.Exec("DELETE FROM inode WHERE ino = ?", ino)
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
