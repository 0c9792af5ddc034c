package storage

// migrations holds the ascending schema migrations applied to a freshly
// opened database. Each entry is run inside the same transaction as every
// other pending migration, and only if the database's current
// PRAGMA user_version is below that migration's key. The scripts themselves
// are not idempotent (re-running CREATE TABLE or ADD COLUMN fails); the
// user_version check is what keeps each from running twice. These two steps are
// kept distinct rather than collapsed into one CREATE TABLE, since a
// database created before the compression column existed must still apply
// migration 2 on its own.
var migrations = map[int]string{
	1: migration1InitialTables,
	2: migration2BlockCompression,
}

const migration1InitialTables = `
CREATE TABLE inode (
	ino INTEGER PRIMARY KEY AUTOINCREMENT,
	size INTEGER,
	blocks INTEGER,
	atime_secs INTEGER,
	atime_nanos INTEGER,
	mtime_secs INTEGER,
	mtime_nanos INTEGER,
	ctime_secs INTEGER,
	ctime_nanos INTEGER,
	crtime_secs INTEGER,
	crtime_nanos INTEGER,
	kind INTEGER,
	perm INTEGER,
	nlink INTEGER,
	uid INTEGER,
	gid INTEGER,
	rdev INTEGER,
	blksize INTEGER,
	flags INTEGER
);

CREATE TABLE dir_entry (
	parent_ino INTEGER NOT NULL,
	name BLOB NOT NULL,
	ino INTEGER NOT NULL,
	UNIQUE(parent_ino, name),
	FOREIGN KEY(parent_ino) REFERENCES inode(ino) ON DELETE CASCADE,
	FOREIGN KEY(ino) REFERENCES inode(ino) ON DELETE CASCADE
);

CREATE TABLE block (
	ino INTEGER NOT NULL,
	bno INTEGER NOT NULL,
	data BLOB NOT NULL,
	PRIMARY KEY(ino, bno),
	FOREIGN KEY(ino) REFERENCES inode(ino) ON DELETE CASCADE
);
`

const migration2BlockCompression = `
ALTER TABLE block ADD COLUMN compression INTEGER;
`

// pragmas is applied on every connection open, not just on first creation:
// foreign-key enforcement and journal mode are per-connection settings in
// SQLite, not persisted in the database file.
const pragmas = `
PRAGMA foreign_keys = ON;
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
`
