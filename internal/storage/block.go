package storage

import (
	"database/sql"

	"github.com/cellarfs/cellarfs/internal/block"
	"github.com/cellarfs/cellarfs/internal/fserrors"
)

// GetBlock reads and decompresses the block at (ino, bno).
func GetBlock(tx *sql.Tx, ino, bno uint64) (*block.Block, error) {
	var data []byte
	var compressionCol *int64
	err := tx.QueryRow("SELECT data, compression FROM block WHERE ino = ? AND bno = ?", ino, bno).Scan(&data, &compressionCol)
	if err != nil {
		return nil, fserrors.FromSQL(err)
	}
	compression, err := block.CompressionFromColumn(compressionCol)
	if err != nil {
		return nil, err
	}
	return block.Decompress(ino, bno, data, compression)
}

// IterBlocksFrom streams ino's blocks at or after the block containing
// offset, in ascending bno order, invoking iter for each decompressed
// block. iter returning false stops iteration early.
func IterBlocksFrom(tx *sql.Tx, ino, offset uint64, iter func(*block.Block) (bool, error)) error {
	bno := block.OffsetToBno(offset)
	rows, err := tx.Query("SELECT bno, data, compression FROM block WHERE ino = ? AND bno >= ? ORDER BY bno", ino, bno)
	if err != nil {
		return fserrors.FromSQL(err)
	}
	defer rows.Close()

	for rows.Next() {
		var rowBno uint64
		var data []byte
		var compressionCol *int64
		if err := rows.Scan(&rowBno, &data, &compressionCol); err != nil {
			return fserrors.FromSQL(err)
		}
		compression, err := block.CompressionFromColumn(compressionCol)
		if err != nil {
			return err
		}
		b, err := block.Decompress(ino, rowBno, data, compression)
		if err != nil {
			return err
		}
		more, err := iter(b)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return fserrors.FromSQL(rows.Err())
}

// UpdateBlock compresses b with the given compression preference and
// overwrites the existing row at (b.Ino, b.Bno).
func UpdateBlock(tx *sql.Tx, b *block.Block, compression block.Compression) error {
	data, tag, err := block.Compress(b, compression)
	if err != nil {
		return err
	}
	_, err = tx.Exec("UPDATE block SET data = ?, compression = ? WHERE ino = ? AND bno = ?", data, uint8(tag), b.Ino, b.Bno)
	return fserrors.FromSQL(err)
}

// CreateBlock builds a new block for ino at the block number containing
// offset, consumes as much of data as fits, compresses it, and inserts the
// row. It returns how many bytes of data were consumed.
func CreateBlock(tx *sql.Tx, ino, offset uint64, data []byte, compression block.Compression) (uint64, error) {
	bno := block.OffsetToBno(offset)
	b := block.Empty(ino, bno)
	written := b.Consume(data)

	encoded, tag, err := block.Compress(b, compression)
	if err != nil {
		return 0, err
	}
	_, err = tx.Exec("INSERT INTO block (ino, bno, data, compression) VALUES (?, ?, ?, ?)", b.Ino, b.Bno, encoded, uint8(tag))
	if err != nil {
		return 0, fserrors.FromSQL(err)
	}
	return written, nil
}

// RemoveBlocksFrom deletes every block row for ino at or after bno, used to
// drop the tail of a file on truncate-shrink.
func RemoveBlocksFrom(tx *sql.Tx, ino, bno uint64) error {
	_, err := tx.Exec("DELETE FROM block WHERE ino = ? AND bno >= ?", ino, bno)
	return fserrors.FromSQL(err)
}
