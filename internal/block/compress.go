package block

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/cellarfs/cellarfs/internal/fserrors"
)

// Compression identifies the codec a block row was stored with. The values
// are part of the persistent format: never renumber them.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

// CompressionFromColumn converts the nullable compression column value read
// from a block row into a Compression. A NULL column (pre-migration-2 rows,
// or any row written before the column existed) defaults to LZ4, matching
// historical behavior rather than silently reinterpreting old data as
// uncompressed.
func CompressionFromColumn(value *int64) (Compression, error) {
	if value == nil {
		return CompressionLZ4, nil
	}
	switch *value {
	case 0:
		return CompressionNone, nil
	case 1:
		return CompressionLZ4, nil
	case 2:
		return CompressionZstd, nil
	default:
		return 0, fserrors.InvalidCompression()
	}
}

var zstdEncoder, _ = zstd.NewWriter(nil)
var zstdDecoder, _ = zstd.NewReader(nil)

// Decompress expands raw row bytes encoded with the given compression into
// an uncompressed Block for (ino, bno).
func Decompress(ino, bno uint64, data []byte, c Compression) (*Block, error) {
	var out []byte
	switch c {
	case CompressionNone:
		out = append([]byte(nil), data...)
	case CompressionLZ4:
		buf := make([]byte, Size)
		n, err := lz4.UncompressBlock(data, buf)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		out = buf[:n]
	case CompressionZstd:
		decoded, err := zstdDecoder.DecodeAll(data, make([]byte, 0, Size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		out = decoded
	default:
		return nil, fserrors.InvalidCompression()
	}
	return &Block{Ino: ino, Bno: bno, Data: out}, nil
}

// Compress encodes b's content with the given compression and returns the
// bytes to persist in the row's data column and the compression tag that
// must be stored alongside them. The returned tag can differ from c: LZ4
// reports a zero-length result for incompressible input rather than a
// larger-than-source block, and that case is persisted as CompressionNone
// instead, since the block-data column has no separate "stored raw despite
// requested codec" flag.
func Compress(b *Block, c Compression) ([]byte, Compression, error) {
	switch c {
	case CompressionNone:
		return append([]byte(nil), b.Data...), CompressionNone, nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(b.Data)))
		var compressor lz4.Compressor
		n, err := compressor.CompressBlock(b.Data, buf)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 && len(b.Data) > 0 {
			return append([]byte(nil), b.Data...), CompressionNone, nil
		}
		return buf[:n], CompressionLZ4, nil
	case CompressionZstd:
		var out bytes.Buffer
		if err := zstdEncoder.Reset(&out); err != nil {
			return nil, 0, fmt.Errorf("zstd reset: %w", err)
		}
		if _, err := zstdEncoder.Write(b.Data); err != nil {
			return nil, 0, fmt.Errorf("zstd compress: %w", err)
		}
		if err := zstdEncoder.Close(); err != nil {
			return nil, 0, fmt.Errorf("zstd close: %w", err)
		}
		return out.Bytes(), CompressionZstd, nil
	default:
		return nil, 0, fserrors.InvalidCompression()
	}
}
