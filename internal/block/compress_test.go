package block

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestCompressionFromColumnDefaultsToLZ4(t *testing.T) {
	c, err := CompressionFromColumn(nil)
	if err != nil || c != CompressionLZ4 {
		t.Fatalf("CompressionFromColumn(nil) = (%v, %v), want (LZ4, nil)", c, err)
	}
}

func TestCompressionFromColumnValues(t *testing.T) {
	for raw, want := range map[int64]Compression{0: CompressionNone, 1: CompressionLZ4, 2: CompressionZstd} {
		v := raw
		c, err := CompressionFromColumn(&v)
		if err != nil || c != want {
			t.Fatalf("CompressionFromColumn(%d) = (%v, %v), want (%v, nil)", raw, c, err, want)
		}
	}
}

func TestCompressionFromColumnRejectsUnknown(t *testing.T) {
	v := int64(9)
	if _, err := CompressionFromColumn(&v); err == nil {
		t.Fatalf("expected error for unknown compression tag")
	}
}

func TestCompressRoundTrip(t *testing.T) {
	data := make([]byte, 4096)
	rand.New(rand.NewSource(1)).Read(data)

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		b := &Block{Ino: 1, Bno: 0, Data: append([]byte(nil), data...)}
		encoded, tag, err := Compress(b, c)
		if err != nil {
			t.Fatalf("Compress(%v): %v", c, err)
		}
		decoded, err := Decompress(b.Ino, b.Bno, encoded, tag)
		if err != nil {
			t.Fatalf("Decompress(%v): %v", tag, err)
		}
		if !bytes.Equal(decoded.Data, data) {
			t.Fatalf("round trip mismatch for compression %v", c)
		}
	}
}

func TestCompressEmptyBlock(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		b := &Block{Ino: 1, Bno: 0}
		encoded, tag, err := Compress(b, c)
		if err != nil {
			t.Fatalf("Compress(%v) on empty block: %v", c, err)
		}
		decoded, err := Decompress(b.Ino, b.Bno, encoded, tag)
		if err != nil {
			t.Fatalf("Decompress(%v) on empty block: %v", tag, err)
		}
		if len(decoded.Data) != 0 {
			t.Fatalf("expected empty round trip, got %d bytes", len(decoded.Data))
		}
	}
}
