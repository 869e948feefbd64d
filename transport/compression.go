package transport

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

// SnappyCompression implements the STARTUP COMPRESSION=snappy body codec.
type SnappyCompression struct{}

func (SnappyCompression) Name() string { return "snappy" }

func (SnappyCompression) Compress(dst, src []byte) ([]byte, error) {
	return snappy.Encode(dst, src), nil
}

func (SnappyCompression) Decompress(dst, src []byte) ([]byte, error) {
	out, err := snappy.Decode(dst, src)
	if err != nil {
		return nil, fmt.Errorf("snappy decompress: %w", err)
	}
	return out, nil
}

// LZ4Compression implements the STARTUP COMPRESSION=lz4 body codec. The
// wire format is a 4-byte big-endian uncompressed length followed by the
// LZ4 block, matching what Cassandra/Scylla's native transport expects.
type LZ4Compression struct{}

func (LZ4Compression) Name() string { return "lz4" }

func (LZ4Compression) Compress(dst, src []byte) ([]byte, error) {
	buf := make([]byte, lz4.CompressBlockBound(len(src)))
	var c lz4.Compressor
	n, err := c.CompressBlock(src, buf)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}

	out := dst
	out = append(out, byte(len(src)>>24), byte(len(src)>>16), byte(len(src)>>8), byte(len(src)))
	out = append(out, buf[:n]...)
	return out, nil
}

func (LZ4Compression) Decompress(dst, src []byte) ([]byte, error) {
	if len(src) < 4 {
		return nil, fmt.Errorf("lz4 decompress: short input")
	}
	uncompressedLen := int(src[0])<<24 | int(src[1])<<16 | int(src[2])<<8 | int(src[3])

	out := dst
	if cap(out)-len(out) < uncompressedLen {
		out = append(out, make([]byte, uncompressedLen)...)
	} else {
		out = out[:len(out)+uncompressedLen]
	}

	n, err := lz4.UncompressBlock(src[4:], out[len(dst):])
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return out[:len(dst)+n], nil
}
