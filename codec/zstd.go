package codec

import (
	"github.com/klauspost/compress/zstd"
)

// Zstd is a Codec[[]byte] that compresses on Encode and decompresses on Decode.
// Chain it after a value codec to store compressed payloads in slow levels.
// The zero value is NOT ready to use. Construct with NewZstd.
type Zstd struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

var _ Codec[[]byte] = (*Zstd)(nil)

// NewZstd builds a codec at the given level (zstd.SpeedDefault when 0).
// maxDecoded caps the decompressed size; 0 uses the library default.
func NewZstd(level zstd.EncoderLevel, maxDecoded uint64) (*Zstd, error) {
	if level == 0 {
		level = zstd.SpeedDefault
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, err
	}
	dopts := []zstd.DOption{zstd.WithDecoderConcurrency(0)}
	if maxDecoded > 0 {
		dopts = append(dopts, zstd.WithDecoderMaxMemory(maxDecoded))
	}
	dec, err := zstd.NewReader(nil, dopts...)
	if err != nil {
		_ = enc.Close()
		return nil, err
	}
	return &Zstd{enc: enc, dec: dec}, nil
}

// Encode compresses b. EncodeAll is safe for concurrent use.
func (z *Zstd) Encode(b []byte) ([]byte, error) {
	return z.enc.EncodeAll(b, make([]byte, 0, len(b)/2)), nil
}

// Decode decompresses b. DecodeAll is safe for concurrent use.
func (z *Zstd) Decode(b []byte) ([]byte, error) {
	return z.dec.DecodeAll(b, nil)
}

// Close releases encoder/decoder goroutines.
func (z *Zstd) Close() {
	_ = z.enc.Close()
	z.dec.Close()
}
