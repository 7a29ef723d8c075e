// Implements the versioned binary file format of a collection.

package docdb

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/maruel/awth/internal/codec"
	"github.com/pierrec/lz4/v4"
)

var fileMagic = [4]byte{'A', 'W', 'D', 'B'}

// formatVersion is bumped on any incompatible change of the header layout.
const formatVersion = uint16(1)

// maxRawLen bounds the decompressed payload size accepted from a header.
const maxRawLen = 1 << 32

// lz4MaxRatio is the largest expansion of an LZ4 block.
const lz4MaxRatio = 255

// Compression selects how the payload is compressed on disk.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionZstd Compression = 1
	CompressionLZ4  Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses the names returned by [Compression.String].
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none", "":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

// Options controls encoding and loading.
type Options struct {
	// Codec encodes the row slice. nil means codec.Default. Decoding always
	// uses the codec named in the file header.
	Codec codec.Codec
	// Compression of the payload.
	Compression Compression
	// Lenient makes [LoadOrEmpty] start empty on a corrupt file instead of
	// failing.
	Lenient bool
}

func (o *Options) codec() codec.Codec {
	if o == nil || o.Codec == nil {
		return codec.Default
	}
	return o.Codec
}

// header is the fixed part of a collection file. Checksum is the CRC32 of
// every header byte before it followed by the payload.
type header struct {
	Version     uint16
	Compression Compression
	Codec       string
	Columns     []Column
	RawLen      uint64
	DataLen     uint64
	Checksum    uint32
}

// Encode serializes c into one blob.
//
// If c is dirty only live rows are encoded and compacted is true. Otherwise
// every slot is encoded verbatim, tombstones included. Encode does not modify
// c; the caller clears the dirty flag once the blob is durably stored.
func Encode[T Row[T]](c *Collection[T], opts *Options) (data []byte, compacted bool, err error) {
	columns, err := Schema[T]()
	if err != nil {
		return nil, false, err
	}
	rows, compacted := c.rowsForSave()
	if rows == nil {
		rows = []T{}
	}
	cd := opts.codec()
	raw, err := cd.Marshal(rows)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", cd.Name(), err)
	}
	comp := CompressionNone
	if opts != nil {
		comp = opts.Compression
	}
	payload, comp, err := compress(raw, comp)
	if err != nil {
		return nil, false, err
	}
	h := header{
		Version:     formatVersion,
		Compression: comp,
		Codec:       cd.Name(),
		Columns:     columns,
		RawLen:      uint64(len(raw)),
		DataLen:     uint64(len(payload)),
	}
	data, err = appendHeader(make([]byte, 0, 64+len(payload)), &h)
	if err != nil {
		return nil, false, err
	}
	data = binary.LittleEndian.AppendUint32(data, checksum(data, payload))
	return append(data, payload...), compacted, nil
}

// Decode parses a blob produced by [Encode]. Errors wrap [ErrCorrupt] through
// a [DecodeError].
func Decode[T Row[T]](data []byte) (*Collection[T], error) {
	c, err := decode[T](data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return c, nil
}

func decode[T Row[T]](data []byte) (*Collection[T], error) {
	h, sealed, payload, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	if uint64(len(payload)) != h.DataLen {
		return nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrTruncated, len(payload), h.DataLen)
	}
	if sum := checksum(data[:sealed], payload); sum != h.Checksum {
		return nil, fmt.Errorf("%w: expected 0x%08x, got 0x%08x", ErrChecksum, h.Checksum, sum)
	}
	if err := checkRawLen(h); err != nil {
		return nil, err
	}
	columns, err := Schema[T]()
	if err != nil {
		return nil, err
	}
	if err := checkColumns(h.Columns, columns); err != nil {
		return nil, err
	}
	cd, ok := codec.ByName(h.Codec)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, h.Codec)
	}
	raw, err := decompress(payload, h.Compression, h.RawLen)
	if err != nil {
		return nil, err
	}
	var rows []T
	if err := cd.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("%s: %w", cd.Name(), err)
	}
	return newCollectionFrom(rows)
}

// checksum covers the header bytes up to the checksum field and the payload.
func checksum(prefix, payload []byte) uint32 {
	return crc32.Update(crc32.ChecksumIEEE(prefix), crc32.IEEETable, payload)
}

// checkRawLen rejects decompressed sizes the payload cannot produce, before
// anything is allocated from them.
func checkRawLen(h *header) error {
	if h.RawLen > maxRawLen {
		return fmt.Errorf("%w: raw length %d exceeds %d", ErrBadLength, h.RawLen, uint64(maxRawLen))
	}
	switch h.Compression {
	case CompressionNone:
		if h.RawLen != h.DataLen {
			return fmt.Errorf("%w: raw length %d, stored %d bytes uncompressed", ErrBadLength, h.RawLen, h.DataLen)
		}
	case CompressionLZ4:
		if h.RawLen > h.DataLen*lz4MaxRatio {
			return fmt.Errorf("%w: raw length %d from %d lz4 bytes", ErrBadLength, h.RawLen, h.DataLen)
		}
	case CompressionZstd:
		// Bounded by maxRawLen and the decoder memory limit.
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCompression, h.Compression)
	}
	return nil
}

// appendHeader appends every header field except the checksum.
func appendHeader(b []byte, h *header) ([]byte, error) {
	if len(h.Codec) > math.MaxUint16 {
		return nil, fmt.Errorf("codec name too long: %d", len(h.Codec))
	}
	cols, err := json.Marshal(h.Columns)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal columns: %w", err)
	}
	b = append(b, fileMagic[:]...)
	b = binary.LittleEndian.AppendUint16(b, h.Version)
	b = append(b, byte(h.Compression), 0)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(h.Codec)))
	b = append(b, h.Codec...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(cols)))
	b = append(b, cols...)
	b = binary.LittleEndian.AppendUint64(b, h.RawLen)
	b = binary.LittleEndian.AppendUint64(b, h.DataLen)
	return b, nil
}

// readHeader parses the header. It returns the offset of the checksum field,
// which is also the length of the checksummed header prefix, and the payload.
func readHeader(data []byte) (h *header, sealed int, payload []byte, err error) {
	r := byteReader{b: data}
	magic := r.next(4)
	if r.err != nil || [4]byte(magic) != fileMagic {
		return nil, 0, nil, ErrBadMagic
	}
	h = &header{Version: r.uint16()}
	if r.err == nil && h.Version != formatVersion {
		return nil, 0, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	flags := r.next(2)
	h.Codec = string(r.next(int(r.uint16())))
	cols := r.next(int(r.uint32()))
	h.RawLen = r.uint64()
	h.DataLen = r.uint64()
	sealed = len(data) - len(r.b)
	h.Checksum = r.uint32()
	if r.err != nil {
		return nil, 0, nil, r.err
	}
	h.Compression = Compression(flags[0])
	if err := json.Unmarshal(cols, &h.Columns); err != nil {
		return nil, 0, nil, fmt.Errorf("failed to unmarshal columns: %w", err)
	}
	return h, sealed, r.b, nil
}

// byteReader reads little endian fields; the first short read sets err.
type byteReader struct {
	b   []byte
	err error
}

func (r *byteReader) next(n int) []byte {
	if r.err == nil && (n < 0 || len(r.b) < n) {
		r.err = fmt.Errorf("%w: header needs %d more bytes, %d left", ErrTruncated, n, len(r.b))
	}
	if r.err != nil {
		// Fixed-size fields still get a zeroed buffer to decode from.
		return make([]byte, min(max(n, 0), 8))
	}
	v := r.b[:n]
	r.b = r.b[n:]
	return v
}

func (r *byteReader) uint16() uint16 { return binary.LittleEndian.Uint16(r.next(2)) }
func (r *byteReader) uint32() uint32 { return binary.LittleEndian.Uint32(r.next(4)) }
func (r *byteReader) uint64() uint64 { return binary.LittleEndian.Uint64(r.next(8)) }

// zstd encoders and decoders are safe for concurrent EncodeAll/DecodeAll.
var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxRawLen))
	})
)

// compress returns the payload and the compression actually applied: data
// that does not shrink is stored uncompressed.
func compress(raw []byte, c Compression) ([]byte, Compression, error) {
	if len(raw) == 0 {
		return raw, CompressionNone, nil
	}
	switch c {
	case CompressionNone:
		return raw, CompressionNone, nil
	case CompressionZstd:
		enc, err := zstdEncoder()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		out := enc.EncodeAll(raw, nil)
		if len(out) >= len(raw) {
			return raw, CompressionNone, nil
		}
		return out, CompressionZstd, nil
	case CompressionLZ4:
		out := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, out, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4: %w", err)
		}
		if n == 0 || n >= len(raw) {
			return raw, CompressionNone, nil
		}
		return out[:n], CompressionLZ4, nil
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownCompression, c)
	}
}

func decompress(payload []byte, c Compression, rawLen uint64) ([]byte, error) {
	if rawLen > maxRawLen {
		return nil, fmt.Errorf("%w: raw length %d", ErrTruncated, rawLen)
	}
	var out []byte
	switch c {
	case CompressionNone:
		out = payload
	case CompressionZstd:
		dec, err := zstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		if out, err = dec.DecodeAll(payload, make([]byte, 0, min(rawLen, 64<<20))); err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
	case CompressionLZ4:
		out = make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		out = out[:n]
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCompression, c)
	}
	if uint64(len(out)) != rawLen {
		return nil, fmt.Errorf("%w: decompressed %d bytes, header says %d", ErrTruncated, len(out), rawLen)
	}
	return out, nil
}
