package docdb

import (
	"errors"
	"fmt"
)

var (
	// ErrAbsent is returned by [LoadFile] when the collection file does not
	// exist. It is safe to start with an empty collection.
	ErrAbsent = errors.New("collection file does not exist")
	// ErrCorrupt is matched by every [DecodeError]. The file exists but cannot
	// be decoded; starting empty would lose data.
	ErrCorrupt = errors.New("collection file is corrupt")

	ErrBadMagic           = errors.New("bad magic")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrUnknownCodec       = errors.New("unknown codec")
	ErrUnknownCompression = errors.New("unknown compression")
	ErrTruncated          = errors.New("truncated data")
	ErrBadLength          = errors.New("invalid payload length")
	ErrChecksum           = errors.New("checksum mismatch")
	ErrSchemaMismatch     = errors.New("incompatible schema")
)

// DecodeError is returned when a collection blob cannot be decoded.
// It matches [ErrCorrupt] with errors.Is.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to decode collection: %v", e.Err)
	}
	return fmt.Sprintf("failed to decode collection %s: %v", e.Path, e.Err)
}

// Unwrap returns both ErrCorrupt and the cause.
func (e *DecodeError) Unwrap() []error {
	return []error{ErrCorrupt, e.Err}
}

// EncodeError is returned when a collection cannot be encoded.
type EncodeError struct {
	Path string
	Err  error
}

func (e *EncodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to encode collection: %v", e.Err)
	}
	return fmt.Sprintf("failed to encode collection %s: %v", e.Path, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}
