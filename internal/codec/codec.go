// Package codec centralizes payload encoding for persisted collections.
//
// The codec name is written into every collection file header, so changing the
// codec of an existing data directory is safe: files are decoded with the codec
// they were written with and re-encoded with the configured one on next save.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used when none is configured.
var Default Codec = Msgpack{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "msgpack":
		return Msgpack{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Names returns the stable names of all built-in codecs.
func Names() []string {
	return []string{"msgpack", "go-json"}
}
