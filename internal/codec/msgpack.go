package codec

import "github.com/ugorji/go/codec"

// mh is configured once; a configured handle is safe for concurrent use.
var mh = func() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	// Timestamps use the msgpack timestamp extension so they round-trip exactly.
	h.WriteExt = true
	return h
}()

// Msgpack is a binary codec backed by github.com/ugorji/go/codec.
//
// Struct fields are keyed by their `json` tag name, so the same row types
// serialize with both built-in codecs.
type Msgpack struct{}

// Marshal encodes v to msgpack.
func (Msgpack) Marshal(v any) ([]byte, error) {
	var b []byte
	if err := codec.NewEncoderBytes(&b, mh).Encode(v); err != nil {
		return nil, err
	}
	return b, nil
}

// Unmarshal decodes msgpack data into v.
func (Msgpack) Unmarshal(data []byte, v any) error {
	return codec.NewDecoderBytes(data, mh).Decode(v)
}

// Name returns "msgpack".
func (Msgpack) Name() string { return "msgpack" }
