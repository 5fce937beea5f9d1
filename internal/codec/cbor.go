// Package codec encodes view snapshots as CBOR for clients that prefer a
// binary representation over JSON.
package codec

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// ContentType is the media type of CBOR payloads.
const ContentType = "application/cbor"

// encMode uses Core Deterministic Encoding, so equal snapshots always
// produce identical bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
}

// NewEncoder returns an encoder writing deterministic CBOR to w. Struct
// fields use their json tags.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}
