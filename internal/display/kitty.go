package display

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

const (
	apcStart = "\x1b_G"
	apcEnd   = "\x1b\\"

	// maxChunk is the protocol's limit on base64 payload bytes per escape.
	maxChunk = 4096
)

// KittyEncoder writes PNG payloads as kitty graphics escapes. An encoder with
// an image id replaces the previous image with that id instead of stacking a
// new one, which is how the comparison view redraws while sliding.
type KittyEncoder struct {
	out     io.Writer
	columns int
	id      uint32
}

func NewKittyEncoder(out io.Writer) *KittyEncoder {
	return &KittyEncoder{out: out}
}

// WithColumns scales the placement to the given number of terminal cells.
// Zero keeps the image's natural size.
func (e *KittyEncoder) WithColumns(cols int) *KittyEncoder {
	e.columns = cols
	return e
}

func (e *KittyEncoder) WithID(id uint32) *KittyEncoder {
	e.id = id
	return e
}

func (e *KittyEncoder) control() string {
	keys := []string{"a=T", "f=100", "q=2"}
	if e.id > 0 {
		keys = append(keys, fmt.Sprintf("i=%d", e.id), "p=1")
	}
	if e.columns > 0 {
		keys = append(keys, fmt.Sprintf("c=%d", e.columns))
	}
	return strings.Join(keys, ",")
}

// Encode transmits and places one PNG image. Payloads larger than one chunk
// are split with the m=1 continuation flag; only the first escape carries the
// control keys.
func (e *KittyEncoder) Encode(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	payload := base64.StdEncoding.EncodeToString(data)
	first := true
	for len(payload) > 0 {
		n := min(len(payload), maxChunk)
		chunk := payload[:n]
		payload = payload[n:]

		var keys []string
		if first {
			keys = append(keys, e.control())
		}
		switch {
		case len(payload) > 0:
			keys = append(keys, "m=1")
		case !first:
			keys = append(keys, "m=0")
		}
		first = false

		if _, err := fmt.Fprintf(e.out, "%s%s;%s%s", apcStart, strings.Join(keys, ","), chunk, apcEnd); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes every placement of the encoder's image and frees its data.
// Encoders without an id have nothing to address.
func (e *KittyEncoder) Delete() error {
	if e.id == 0 {
		return nil
	}
	_, err := fmt.Fprintf(e.out, "%sa=d,d=I,i=%d,q=2%s", apcStart, e.id, apcEnd)
	return err
}
