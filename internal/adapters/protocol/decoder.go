package protocol

import (
	"bytes"

	"github.com/okian/gazetrack/pkg/metrics"
)

// DefaultMaxFragment bounds the bytes buffered while waiting for a newline.
const DefaultMaxFragment = 1 << 20

// Decoder turns a byte stream into responses. A read may carry several
// messages or end in the middle of one; the unterminated tail is kept until
// the rest of it arrives. Decoder is not safe for concurrent use.
type Decoder struct {
	buf         []byte
	maxFragment int
	dropped     int
	lastErr     error
}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{maxFragment: DefaultMaxFragment}
}

// Feed appends data to the stream and returns every complete response in
// arrival order. Malformed lines are dropped and decoding continues.
func (d *Decoder) Feed(data []byte) []Response {
	d.buf = append(d.buf, data...)

	var out []Response
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := d.buf[:i]
		d.buf = d.buf[i+1:]

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		resp, err := DecodeResponse(line)
		if err != nil {
			d.drop(err)
			continue
		}
		out = append(out, resp)
	}

	if len(d.buf) > d.maxFragment {
		d.drop(ErrMalformed)
		d.buf = nil
	}
	if len(d.buf) == 0 {
		// release the backing array once drained
		d.buf = nil
	}
	return out
}

func (d *Decoder) drop(err error) {
	d.dropped++
	d.lastErr = err
	metrics.RecordProtocolDropped()
}

// Pending returns the number of buffered bytes of an incomplete message.
func (d *Decoder) Pending() int { return len(d.buf) }

// Dropped returns how many malformed messages were discarded.
func (d *Decoder) Dropped() int { return d.dropped }

// Err returns the error of the most recently dropped message.
func (d *Decoder) Err() error { return d.lastErr }

// Reset discards any buffered fragment. Used after a reconnect.
func (d *Decoder) Reset() { d.buf = nil }
