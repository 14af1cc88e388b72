package stream

import (
	"errors"
	"io"
)

const readChunkSize = 4096

// Reader pulls a completion response body through a [Decoder].
//
// The next chunk is only read from the source once every fragment of the
// previous chunk was returned by [Reader.Fragment].
type Reader struct {
	src      io.Reader
	dec      *Decoder
	buf      []byte
	pending  []string
	fragment string
	err      error
}

// NewReader returns a Reader decoding r with a fresh [Decoder].
func NewReader(r io.Reader) *Reader {
	return &Reader{
		src: r,
		dec: NewDecoder(),
		buf: make([]byte, readChunkSize),
	}
}

// Next advances to the next fragment. It returns false once the sentinel or
// the end of the source was reached, or the source failed.
func (r *Reader) Next() bool {
	for len(r.pending) == 0 {
		if r.err != nil || r.dec.Done() {
			return false
		}
		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.pending = r.dec.Feed(r.buf[:n])
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			r.pending = append(r.pending, r.dec.Finish()...)
			continue
		}
		r.err = err
	}
	r.fragment, r.pending = r.pending[0], r.pending[1:]
	return true
}

// Fragment returns the current fragment.
func (r *Reader) Fragment() string { return r.fragment }

// Err returns the transport error that stopped the reader, or the last error
// event sent by the upstream.
func (r *Reader) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.dec.Err()
}

// Dropped returns how many data frames were discarded as malformed.
func (r *Reader) Dropped() int { return r.dec.Dropped() }
