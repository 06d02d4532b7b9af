// Package codec implements the deterministic binary encoding used for every
// typed object payload (SPEC_FULL.md §3.1). It is a compact binary format
// with no per-field tags: each type's encoder writes its fields in a fixed
// order, hand-written per type rather than reflection-driven, so that
// adding a field is always an explicit, reviewed, append-only change.
//
// Three laws hold for every encoder/decoder pair in this package and in
// internal/model:
//
//	decode(encode(x)) == x                         (round-trip law)
//	encode(x) == encode(y) iff x == y               (canonical law)
//	appending a field never shifts an existing one  (stability law)
package codec

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"
)

// Writer accumulates a canonical byte stream. Zero value is ready to use.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// PutUvarint writes an unsigned varint.
func (w *Writer) PutUvarint(v uint64) {
	var tmp [10]byte
	n := 0
	for v >= 0x80 {
		tmp[n] = byte(v) | 0x80
		v >>= 7
		n++
	}
	tmp[n] = byte(v)
	n++
	w.buf.Write(tmp[:n])
}

// PutVarint writes a signed varint using zigzag encoding.
func (w *Writer) PutVarint(v int64) {
	w.PutUvarint(uint64((v << 1) ^ (v >> 63)))
}

// PutBool writes a single byte 0/1.
func (w *Writer) PutBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// PutFloat64 writes an IEEE-754 value. NaN and Inf are rejected: the typed
// payload encoding invariant (spec.md §3) forbids NaN in any numeric field,
// and an unbounded float makes the canonical law unverifiable across
// platforms, so both are treated the same way here.
func (w *Writer) PutFloat64(v float64) error {
	if math.IsNaN(v) {
		return fmt.Errorf("codec: NaN is forbidden in typed payloads")
	}
	if math.IsInf(v, 0) {
		return fmt.Errorf("codec: Inf is forbidden in typed payloads")
	}
	bits := math.Float64bits(v)
	var tmp [8]byte
	for i := 0; i < 8; i++ {
		tmp[7-i] = byte(bits >> (8 * i))
	}
	w.buf.Write(tmp[:])
	return nil
}

// PutString writes a length-prefixed, UTF-8-validated string.
func (w *Writer) PutString(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("codec: string is not valid UTF-8: %q", s)
	}
	w.PutUvarint(uint64(len(s)))
	w.buf.WriteString(s)
	return nil
}

// PutBytes writes a length-prefixed raw byte slice (used for ids and blobs
// of fixed or variable size where UTF-8 validity does not apply).
func (w *Writer) PutBytes(b []byte) {
	w.PutUvarint(uint64(len(b)))
	w.buf.Write(b)
}

// PutRaw writes bytes with no length prefix — used only for fixed-width
// fields (e.g. a 32-byte hash) where the width is implied by the schema.
func (w *Writer) PutRaw(b []byte) { w.buf.Write(b) }

// SortedMapWriter writes a map's entries in key-sorted order so that two
// logically equal maps always produce the same bytes (the ordered-container
// rule in spec.md §3). write is called once per key, in sorted order.
func SortedMapWriter[K ~string, V any](w *Writer, m map[K]V, write func(w *Writer, k K, v V) error) error {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	w.PutUvarint(uint64(len(keys)))
	for _, k := range keys {
		if err := write(w, k, m[k]); err != nil {
			return err
		}
	}
	return nil
}

// Reader consumes a canonical byte stream produced by Writer.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(b []byte) *Reader { return &Reader{buf: b} }

func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) UvarintErr() (uint64, error) {
	var x uint64
	var s uint
	for i := 0; ; i++ {
		if r.pos >= len(r.buf) {
			return 0, fmt.Errorf("codec: truncated varint")
		}
		b := r.buf[r.pos]
		r.pos++
		if b < 0x80 {
			if i > 9 || (i == 9 && b > 1) {
				return 0, fmt.Errorf("codec: varint overflow")
			}
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
}

func (r *Reader) Uvarint() uint64 {
	v, err := r.UvarintErr()
	if err != nil {
		panic(err)
	}
	return v
}

func (r *Reader) Varint() int64 {
	uv := r.Uvarint()
	return int64(uv>>1) ^ -int64(uv&1)
}

func (r *Reader) Bool() bool {
	if r.pos >= len(r.buf) {
		panic(fmt.Errorf("codec: truncated bool"))
	}
	v := r.buf[r.pos] != 0
	r.pos++
	return v
}

func (r *Reader) Float64() (float64, error) {
	if r.Remaining() < 8 {
		return 0, fmt.Errorf("codec: truncated float64")
	}
	var bits uint64
	for i := 0; i < 8; i++ {
		bits = bits<<8 | uint64(r.buf[r.pos+i])
	}
	r.pos += 8
	v := math.Float64frombits(bits)
	if math.IsNaN(v) {
		return 0, fmt.Errorf("codec: decoded NaN, payload is corrupt")
	}
	return v, nil
}

func (r *Reader) String() (string, error) {
	n := r.Uvarint()
	if uint64(r.Remaining()) < n {
		return "", fmt.Errorf("codec: truncated string")
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("codec: decoded string is not valid UTF-8")
	}
	return s, nil
}

func (r *Reader) Bytes() ([]byte, error) {
	n := r.Uvarint()
	if uint64(r.Remaining()) < n {
		return nil, fmt.Errorf("codec: truncated bytes")
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return b, nil
}

func (r *Reader) Raw(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, fmt.Errorf("codec: truncated raw field")
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+n])
	r.pos += n
	return b, nil
}

// SortedMapReader reads back a map written by SortedMapWriter. Decoding does
// not re-validate sort order: entries written out of order are accepted.
func SortedMapReader[K comparable, V any](r *Reader, read func(r *Reader) (K, V, error)) (map[K]V, error) {
	n := r.Uvarint()
	m := make(map[K]V, n)
	for i := uint64(0); i < n; i++ {
		k, v, err := read(r)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}
