package objstore

import (
	"encoding/binary"
	"fmt"

	"lukechampine.com/blake3"

	"github.com/agentctx/ctx/internal/model"
)

// Magic is the five-byte envelope magic (spec.md §3, §6.2).
var Magic = [5]byte{'C', 'T', 'X', 'O', '1'}

const envelopeHeaderLen = 5 + 1 + 8

// Envelope is the canonical on-disk-identity framing of one object:
//
//	magic(5) = "CTXO1" | kind(1) | payload_len(8, little-endian) | payload
//
// The object id is the BLAKE3-256 hash of this envelope computed over the
// uncompressed bytes; compression is applied only to the stored form, never
// to what gets hashed (spec.md §3 "Object identity and envelope").
func encodeEnvelope(kind model.Kind, payload []byte) []byte {
	buf := make([]byte, envelopeHeaderLen+len(payload))
	copy(buf[0:5], Magic[:])
	buf[5] = byte(kind)
	binary.LittleEndian.PutUint64(buf[6:14], uint64(len(payload)))
	copy(buf[14:], payload)
	return buf
}

// decodeEnvelope parses and validates an envelope, returning its kind and
// payload. It does not verify the hash; callers that read from disk must
// call verifyID separately (store.go) so the error kind distinction between
// a malformed envelope and a hash mismatch stays meaningful (spec.md §7).
func decodeEnvelope(buf []byte) (model.Kind, []byte, error) {
	if len(buf) < envelopeHeaderLen {
		return 0, nil, fmt.Errorf("objstore: envelope too short (%d bytes)", len(buf))
	}
	if [5]byte(buf[0:5]) != Magic {
		return 0, nil, fmt.Errorf("objstore: bad magic %q", buf[0:5])
	}
	kind := model.Kind(buf[5])
	if kind != model.KindBlob && kind != model.KindTyped {
		return 0, nil, fmt.Errorf("objstore: unknown envelope kind %d", kind)
	}
	n := binary.LittleEndian.Uint64(buf[6:14])
	if uint64(len(buf)-envelopeHeaderLen) != n {
		return 0, nil, fmt.Errorf("objstore: envelope payload length mismatch: header says %d, have %d", n, len(buf)-envelopeHeaderLen)
	}
	payload := buf[envelopeHeaderLen:]
	return kind, payload, nil
}

// computeID hashes the full envelope with BLAKE3-256.
func computeID(envelope []byte) model.ObjectID {
	return model.ObjectID(blake3.Sum256(envelope))
}
