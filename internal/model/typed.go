package model

import (
	"fmt"

	"github.com/agentctx/ctx/internal/codec"
)

// TypedKind tags which typed entity a Typed-kind object payload holds.
// It is the first byte of every Typed payload, ahead of the entity's own
// canonical body, so Store.GetTyped can dispatch to the right decoder
// without a side channel. Append-only.
type TypedKind uint8

const (
	TypedTree TypedKind = iota
	TypedCommit
	TypedWorkCommit
	TypedEdgeBatch
	TypedSccView
)

// Encoder is implemented by every typed entity.
type Encoder interface {
	TypedKind() TypedKind
	Encode() []byte
}

// EncodeTyped prefixes an entity's canonical body with its TypedKind tag.
func EncodeTyped(e Encoder) []byte {
	w := codec.NewWriter()
	w.PutUvarint(uint64(e.TypedKind()))
	w.PutRaw(e.Encode())
	return w.Bytes()
}

// DecodeTyped reads the TypedKind tag and dispatches to the matching
// decoder, returning an `any` the caller type-asserts.
func DecodeTyped(b []byte) (any, error) {
	r := codec.NewReader(b)
	tag := TypedKind(r.Uvarint())
	rest := b[len(b)-r.Remaining():]
	switch tag {
	case TypedTree:
		return DecodeTree(rest)
	case TypedCommit:
		return DecodeCommit(rest)
	case TypedWorkCommit:
		return DecodeWorkCommit(rest)
	case TypedEdgeBatch:
		return DecodeEdgeBatch(rest)
	case TypedSccView:
		return DecodeSccView(rest)
	default:
		return nil, fmt.Errorf("model: unknown typed kind %d", tag)
	}
}
