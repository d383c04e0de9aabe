package object

import (
	"fmt"
	"sort"
)

// Format selects one of the interchangeable serialization codecs.
type Format int

const (
	// FormatText is the human-readable line-oriented format. It is also the
	// canonical identity format: content hashes are always computed over
	// text-encoded bytes (see HashOf).
	FormatText Format = iota
	// FormatBinary is the compact deterministic CBOR format.
	FormatBinary
)

// String returns the config-file name of the format.
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatBinary:
		return "binary"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat parses a config-file format name.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "text":
		return FormatText, nil
	case "binary":
		return FormatBinary, nil
	default:
		return 0, fmt.Errorf("unknown serialization format %q", s)
	}
}

// Codec encodes and decodes revision objects in one format. Decode is the
// inverse of Encode for every valid object: Decode(kind, Encode(o)) == o.
type Codec interface {
	Encode(o Object) ([]byte, error)
	Decode(kind ObjectType, data []byte) (Object, error)
}

// NewCodec returns the codec for the given format.
func NewCodec(f Format) Codec {
	switch f {
	case FormatText:
		return textCodec{}
	case FormatBinary:
		return binaryCodec{}
	default:
		panic(fmt.Sprintf("object: no codec for %v", f))
	}
}

// WrongTypeError reports a stream whose leading type tag does not match the
// kind the reader was asked to parse. The message quotes the tag verbatim.
type WrongTypeError struct {
	Tag string
}

func (e *WrongTypeError) Error() string { return "Wrong type: " + e.Tag }

// canonicalEncode produces the canonical byte encoding used for identity.
// Text encoding of a well-formed object cannot fail.
func canonicalEncode(o Object) []byte {
	data, err := textCodec{}.Encode(o)
	if err != nil {
		panic(fmt.Sprintf("object: canonical encode %s: %v", o.Kind(), err))
	}
	return data
}

// sortedNodes returns the tree's nodes ordered by name. Both codecs encode
// nodes in this order so encoding is canonical regardless of how the slice
// was assembled.
func sortedNodes(t *Tree) []Node {
	nodes := make([]Node, len(t.Nodes))
	copy(nodes, t.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes
}

// sortedBucketIndexes returns the tree's bucket indexes in ascending order.
func sortedBucketIndexes(t *Tree) []int {
	idxs := make([]int, 0, len(t.Buckets))
	for i := range t.Buckets {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	return idxs
}
