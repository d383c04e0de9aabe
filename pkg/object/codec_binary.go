package object

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// binaryCodec is the compact CBOR format. Encoding uses Core Deterministic
// Encoding (RFC 8949 §4.2) so the same logical object always produces
// identical bytes. Every envelope leads with the object-kind tag in field 1,
// which lets a reader recover the tag from a stream of the wrong kind and
// honor the "Wrong type" error contract.
type binaryCodec struct{}

var (
	binEncMode cbor.EncMode
	binDecMode cbor.DecMode
)

func init() {
	var err error
	binEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("object: CBOR encoder initialization failed: " + err.Error())
	}
	binDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("object: CBOR decoder initialization failed: " + err.Error())
	}
}

type binNode struct {
	Name     string     `cbor:"1,keyasint"`
	ID       Hash       `cbor:"2,keyasint,omitempty"`
	Kind     ObjectType `cbor:"3,keyasint"`
	Metadata Hash       `cbor:"4,keyasint,omitempty"`
	Bounds   *Bounds    `cbor:"5,keyasint,omitempty"`
}

type binTree struct {
	Tag     string       `cbor:"1,keyasint"`
	Count   int64        `cbor:"2,keyasint"`
	Nodes   []binNode    `cbor:"3,keyasint,omitempty"`
	Buckets map[int]Hash `cbor:"4,keyasint,omitempty"`
}

type binFeature struct {
	Tag    string  `cbor:"1,keyasint"`
	Values []Value `cbor:"2,keyasint,omitempty"`
}

type binFeatureType struct {
	Tag        string      `cbor:"1,keyasint"`
	Attributes []Attribute `cbor:"2,keyasint,omitempty"`
}

type binCommit struct {
	Tag       string `cbor:"1,keyasint"`
	Tree      Hash   `cbor:"2,keyasint,omitempty"`
	Parents   []Hash `cbor:"3,keyasint,omitempty"`
	Author    Person `cbor:"4,keyasint"`
	Committer Person `cbor:"5,keyasint"`
	Message   string `cbor:"6,keyasint"`
	Signature string `cbor:"7,keyasint,omitempty"`
}

type binTag struct {
	Tag     string `cbor:"1,keyasint"`
	Object  Hash   `cbor:"2,keyasint,omitempty"`
	Name    string `cbor:"3,keyasint"`
	Tagger  Person `cbor:"4,keyasint"`
	Message string `cbor:"5,keyasint"`
}

func (binaryCodec) Encode(o Object) ([]byte, error) {
	var env any
	switch v := o.(type) {
	case *Tree:
		nodes := make([]binNode, 0, len(v.Nodes))
		for _, n := range sortedNodes(v) {
			nodes = append(nodes, binNode{
				Name: n.Name, ID: n.ID, Kind: n.Kind,
				Metadata: n.Metadata, Bounds: n.Bounds,
			})
		}
		env = binTree{Tag: string(TypeTree), Count: v.Count, Nodes: nodes, Buckets: v.Buckets}
	case *Feature:
		env = binFeature{Tag: string(TypeFeature), Values: v.Values}
	case *FeatureType:
		env = binFeatureType{Tag: string(TypeFeatureType), Attributes: v.Attributes}
	case *Commit:
		env = binCommit{
			Tag: string(TypeCommit), Tree: v.Tree, Parents: v.Parents,
			Author: v.Author, Committer: v.Committer,
			Message: v.Message, Signature: v.Signature,
		}
	case *Tag:
		env = binTag{
			Tag: string(TypeTag), Object: v.Object, Name: v.Name,
			Tagger: v.Tagger, Message: v.Message,
		}
	default:
		return nil, fmt.Errorf("binary encode: unsupported object kind %q", o.Kind())
	}

	data, err := binEncMode.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("binary encode %s: %w", o.Kind(), err)
	}
	return data, nil
}

func (binaryCodec) Decode(kind ObjectType, data []byte) (Object, error) {
	// Recover only the leading tag first. Unknown fields are ignored, so
	// this works on any envelope shape and lets wrong-kind streams fail
	// with the tag they actually carry instead of a field type error.
	var probe struct {
		Tag string `cbor:"1,keyasint"`
	}
	if err := binDecMode.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("binary decode: malformed stream: %w", err)
	}
	if probe.Tag != string(kind) {
		return nil, &WrongTypeError{Tag: probe.Tag}
	}

	switch kind {
	case TypeTree:
		var env binTree
		if err := binDecMode.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("binary decode tree: %w", err)
		}
		t := &Tree{Count: env.Count, Buckets: env.Buckets}
		for _, n := range env.Nodes {
			t.Nodes = append(t.Nodes, Node{
				Name: n.Name, ID: n.ID, Kind: n.Kind,
				Metadata: n.Metadata, Bounds: n.Bounds,
			})
		}
		return t, nil
	case TypeFeature:
		var env binFeature
		if err := binDecMode.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("binary decode feature: %w", err)
		}
		return &Feature{Values: env.Values}, nil
	case TypeFeatureType:
		var env binFeatureType
		if err := binDecMode.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("binary decode featuretype: %w", err)
		}
		return &FeatureType{Attributes: env.Attributes}, nil
	case TypeCommit:
		var env binCommit
		if err := binDecMode.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("binary decode commit: %w", err)
		}
		return &Commit{
			Tree: env.Tree, Parents: env.Parents,
			Author: env.Author, Committer: env.Committer,
			Message: env.Message, Signature: env.Signature,
		}, nil
	case TypeTag:
		var env binTag
		if err := binDecMode.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("binary decode tag: %w", err)
		}
		return &Tag{
			Object: env.Object, Name: env.Name,
			Tagger: env.Tagger, Message: env.Message,
		}, nil
	default:
		return nil, fmt.Errorf("binary decode: unsupported object kind %q", kind)
	}
}
