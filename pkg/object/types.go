package object

// Hash is a 64-character hex-encoded SHA-256 digest. It doubles as the
// storage address of the object it identifies.
type Hash string

// NullHash is the distinguished "no object" sentinel.
const NullHash Hash = ""

// IsNull reports whether h is the null sentinel.
func (h Hash) IsNull() bool { return h == NullHash }

// Less orders hashes lexicographically. Hex encoding preserves byte order,
// so this matches ordering on the raw digests.
func (h Hash) Less(other Hash) bool { return h < other }

// ObjectType identifies the kind of object stored. The string value is the
// wire tag used as the first line of the text encoding.
type ObjectType string

const (
	TypeTree        ObjectType = "TREE"
	TypeFeature     ObjectType = "FEATURE"
	TypeFeatureType ObjectType = "FEATURETYPE"
	TypeCommit      ObjectType = "COMMIT"
	TypeTag         ObjectType = "TAG"
)

// Object is implemented by every revision object kind.
type Object interface {
	Kind() ObjectType
}

// Bounds is optional bounding metadata attached to a tree node.
type Bounds struct {
	MinX float64 `cbor:"1,keyasint"`
	MinY float64 `cbor:"2,keyasint"`
	MaxX float64 `cbor:"3,keyasint"`
	MaxY float64 `cbor:"4,keyasint"`
}

// Expand grows b to cover o.
func (b *Bounds) Expand(o Bounds) {
	if o.MinX < b.MinX {
		b.MinX = o.MinX
	}
	if o.MinY < b.MinY {
		b.MinY = o.MinY
	}
	if o.MaxX > b.MaxX {
		b.MaxX = o.MaxX
	}
	if o.MaxY > b.MaxY {
		b.MaxY = o.MaxY
	}
}

// Node is one named entry in a Tree: either a child tree or a feature leaf.
// Metadata, when set, references the FeatureType describing the feature.
type Node struct {
	Name     string
	ID       Hash
	Kind     ObjectType // TypeTree or TypeFeature
	Metadata Hash
	Bounds   *Bounds
}

// Tree is one level of the persistent revision tree. A flat level carries
// Nodes sorted by name with unique names. A sharded level carries Buckets:
// bucket index to child tree id, with no direct nodes. Count is the number
// of features reachable from this level.
type Tree struct {
	Count   int64
	Nodes   []Node
	Buckets map[int]Hash
}

func (t *Tree) Kind() ObjectType { return TypeTree }

// IsBucketed reports whether this level is sharded into buckets.
func (t *Tree) IsBucketed() bool { return len(t.Buckets) > 0 }

// ValueType tags one attribute value of a feature.
type ValueType string

const (
	ValueNull   ValueType = "NULL"
	ValueBool   ValueType = "BOOL"
	ValueInt    ValueType = "INT"
	ValueFloat  ValueType = "FLOAT"
	ValueString ValueType = "STRING"
	ValueBytes  ValueType = "BYTES"
)

// Value is a closed tagged union of attribute value types. Only the field
// matching Type is meaningful; the rest stay zero so values compare with
// plain struct equality and round-trip every codec exactly.
// The payload fields must not carry omitempty: CBOR would then drop values
// that are zero-like but distinct, -0.0 would decode as +0.0 and an empty
// byte slice as nil, changing the object's identity on reload.
type Value struct {
	Type  ValueType `cbor:"1,keyasint"`
	Bool  bool      `cbor:"2,keyasint"`
	Int   int64     `cbor:"3,keyasint"`
	Float float64   `cbor:"4,keyasint"`
	Str   string    `cbor:"5,keyasint"`
	Bytes []byte    `cbor:"6,keyasint"`
}

func NullValue() Value           { return Value{Type: ValueNull} }
func BoolValue(v bool) Value     { return Value{Type: ValueBool, Bool: v} }
func IntValue(v int64) Value     { return Value{Type: ValueInt, Int: v} }
func FloatValue(v float64) Value { return Value{Type: ValueFloat, Float: v} }
func StringValue(v string) Value { return Value{Type: ValueString, Str: v} }
func BytesValue(v []byte) Value  { return Value{Type: ValueBytes, Bytes: v} }

// Feature is an ordered sequence of typed attribute values.
type Feature struct {
	Values []Value
}

func (f *Feature) Kind() ObjectType { return TypeFeature }

// Attribute describes one attribute slot of a FeatureType.
type Attribute struct {
	Name string    `cbor:"1,keyasint"`
	Type ValueType `cbor:"2,keyasint"`
}

// FeatureType is a schema descriptor shared across features of one shape.
type FeatureType struct {
	Attributes []Attribute
}

func (ft *FeatureType) Kind() ObjectType { return TypeFeatureType }

// Person records authorship identity and time. TimezoneOffset is minutes
// east of UTC at Timestamp.
type Person struct {
	Name           string `cbor:"1,keyasint"`
	Email          string `cbor:"2,keyasint"`
	Timestamp      int64  `cbor:"3,keyasint"` // milliseconds since epoch
	TimezoneOffset int    `cbor:"4,keyasint"` // minutes
}

// Commit is an immutable snapshot record. Parents[0], by convention, is the
// branch tip the commit supersedes. Signature, when present, covers the
// canonical payload minus itself (see CommitSigningPayload).
type Commit struct {
	Tree      Hash
	Parents   []Hash
	Author    Person
	Committer Person
	Message   string
	Signature string
}

func (c *Commit) Kind() ObjectType { return TypeCommit }

// Tag is an annotated tag object pointing at another object, usually a commit.
type Tag struct {
	Object  Hash
	Name    string
	Tagger  Person
	Message string
}

func (t *Tag) Kind() ObjectType { return TypeTag }
