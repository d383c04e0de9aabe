package object

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// textCodec is the line-oriented human-readable format. The first line is
// the object-kind tag; the remainder is kind-specific key-value lines. All
// free-form strings are strconv.Quote'd so every object has exactly one
// encoding and round-trips byte-identically.
type textCodec struct{}

func (textCodec) Encode(o Object) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(string(o.Kind()))
	buf.WriteByte('\n')

	switch v := o.(type) {
	case *Tree:
		writeTextTree(&buf, v)
	case *Feature:
		writeTextFeature(&buf, v)
	case *FeatureType:
		writeTextFeatureType(&buf, v)
	case *Commit:
		writeTextCommit(&buf, v)
	case *Tag:
		writeTextTag(&buf, v)
	default:
		return nil, fmt.Errorf("text encode: unsupported object kind %q", o.Kind())
	}
	return buf.Bytes(), nil
}

func (textCodec) Decode(kind ObjectType, data []byte) (Object, error) {
	tag, rest, found := strings.Cut(string(data), "\n")
	if !found && tag == "" {
		return nil, fmt.Errorf("text decode: empty stream")
	}
	if tag != string(kind) {
		return nil, &WrongTypeError{Tag: tag}
	}

	lines := splitTextLines(rest)
	switch kind {
	case TypeTree:
		return readTextTree(lines)
	case TypeFeature:
		return readTextFeature(lines)
	case TypeFeatureType:
		return readTextFeatureType(lines)
	case TypeCommit:
		return readTextCommit(lines)
	case TypeTag:
		return readTextTag(lines)
	default:
		return nil, fmt.Errorf("text decode: unsupported object kind %q", kind)
	}
}

func splitTextLines(body string) []string {
	body = strings.TrimSuffix(body, "\n")
	if body == "" {
		return nil
	}
	return strings.Split(body, "\n")
}

func hashOrDash(h Hash) string {
	if h.IsNull() {
		return "-"
	}
	return string(h)
}

func dashOrHash(s string) Hash {
	if s == "-" {
		return NullHash
	}
	return Hash(s)
}

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

func formatBounds(b *Bounds) string {
	if b == nil {
		return "-"
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return f(b.MinX) + "," + f(b.MinY) + "," + f(b.MaxX) + "," + f(b.MaxY)
}

func parseBounds(s string) (*Bounds, error) {
	if s == "-" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("malformed bounds %q", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed bounds %q: %w", s, err)
		}
		vals[i] = v
	}
	return &Bounds{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}, nil
}

func writeTextTree(buf *bytes.Buffer, t *Tree) {
	fmt.Fprintf(buf, "count %d\n", t.Count)
	for _, n := range sortedNodes(t) {
		fmt.Fprintf(buf, "node %s %s %s %s %s\n",
			n.Kind, strconv.Quote(n.Name), hashOrDash(n.ID),
			hashOrDash(n.Metadata), formatBounds(n.Bounds))
	}
	for _, idx := range sortedBucketIndexes(t) {
		fmt.Fprintf(buf, "bucket %d %s\n", idx, t.Buckets[idx])
	}
}

func readTextTree(lines []string) (*Tree, error) {
	t := &Tree{}
	for _, line := range lines {
		key, val, _ := strings.Cut(line, " ")
		switch key {
		case "count":
			c, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("read tree: bad count %q: %w", val, err)
			}
			t.Count = c
		case "node":
			parts := strings.SplitN(val, " ", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("read tree: malformed node line %q", line)
			}
			kind := ObjectType(parts[0])
			if kind != TypeTree && kind != TypeFeature {
				return nil, fmt.Errorf("read tree: bad node kind %q", parts[0])
			}
			name, rest, err := unquotePrefix(parts[1])
			if err != nil {
				return nil, fmt.Errorf("read tree: malformed node name in %q: %w", line, err)
			}
			fields := strings.Fields(rest)
			if len(fields) != 3 {
				return nil, fmt.Errorf("read tree: malformed node line %q", line)
			}
			bounds, err := parseBounds(fields[2])
			if err != nil {
				return nil, fmt.Errorf("read tree: %w", err)
			}
			t.Nodes = append(t.Nodes, Node{
				Name:     name,
				Kind:     kind,
				ID:       dashOrHash(fields[0]),
				Metadata: dashOrHash(fields[1]),
				Bounds:   bounds,
			})
		case "bucket":
			fields := strings.Fields(val)
			if len(fields) != 2 {
				return nil, fmt.Errorf("read tree: malformed bucket line %q", line)
			}
			idx, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, fmt.Errorf("read tree: bad bucket index %q: %w", fields[0], err)
			}
			if t.Buckets == nil {
				t.Buckets = make(map[int]Hash)
			}
			t.Buckets[idx] = Hash(fields[1])
		default:
			return nil, fmt.Errorf("read tree: unknown line %q", line)
		}
	}
	return t, nil
}

// unquotePrefix parses a leading Go-quoted string and returns it along with
// the remainder of the line (leading space trimmed).
func unquotePrefix(s string) (string, string, error) {
	if !strings.HasPrefix(s, "\"") {
		return "", "", fmt.Errorf("expected quoted string in %q", s)
	}
	prefix, err := strconv.QuotedPrefix(s)
	if err != nil {
		return "", "", err
	}
	unq, err := strconv.Unquote(prefix)
	if err != nil {
		return "", "", err
	}
	return unq, strings.TrimPrefix(s[len(prefix):], " "), nil
}

// ---------------------------------------------------------------------------
// Feature
// ---------------------------------------------------------------------------

func writeTextFeature(buf *bytes.Buffer, f *Feature) {
	for _, v := range f.Values {
		switch v.Type {
		case ValueNull:
			fmt.Fprintf(buf, "value NULL\n")
		case ValueBool:
			fmt.Fprintf(buf, "value BOOL %t\n", v.Bool)
		case ValueInt:
			fmt.Fprintf(buf, "value INT %d\n", v.Int)
		case ValueFloat:
			fmt.Fprintf(buf, "value FLOAT %s\n", strconv.FormatFloat(v.Float, 'g', -1, 64))
		case ValueString:
			fmt.Fprintf(buf, "value STRING %s\n", strconv.Quote(v.Str))
		case ValueBytes:
			fmt.Fprintf(buf, "value BYTES %s\n", hex.EncodeToString(v.Bytes))
		}
	}
}

func readTextFeature(lines []string) (*Feature, error) {
	f := &Feature{}
	for _, line := range lines {
		key, val, _ := strings.Cut(line, " ")
		if key != "value" {
			return nil, fmt.Errorf("read feature: unknown line %q", line)
		}
		typ, payload, _ := strings.Cut(val, " ")
		v, err := parseTextValue(ValueType(typ), payload)
		if err != nil {
			return nil, fmt.Errorf("read feature: %w", err)
		}
		f.Values = append(f.Values, v)
	}
	return f, nil
}

func parseTextValue(typ ValueType, payload string) (Value, error) {
	switch typ {
	case ValueNull:
		return NullValue(), nil
	case ValueBool:
		b, err := strconv.ParseBool(payload)
		if err != nil {
			return Value{}, fmt.Errorf("bad bool %q: %w", payload, err)
		}
		return BoolValue(b), nil
	case ValueInt:
		i, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("bad int %q: %w", payload, err)
		}
		return IntValue(i), nil
	case ValueFloat:
		fv, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return Value{}, fmt.Errorf("bad float %q: %w", payload, err)
		}
		return FloatValue(fv), nil
	case ValueString:
		s, err := strconv.Unquote(payload)
		if err != nil {
			return Value{}, fmt.Errorf("bad string %q: %w", payload, err)
		}
		return StringValue(s), nil
	case ValueBytes:
		b, err := hex.DecodeString(payload)
		if err != nil {
			return Value{}, fmt.Errorf("bad bytes %q: %w", payload, err)
		}
		if b == nil {
			b = []byte{}
		}
		return BytesValue(b), nil
	default:
		return Value{}, fmt.Errorf("unknown value type %q", typ)
	}
}

// ---------------------------------------------------------------------------
// FeatureType
// ---------------------------------------------------------------------------

func writeTextFeatureType(buf *bytes.Buffer, ft *FeatureType) {
	for _, a := range ft.Attributes {
		fmt.Fprintf(buf, "attribute %s %s\n", strconv.Quote(a.Name), a.Type)
	}
}

func readTextFeatureType(lines []string) (*FeatureType, error) {
	ft := &FeatureType{}
	for _, line := range lines {
		key, val, _ := strings.Cut(line, " ")
		if key != "attribute" {
			return nil, fmt.Errorf("read featuretype: unknown line %q", line)
		}
		name, rest, err := unquotePrefix(val)
		if err != nil {
			return nil, fmt.Errorf("read featuretype: malformed line %q: %w", line, err)
		}
		switch ValueType(rest) {
		case ValueNull, ValueBool, ValueInt, ValueFloat, ValueString, ValueBytes:
		default:
			return nil, fmt.Errorf("read featuretype: unknown attribute type %q", rest)
		}
		ft.Attributes = append(ft.Attributes, Attribute{Name: name, Type: ValueType(rest)})
	}
	return ft, nil
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

func writeTextPerson(buf *bytes.Buffer, key string, p Person) {
	fmt.Fprintf(buf, "%s %s %s %d %d\n",
		key, strconv.Quote(p.Name), strconv.Quote(p.Email), p.Timestamp, p.TimezoneOffset)
}

func readTextPerson(val string) (Person, error) {
	name, rest, err := unquotePrefix(val)
	if err != nil {
		return Person{}, err
	}
	email, rest, err := unquotePrefix(rest)
	if err != nil {
		return Person{}, err
	}
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return Person{}, fmt.Errorf("malformed person %q", val)
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Person{}, fmt.Errorf("bad timestamp %q: %w", fields[0], err)
	}
	tz, err := strconv.Atoi(fields[1])
	if err != nil {
		return Person{}, fmt.Errorf("bad timezone offset %q: %w", fields[1], err)
	}
	return Person{Name: name, Email: email, Timestamp: ts, TimezoneOffset: tz}, nil
}

func writeTextCommit(buf *bytes.Buffer, c *Commit) {
	fmt.Fprintf(buf, "tree %s\n", hashOrDash(c.Tree))
	for _, p := range c.Parents {
		fmt.Fprintf(buf, "parent %s\n", p)
	}
	writeTextPerson(buf, "author", c.Author)
	writeTextPerson(buf, "committer", c.Committer)
	if c.Signature != "" {
		fmt.Fprintf(buf, "signature %s\n", strconv.Quote(c.Signature))
	}
	fmt.Fprintf(buf, "message %s\n", strconv.Quote(c.Message))
}

func readTextCommit(lines []string) (*Commit, error) {
	c := &Commit{}
	for _, line := range lines {
		key, val, _ := strings.Cut(line, " ")
		var err error
		switch key {
		case "tree":
			c.Tree = dashOrHash(val)
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			c.Author, err = readTextPerson(val)
		case "committer":
			c.Committer, err = readTextPerson(val)
		case "signature":
			c.Signature, err = strconv.Unquote(val)
		case "message":
			c.Message, err = strconv.Unquote(val)
		default:
			return nil, fmt.Errorf("read commit: unknown line %q", line)
		}
		if err != nil {
			return nil, fmt.Errorf("read commit: malformed line %q: %w", line, err)
		}
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Tag
// ---------------------------------------------------------------------------

func writeTextTag(buf *bytes.Buffer, t *Tag) {
	fmt.Fprintf(buf, "object %s\n", hashOrDash(t.Object))
	fmt.Fprintf(buf, "name %s\n", strconv.Quote(t.Name))
	writeTextPerson(buf, "tagger", t.Tagger)
	fmt.Fprintf(buf, "message %s\n", strconv.Quote(t.Message))
}

func readTextTag(lines []string) (*Tag, error) {
	t := &Tag{}
	for _, line := range lines {
		key, val, _ := strings.Cut(line, " ")
		var err error
		switch key {
		case "object":
			t.Object = dashOrHash(val)
		case "name":
			t.Name, err = strconv.Unquote(val)
		case "tagger":
			t.Tagger, err = readTextPerson(val)
		case "message":
			t.Message, err = strconv.Unquote(val)
		default:
			return nil, fmt.Errorf("read tag: unknown line %q", line)
		}
		if err != nil {
			return nil, fmt.Errorf("read tag: malformed line %q: %w", line, err)
		}
	}
	return t, nil
}
