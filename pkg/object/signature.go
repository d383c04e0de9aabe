package object

// CommitSigningPayload returns the canonical bytes signed for a commit. The
// payload intentionally excludes the signature field itself.
func CommitSigningPayload(c *Commit) []byte {
	if c == nil {
		return nil
	}
	unsigned := *c
	unsigned.Signature = ""
	return canonicalEncode(&unsigned)
}
