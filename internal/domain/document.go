package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Document is the read-only document handle shared by all render tasks of a request.
type Document struct {
	data []byte

	digestOnce sync.Once
	digest     string
}

// NewDocument wraps raw document bytes. The caller must not modify data afterwards.
func NewDocument(data []byte) *Document {
	return &Document{data: data}
}

// Bytes returns the raw document. Callers must treat it as read-only.
func (d *Document) Bytes() []byte { return d.data }

// Size is the document length in bytes.
func (d *Document) Size() int { return len(d.data) }

// Digest is the hex SHA-256 of the document, computed once.
func (d *Document) Digest() string {
	d.digestOnce.Do(func() {
		sum := sha256.Sum256(d.data)
		d.digest = hex.EncodeToString(sum[:])
	})
	return d.digest
}
