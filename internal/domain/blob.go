package domain

import (
	"encoding/json"
	"fmt"
)

// Blob is a serialized record stored under a single key.
type Blob struct {
	ID   BlobID
	Body []byte
}

// NewBlob creates a new Blob with the given ID and content.
func NewBlob(id BlobID, body []byte) *Blob {
	return &Blob{
		ID:   id,
		Body: body,
	}
}

// NewJSONBlob encodes v as JSON and wraps it in a Blob.
func NewJSONBlob(id BlobID, v any) (*Blob, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", id, err)
	}

	return NewBlob(id, body), nil
}

// Size returns the size of the blob's content in bytes.
func (blob *Blob) Size() int64 {
	return int64(len(blob.Body))
}

// DecodeJSON unmarshals the blob's content into v.
func (blob *Blob) DecodeJSON(v any) error {
	if err := json.Unmarshal(blob.Body, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", blob.ID, err)
	}

	return nil
}
