package domain

// BlobID is the storage key of a blob, e.g. "lb_accounts" or
// "clients/<id>/lb_current". Segments are separated by "/".
type BlobID string

// String returns the string representation of the BlobID.
func (id BlobID) String() string {
	return string(id)
}
