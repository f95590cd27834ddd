package storage

import "context"

type ArchiveResult struct {
	Key      string
	Location string
	ETag     string
}

// SnapshotArchiver stores immutable finalization artifacts (snapshot JSON)
// in object storage. Archiving is best effort: a nil archiver disables it.
type SnapshotArchiver interface {
	Archive(ctx context.Context, key string, contentType string, data []byte) (*ArchiveResult, error)

	GetPublicURL(key string) string
}
