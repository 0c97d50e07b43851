package enum

import (
	"context"

	"github.com/praetorian-inc/vectorscan-go/pkg/types"
	"go.uber.org/zap"
)

// Enumerator discovers content to scan from a source.
type Enumerator interface {
	// Enumerate yields blobs from the source.
	// The callback receives blob content, its ID, and provenance information.
	Enumerate(ctx context.Context, callback func(content []byte, blobID types.BlobID, prov types.Provenance) error) error
}

// Config for enumeration.
type Config struct {
	// Root is the starting path for enumeration. A file root yields just
	// that file.
	Root string

	// IncludeHidden includes hidden files/directories (starting with .).
	IncludeHidden bool

	// MaxFileSize is the maximum file size to process (0 = no limit).
	MaxFileSize int64

	// FollowSymlinks follows symbolic links.
	FollowSymlinks bool

	// IncludeBinary yields files that look binary (NUL in the first 8KB).
	IncludeBinary bool

	// Workers is the number of parallel readers (0 = NumCPU).
	Workers int

	Logger *zap.Logger
}
