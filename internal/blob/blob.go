// Package blob re-exports the core blob abstractions and selects a backend
// from environment configuration.
package blob

import (
	"context"
	"fmt"
	"os"

	"exfolab/internal/blob/core"
	fsstore "exfolab/internal/infra/blob/fs"
	memorystore "exfolab/internal/infra/blob/memory"
	s3store "exfolab/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

// ErrUnsupported indicates an operation isn't supported by a driver.
var ErrUnsupported = core.ErrUnsupported

// NewMemory returns an in-memory blob store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// NewFilesystem returns a filesystem blob store rooted at root.
func NewFilesystem(root string) (Store, error) { return fsstore.New(root) }

// Open selects a blob Store implementation using environment variables.
//
//	EXFOLAB_BLOB_DRIVER: fs|s3|memory (default fs)
//	EXFOLAB_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("EXFOLAB_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("EXFOLAB_BLOB_FS_ROOT"))
	case DriverS3:
		return s3store.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
