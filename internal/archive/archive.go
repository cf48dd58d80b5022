// Package archive is the entry point to snapshot archive storage. It re-exports
// the core abstractions and is the only package allowed to import the infra
// backends; everything else depends on archive.Store.
package archive

import (
	"context"
	"fmt"
	"os"

	"dddcore/internal/archive/core"
	fsstore "dddcore/internal/infra/archive/fs"
	memorystore "dddcore/internal/infra/archive/memory"
	s3store "dddcore/internal/infra/archive/s3"
)

type (
	// Store aliases core.Store.
	Store = core.Store
	// Info aliases core.Info.
	Info = core.Info
	// PutOptions aliases core.PutOptions.
	PutOptions = core.PutOptions
	// Driver aliases core.Driver.
	Driver = core.Driver
	// S3Config aliases the S3 backend configuration.
	S3Config = s3store.Config
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = core.ErrNotFound
	// ErrExists is returned when Put targets an existing key.
	ErrExists = core.ErrExists
)

// Open selects a Store implementation using environment variables.
//
//	DDDCORE_ARCHIVE_DRIVER: fs|s3|memory (default fs)
//	DDDCORE_ARCHIVE_FS_ROOT: directory root when driver=fs (default ./archive)
//	DDDCORE_ARCHIVE_S3_*: see NewS3
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("DDDCORE_ARCHIVE_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("DDDCORE_ARCHIVE_FS_ROOT"))
	case DriverS3:
		store, err := s3store.OpenFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", driver)
	}
}

// NewMemory returns an in-memory Store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// NewFilesystem returns a Store rooted at root.
func NewFilesystem(root string) (Store, error) {
	store, err := fsstore.New(root)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewS3 constructs an S3-backed Store from cfg.
//
//	DDDCORE_ARCHIVE_S3_BUCKET (required), DDDCORE_ARCHIVE_S3_REGION,
//	DDDCORE_ARCHIVE_S3_ENDPOINT and DDDCORE_ARCHIVE_S3_PATH_STYLE feed the
//	same configuration when the driver is selected through Open.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	store, err := s3store.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMockS3ForTests exposes the in-memory S3 mock for cross-package tests.
func NewMockS3ForTests() Store { return s3store.NewMockForTests() }
