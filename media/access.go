package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// AccessGrant is a scoped permission to use one location. Release is
// idempotent at the call site's discretion; the converter guarantees it
// invokes Release exactly once per grant.
type AccessGrant interface {
	Release()
}

// AccessGranter acquires scoped access to media locations before any
// I/O happens on them. The UI shell hands the converter
// already-permission-granted locations; this interface is the seam
// where that grant is materialized and later released.
type AccessGranter interface {
	Grant(ctx context.Context, path string) (AccessGrant, error)
}

// FileAccess grants access to plain filesystem paths: the grant
// succeeds when the parent directory exists, and releasing is a no-op.
type FileAccess struct{}

var _ AccessGranter = FileAccess{}

func (FileAccess) Grant(_ context.Context, path string) (AccessGrant, error) {
	if path == "" {
		return nil, fmt.Errorf("the provided path is empty")
	}
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("unable to access '%s': %w", dir, err)
	}
	return noopGrant{}, nil
}

type noopGrant struct{}

func (noopGrant) Release() {}

// NoAccessControl grants access to any path unconditionally.
type NoAccessControl struct{}

var _ AccessGranter = NoAccessControl{}

func (NoAccessControl) Grant(context.Context, string) (AccessGrant, error) {
	return noopGrant{}, nil
}
