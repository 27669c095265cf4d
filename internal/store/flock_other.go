//go:build !unix

package store

import (
	"context"
	"sync"
)

// processLock stands in for flock where it is unavailable; it only serializes
// writers within this process
var processLock sync.Mutex

func lockFile(ctx context.Context, path string) (func(), error) {
	processLock.Lock()
	return processLock.Unlock, nil
}
