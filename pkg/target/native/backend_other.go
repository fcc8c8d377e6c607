//go:build !windows

package native

import "github.com/go-dstub/dstub/pkg/target"

// The Windows backend is the only native backend compiled in at the moment.
// On other hosts the controller state machine is still available for use
// with a caller-supplied DebugAPI, but Create and Attach have no production
// backend to bind to.
func defaultBackend() (DebugAPI, target.Platform, error) {
	return nil, nil, target.ErrNativeBackendUnavailable
}
