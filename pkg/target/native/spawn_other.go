//go:build !windows

package native

import "github.com/go-dstub/dstub/pkg/target"

// Run is not available without a native backend.
func (s *ExecSpawner) Run() error {
	return target.ErrNativeBackendUnavailable
}
