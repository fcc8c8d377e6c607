//go:build windows

package native

import (
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

// Run starts the child with the debug-only-this-process creation flag, so
// the first debug event the OS delivers to the caller is the child's
// process-creation event.
func (s *ExecSpawner) Run() error {
	argv0, err := s.resolvePath()
	if err != nil {
		return err
	}

	attr := &os.ProcAttr{
		Dir:   s.wd,
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
		Sys: &syscall.SysProcAttr{
			CreationFlags: windows.DEBUG_ONLY_THIS_PROCESS,
		},
	}
	p, err := os.StartProcess(argv0, append([]string{argv0}, s.args...), attr)
	if err != nil {
		return err
	}
	defer p.Release()

	s.pid = p.Pid
	return nil
}
