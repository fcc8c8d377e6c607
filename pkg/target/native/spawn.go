package native

import "path/filepath"

// ExecSpawner launches a child process already stopped under debug control
// of the calling thread. It implements target.Spawner.
type ExecSpawner struct {
	path string
	args []string
	wd   string

	pid int
}

// NewExecSpawner prepares a spawner for the given executable and argument
// list. The child runs in wd, or the current directory if wd is empty.
func NewExecSpawner(path string, args []string, wd string) *ExecSpawner {
	return &ExecSpawner{path: path, args: args, wd: wd}
}

// Pid returns the process ID of the spawned child. Valid only after a
// successful Run.
func (s *ExecSpawner) Pid() int {
	return s.pid
}

func (s *ExecSpawner) resolvePath() (string, error) {
	return filepath.Abs(s.path)
}
