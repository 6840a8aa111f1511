package process

import (
	"errors"
	"os"

	gops "github.com/shirou/gopsutil/v4/process"
)

// terminate kills the process and every descendant it can find. Players and
// daemons both fork helpers, and a helper left behind keeps ports or files busy.
func terminate(h *Handle) []error {
	var errs []error
	pid := h.Pid()

	if h.Running() {
		root, err := gops.NewProcess(int32(pid))
		if err != nil {
			errs = append(errs, err)
		} else {
			for _, child := range descendants(root) {
				if err := child.Kill(); err != nil {
					errs = append(errs, err)
				}
			}
			if err := root.Kill(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	// Children of an already exited root have been reparented, so only the
	// process group still reaches them.
	if err := killGroup(pid); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// descendants returns all transitive children, parents before children.
func descendants(root *gops.Process) []*gops.Process {
	var out []*gops.Process
	queue := []*gops.Process{root}
	seen := map[int32]bool{root.Pid: true}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		children, err := p.Children()
		if err != nil {
			continue
		}
		for _, c := range children {
			if seen[c.Pid] {
				continue
			}
			seen[c.Pid] = true
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}

func isGone(err error) bool {
	return errors.Is(err, os.ErrProcessDone) ||
		errors.Is(err, gops.ErrorProcessNotRunning) ||
		errors.Is(err, gops.ErrorNoChildren) ||
		isNoSuchProcess(err)
}
