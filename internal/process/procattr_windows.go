//go:build windows

package process

import "os/exec"

// Windows has no process groups in the unix sense; descendants are reached
// through gopsutil alone.
func setGroup(cmd *exec.Cmd) {}

func killGroup(pid int) error {
	return nil
}

func isNoSuchProcess(err error) bool {
	return false
}
