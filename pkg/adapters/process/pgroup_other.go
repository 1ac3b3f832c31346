//go:build !unix

package process

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

// Without process groups there is no graceful signal; terminate kills.
func terminate(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func kill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
