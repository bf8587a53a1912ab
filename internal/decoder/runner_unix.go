//go:build unix

package decoder

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureProcessGroup starts the child in its own process group and makes
// cancellation kill the group, so helpers ffmpeg spawns die with it.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		if err != nil && !errors.Is(err, unix.ESRCH) {
			return err
		}
		return nil
	}
}
