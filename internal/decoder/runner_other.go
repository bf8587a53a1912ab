//go:build !unix

package decoder

import "os/exec"

func configureProcessGroup(cmd *exec.Cmd) {}
