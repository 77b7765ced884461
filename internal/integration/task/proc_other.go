//go:build !unix

package task

import osexec "os/exec"

func setProcessGroup(*osexec.Cmd) {}
