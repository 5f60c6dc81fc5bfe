//go:build unix

package services

import (
	"os"
	"os/exec"
	"syscall"
)

// configureProcess starts the speech program in its own process group so wrapper scripts are paused and killed
// together with the programs they spawn.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func pauseProcess(p *os.Process) error  { return syscall.Kill(-p.Pid, syscall.SIGSTOP) }
func resumeProcess(p *os.Process) error { return syscall.Kill(-p.Pid, syscall.SIGCONT) }
func killProcess(p *os.Process) error   { return syscall.Kill(-p.Pid, syscall.SIGKILL) }
