//go:build !unix

package services

import (
	"os"
	"os/exec"

	"github.com/desertthunder/aleerpe/internal/shared"
)

func configureProcess(*exec.Cmd) {}

func pauseProcess(*os.Process) error  { return shared.ErrNotImplemented }
func resumeProcess(*os.Process) error { return shared.ErrNotImplemented }
func killProcess(p *os.Process) error { return p.Kill() }
