package services

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/desertthunder/aleerpe/internal/shared"
)

// ExecSynthesizer voices utterances through an external text-to-speech program such as espeak-ng or say.
//
// The command template may use {voice} (e.g. es-ES), {lang} (e.g. es), {wpm} and {text} placeholders.
// Without a {text} placeholder the text is written to the program's stdin.
type ExecSynthesizer struct {
	mu      sync.Mutex
	name    string
	args    []string
	current *execUtterance
}

type execUtterance struct {
	cmd     *exec.Cmd
	stopped bool
}

// NewExecSynthesizer parses command and checks that its program exists.
func NewExecSynthesizer(command string) (*ExecSynthesizer, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty speech command", shared.ErrInvalidConfig)
	}

	path, err := exec.LookPath(fields[0])
	if err != nil {
		return nil, fmt.Errorf("%w: speech program %q not found: %w", shared.ErrInvalidConfig, fields[0], err)
	}

	return &ExecSynthesizer{name: path, args: fields[1:]}, nil
}

// expand substitutes placeholders in the argument template for u.
func (s *ExecSynthesizer) expand(u Utterance) (args []string, stdin bool) {
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	lang, _, _ := strings.Cut(u.Voice, "-")
	replacer := strings.NewReplacer(
		"{voice}", u.Voice,
		"{lang}", lang,
		"{wpm}", strconv.Itoa(int(175*rate)),
	)

	stdin = true
	for _, arg := range s.args {
		if strings.Contains(arg, "{text}") {
			stdin = false
			arg = strings.ReplaceAll(arg, "{text}", u.Text)
		}
		args = append(args, replacer.Replace(arg))
	}
	return args, stdin
}

// Speak starts the program for u. Its exit status decides between OnEnd and OnError.
func (s *ExecSynthesizer) Speak(u Utterance) error {
	args, stdin := s.expand(u)

	cmd := exec.Command(s.name, args...)
	configureProcess(cmd)
	if stdin {
		cmd.Stdin = strings.NewReader(u.Text)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrPlayback, err)
	}

	eu := &execUtterance{cmd: cmd}
	s.current = eu

	go func() {
		u.started()
		err := cmd.Wait()

		s.mu.Lock()
		stopped := eu.stopped
		if s.current == eu {
			s.current = nil
		}
		s.mu.Unlock()

		switch {
		case stopped:
		case err != nil:
			u.failed(fmt.Errorf("%w: %w", shared.ErrPlayback, err))
		default:
			u.ended()
		}
	}()
	return nil
}

// Stop kills the running program.
func (s *ExecSynthesizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *ExecSynthesizer) stopLocked() {
	if eu := s.current; eu != nil {
		eu.stopped = true
		if eu.cmd.Process != nil {
			_ = resumeProcess(eu.cmd.Process)
			_ = killProcess(eu.cmd.Process)
		}
		s.current = nil
	}
}

// Pause suspends the running program. Platforms without job control return [shared.ErrNotImplemented].
func (s *ExecSynthesizer) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if eu := s.current; eu != nil && eu.cmd.Process != nil {
		if err := pauseProcess(eu.cmd.Process); err != nil {
			return fmt.Errorf("failed to pause speech program: %w", err)
		}
	}
	return nil
}

// Resume continues a suspended program.
func (s *ExecSynthesizer) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if eu := s.current; eu != nil && eu.cmd.Process != nil {
		if err := resumeProcess(eu.cmd.Process); err != nil {
			return fmt.Errorf("failed to resume speech program: %w", err)
		}
	}
	return nil
}
