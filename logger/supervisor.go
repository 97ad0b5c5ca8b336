package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Supervisor runs a child process and forwards its JSON log lines from stderr.
// Once a line starting with "panic" shows up, the rest of the output is kept and
// reported as a single fatal record when the child exits.
type Supervisor struct {
	out      io.Writer
	bcLogger zerolog.Logger
}

func NewSupervisor(out io.Writer) *Supervisor {
	return &Supervisor{out: out, bcLogger: NewLogger("Supervisor")}
}

// Run returns the exit code of the child.
func (s *Supervisor) Run(executable string, arg ...string) (int, error) {
	cmd := exec.Command(executable, arg...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 1, fmt.Errorf("could not create pipe for logs: %w", err)
	}
	if err = cmd.Start(); err != nil {
		return 1, fmt.Errorf("could not launch %s: %w", executable, err)
	}

	var panicLogs strings.Builder
	foundPanic := false
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		foundPanic = s.handleLogLine(scanner.Bytes(), foundPanic, &panicLogs)
	}
	if err = scanner.Err(); err != nil {
		s.bcLogger.Err(err).Msg("Error scanning stderr of supervised process")
	}

	exitCode := 0
	var exitErr *exec.ExitError
	if err = cmd.Wait(); errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		return 1, err
	}

	if exitCode == 0 {
		s.bcLogger.Info().Msg("Exited with code 0")
		return 0, nil
	}
	s.bcLogger.WithLevel(zerolog.FatalLevel).
		Err(errors.New(panicLogs.String())).
		Msgf("Exited with code: %d", exitCode)
	return exitCode, nil
}

func (s *Supervisor) handleLogLine(line []byte, foundPanic bool, builder *strings.Builder) bool {
	text := string(line)
	if !foundPanic && strings.HasPrefix(text, "panic") {
		foundPanic = true
	}
	switch {
	case len(line) == 0:
	case foundPanic:
		builder.WriteString(text)
		builder.WriteByte('\n')
	case isJSON(line):
		fmt.Fprintln(s.out, text)
	default:
		s.bcLogger.Error().Msgf("Got log line that is not JSON formatted: '%s'", text)
	}
	return foundPanic
}

func isJSON(b []byte) bool {
	var js json.RawMessage
	return json.Unmarshal(b, &js) == nil && js != nil
}
