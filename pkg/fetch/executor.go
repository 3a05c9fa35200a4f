package fetch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// stderrLines bounds how much tool stderr is kept for error reporting
const stderrLines = 20

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		tail []string
	)

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			forward(scanner.Text())
		}
	}

	wg.Add(2)
	go scan(stdout, func(line string) {
		if onOutput != nil {
			onOutput(line)
		}
	})
	go scan(stderr, func(line string) {
		mu.Lock()
		tail = append(tail, line)
		if len(tail) > stderrLines {
			tail = tail[1:]
		}
		mu.Unlock()
		if onOutput != nil {
			onOutput(line)
		}
	})

	wg.Wait()
	err = cmd.Wait()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ToolError{ExitCode: exitErr.ExitCode(), Stderr: strings.Join(tail, "\n")}
	}
	return fmt.Errorf("wait command: %w", err)
}
