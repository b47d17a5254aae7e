package execx

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
)

// Result captures one external command invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Event is one line emitted by a running command. Stderr distinguishes
// diagnostic lines from payload lines.
type Event struct {
	Line   string
	Stderr bool
}

// Runner abstracts subordinate process execution so stage implementations
// can parse tool-specific output formats without the orchestrator knowing
// which tool ran, and so tests can fake the tools entirely.
type Runner interface {
	// Run executes the command to completion and returns its captured output.
	Run(ctx context.Context, name string, args ...string) (Result, error)

	// Stream executes the command, invoking onEvent for every line of
	// stdout and stderr as it arrives. Output is still captured in the
	// returned Result.
	Stream(ctx context.Context, onEvent func(Event), name string, args ...string) (Result, error)
}

// OSRunner executes commands via os/exec. The zero value is ready to use.
type OSRunner struct{}

func (r *OSRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	res.ExitCode = exitCode(err)
	if err != nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return res, err
}

func (r *OSRunner) Stream(ctx context.Context, onEvent func(Event), name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{ExitCode: -1}, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Result{ExitCode: -1}, err
	}

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, err
	}

	var stdout, stderr strings.Builder
	var mu sync.Mutex
	emit := func(ev Event) {
		if onEvent == nil {
			return
		}
		mu.Lock()
		onEvent(ev)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sc := bufio.NewScanner(stdoutPipe)
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for sc.Scan() {
			line := sc.Text()
			stdout.WriteString(line)
			stdout.WriteByte('\n')
			emit(Event{Line: line})
		}
	}()
	go func() {
		defer wg.Done()
		sc := bufio.NewScanner(stderrPipe)
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for sc.Scan() {
			line := sc.Text()
			stderr.WriteString(line)
			stderr.WriteByte('\n')
			emit(Event{Line: line, Stderr: true})
		}
	}()

	wg.Wait()
	waitErr := cmd.Wait()

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	res.ExitCode = exitCode(waitErr)
	if waitErr != nil && ctx.Err() != nil {
		waitErr = ctx.Err()
	}
	return res, waitErr
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
