package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ben-ranford/noderesolve/internal/app"
)

const (
	exitOK         = 0
	exitError      = 1
	exitUsage      = 2
	exitUnresolved = 3
)

type Runner interface {
	Execute(ctx context.Context, req app.Request) (string, error)
}

type CLI struct {
	Runner Runner
	Out    io.Writer
	Err    io.Writer
}

func New(runner Runner, out io.Writer, errOut io.Writer) *CLI {
	return &CLI{
		Runner: runner,
		Out:    out,
		Err:    errOut,
	}
}

func (c *CLI) Run(ctx context.Context, args []string) int {
	req, err := ParseArgs(args)
	if err != nil {
		if errors.Is(err, ErrHelpRequested) {
			if _, writeErr := fmt.Fprint(c.Out, Usage()); writeErr != nil {
				return exitError
			}
			return exitOK
		}
		if _, writeErr := fmt.Fprintf(c.Err, "error: %v\n\n", err); writeErr != nil {
			return exitError
		}
		if _, writeErr := fmt.Fprint(c.Err, Usage()); writeErr != nil {
			return exitError
		}
		return exitUsage
	}

	output, runErr := c.Runner.Execute(ctx, req)
	if output != "" {
		if !strings.HasSuffix(output, "\n") {
			output += "\n"
		}
		if _, writeErr := fmt.Fprint(c.Out, output); writeErr != nil {
			return exitError
		}
	}

	if runErr != nil {
		_, _ = fmt.Fprintln(c.Err, runErr.Error())
		if errors.Is(runErr, app.ErrUnresolved) {
			return exitUnresolved
		}
		return exitError
	}

	return exitOK
}
