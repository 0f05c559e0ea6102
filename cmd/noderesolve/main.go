package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ben-ranford/noderesolve/internal/app"
	"github.com/ben-ranford/noderesolve/internal/cli"
)

var exitFunc = os.Exit

func run(ctx context.Context, args []string, in io.Reader, out io.Writer, errOut io.Writer) int {
	runner := app.New(errOut, in)
	commandLine := cli.New(runner, out, errOut)
	return commandLine.Run(ctx, args)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}
