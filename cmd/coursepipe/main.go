package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"coursepipe/internal/services"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, cmdCtx := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	cmdCtx.close()
	if err == nil {
		return services.ExitOK
	}
	if ctx.Err() == nil {
		cmdCtx.reportError(stderr, err)
	}
	return services.ExitCode(err)
}
