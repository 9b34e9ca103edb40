package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/HARD953/distribut-sub001/auth"
	"github.com/HARD953/distribut-sub001/internal/config"
	"github.com/HARD953/distribut-sub001/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs one subcommand and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}
	cmd, ok := findCommand(args[0])
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printUsage(stderr)
		return 2
	}

	a, err := newApp(config.New(), stdout)
	if err != nil {
		fmt.Fprintf(stderr, "error: %s\n", err)
		return 1
	}
	defer a.Close()

	if err := cmd.run(ctx, a, args[1:]); err != nil {
		switch {
		case errors.Is(err, errUsage):
			fmt.Fprintf(stderr, "usage: console %s\n", cmd.usage)
			return 2
		case errors.Is(err, auth.ErrNotAuthenticated):
			fmt.Fprintln(stderr, "not logged in, run `console login -u USERNAME` first")
			return 1
		default:
			fmt.Fprintf(stderr, "error: %s\n", err)
			return 1
		}
	}
	return 0
}
