package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tokendrip/internal/app/bootstrap"
	"tokendrip/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	root := cli.NewRootCommand(func(ctx context.Context) (cli.App, error) {
		return bootstrap.BuildCLI(ctx)
	})
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
