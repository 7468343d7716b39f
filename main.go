package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hyprrec/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Further signals stay captured until teardown has finished.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(&cli.Dependencies{Sessions: NewApp(os.Stdout)})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
