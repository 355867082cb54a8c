// Command structdb loads structure declarations, stores documents and runs
// queries from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/structdb/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
