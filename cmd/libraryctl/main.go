// Command libraryctl queries and edits a library-management API through the
// query cache.
//
// Configuration comes from LIBRARY_* environment variables (see package
// config); the --api-url, --token and --log-level flags override them.
// Results are written to stdout as JSON, logs to stderr.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonwraymond/querycache/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdout, os.Stderr, config.Load)
	if err := a.run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "libraryctl:", err)
		stop()
		os.Exit(1)
	}
}
