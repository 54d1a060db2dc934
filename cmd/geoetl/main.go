// Command geoetl validates and runs YAML cleaning pipelines over tabular and
// geospatial inputs.
//
//	geoetl validate -c pipeline.yaml
//	geoetl run -c pipeline.yaml --input input=villages.csv --encoding big5 \
//	    --crs EPSG:3826 --sink sqlite --dsn out.db
//	geoetl actions
//	geoetl sample https://example.org/villages.csv
//
// Every flag can also be set from the environment as GEOETL_<FLAG>, with
// dashes turned into underscores (GEOETL_LOG_LEVEL=debug).
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	// register all sink backends with the storage factory.
	_ "geoetl/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line in args and returns the process exit code.
// Telemetry is flushed after the command finishes, whether it failed or not.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintf(stderr, "geoetl: %v\n", err)
		return 1
	}
	return 0
}
