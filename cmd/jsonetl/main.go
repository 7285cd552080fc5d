// Command jsonetl scans folders of JSON, JSON Lines and tagged wire-format
// record files, infers one relational schema across them and loads the
// records into a SQL table.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// register every storage backend; storage.kind selects one.
	_ "jsonetl/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
