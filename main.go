package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/viant/afs"

	"ringlog/bootstrap"
	"ringlog/internal/platform/pool"
)

// inspectCmd recovers data_pool.c's debug-only dpool_print as a
// one-shot CLI inspection of a pool directory, independent of a running
// node.
var inspectCmd = flag.String("inspect", "", "print a summary of the pool directory at this path and exit")

func main() {
	flag.Parse()

	if *inspectCmd != "" {
		if err := runInspect(*inspectCmd); err != nil {
			fmt.Fprintln(os.Stderr, "inspect:", err)
			os.Exit(1)
		}
		return
	}

	if _, err := bootstrap.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "ringlog:", err)
		os.Exit(1)
	}
}

func runInspect(dir string) error {
	p := pool.New(afs.New(), dir)
	infos, err := p.Inspect(context.Background())
	if err != nil {
		return err
	}

	for _, fi := range infos {
		fmt.Printf("%s\t%d records\tfirst=%s\tlast=%s\n", fi.Name, fi.RecordCount, fi.FirstName, fi.LastName)
	}
	return nil
}
