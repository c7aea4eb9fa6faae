// Riptide trace decoder - pretty-prints CBOR scheduler trace dumps written
// by a trace.Recorder.
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/chazu/riptide/trace"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: riptide-trace <dump.cbor>\n\n")
		fmt.Fprintf(os.Stderr, "Decodes and prints a riptide scheduler trace dump.\n")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	dump, err := trace.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("trace v%d, recorded %s, %d events\n\n",
		dump.Version, dump.CreatedAt.Format("2006-01-02 15:04:05"), len(dump.Events))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tDETAIL\tJOBS\tTASKS")
	for _, ev := range dump.Events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			ev.At.Format("15:04:05.000000"), ev.Kind, ev.Detail, ev.Jobs, ev.Tasks)
	}
	w.Flush()
}
