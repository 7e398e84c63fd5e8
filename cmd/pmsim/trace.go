package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/powerlock/datarecording"
	"github.com/sarchlab/powerlock/tracing"
)

var traceWhere string

var traceCmd = &cobra.Command{
	Use:   "trace [recording]",
	Short: "Print a trace recorded by run or serve.",
	Long: `Print the lock and sleep gate tasks, and the sleep edges, of a ` +
		`trace recording. The recording defaults to --record, given ` +
		`without the .sqlite3 extension.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := opts.recordPath
		if len(args) > 0 {
			path = args[0]
		}

		if path == "" {
			return fmt.Errorf("no recording, use --record or an argument")
		}

		return printTrace(cmd.Context(), os.Stdout, path+".sqlite3")
	},
}

func init() {
	traceCmd.Flags().StringVar(&traceWhere, "where", "",
		"only print the trace of this instance")
	rootCmd.AddCommand(traceCmd)
}

func printTrace(ctx context.Context, w io.Writer, file string) error {
	if _, err := os.Stat(file); err != nil {
		return err
	}

	reader, err := datarecording.NewReader(file)
	if err != nil {
		return err
	}

	r := tracing.NewDBTraceReader(reader)
	defer r.Close()

	tasks, err := r.Tasks(ctx, traceWhere)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%-12s %-12s %-10s %-10s %-8s %s\n",
		"Start", "End", "Kind", "What", "Where", "Detail")

	for _, t := range tasks {
		fmt.Fprintf(w, "%-12s %-12s %-10s %-10s %-8s %s\n",
			t.StartTime, t.EndTime, t.Kind, t.What, t.Where, t.Detail)
	}

	milestones, err := r.Milestones(ctx, traceWhere)
	if err != nil {
		return err
	}

	fmt.Fprintln(w)

	for _, m := range milestones {
		fmt.Fprintf(w, "%-12s %-16s %-8s count=%d\n",
			m.Time, m.Kind, m.Where, m.Count)
	}

	return nil
}
