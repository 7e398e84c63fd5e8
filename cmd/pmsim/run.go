package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/powerlock/simulation"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configuration on a virtual timeline.",
	Long: `Run the configuration on a virtual timeline until run_for has ` +
		`passed, or until no lock is left to expire, and print a report.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f, err := loadConfig()
		if err != nil {
			return err
		}

		log := newLogger()

		s, err := simulation.MakeBuilder().
			WithConfigFile(f).
			WithRecordPath(opts.recordPath).
			WithPlatform(simulation.NewLogPlatform(log)).
			WithLogger(log).
			Build()
		if err != nil {
			return err
		}

		traceEvents(s)
		s.Start()

		if err := s.Run(cmd.Context()); err != nil {
			return err
		}

		report(os.Stdout, s)

		return s.Terminate()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func report(w io.Writer, s *simulation.Simulation) {
	fmt.Fprintf(w, "Finished at %s\n", s.GetEngine().Now())

	for _, c := range s.Instances() {
		fmt.Fprintf(w, "\n== %s ==\n", c.Name())
		c.DumpConfig(w)
		c.DumpLocks(w)
	}
}
