package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/sarchlab/powerlock/config"
	"github.com/sarchlab/powerlock/monitoring"
	"github.com/sarchlab/powerlock/simulation"
)

var (
	servePort int
	serveOpen bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the configuration against the wall clock with a monitor.",
	Long: `Run the configuration against the wall clock and serve the ` +
		`monitoring page, until run_for has passed or pmsim is interrupted.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !cmd.Flags().Changed("port") {
			servePort = opts.env.Port
		}

		f, err := loadConfig()
		if err != nil {
			return err
		}

		log := newLogger()

		s, err := simulation.MakeBuilder().
			WithConfigFile(f).
			WithRealTime().
			WithRecordPath(opts.recordPath).
			WithPlatform(simulation.NewLogPlatform(log)).
			WithLogger(log).
			Build()
		if err != nil {
			return err
		}

		monitor := monitoring.NewMonitor().WithLogger(log)
		monitor.RegisterEngine(s.GetEngine())
		monitor.RegisterDispatcher(s.GetDispatcher())
		for _, c := range s.Instances() {
			monitor.RegisterInstance(c)
		}

		if f.RunFor > 0 {
			monitor.CreateProgressBar("run", time.Duration(f.RunFor))
		}

		if servePort != 0 {
			monitor.WithPortNumber(servePort)
		}

		url, err := monitor.StartServer()
		if err != nil {
			return err
		}

		if serveOpen {
			if err := browser.OpenURL(url); err != nil {
				log.Error(err, "cannot open browser", "url", url)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		traceEvents(s)
		s.Start()

		if err := s.Run(ctx); err != nil {
			return err
		}

		report(os.Stdout, s)

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second)
		defer cancel()

		if err := monitor.Shutdown(shutdownCtx); err != nil {
			return err
		}

		return s.Terminate()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0,
		"monitor port, random if unset ("+config.EnvPort+")")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false,
		"open the monitor in a browser")
	rootCmd.AddCommand(serveCmd)
}
