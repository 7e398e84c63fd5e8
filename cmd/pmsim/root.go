package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/powerlock/config"
	"github.com/sarchlab/powerlock/simulation"
	"github.com/sarchlab/powerlock/timing"
)

type rootOptions struct {
	envFile    string
	configPath string
	recordPath string
	verbosity  int

	env config.Env
}

var opts rootOptions

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pmsim",
	Short: "pmsim runs power management lock coordinators.",
	Long: `pmsim runs power management lock coordinators described by a ` +
		`YAML file. Defaults for the flags can be given in a .env file ` +
		`with the PMSIM_* variables.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadDefaults,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.envFile, "env", ".env",
		"file to load default settings from")
	flags.StringVarP(&opts.configPath, "config", "c", "",
		"configuration file ("+config.EnvConfig+")")
	flags.StringVar(&opts.recordPath, "record", "",
		"path of the trace recording, without extension ("+
			config.EnvRecord+")")
	flags.IntVarP(&opts.verbosity, "verbosity", "v", 0,
		"log verbosity ("+config.EnvVerbosity+")")
}

func loadDefaults(cmd *cobra.Command, _ []string) error {
	env, err := config.LoadEnv(opts.envFile)
	if err != nil {
		return err
	}

	opts.env = env
	flags := cmd.Flags()

	if !flags.Changed("config") {
		opts.configPath = env.ConfigPath
	}

	if !flags.Changed("record") {
		opts.recordPath = env.RecordPath
	}

	if !flags.Changed("verbosity") {
		opts.verbosity = env.Verbosity
	}

	return nil
}

// loadConfig loads the configuration file that the flags or the .env file
// point to.
func loadConfig() (*config.File, error) {
	if opts.configPath == "" {
		return nil, fmt.Errorf("no configuration file, use --config or %s",
			config.EnvConfig)
	}

	return config.Load(opts.configPath)
}

func newLogger() logr.Logger {
	stdr.SetVerbosity(opts.verbosity)

	return stdr.New(log.New(os.Stderr, "", log.LstdFlags))
}

// traceEvents prints every event the engine handles from verbosity 2 on.
func traceEvents(s *simulation.Simulation) {
	if opts.verbosity < 2 {
		return
	}

	s.GetEngine().AcceptHook(timing.NewEventLogger(
		log.New(os.Stderr, "event ", log.Lmicroseconds)))
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
