package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Names of the environment variables that set command line defaults.
const (
	EnvConfig    = "PMSIM_CONFIG"
	EnvPort      = "PMSIM_PORT"
	EnvRecord    = "PMSIM_RECORD"
	EnvVerbosity = "PMSIM_VERBOSITY"
)

// Env holds the command line defaults taken from the environment.
type Env struct {
	ConfigPath string
	Port       int
	RecordPath string
	Verbosity  int
}

// LoadEnv loads the given .env files, or ".env" if none is given, into the
// process environment and reads the defaults. Missing files are skipped.
// Variables that are already set are not overridden.
func LoadEnv(files ...string) (Env, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		err := godotenv.Load(file)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, err
		}
	}

	env := Env{
		ConfigPath: os.Getenv(EnvConfig),
		RecordPath: os.Getenv(EnvRecord),
	}

	var err error

	if env.Port, err = intVar(EnvPort); err != nil {
		return Env{}, err
	}

	if env.Verbosity, err = intVar(EnvVerbosity); err != nil {
		return Env{}, err
	}

	return env, nil
}

func intVar(name string) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}

	return v, nil
}
