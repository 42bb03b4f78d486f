// Package cli parses the rebindctl command line.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Config holds the parsed command line. Empty log settings defer to the topology file.
type Config struct {
	ConfigPaths []string
	Type        string
	Scope       string
	All         bool
	Withdraw    []string
	LogLevel    string
	LogFormat   string
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Config, bool, error) {
	flagSet := flag.NewFlagSet("rebindctl", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
rebindctl - resolve services from a topology and watch them rebind.

Usage:
  rebindctl -config PATH -type TYPE [options] [PATH...]

Arguments:
  PATH
    Additional .hcl files or directories merged into the topology.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to a topology .hcl file or directory.")
	typeFlag := flagSet.String("type", "", "Fully qualified type name to resolve.")
	scopeFlag := flagSet.String("scope", "", "Scope to resolve in. Defaults to the topology's default_scope.")
	allFlag := flagSet.Bool("all", false, "Resolve every matching service instead of the top-ranked one.")
	withdrawFlag := flagSet.String("withdraw", "", "Comma-separated implementations to unregister one by one while tracking.")
	logLevelFlag := flagSet.String("log-level", "", "Logging level: 'debug', 'info', 'warn', 'error'.")
	logFormatFlag := flagSet.String("log-format", "", "Log output format: 'console' or 'json'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	var paths []string
	if *configFlag != "" {
		paths = append(paths, *configFlag)
	}
	paths = append(paths, flagSet.Args()...)

	if len(paths) == 0 && *typeFlag == "" {
		flagSet.Usage()
		return nil, true, nil
	}
	if len(paths) == 0 {
		return nil, false, &ExitError{Code: 2, Message: "missing -config: a topology file or directory is required"}
	}
	if *typeFlag == "" {
		return nil, false, &ExitError{Code: 2, Message: "missing -type: a type name to resolve is required"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "" && logFormat != "console" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'console' or 'json'"}
	}

	var withdraw []string
	for _, name := range strings.Split(*withdrawFlag, ",") {
		if name = strings.TrimSpace(name); name != "" {
			withdraw = append(withdraw, name)
		}
	}

	return &Config{
		ConfigPaths: paths,
		Type:        *typeFlag,
		Scope:       *scopeFlag,
		All:         *allFlag,
		Withdraw:    withdraw,
		LogLevel:    logLevel,
		LogFormat:   logFormat,
	}, false, nil
}
