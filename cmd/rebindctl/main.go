package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/centraunit/rebind"
	"github.com/centraunit/rebind/config"
	"github.com/centraunit/rebind/internal/cli"
	"github.com/centraunit/rebind/internal/logging"
	"github.com/centraunit/rebind/memregistry"
	"go.uber.org/zap"
)

// main is the entrypoint for rebindctl.
func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
// Results go to outW, logs to stderr.
func run(outW io.Writer, args []string) error {
	opts, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	cfg, err := config.Load(opts.ConfigPaths...)
	if err != nil {
		return &cli.ExitError{Code: 1, Message: err.Error()}
	}

	level, format := cfg.LogLevel, cfg.LogFormat
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		format = opts.LogFormat
	}
	logger, err := logging.New(level, format, os.Stderr)
	if err != nil {
		return &cli.ExitError{Code: 2, Message: err.Error()}
	}
	defer func() { _ = logger.Sync() }()

	reg := memregistry.New(memregistry.WithLogger(logger))
	if err := cfg.Populate(reg); err != nil {
		return &cli.ExitError{Code: 1, Message: err.Error()}
	}

	scopeName := opts.Scope
	if scopeName == "" {
		scopeName = cfg.DefaultScope
	}
	if scopeName == "" {
		return &cli.ExitError{Code: 2, Message: "no scope: pass -scope or set default_scope in the topology"}
	}
	if !slices.Contains(reg.Scopes(), scopeName) {
		return &cli.ExitError{Code: 1, Message: fmt.Sprintf("scope %q is not declared in the topology", scopeName)}
	}
	scope := reg.Scope(scopeName)

	supplier := rebind.NewSupplier(reg,
		rebind.WithLogger(logger),
		rebind.WithDefaultScope(scope),
	)
	defer func() {
		if err := supplier.Close(); err != nil {
			logger.Warn("Failed to close supplier.", zap.Error(err))
		}
	}()

	shape := rebind.SingleOf(opts.Type)
	if opts.All {
		shape = rebind.CollectionOf(opts.Type)
	}
	p := &printer{supplier: supplier, out: outW, shape: shape, track: len(opts.Withdraw) > 0}

	ctx := rebind.ContextWithLogger(context.Background(), logger)
	if err := p.print(ctx); err != nil {
		return err
	}

	for _, name := range opts.Withdraw {
		svc, ok := reg.Lookup(scope, name)
		if !ok {
			return &cli.ExitError{Code: 1, Message: fmt.Sprintf("service %q is not registered in scope %q", name, scopeName)}
		}
		fmt.Fprintf(outW, "withdrawing %s\n", name)
		if err := svc.Unregister(); err != nil {
			return err
		}
	}
	return nil
}
