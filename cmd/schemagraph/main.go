// Command schemagraph validates schema documents and checks instance
// snapshots against them.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/bayleafwalker/schemagraph/engine"
	"github.com/bayleafwalker/schemagraph/internal/manifest"
	"github.com/bayleafwalker/schemagraph/schema"
)

const (
	exitOK            = 0
	exitUsage         = 1
	exitSchemaInvalid = 2
	exitImportFailed  = 3
	exitIO            = 4
)

// exitError carries the process exit code of a failure.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUsage
}

// app is the state shared by every subcommand.
type app struct {
	out, errOut io.Writer

	configPath  string
	metricsFile string
	zapOpts     zap.Options

	log      logr.Logger
	registry *prometheus.Registry
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut, zapOpts: zap.Options{Development: true}}

	root := &cobra.Command{
		Use:           "schemagraph",
		Short:         "Validate schemas and instance snapshots",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.log = zap.New(zap.UseFlagOptions(&a.zapOpts), zap.WriteTo(a.errOut)).WithName("schemagraph")
			a.registry = prometheus.NewRegistry()
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.metricsFile == "" {
				return nil
			}
			if err := prometheus.WriteToTextfile(a.metricsFile, a.registry); err != nil {
				return withCode(exitIO, fmt.Errorf("write metrics: %w", err))
			}
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	goFlags := flag.NewFlagSet("schemagraph", flag.ContinueOnError)
	a.zapOpts.BindFlags(goFlags)
	root.PersistentFlags().AddGoFlagSet(goFlags)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML engine config file.")
	root.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "Write engine metrics to this file in the Prometheus text format.")

	root.AddCommand(
		a.validateCommand(),
		a.importCommand(),
		a.digestCommand(),
		a.normalizeCommand(),
	)
	return root
}

func run(args []string, out, errOut io.Writer) int {
	cmd := newRootCommand(out, errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
	}
	return exitCode(err)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// loadSchema tells read failures from invalid documents.
func (a *app) loadSchema(path string) (*schema.Schema, error) {
	s, err := manifest.Load(path)
	if err != nil {
		var pe *fs.PathError
		if errors.As(err, &pe) {
			return nil, withCode(exitIO, err)
		}
		return nil, withCode(exitSchemaInvalid, fmt.Errorf("%s: %w", path, err))
	}
	for _, w := range s.Warnings() {
		a.log.Info("schema warning", "path", path, "warning", w)
	}
	return s, nil
}

func (a *app) engineOptions() ([]engine.Option, error) {
	cfg := engine.DefaultConfig()
	if a.configPath != "" {
		var err error
		cfg, err = engine.LoadConfig(a.configPath)
		if err != nil {
			var pe *fs.PathError
			if errors.As(err, &pe) {
				return nil, withCode(exitIO, err)
			}
			return nil, err
		}
	}
	return []engine.Option{
		engine.WithConfig(cfg),
		engine.WithLogger(a.log.WithName("engine")),
		engine.WithRegisterer(a.registry),
	}, nil
}

// importSnapshot loads the schema and the snapshot and imports the latter.
func (a *app) importSnapshot(cmd *cobra.Command, schemaPath, snapshotPath string) (*engine.Engine, error) {
	s, err := a.loadSchema(schemaPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		return nil, withCode(exitIO, err)
	}
	opts, err := a.engineOptions()
	if err != nil {
		return nil, err
	}
	e, err := engine.Import(cmd.Context(), s, data, opts...)
	if err != nil {
		var ie *engine.ImportError
		if errors.As(err, &ie) {
			return nil, withCode(exitImportFailed, fmt.Errorf("%s: %w", snapshotPath, err))
		}
		return nil, err
	}
	return e, nil
}
