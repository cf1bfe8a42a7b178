// Package main provides the nmt command: training, translation, BLEU
// scoring and vocabulary building for attention-based translation models.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/born-ml/nmt/internal/config"
)

const version = "v0.1.0-dev"

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error
}

var commands = []command{
	{"train", "train a model from a configuration", runTrain},
	{"translate", "beam-decode sentences read from stdin", runTranslate},
	{"score", "score hypotheses on stdin against a reference file", runScore},
	{"vocab", "build a vocabulary from a tokenized corpus", runVocab},
	{"version", "show version", runVersion},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stderr)
		return 2
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		err := c.run(ctx, args[1:], stdin, stdout)
		switch {
		case err == nil:
			return 0
		case errors.Is(err, flag.ErrHelp):
			return 2
		default:
			fmt.Fprintf(stderr, "nmt %s: %v\n", c.name, err)
			return 1
		}
	}
	fmt.Fprintf(stderr, "nmt: unknown command %q\n\n", args[0])
	usage(stderr)
	return 2
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "nmt %s - attention-based neural machine translation\n\n", version)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
}

func runVersion(_ context.Context, _ []string, _ io.Reader, stdout io.Writer) error {
	_, err := fmt.Fprintf(stdout, "nmt %s\n", version)
	return err
}

// configFlags are shared by the commands that build a model.
type configFlags struct {
	proto    string
	path     string
	logLevel string
}

func (f *configFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.proto, "proto", config.DefaultPrototype, "prototype configuration")
	fs.StringVar(&f.path, "config", "", "YAML file overriding prototype fields")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn or error")
}

func (f *configFlags) load() (config.Config, error) {
	cfg, err := config.Prototype(f.proto)
	if err != nil {
		return config.Config{}, err
	}
	if f.path != "" {
		if cfg, err = config.Load(f.path, cfg); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (f *configFlags) logger() (*slog.Logger, error) {
	return newLogger(f.logLevel)
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
