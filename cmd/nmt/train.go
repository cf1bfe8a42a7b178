package main

import (
	"context"
	"errors"
	"flag"
	"io"

	"github.com/born-ml/nmt/internal/stream"
	"github.com/born-ml/nmt/internal/training"
)

func runTrain(ctx context.Context, args []string, _ io.Reader, _ io.Writer) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	var cf configFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger, err := cf.logger()
	if err != nil {
		return err
	}
	cfg, err := cf.load()
	if err != nil {
		return err
	}
	if data, err := cfg.Marshal(); err == nil {
		logger.Debug("configuration", "proto", cf.proto, "yaml", string(data))
	}

	streams, err := stream.Open(cfg)
	if err != nil {
		return err
	}
	defer streams.Close()

	loop, err := training.Setup(cfg, streams, logger)
	if err != nil {
		return err
	}
	err = loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Warn("training interrupted", "iterations_done", loop.Status.IterationsDone)
		return nil
	}
	return err
}
