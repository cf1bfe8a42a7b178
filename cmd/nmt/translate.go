package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"

	"github.com/born-ml/nmt/internal/checkpoint"
	"github.com/born-ml/nmt/internal/generate"
	"github.com/born-ml/nmt/internal/model"
	"github.com/born-ml/nmt/internal/stream"
)

func runTranslate(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	var cf configFlags
	cf.register(fs)
	params := fs.String("model", "", "parameter file (default <saveto>/"+checkpoint.ParametersFile+")")
	beam := fs.Int("beam", 0, "beam size (default from the configuration)")
	normalized := fs.Bool("normalized", true, "rank hypotheses by cost per token")
	withCost := fs.Bool("cost", false, "prefix every translation with its cost")
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
	if *params == "" {
		*params = filepath.Join(cfg.SaveTo, checkpoint.ParametersFile)
	}
	if *beam <= 0 {
		*beam = cfg.BeamSize
	}

	m, err := model.New(cfg, model.WithLogger(logger))
	if err != nil {
		return err
	}
	file, err := checkpoint.ReadFile(*params)
	if err != nil {
		return err
	}
	report, err := file.Restore(m.Parameters())
	if err != nil {
		return err
	}
	if len(report.Missing) > 0 {
		return fmt.Errorf("%s lacks %d parameters, first %q", *params, len(report.Missing), report.Missing[0])
	}
	logger.Info("model loaded", "path", *params, "parameters", len(report.Loaded))

	src, trg, err := stream.Tokenizers(cfg)
	if err != nil {
		return err
	}
	tr := generate.NewTranslator(m, m.Decoder.Generator, *beam, src, trg,
		generate.WithNormalizedCosts(*normalized))

	sc := bufio.NewScanner(stdin)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	w := bufio.NewWriter(stdout)
	defer w.Flush()
	for line := 0; sc.Scan(); line++ {
		out, err := tr.Translate(ctx, sc.Text())
		switch {
		case errors.Is(err, generate.ErrEmptyInput):
			out = generate.Translation{}
		case err != nil:
			return fmt.Errorf("line %d: %w", line+1, err)
		}
		if *withCost {
			fmt.Fprintf(w, "%.4f\t", out.Cost)
		}
		fmt.Fprintln(w, out.Text)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return w.Flush()
}
