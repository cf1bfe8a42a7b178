package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/born-ml/nmt/internal/bleu"
)

func runScore(_ context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	ref := fs.String("ref", "", "reference file, one sentence per line")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ref == "" {
		return errors.New("-ref is required")
	}
	stats, err := bleu.Score(stdin, *ref)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, stats.String())
	return err
}
