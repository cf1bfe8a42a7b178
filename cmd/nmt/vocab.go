package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/nmt/internal/tokenizer"
)

func runVocab(_ context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("vocab", flag.ContinueOnError)
	size := fs.Int("size", 30000, "vocabulary size, reserved words included")
	input := fs.String("input", "", "tokenized corpus (default stdin)")
	output := fs.String("output", "", "JSON output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *size < 3 {
		return errors.New("-size must be at least 3")
	}

	r := stdin
	if *input != "" {
		f, err := os.Open(*input) //nolint:gosec // G304: path comes from a flag
		if err != nil {
			return fmt.Errorf("failed to open corpus: %w", err)
		}
		defer f.Close()
		r = f
	}
	v, err := tokenizer.BuildVocabulary(r, *size)
	if err != nil {
		return err
	}

	w := stdout
	if *output != "" {
		f, err := os.Create(*output) //nolint:gosec // G304: path comes from a flag
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := v.WriteJSON(w); err != nil {
		return fmt.Errorf("failed to write vocabulary: %w", err)
	}
	return nil
}
