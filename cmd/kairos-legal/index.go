// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"
)

func (a *app) runIndex(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "ingest" {
		return NewInvalidArgumentError("index", "usage: index ingest --file F [--source S]")
	}
	cmd := pflag.NewFlagSet("index ingest", pflag.ContinueOnError)
	cmd.SetOutput(a.stderr)
	file := cmd.String("file", "", "Reference file to ingest")
	source := cmd.String("source", "", "Source label stored with each chunk (defaults to the file name)")
	if err := cmd.Parse(args[1:]); err != nil {
		return NewInvalidArgumentError("index ingest", err.Error())
	}
	if *file == "" {
		return NewInvalidArgumentError("file", "--file is required")
	}
	if *source == "" {
		*source = filepath.Base(*file)
	}

	idx, err := openIndex(a.cfg.Search, a.logger)
	if err != nil {
		return err
	}
	defer idx.Close()

	n, err := idx.IngestFile(ctx, *file, *source)
	if err != nil {
		return err
	}
	if a.global.JSON {
		return a.printJSON(map[string]any{
			"collection": a.cfg.Search.Index,
			"source":     *source,
			"chunks":     n,
		})
	}
	fmt.Fprintf(a.stdout, "Ingested %d chunks from %s into %s\n", n, *file, a.cfg.Search.Index)
	return nil
}
