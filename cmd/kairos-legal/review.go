// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/jllopis/kairos-legal/pkg/config"
	"github.com/jllopis/kairos-legal/pkg/errors"
	"github.com/jllopis/kairos-legal/pkg/review"
)

func (a *app) runReview(ctx context.Context, args []string) error {
	cmd := pflag.NewFlagSet("review", pflag.ContinueOnError)
	cmd.SetOutput(a.stderr)
	document := cmd.String("document", "", "File with the legal document (prompted on stdin when empty)")
	references := cmd.String("references", "", "File with static reference material")
	mode := cmd.String("retrieval", "", "Retrieval mode: none, file or index")
	query := cmd.String("query", "", "Search query for index retrieval (defaults to the document)")
	topK := cmd.Int("top-k", 0, "Number of indexed references to retrieve")
	timeout := cmd.Duration("timeout", 0, "Orchestrator run timeout")
	maskPII := cmd.Bool("mask-pii", false, "Mask personal data before the document leaves this machine")
	if err := cmd.Parse(args); err != nil {
		return NewInvalidArgumentError("review", err.Error())
	}
	if cmd.NArg() > 0 {
		return NewInvalidArgumentError("review", fmt.Sprintf("unexpected args: %v", cmd.Args()))
	}

	if *references != "" {
		a.cfg.Review.ReferencesFile = *references
		if *mode == "" {
			*mode = config.RetrievalFile
		}
	}
	if *mode != "" {
		a.cfg.Review.Retrieval = *mode
	}
	if *topK > 0 {
		a.cfg.Search.TopK = *topK
	}
	if *timeout > 0 {
		a.cfg.Review.RunTimeout = *timeout
	}
	if *maskPII {
		a.cfg.Review.MaskPII = true
	}

	text, err := a.readDocument(*document)
	if err != nil {
		return err
	}

	workflow, release, err := a.newWorkflow()
	if err != nil {
		return err
	}
	defer release()

	if !a.global.JSON {
		fmt.Fprintln(a.stdout, "\nProcessing legal document. Please wait...")
	}
	res, err := workflow.Run(ctx, review.Request{Document: text, Query: *query})
	if err != nil {
		return err
	}

	if a.global.JSON {
		return a.printJSON(res)
	}
	fmt.Fprintf(a.stdout, "\nLEGAL REVIEW OUTPUT:\n\n%s\n", res.Answer)
	fmt.Fprintf(a.stdout, "\nReview %s (%s): risk=%s complexity=%s, %d/%d agents cleaned up in %s.\n",
		res.ReviewID, res.Variant, orDash(res.RiskLevel), orDash(res.Complexity),
		res.AgentsReleased, res.AgentsCreated, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	return nil
}

// readDocument reads the document from path, or from stdin until EOF.
func (a *app) readDocument(path string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", errors.New(errors.CodeInvalidInput, "failed to read document", err).WithContext("path", path)
		}
		return string(data), nil
	}

	fmt.Fprint(a.stderr, "\nPaste the legal document text, then press Ctrl-D (Ctrl-Z on Windows) to finish:\n\n")
	var lines []string
	scanner := bufio.NewScanner(a.stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", errors.New(errors.CodeInvalidInput, "failed to read document from stdin", err)
	}
	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if text == "" {
		return "", errors.New(errors.CodeInvalidInput, "legal document is empty", nil)
	}
	a.logger.Info("document read from stdin", "lines", len(lines), "bytes", len(text))
	return text, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
