// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Command kairos-legal runs multi-agent legal document reviews against a
// hosted agent service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/jllopis/kairos-legal/pkg/agentservice"
	"github.com/jllopis/kairos-legal/pkg/config"
	"github.com/jllopis/kairos-legal/pkg/telemetry"
)

const serviceName = "kairos-legal"

var version = "dev"

type globalFlags struct {
	ConfigArgs []string
	JSON       bool
	Help       bool
}

// app carries what every command needs. Tests replace newService to run
// commands against the in-memory fake.
type app struct {
	global globalFlags
	cfg    *config.Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger

	newService func(cfg *config.Config, logger *slog.Logger) (agentservice.Service, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, argv []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global, args, err := parseGlobalFlags(argv)
	if err != nil {
		printError(stderr, NewInvalidArgumentError("flags", err.Error()), global.JSON)
		return 2
	}
	if global.Help || len(args) == 0 {
		printUsage(stdout)
		return 0
	}
	switch args[0] {
	case "help":
		printUsage(stdout)
		return 0
	case "version":
		fmt.Fprintln(stdout, version)
		return 0
	}

	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		printError(stderr, NewConfigError(err, configPath(global.ConfigArgs)), global.JSON)
		return 1
	}

	a := &app{
		global:     global,
		cfg:        cfg,
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
		newService: newAgentService,
	}
	// stdout belongs to the MCP transport.
	logOut := io.Writer(stderr)
	a.logger = telemetry.ConfigureSlog(logOut, telemetry.LogOptions{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: serviceName,
		Version: version,
		Command: args[0],
	})

	telemetryCfg := telemetry.Config{
		ServiceName:     serviceName,
		Version:         version,
		Exporter:        cfg.Telemetry.Exporter,
		OTLPEndpoint:    cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:    cfg.Telemetry.OTLPInsecure,
		OTLPTimeout:     cfg.Telemetry.OTLPTimeout,
		ModelDeployment: cfg.Agents.Model,
		Variant:         variantOf(cfg.Review.Retrieval),
		AgentEndpoint:   cfg.Agents.Endpoint,
	}
	if args[0] == "mcp" && telemetryCfg.Exporter == telemetry.ExporterStdout {
		a.logger.Warn("stdout telemetry exporter disabled while serving MCP over stdio")
		telemetryCfg.Exporter = telemetry.ExporterNone
	}
	shutdown, err := telemetry.Start(ctx, telemetryCfg)
	if err != nil {
		printError(stderr, NewConfigError(err, configPath(global.ConfigArgs)), global.JSON)
		return 1
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	if err := a.dispatch(ctx, args); err != nil {
		printError(stderr, toCLIError(err), global.JSON)
		return 1
	}
	return 0
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "review":
		return a.runReview(ctx, rest)
	case "smoke":
		return a.runSmoke(ctx, rest)
	case "index":
		return a.runIndex(ctx, rest)
	case "history":
		return a.runHistory(ctx, rest)
	case "mcp":
		return a.runMCP(ctx, rest)
	default:
		return NewInvalidArgumentError("command", fmt.Sprintf("unknown command %q", cmd))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		name, _, hasValue := strings.Cut(arg, "=")
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case name == "--config" || name == "--profile" || name == "--env-file" || name == "--set":
			if hasValue {
				flags.ConfigArgs = append(flags.ConfigArgs, arg)
				continue
			}
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for %s", name)
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func configPath(configArgs []string) string {
	opts, err := config.ParseCLIArgs(configArgs)
	if err != nil {
		return ""
	}
	return opts.Path
}

func (a *app) printJSON(value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, string(payload))
	return err
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	if value == "" {
		return "-"
	}
	return value
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `kairos-legal: multi-agent legal document review

Usage:
  kairos-legal [global flags] <command> [args]

Global flags:
  --config <path>      YAML configuration file
  --profile <name>     Overlay config.<name>.yaml from the same directory
  --env-file <path>    dotenv file to load (default .env)
  --set key=value      Override config (repeatable)
  --json               JSON output

Commands:
  review [--document F] [--references F] [--retrieval none|file|index] [--query Q] [--top-k N] [--timeout D] [--mask-pii]
  smoke
  index ingest --file F [--source S]
  history [--limit N] [--status S]
  mcp
  version`)
}
