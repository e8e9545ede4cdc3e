// Command assistant runs the conversational business-data assistant: an
// HTTP API that orchestrates LLM tool calling over tenant-scoped SQL,
// Google Calendar and Gmail (behind a confirmation gate), maps, web search,
// and remote MCP tools.
//
// Usage:
//
//	assistant serve --config config.yaml
//	assistant validate --config config.yaml
//	assistant schema > config-schema.json
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the assistant HTTP server."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Generate the JSON Schema for the config file."`

	Config    string `short:"c" help:"Path to config file." type:"path" default:"config.yaml"`
	LogLevel  string `help:"Log level override (debug, info, warn, error)."`
	LogFormat string `help:"Log format override (text, json)."`
}

func main() {
	// A local .env is a dev convenience; absence is not an error.
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("assistant"),
		kong.Description("Conversational assistant over tenant business data."),
		kong.UsageOnError(),
	)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// initLogging applies config-file settings with CLI flags taking priority.
func initLogging(level, format, file string, cli *CLI) error {
	if cli.LogLevel != "" {
		level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		format = cli.LogFormat
	}

	var out io.Writer = os.Stderr
	if file != "" {
		f, _, err := logger.OpenLogFile(file)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
	}
	logger.Init(logger.ParseLevel(level), out, format)
	return nil
}
