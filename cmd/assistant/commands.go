package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/invopop/jsonschema"

	"github.com/piumenotechnology/accounting-mcp-sub000/pkg/config"
)

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("assistant %s\n", version)
	return nil
}

// ValidateCmd loads and validates a configuration file without starting
// the server.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	fmt.Printf("%s is valid (%d llm providers, %d mcp servers)\n",
		cli.Config, len(cfg.LLMs), len(cfg.Tools.MCP))
	return nil
}

// SchemaCmd emits the config JSON Schema to stdout.
type SchemaCmd struct {
	Compact bool `help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run() error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&config.Config{})
	schema.Title = "Assistant Configuration Schema"
	schema.Description = "Configuration schema for the assistant service"

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(schema)
}
