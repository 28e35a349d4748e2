// Copyright 2025 The Bindu Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command bindu serves a demo echo agent. The runtime itself is used as a
// library: applications call runtime.Serve with their own handler.
//
// Usage:
//
//	bindu serve --config config.yaml
//	bindu validate --config config.yaml
//	bindu version
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/getbindu/bindu"
	"github.com/getbindu/bindu/pkg/config"
	"github.com/getbindu/bindu/pkg/runtime"
	"github.com/getbindu/bindu/pkg/worker"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the agent service."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`

	Config string `short:"c" help:"Path to config file." type:"path"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(*CLI) error {
	fmt.Println(bindu.GetVersion())
	return nil
}

// ServeCmd starts the service with the built-in echo handler.
type ServeCmd struct{}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	return runtime.Serve(context.Background(), cfg, echoHandler)
}

// ValidateCmd parses and validates a configuration file.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required")
	}
	if _, err := config.Load(cli.Config); err != nil {
		return err
	}
	fmt.Println("configuration is valid")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// echoHandler answers with the last user turn. It exists so the binary can
// demonstrate the full protocol surface without an external model.
func echoHandler(ctx context.Context, history []worker.Turn) (any, error) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return "echo: " + strings.TrimSpace(history[i].Content), nil
		}
	}
	return "echo: (empty conversation)", nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("bindu"),
		kong.Description("Networked A2A agent runtime."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(cli); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
