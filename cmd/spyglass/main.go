// Copyright 2025 Tom Barlow
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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	configcmd "github.com/tombee/spyglass/internal/commands/config"
	storecmd "github.com/tombee/spyglass/internal/commands/store"
	"github.com/tombee/spyglass/pkg/telemetry"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:   "spyglass",
		Short: "Inspect spyglass SDK telemetry",
		Long: `spyglass inspects the telemetry captured by the spyglass SDK.

The SDK itself runs inside your application; this tool reads its
configuration and the optional local trace store.`,
		SilenceUsage: true,
	}

	root.AddCommand(configcmd.NewConfigCommand())
	root.AddCommand(storecmd.NewStoreCommand())
	root.AddCommand(newVersionCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("spyglass %s (sdk %s)\n", version, telemetry.Version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", buildDate)
		},
	}
}
