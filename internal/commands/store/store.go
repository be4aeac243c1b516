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

// Package store implements the CLI commands that read and maintain the
// SDK's local SQLite trace store.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/spyglass/internal/config"
	"github.com/tombee/spyglass/internal/storage"
)

// NewStoreCommand creates the store command with subcommands
func NewStoreCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the local trace store",
		Long: `Inspect the SQLite trace store written by an SDK configured
with a store path.

The store path is taken from --path, falling back to the
SPYGLASS_STORE_PATH environment variable.`,
	}

	cmd.PersistentFlags().StringVar(&path, "path", "", "trace store path")

	cmd.AddCommand(newListCommand(&path))
	cmd.AddCommand(newShowCommand(&path))
	cmd.AddCommand(newTraceCommand(&path))
	cmd.AddCommand(newPruneCommand(&path))

	return cmd
}

func openStore(path string) (*storage.Store, error) {
	if path == "" {
		path = config.FromEnv().StorePath
	}
	if path == "" {
		return nil, fmt.Errorf("no store path; pass --path or set %s", config.EnvStorePath)
	}
	return storage.Open(storage.Config{Path: path})
}

func newListCommand(path *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored payloads, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*path)
			if err != nil {
				return err
			}
			defer store.Close()

			payloads, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			count, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}

			for _, p := range payloads {
				fmt.Printf("%s  %-12s %-28s trace=%s span=%s\n",
					p.StartTime.Format(time.RFC3339), p.LogType, p.Model, p.TraceID, p.SpanID)
			}
			fmt.Printf("%d of %d payloads\n", len(payloads), count)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum payloads to list")
	return cmd
}

func newShowCommand(path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <span-id>",
		Short: "Print one stored payload as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*path)
			if err != nil {
				return err
			}
			defer store.Close()

			p, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(p, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func newTraceCommand(path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "trace <trace-id>",
		Short: "List one trace's payloads in start order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*path)
			if err != nil {
				return err
			}
			defer store.Close()

			payloads, err := store.ListByTrace(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(payloads) == 0 {
				return fmt.Errorf("trace %s: no payloads", args[0])
			}

			for _, p := range payloads {
				fmt.Printf("%s  %-12s %-28s span=%s latency=%.3fs\n",
					p.StartTime.Format(time.RFC3339), p.LogType, p.Model, p.SpanID, p.Latency)
			}
			return nil
		},
	}
}

func newPruneCommand(path *string) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete payloads older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*path)
			if err != nil {
				return err
			}
			defer store.Close()

			deleted, err := store.DeleteOlderThan(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d payloads\n", deleted)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "age cutoff, e.g. 72h")
	return cmd
}
