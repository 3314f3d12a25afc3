package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"giftletter/internal/canvas/model"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var snapshotYAML bool

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Read and write stored canvas snapshots",
}

var snapshotGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Print the stored items of a gift",
	Long:  `Print the stored items of a gift as JSON, or as YAML with --yaml. A gift that was never saved prints an empty list.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		items, err := e.svc.Snapshot(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if snapshotYAML {
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(items); err != nil {
				return fmt.Errorf("encode yaml: %w", err)
			}
			return enc.Close()
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	},
}

var snapshotPutCmd = &cobra.Command{
	Use:   "put [id] [file]",
	Short: "Replace the stored items of a gift",
	Long:  `Replace the stored items of a gift with the list in file. Files ending in .yaml or .yml are read as YAML, anything else as JSON.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := readItems(args[1])
		if err != nil {
			return err
		}
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.svc.ReplaceSnapshot(cmd.Context(), args[0], items); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored %d items for gift %s\n", len(items), args[0])
		return nil
	},
}

var snapshotRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete the stored items of a gift, keeping its uploads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.svc.Repo.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Snapshot deleted: %s\n", args[0])
		return nil
	},
}

var snapshotLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List gifts with a stored snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		ids, err := e.svc.Repo.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func readItems(path string) ([]model.LetterItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []model.LetterItem
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &items)
	default:
		err = json.Unmarshal(data, &items)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if items == nil {
		items = []model.LetterItem{}
	}
	return items, nil
}

func init() {
	snapshotGetCmd.Flags().BoolVar(&snapshotYAML, "yaml", false, "Output in YAML format")
	snapshotCmd.AddCommand(snapshotGetCmd, snapshotPutCmd, snapshotRmCmd, snapshotLsCmd)
	rootCmd.AddCommand(snapshotCmd)
}
