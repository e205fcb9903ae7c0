package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/notewire/notewire/pkg/core"
)

var (
	listJSON  bool
	filterURL string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all notes in the vault",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		store, err := openStore()
		if err != nil {
			fatal("Failed to open store", err)
		}

		notes, err := store.ListNotes(context.Background())
		if err != nil {
			fatal("Failed to list notes", err)
		}

		var filtered []core.Note
		for _, note := range notes {
			if filterURL != "" && note.URL != filterURL {
				continue
			}
			filtered = append(filtered, note)
		}

		if listJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(filtered); err != nil {
				fatal("Failed to encode JSON", err)
			}
			return
		}

		for _, note := range filtered {
			fmt.Printf("%s  %-8s  %s  %s\n", note.ID, note.EffectiveTheme(), note.OwnerID, note.URL)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().StringVar(&filterURL, "url", "", "Filter notes by exact page URL")
}
