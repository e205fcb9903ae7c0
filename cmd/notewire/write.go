package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/notewire/notewire/pkg/core"
)

var (
	writeID      string
	writeURL     string
	writeContent string
	writeOwner   string
	writeTheme   string
	writeShare   []string
)

// writeCmd represents the write command
var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Create or update a note",
	Long:  `Create a note pinned to a page URL, or update an existing note by id.`,
	Run: func(cmd *cobra.Command, args []string) {
		if writeURL == "" && writeID == "" {
			fmt.Println("Error: --url is required for a new note")
			cmd.Usage()
			os.Exit(1)
		}

		store, err := openStore()
		if err != nil {
			fatal("Failed to open store", err)
		}

		ctx := context.Background()
		note := core.Note{
			ID:         writeID,
			URL:        writeURL,
			Content:    writeContent,
			Theme:      writeTheme,
			OwnerID:    core.Identity(writeOwner),
			SharedWith: writeShare,
		}
		if writeID != "" {
			// Updating: start from the stored note so unset flags keep
			// their current values.
			existing, err := store.GetNote(ctx, writeID)
			if err != nil {
				fatal("Failed to read note", err)
			}
			note = existing
			if writeURL != "" {
				note.URL = writeURL
			}
			if cmd.Flags().Changed("content") {
				note.Content = writeContent
			}
			if cmd.Flags().Changed("theme") {
				note.Theme = writeTheme
			}
			if cmd.Flags().Changed("share") {
				note.SharedWith = writeShare
			}
		}

		saved, err := store.SaveNote(ctx, note)
		if err != nil {
			fatal("Failed to save note", err)
		}

		fmt.Printf("Note '%s' saved.\n", saved.ID)
	},
}

func init() {
	rootCmd.AddCommand(writeCmd)
	writeCmd.Flags().StringVar(&writeID, "id", "", "Note ID (empty creates a new note)")
	writeCmd.Flags().StringVar(&writeURL, "url", "", "Page URL the note is pinned to")
	writeCmd.Flags().StringVar(&writeContent, "content", "", "Note content")
	writeCmd.Flags().StringVar(&writeOwner, "owner", "", "Owning identity")
	writeCmd.Flags().StringVar(&writeTheme, "theme", "", "Note theme (defaults to yellow)")
	writeCmd.Flags().StringSliceVar(&writeShare, "share", nil, "Identities the note is shared with")
}
