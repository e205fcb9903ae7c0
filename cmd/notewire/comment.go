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
	commentAuthor  string
	commentContent string
	commentJSON    bool
)

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Work with a note's comment thread",
}

var commentAddCmd = &cobra.Command{
	Use:   "add [note-id]",
	Short: "Add a comment to a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		noteID := args[0]
		if commentContent == "" {
			fmt.Println("Error: --content is required")
			cmd.Usage()
			os.Exit(1)
		}

		store, err := openStore()
		if err != nil {
			fatal("Failed to open store", err)
		}

		saved, err := store.SaveComment(context.Background(), core.Comment{
			NoteID:   noteID,
			AuthorID: core.Identity(commentAuthor),
			Content:  commentContent,
		})
		if err != nil {
			fatal("Failed to save comment", err)
		}

		fmt.Printf("Comment '%s' added to note '%s'.\n", saved.ID, noteID)
	},
}

var commentListCmd = &cobra.Command{
	Use:   "list [note-id]",
	Short: "List a note's comment thread in chronological order",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		noteID := args[0]

		store, err := openStore()
		if err != nil {
			fatal("Failed to open store", err)
		}

		comments, err := store.ListComments(context.Background(), noteID)
		if err != nil {
			fatal("Failed to list comments", err)
		}

		if commentJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(comments); err != nil {
				fatal("Failed to encode JSON", err)
			}
			return
		}

		for _, c := range comments {
			fmt.Printf("%s  %s  %s\n", c.CreatedAt.Format("2006-01-02 15:04"), c.AuthorID, c.Content)
		}
	},
}

func init() {
	rootCmd.AddCommand(commentCmd)
	commentCmd.AddCommand(commentAddCmd)
	commentCmd.AddCommand(commentListCmd)
	commentAddCmd.Flags().StringVar(&commentAuthor, "author", "", "Comment author identity")
	commentAddCmd.Flags().StringVar(&commentContent, "content", "", "Comment content")
	commentListCmd.Flags().BoolVar(&commentJSON, "json", false, "Output in JSON format")
}
