package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/notewire/notewire"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a notewire vault",
	Long:  `Initialize a new Notewire vault in the current directory, creating the notes, comments and system directories.`,
	Run: func(cmd *cobra.Command, args []string) {
		if adapter != "fs" {
			fatal("init only applies to the fs adapter", fmt.Errorf("adapter %q bootstraps its schema on first use", adapter))
		}

		cwd, err := os.Getwd()
		if err != nil {
			fatal("Failed to get CWD", err)
		}
		if uri != "" {
			cwd = uri
		}

		if _, err := notewire.Init(cwd, notewire.WithAdapter(adapter), notewire.WithAutoInit(true)); err != nil {
			fatal("Failed to initialize vault", err)
		}

		fmt.Println("Initialized empty Notewire vault in", cwd)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
