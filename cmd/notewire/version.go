package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notewire/notewire"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of notewire",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("notewire version %s\n", strings.TrimSpace(notewire.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
