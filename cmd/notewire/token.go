package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/notewire/notewire/pkg/auth"
	"github.com/notewire/notewire/pkg/core"
)

var (
	tokenSecret   string
	tokenIdentity string
	tokenTTL      time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for an identity",
	Long:  `Issue a signed bearer token a frame can present when connecting to the serve endpoint.`,
	Run: func(cmd *cobra.Command, args []string) {
		if tokenSecret == "" || tokenIdentity == "" {
			fatal("Missing flags", fmt.Errorf("--secret and --identity are required"))
		}

		codec := auth.NewTokenCodec([]byte(tokenSecret))
		token, err := codec.IssueToken(core.Identity(tokenIdentity), tokenTTL)
		if err != nil {
			fatal("Failed to issue token", err)
		}

		fmt.Println(token)
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "Signing secret")
	tokenCmd.Flags().StringVar(&tokenIdentity, "identity", "", "Identity the token is issued for")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}
