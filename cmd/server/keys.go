package main

import (
	"fmt"
	"time"

	"nudge/internal/auth"
	"nudge/internal/config"
	"nudge/internal/services"

	"github.com/spf13/cobra"
)

var vapidKeysCmd = &cobra.Command{
	Use:   "vapid-keys",
	Short: "Generate a Web Push (VAPID) keypair",
	RunE: func(cmd *cobra.Command, args []string) error {
		private, public, err := services.GenerateVAPIDKeys()
		if err != nil {
			return err
		}
		fmt.Printf("VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", public, private)
		return nil
	},
}

var (
	tokenTenant string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a tenant (development)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		token, err := auth.NewTokenService(cfg.JWTSecret).GenerateToken(tokenTenant, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenTenant, "tenant", "", "tenant id to put in the token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("tenant")

	rootCmd.AddCommand(vapidKeysCmd, tokenCmd)
}
