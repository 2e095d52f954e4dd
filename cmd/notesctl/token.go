package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"example.com/coursenotes/internal/auth"
	"example.com/coursenotes/internal/identity"
)

var (
	tokenUserID int64
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Work with bearer tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Print a signed token for an existing user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenUserID <= 0 {
			return errors.New("--user-id is required")
		}
		ttl := cfg.JWTTTL
		if tokenTTL > 0 {
			ttl = tokenTTL
		}

		conn, err := openDirectoryDB(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		dir := identity.NewSQLDirectory(conn.SQL, conn.Driver)
		u, err := dir.LookupByID(cmd.Context(), tokenUserID)
		if err != nil {
			return fmt.Errorf("user %d: %w", tokenUserID, err)
		}

		a, err := auth.New([]byte(cfg.JWTSecret), dir, auth.WithTTL(ttl))
		if err != nil {
			return err
		}
		token, err := a.Issue(u)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenIssueCmd)

	tokenIssueCmd.Flags().Int64Var(&tokenUserID, "user-id", 0, "Directory user id")
	tokenIssueCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default JWT_TTL)")
}
