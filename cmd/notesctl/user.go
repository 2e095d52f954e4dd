package main

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"example.com/coursenotes/internal/auth"
	"example.com/coursenotes/internal/identity"
	"example.com/coursenotes/internal/stringsx"
)

var (
	userName     string
	userEmail    string
	userPassword string
	userRole     string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage directory users",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user with a bcrypt password hash",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if stringsx.IsEmpty(userEmail) || userPassword == "" {
			return errors.New("--email and --password are required")
		}
		role, err := identity.ParseRole(userRole)
		if err != nil {
			return err
		}
		hash, err := auth.HashPassword(userPassword, 0)
		if err != nil {
			return err
		}

		conn, err := openDirectoryDB(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		u, err := identity.NewSQLDirectory(conn.SQL, conn.Driver).Create(cmd.Context(), identity.User{
			Name:         userName,
			Email:        userEmail,
			PasswordHash: hash,
			Role:         role,
		})
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(u)
	},
}

var userRoleCmd = &cobra.Command{
	Use:   "set-role <id> <role>",
	Short: "Change a user's role; tokens already issued follow the new role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}
		role, err := identity.ParseRole(args[1])
		if err != nil {
			return err
		}

		conn, err := openDirectoryDB(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		return identity.NewSQLDirectory(conn.SQL, conn.Driver).SetRole(cmd.Context(), id, role)
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd, userRoleCmd)

	userAddCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "Login email")
	userAddCmd.Flags().StringVar(&userPassword, "password", "", "Login password")
	userAddCmd.Flags().StringVar(&userRole, "role", "student", "student or admin")
}
