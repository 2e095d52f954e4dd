package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"example.com/coursenotes/internal/notes"
	"example.com/coursenotes/internal/service"
)

var storeFile string

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect the notes file",
}

var storeCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Parse the notes file strictly and report how many notes it holds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Open would create a missing file; check must not.
		if _, err := os.Stat(notesPath()); err != nil {
			return err
		}
		s, err := openStore()
		if err != nil {
			return err
		}
		all, err := s.All(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s: ok, %d notes\n", s.Path(), len(all))
		return nil
	},
}

var storeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print note counts per user and per course as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		byUser, err := s.StatsByUser(cmd.Context())
		if err != nil {
			return err
		}
		byCourse, err := s.StatsByCourse(cmd.Context())
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(service.Stats{StatsByUser: byUser, StatsByCourse: byCourse})
	},
}

func notesPath() string {
	if storeFile != "" {
		return storeFile
	}
	return cfg.NotesFile
}

func openStore() (*notes.Store, error) {
	return notes.Open(notesPath(), notes.WithLogger(slog.Default()))
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeCheckCmd, storeStatsCmd)

	storeCmd.PersistentFlags().StringVarP(&storeFile, "file", "f", "", "Notes file (default NOTES_FILE)")
}
