package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"diary-backend/infrastructure/di"
	pkgerrors "diary-backend/pkg/errors"
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Read and write diary entries",
}

var entrySaveCmd = &cobra.Command{
	Use:   "save [user-id] [date] [text...]",
	Short: "Save the entry for a date unless one exists",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runEntrySave,
}

var entryShowCmd = &cobra.Command{
	Use:   "show [user-id] [date]",
	Short: "Print the entry for a date",
	Args:  cobra.ExactArgs(2),
	RunE:  runEntryShow,
}

func init() {
	entryCmd.AddCommand(entrySaveCmd)
	entryCmd.AddCommand(entryShowCmd)
}

func runEntrySave(cmd *cobra.Command, args []string) error {
	userID, date, err := parseUserAndDate(args)
	if err != nil {
		return err
	}
	text := strings.Join(args[2:], " ")

	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		result, err := c.Diary.SaveEntry(ctx, userID, date, text)
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	})
}

func runEntryShow(cmd *cobra.Command, args []string) error {
	userID, date, err := parseUserAndDate(args)
	if err != nil {
		return err
	}

	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		entry, err := c.Diary.GetEntry(ctx, userID, date)
		if pkgerrors.IsNotFound(err) {
			fmt.Fprintf(cmd.OutOrStdout(), "No entry on %s\n", date)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "#%d %s\n%s\n", entry.ID, entry.Date, entry.Text)
		return nil
	})
}
