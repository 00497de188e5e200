package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"diary-backend/infrastructure/di"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage diary users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	Args:  cobra.NoArgs,
	RunE:  runUserCreate,
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete [user-id]",
	Short: "Delete a user with all entries, analyses and scores",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserDelete,
}

func init() {
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userDeleteCmd)

	userCreateCmd.Flags().String("nickname", "", "Display name")
	userCreateCmd.Flags().String("email", "", "Email address")
	_ = userCreateCmd.MarkFlagRequired("nickname")
	_ = userCreateCmd.MarkFlagRequired("email")
}

type userView struct {
	ID         int64  `json:"id"`
	Nickname   string `json:"nickname"`
	Email      string `json:"email"`
	HasSession bool   `json:"has_session"`
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	nickname, _ := cmd.Flags().GetString("nickname")
	email, _ := cmd.Flags().GetString("email")

	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		user, err := c.Accounts.CreateUser(ctx, nickname, email)
		if err != nil {
			return err
		}
		return printJSON(cmd, userView{
			ID:         user.ID,
			Nickname:   user.Nickname,
			Email:      user.Email,
			HasSession: user.Session != nil && user.Session.IsComplete(),
		})
	})
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}

	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		removed, err := c.Accounts.DeleteUser(ctx, userID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %d (%d entries removed)\n", userID, removed)
		return nil
	})
}
