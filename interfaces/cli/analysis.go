package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"diary-backend/domain/core/entities"
	"diary-backend/infrastructure/di"
)

var adviceCmd = &cobra.Command{
	Use:   "advice [user-id] [date]",
	Short: "Print the emotion advice for a date, analyzing it if needed",
	Long: `Print the emotion advice for a date. Failures degrade to the empty result,
exactly as the HTTP endpoint answers; the cause is reported on stderr.`,
	Args: cobra.ExactArgs(2),
	RunE: runAdvice,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [user-id] [date]",
	Short: "Analyze the entry for a date and report errors",
	Args:  cobra.ExactArgs(2),
	RunE:  runAnalyze,
}

var monthCmd = &cobra.Command{
	Use:   "month [user-id] [year] [month]",
	Short: "List the dates with entries in a month",
	Args:  cobra.ExactArgs(3),
	RunE:  runMonth,
}

func init() {
	analyzeCmd.Flags().Bool("force", false, "Discard the stored analysis and call the provider again")
}

func runAdvice(cmd *cobra.Command, args []string) error {
	userID, date, err := parseUserAndDate(args)
	if err != nil {
		return err
	}

	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		result, err := c.Orchestrator.GetEmotionAdvice(ctx, userID, date)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: analysis degraded: %v\n", err)
		}
		return printJSON(cmd, result)
	})
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	userID, date, err := parseUserAndDate(args)
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")

	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		var result entities.AnalysisResult
		if force {
			result, err = c.Orchestrator.Reanalyze(ctx, userID, date)
		} else {
			result, err = c.Orchestrator.Analyze(ctx, userID, date)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, result)
	})
}

func runMonth(cmd *cobra.Command, args []string) error {
	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	year, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid year %q", args[1])
	}
	month, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid month %q", args[2])
	}

	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		dates, err := c.Diary.GetMonthDates(ctx, userID, year, time.Month(month))
		if err != nil {
			return err
		}
		for _, d := range dates {
			fmt.Fprintln(cmd.OutOrStdout(), d)
		}
		return nil
	})
}
