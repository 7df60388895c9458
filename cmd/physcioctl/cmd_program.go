package main

import (
	"fmt"
	"time"

	"github.com/claude/physcio/internal/program"
	"github.com/spf13/cobra"
)

var programCmd = &cobra.Command{
	Use:   "program",
	Short: "Inspect and update a user's exercise program",
	Long: `Inspect and update a user's exercise program.

Available subcommands:
  status   - Show the active plan and progress
  log      - Record one completed session
  complete - Archive the active plan as Completed
  history  - List plans that have ended`,
}

var programStatusCmd = &cobra.Command{
	Use:   "status <user-id>",
	Short: "Show the active plan and progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runProgramStatus,
}

var programLogCmd = &cobra.Command{
	Use:   "log <user-id>",
	Short: "Record one completed session",
	Args:  cobra.ExactArgs(1),
	RunE:  runProgramLog,
}

var programCompleteCmd = &cobra.Command{
	Use:   "complete <user-id>",
	Short: "Archive the active plan as Completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runProgramComplete,
}

var programHistoryCmd = &cobra.Command{
	Use:   "history <user-id>",
	Short: "List plans that have ended",
	Args:  cobra.ExactArgs(1),
	RunE:  runProgramHistory,
}

func init() {
	programCmd.AddCommand(programStatusCmd)
	programCmd.AddCommand(programLogCmd)
	programCmd.AddCommand(programCompleteCmd)
	programCmd.AddCommand(programHistoryCmd)
}

func runProgramStatus(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	view, err := e.tracker.Program(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !view.HasActiveProgram {
		fmt.Fprintln(out, "no active program")
		return nil
	}
	p := view.Progress
	fmt.Fprintf(out, "%s\n", view.Plan.PlanTitle)
	fmt.Fprintf(out, "progress   %d%% (%d/%d sessions)\n", p.ProgressPercent, p.CompletedSessions, p.TotalSessions())
	fmt.Fprintf(out, "week       %d of %d, %d session(s) left this week\n", p.CurrentWeek, p.TotalWeeks, view.RemainingThisWeek)
	if wp := view.CurrentWeekPlan; wp != nil {
		fmt.Fprintf(out, "focus      %s\n", wp.Focus)
		tw := newTable(out)
		for _, ex := range wp.Exercises {
			fmt.Fprintf(tw, "  %s\t%s x %s\t%s\n", ex.Name, ex.Sets, ex.Reps, ex.Notes)
		}
		return tw.Flush()
	}
	return nil
}

func runProgramLog(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	u, outcome, err := e.tracker.LogSession(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch outcome {
	case program.OutcomeLogged:
		fmt.Fprintf(out, "session logged: %d%% complete\n", u.ProgressData.ProgressPercent)
	case program.OutcomePlanCompleted:
		fmt.Fprintln(out, "plan completed and moved to history")
	default:
		fmt.Fprintf(out, "nothing logged: %s\n", outcome)
	}
	return nil
}

func runProgramComplete(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if _, err := e.tracker.CompletePlan(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "plan moved to history")
	return nil
}

func runProgramHistory(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	items, err := e.tracker.History(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintln(tw, "ENDED\tPLAN\tWEEKS\tSTATUS")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", it.CompletedDate.Format(time.DateOnly), it.PlanTitle, it.DurationWeeks, it.Status)
	}
	return tw.Flush()
}
