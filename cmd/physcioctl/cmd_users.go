package main

import (
	"fmt"
	"strings"

	"github.com/claude/physcio/internal/tracker"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
	Long: `Manage user accounts.

Available subcommands:
  list    - List all users
  create  - Register a user
  premium - Grant or revoke premium
  message - Send a message to a user's inbox`,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Args:  cobra.NoArgs,
	RunE:  runUsersList,
}

var usersCreateCmd = &cobra.Command{
	Use:   "create <name> <email>",
	Short: "Register a user with default profile values",
	Args:  cobra.ExactArgs(2),
	RunE:  runUsersCreate,
}

var revokePremium bool

var usersPremiumCmd = &cobra.Command{
	Use:   "premium <user-id>",
	Short: "Grant premium (or revoke with --revoke)",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersPremium,
}

var usersMessageCmd = &cobra.Command{
	Use:   "message <user-id> <text...>",
	Short: "Send a message to a user's inbox",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runUsersMessage,
}

func init() {
	usersPremiumCmd.Flags().BoolVar(&revokePremium, "revoke", false, "remove premium instead of granting it")

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersPremiumCmd)
	usersCmd.AddCommand(usersMessageCmd)
}

func runUsersList(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	users, err := e.tracker.ListUsers(cmd.Context())
	if err != nil {
		return err
	}

	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tPREMIUM\tPROGRAM\tPLANS DONE\tUNREAD")
	for _, u := range users {
		prog := "-"
		if u.ActivePlan != nil && u.ProgressData != nil {
			prog = fmt.Sprintf("%s (%d%%)", u.ActivePlan.PlanTitle, u.ProgressData.ProgressPercent)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%d\t%d\n",
			u.ID, u.Name, u.Email, u.IsPremium, prog, len(u.PlanHistory), len(tracker.UnreadMessages(u)))
	}
	return tw.Flush()
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	u, err := e.tracker.CreateUser(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), u.ID)
	return nil
}

func runUsersPremium(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	u, err := e.tracker.SetPremium(cmd.Context(), args[0], !revokePremium)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s premium=%t\n", u.ID, u.IsPremium)
	return nil
}

func runUsersMessage(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	msg, err := e.tracker.SendMessage(cmd.Context(), args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", msg.ID)
	return nil
}
