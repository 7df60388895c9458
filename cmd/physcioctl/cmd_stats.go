package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dashboard counts and recent imports",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	st, err := e.store.GetDataStats(cmd.Context())
	if err != nil {
		return err
	}
	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintf(tw, "users\t%d\n", st.TotalUsers)
	fmt.Fprintf(tw, "premium\t%d\n", st.PremiumUsers)
	fmt.Fprintf(tw, "active programs\t%d\n", st.ActivePrograms)
	fmt.Fprintf(tw, "plans completed\t%d\n", st.CompletedPlans)
	fmt.Fprintf(tw, "plans replaced\t%d\n", st.ReplacedPlans)
	fmt.Fprintf(tw, "announcements\t%d\n", st.Announcements)
	fmt.Fprintf(tw, "journals\t%d\n", st.Journals)
	if err := tw.Flush(); err != nil {
		return err
	}

	logs, err := e.store.QueryImportLogs(cmd.Context(), 5)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nrecent imports:")
	tw = newTable(cmd.OutOrStdout())
	for _, l := range logs {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%d/%d users\n", l.CreatedAt.Format("2006-01-02 15:04"), l.Source, l.Status, l.UsersInserted, l.UsersReceived)
	}
	return tw.Flush()
}
