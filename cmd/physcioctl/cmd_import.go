package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/claude/physcio/internal/importer"
	"github.com/claude/physcio/internal/upload"
	"github.com/spf13/cobra"
)

var (
	importDryRun bool
	importRemote string
	importAPIKey string
)

var importCmd = &cobra.Command{
	Use:   "import <physcio_app_data.json[.gz]>",
	Short: "Import a legacy browser export",
	Long: `Import users, announcements and journals from a physcio_app_data
export taken from the browser's local storage. Gzip-compressed files are
detected automatically.

Records that already exist are skipped, so the import can be re-run.

With --remote the file is sent to a running server's admin import
endpoint instead of being written to the local storage backend.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "report counts without writing to storage")
	importCmd.Flags().StringVar(&importRemote, "remote", "", "base URL of a Physcio server to upload to")
	importCmd.Flags().StringVar(&importAPIKey, "api-key", "", "admin API key for --remote (or set PHYSCIO_AUTH_ADMIN_API_KEY)")
}

func runImport(cmd *cobra.Command, args []string) error {
	if importRemote != "" {
		return runRemoteImport(cmd, args[0])
	}

	e, err := openEnv(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if importDryRun {
		e.log.Warn("DRY RUN mode: no data will be written")
	}

	stats, err := importer.New(e.store, e.log, importDryRun).ImportFile(cmd.Context(), args[0])
	printImportStats(cmd, stats)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	return nil
}

func printImportStats(cmd *cobra.Command, stats *importer.Stats) {
	if stats == nil {
		return
	}
	out := cmd.OutOrStdout()
	tw := newTable(out)
	fmt.Fprintf(tw, "\tinserted\tduplicate\trejected\n")
	fmt.Fprintf(tw, "users\t%d\t%d\t%d\n", stats.UsersInserted, stats.UsersDuplicated, stats.UsersRejected)
	fmt.Fprintf(tw, "announcements\t%d\t%d\t-\n", stats.AnnouncementsInserted, stats.AnnouncementsDuplicated)
	fmt.Fprintf(tw, "journals\t%d\t%d\t-\n", stats.JournalsInserted, stats.JournalsDuplicated)
	_ = tw.Flush()

	if len(stats.Rejected) > 0 {
		fmt.Fprintf(out, "\nrejected:\n  %s\n", strings.Join(stats.Rejected, "\n  "))
	}
}

func runRemoteImport(cmd *cobra.Command, path string) error {
	key := importAPIKey
	if key == "" {
		key = os.Getenv("PHYSCIO_AUTH_ADMIN_API_KEY")
	}
	if key == "" {
		return errors.New("--api-key is required with --remote")
	}

	data, err := importer.ReadExport(path)
	if err != nil {
		return err
	}
	stats, err := upload.NewClient(importRemote, key).SendExport(cmd.Context(), filepath.Base(path), data, importDryRun)
	if err != nil {
		return fmt.Errorf("remote import failed: %w", err)
	}
	printImportStats(cmd, stats)
	return nil
}
