package importer

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/claude/physcio/internal/models"
	"github.com/claude/physcio/internal/storage"
)

const legacyExport = `{
	"users": [
		{
			"id": "guest_user", "name": "Guest User", "email": "guest@physcio.com",
			"age": "41", "weight": "82", "height": "180", "isPremium": true,
			"activePlan": {
				"planTitle": "Low Back Reset", "durationWeeks": 2,
				"weeklyPlans": [
					{"week": 1, "focus": "Mobility", "exercises": [{"name": "Cat-cow", "sets": "2", "reps": "10", "notes": ""}]},
					{"week": 2, "focus": "Strength", "exercises": [{"name": "Bird dog", "sets": "3", "reps": "8", "notes": ""}]}
				]
			},
			"progressData": {
				"progressPercent": 17, "currentWeek": 1, "completedSessions": 1,
				"totalWeeks": 2, "sessionsPerWeek": 3, "weeklyCompletions": [1, 0]
			},
			"messagesFromAdmin": [{"id": "m1", "text": "Welcome!", "timestamp": "2025-11-02T09:00:00.000Z", "read": false}],
			"planHistory": [{"planTitle": "Neck Basics", "durationWeeks": 1, "completedDate": "2025-10-20T18:00:00.000Z", "status": "Completed"}]
		},
		{"id": "u-2", "name": "Bea", "email": "bea@example.com", "password": "hunter2"},
		{"id": "u-3", "name": "Cy", "email": "cy@example.com",
		 "progressData": {"progressPercent": 0, "currentWeek": 1, "completedSessions": 0, "totalWeeks": 1, "sessionsPerWeek": 3, "weeklyCompletions": [0]}},
		{"id": "u-4", "name": "Di", "email": "not-an-email"},
		{"id": "u-5", "name": "Bea Again", "email": "BEA@example.com"}
	],
	"announcements": [
		{"id": "a2", "title": "Holiday hours", "content": "Closed on the 25th.", "createdAt": "2025-12-01T10:00:00.000Z"},
		{"id": "a1", "title": "Welcome", "content": "The clinic app is live.", "createdAt": "2025-11-01T10:00:00.000Z"}
	],
	"journals": [
		{"id": "1", "title": "PubMed", "publisher": "National Library of Medicine (NLM)", "year": 1996, "link": "https://pubmed.ncbi.nlm.nih.gov/"},
		{"id": "8", "title": "Journal of Physiotherapy", "publisher": "Elsevier", "year": 1954, "link": "https://www.journalofphysiotherapy.com/"}
	]
}`

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.Open(context.Background(), storage.BackendLocal, "", filepath.Join(t.TempDir(), "import.db"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func writeExport(t *testing.T, compress bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "physcio_app_data.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var w io.Writer = f
	if compress {
		zw := gzip.NewWriter(f)
		defer zw.Close()
		w = zw
	}
	if _, err := io.WriteString(w, legacyExport); err != nil {
		t.Fatal(err)
	}
	return path
}

var discardLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// TestImportLegacyExport verifies users, announcements and journals land in
// the store, broken users are rejected and the run is logged.
func TestImportLegacyExport(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	stats, err := New(store, discardLog, false).ImportFile(ctx, writeExport(t, false))
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}

	if stats.UsersReceived != 5 || stats.UsersInserted != 2 || stats.UsersRejected != 2 || stats.UsersDuplicated != 1 {
		t.Errorf("user stats = %+v, want 5 received, 2 inserted, 2 rejected, 1 duplicated", stats)
	}
	if stats.AnnouncementsInserted != 2 {
		t.Errorf("announcements inserted = %d, want 2", stats.AnnouncementsInserted)
	}
	if stats.JournalsInserted != 1 || stats.JournalsDuplicated != 1 {
		t.Errorf("journal stats = %d inserted, %d duplicated, want 1 and 1", stats.JournalsInserted, stats.JournalsDuplicated)
	}

	guest, err := store.GetUser(ctx, "guest_user")
	if err != nil {
		t.Fatal(err)
	}
	if guest.ProgressData == nil || guest.ProgressData.CompletedSessions != 1 {
		t.Errorf("guest progress = %+v, want 1 completed session", guest.ProgressData)
	}
	if len(guest.PlanHistory) != 1 || guest.PlanHistory[0].Status != models.StatusCompleted {
		t.Errorf("guest history = %+v", guest.PlanHistory)
	}
	if len(guest.MessagesFromAdmin) != 1 || guest.MessagesFromAdmin[0].Read {
		t.Errorf("guest messages = %+v", guest.MessagesFromAdmin)
	}

	bea, err := store.GetUser(ctx, "u-2")
	if err != nil {
		t.Fatal(err)
	}
	if bea.Age != models.DefaultAge || bea.Height != models.DefaultHeight {
		t.Errorf("defaults not applied: age=%q height=%q", bea.Age, bea.Height)
	}

	if _, err := store.GetUser(ctx, "u-3"); err == nil {
		t.Error("user with progress but no plan was imported")
	}

	anns, err := store.ListAnnouncements(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(anns) != 2 || anns[0].Title != "Holiday hours" {
		t.Errorf("announcements = %+v, want Holiday hours first", anns)
	}

	logs, err := store.QueryImportLogs(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Status != "success" || logs[0].UsersInserted != 2 {
		t.Errorf("import logs = %+v", logs)
	}
}

// TestImportIsRepeatable verifies a second run inserts nothing new.
func TestImportIsRepeatable(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	path := writeExport(t, false)

	if _, err := New(store, discardLog, false).ImportFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	stats, err := New(store, discardLog, false).ImportFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if stats.UsersInserted != 0 || stats.AnnouncementsInserted != 0 || stats.JournalsInserted != 0 {
		t.Errorf("second run inserted %+v", stats)
	}
	if stats.UsersDuplicated != 3 {
		t.Errorf("users duplicated = %d, want 3", stats.UsersDuplicated)
	}
}

// TestImportDryRun verifies a dry run counts records without writing any.
func TestImportDryRun(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	stats, err := New(store, discardLog, true).ImportFile(ctx, writeExport(t, false))
	if err != nil {
		t.Fatal(err)
	}
	if stats.UsersInserted != 3 {
		t.Errorf("dry-run users = %d, want 3 (duplicates are only detected on write)", stats.UsersInserted)
	}

	users, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 0 {
		t.Errorf("dry run wrote %d users", len(users))
	}
	logs, err := store.QueryImportLogs(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 0 {
		t.Errorf("dry run wrote %d import logs", len(logs))
	}
}

// TestUnpackGzip verifies compressed exports are detected by content and
// plain ones pass through.
func TestUnpackGzip(t *testing.T) {
	plain, err := ReadExport(writeExport(t, false))
	if err != nil {
		t.Fatal(err)
	}
	packed, err := ReadExport(writeExport(t, true))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(plain, packed) {
		t.Fatal("compressed file has the same bytes as the plain one")
	}

	for name, data := range map[string][]byte{"plain": plain, "gzip": packed} {
		got, err := Unpack(data)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if string(got) != legacyExport {
			t.Errorf("%s export decoded to different content", name)
		}
	}
}

// TestImportDataGzip verifies a compressed upload imports like a file.
func TestImportDataGzip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	data, err := ReadExport(writeExport(t, true))
	if err != nil {
		t.Fatal(err)
	}

	stats, err := New(store, discardLog, false).ImportData(ctx, "upload", data)
	if err != nil {
		t.Fatal(err)
	}
	if stats.UsersInserted != 2 {
		t.Errorf("users inserted = %d, want 2", stats.UsersInserted)
	}
	logs, err := store.QueryImportLogs(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Source != "upload" {
		t.Errorf("import logs = %+v, want source upload", logs)
	}
}

// TestImportMalformedFileLogsError verifies a parse failure is recorded in
// the import log.
func TestImportMalformedFileLogsError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte(`{"users": [`), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := New(store, discardLog, false).ImportFile(ctx, path); err == nil {
		t.Fatal("expected parse error")
	}
	logs, err := store.QueryImportLogs(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Status != "error" || logs[0].ErrorMessage == nil {
		t.Errorf("import logs = %+v, want one error entry", logs)
	}
}
