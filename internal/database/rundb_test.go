package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/brokerscan/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *RunDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testProfile(t *testing.T, name string) *model.ClientProfile {
	t.Helper()

	p, err := model.NewClientProfile(name, model.WithCity("Austin"), model.WithState("TX"))
	if err != nil {
		t.Fatalf("NewClientProfile() error = %v", err)
	}
	return p
}

// testRun builds a run started at start with one result per broker; brokers
// listed in found are matched.
func testRun(t *testing.T, name string, start time.Time, found ...string) *model.DiscoveryRun {
	t.Helper()

	isFound := make(map[string]bool, len(found))
	for _, f := range found {
		isFound[f] = true
	}

	run := model.NewDiscoveryRun(testProfile(t, name))
	run.StartedAt = start
	for i, broker := range []string{"Spokeo", "WhitePages", "TruePeopleSearch"} {
		r := model.NewBrokerResult(broker)
		r.StartedAt = start.Add(time.Duration(i) * time.Second)
		r.FinishedAt = r.StartedAt.Add(500 * time.Millisecond)
		if isFound[broker] {
			r.Found = true
			r.URLs = []string{"https://example.com/" + broker + "/1", "https://example.com/" + broker + "/2"}
			r.Title = broker + " listing"
		}
		r.Normalize()
		run.Results = append(run.Results, r)
	}
	run.FinishedAt = start.Add(3 * time.Second)
	return run
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
		if !errors.Is(err, ErrDatabaseNotFound) {
			t.Errorf("Open() error = %v, want ErrDatabaseNotFound", err)
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		_ = db.Close()
	})
}

func TestSaveAndLoadRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := testRun(t, "Jane Doe", start, "TruePeopleSearch")
	run.Results[0].Status = model.StatusErrored
	run.Results[0].Notes = "Error during search: timeout"
	run.Results[0].Normalize()

	id, err := db.SaveRun(ctx, run)
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if id <= 0 {
		t.Fatalf("SaveRun() id = %d", id)
	}

	stored, err := db.RunByID(ctx, id)
	if err != nil {
		t.Fatalf("RunByID() error = %v", err)
	}
	got := stored.Run

	if got.Profile.Name() != "Jane Doe" || got.Profile.City() != "Austin" || got.Profile.State() != "TX" {
		t.Errorf("profile = %v", got.Profile)
	}
	if !got.StartedAt.Equal(run.StartedAt) || !got.FinishedAt.Equal(run.FinishedAt) {
		t.Errorf("timestamps = %v..%v, want %v..%v", got.StartedAt, got.FinishedAt, run.StartedAt, run.FinishedAt)
	}
	if len(got.Results) != len(run.Results) {
		t.Fatalf("len(Results) = %d, want %d", len(got.Results), len(run.Results))
	}
	for i, want := range run.Results {
		g := got.Results[i]
		if g.Broker != want.Broker || g.Found != want.Found || g.URL != want.URL ||
			g.Notes != want.Notes || g.Status != want.Status || g.Title != want.Title {
			t.Errorf("Results[%d] = %+v, want %+v", i, g, want)
		}
		if len(g.URLs) != len(want.URLs) {
			t.Errorf("Results[%d].URLs = %v, want %v", i, g.URLs, want.URLs)
		}
		if !g.StartedAt.Equal(want.StartedAt) || !g.FinishedAt.Equal(want.FinishedAt) {
			t.Errorf("Results[%d] timestamps differ", i)
		}
	}
	if got.Summary() != run.Summary() {
		t.Errorf("Summary() = %+v, want %+v", got.Summary(), run.Summary())
	}
}

func TestSaveRunErrors(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)

	if _, err := db.SaveRun(context.Background(), nil); !errors.Is(err, ErrNilRun) {
		t.Errorf("SaveRun(nil) error = %v, want ErrNilRun", err)
	}
	if _, err := db.SaveRun(context.Background(), &model.DiscoveryRun{}); !errors.Is(err, ErrNilRun) {
		t.Errorf("SaveRun(no profile) error = %v, want ErrNilRun", err)
	}
}

func TestSaveRunWithoutStartTime(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	fixed := time.Date(2026, 5, 5, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return fixed }

	run := model.NewDiscoveryRun(testProfile(t, "Jane Doe"))
	id, err := db.SaveRun(context.Background(), run)
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	stored, err := db.RunByID(context.Background(), id)
	if err != nil {
		t.Fatalf("RunByID() error = %v", err)
	}
	if !stored.Run.StartedAt.Equal(fixed) {
		t.Errorf("StartedAt = %v, want %v", stored.Run.StartedAt, fixed)
	}
	if !stored.Run.FinishedAt.IsZero() {
		t.Errorf("FinishedAt = %v, want zero", stored.Run.FinishedAt)
	}
	if len(stored.Run.Results) != 0 {
		t.Errorf("Results = %v, want empty", stored.Run.Results)
	}
}

func TestLatestRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	jane := testRun(t, "Jane Doe", base)
	key := jane.Profile.SubjectKey()

	t.Run("missing subject", func(t *testing.T) {
		t.Parallel()

		_, err := db.LatestRun(ctx, "no-such-key")
		if !errors.Is(err, ErrRunNotFound) {
			t.Errorf("LatestRun() error = %v, want ErrRunNotFound", err)
		}
	})

	if _, err := db.SaveRun(ctx, jane); err != nil {
		t.Fatal(err)
	}
	newer := testRun(t, "Jane Doe", base.Add(24*time.Hour), "Spokeo")
	newerID, err := db.SaveRun(ctx, newer)
	if err != nil {
		t.Fatal(err)
	}
	// Another subject must not leak into Jane's history.
	if _, err := db.SaveRun(ctx, testRun(t, "John Roe", base.Add(48*time.Hour))); err != nil {
		t.Fatal(err)
	}

	latest, err := db.LatestRun(ctx, key)
	if err != nil {
		t.Fatalf("LatestRun() error = %v", err)
	}
	if latest.ID != newerID {
		t.Errorf("LatestRun().ID = %d, want %d", latest.ID, newerID)
	}
	if found := latest.Run.FoundResults(); len(found) != 1 || found[0].Broker != "Spokeo" {
		t.Errorf("FoundResults() = %v", found)
	}

	runs, err := db.LatestRuns(ctx, key, 5)
	if err != nil {
		t.Fatalf("LatestRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(LatestRuns()) = %d, want 2", len(runs))
	}
	if !runs[0].Run.StartedAt.After(runs[1].Run.StartedAt) {
		t.Error("LatestRuns() not ordered newest first")
	}

	if runs, err := db.LatestRuns(ctx, key, 0); err != nil || len(runs) != 0 {
		t.Errorf("LatestRuns(0) = %v, %v", runs, err)
	}
}

func TestRunByIDNotFound(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	_, err := db.RunByID(context.Background(), 42)
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("RunByID() error = %v, want ErrRunNotFound", err)
	}
}

func TestHistoryAndSubjects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	first := testRun(t, "Jane Doe", base, "Spokeo")
	second := testRun(t, "Jane Doe", base.Add(time.Hour), "Spokeo", "WhitePages")
	other := testRun(t, "John Roe", base.Add(30*time.Minute))
	for _, run := range []*model.DiscoveryRun{first, second, other} {
		if _, err := db.SaveRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	history, err := db.History(ctx, first.Profile.SubjectKey())
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len(History()) = %d, want 2", len(history))
	}
	if history[0].Summary.Found != 2 || history[1].Summary.Found != 1 {
		t.Errorf("History() summaries = %+v, %+v", history[0].Summary, history[1].Summary)
	}
	if history[0].Subject != "Jane Doe, Austin, TX" {
		t.Errorf("Subject = %q", history[0].Subject)
	}
	if !history[0].StartedAt.Equal(second.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", history[0].StartedAt, second.StartedAt)
	}

	subjects, err := db.ListSubjects(ctx)
	if err != nil {
		t.Fatalf("ListSubjects() error = %v", err)
	}
	if len(subjects) != 2 {
		t.Fatalf("len(ListSubjects()) = %d, want 2", len(subjects))
	}
	if subjects[0].Key != first.Profile.SubjectKey() || subjects[0].Runs != 2 {
		t.Errorf("subjects[0] = %+v", subjects[0])
	}
	if subjects[1].Subject != "John Roe, Austin, TX" || subjects[1].Runs != 1 {
		t.Errorf("subjects[1] = %+v", subjects[1])
	}

	n, err := db.DeleteSubject(ctx, first.Profile.SubjectKey())
	if err != nil {
		t.Fatalf("DeleteSubject() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteSubject() = %d, want 2", n)
	}
	if _, err := db.LatestRun(ctx, first.Profile.SubjectKey()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("LatestRun() after delete error = %v", err)
	}
	if _, err := db.LatestRun(ctx, other.Profile.SubjectKey()); err != nil {
		t.Errorf("other subject removed: %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{name: "stored layout", input: formatTimestamp(want), want: want},
		{name: "RFC3339", input: "2026-04-02T08:30:00Z", want: want},
		{name: "sqlite datetime", input: "2026-04-02 08:30:00", want: want},
		{name: "empty", input: "", want: time.Time{}},
		{name: "garbage", input: "yesterday", want: time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parseTimestamp(tt.input); !got.Equal(tt.want) {
				t.Errorf("parseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
