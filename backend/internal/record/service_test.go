package record

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"classrecord/backend/internal/grading"
	"classrecord/backend/internal/session"
	"classrecord/backend/internal/shared"
	"classrecord/backend/internal/store"
)

const collection = "classrecord"

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	templates, err := grading.NewRegistry(grading.DefaultTemplates()...)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	st := store.NewMemoryStore()
	sessions := session.NewManager(session.NewMemoryCache(), "record-service-test-secret", time.Minute)
	return NewService(st, templates, sessions, zap.NewNop()), st
}

func uploadRows() [][]string {
	return [][]string{
		{"ID", "Last Name", "First Name", "attendance", "quiz1", "quiz2", "quiz3", "quiz4", "prelim", "midtermwrittenexam", "assignment1", "activity1", "midtermlabexam", "midtermGrade"},
		{"2021-0001", "Cruz", "Ana", "100", "95", "90", "100", "98", "97", "99", "100", "100", "98", "9.99"},
		{"", "Nobody", "Missing", "100"},
		{"2021-0002", "Reyes", "Ben", "80", "-1", "70", "", "abc", "75", "70", "80", "85", "72"},
	}
}

func TestService_UploadSkipsInvalidRows(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	report, err := svc.Upload(ctx, "midterm", uploadRows())
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if report.Total != 3 || report.Committed != 2 || report.Skipped != 1 || report.Failed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(report.Errors) != 1 {
		t.Errorf("expected the skipped row reported, got %v", report.Errors)
	}

	records, err := svc.List(ctx, "midterm", "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 2 || records[0].IDNumber != "2021-0001" || records[1].IDNumber != "2021-0002" {
		t.Fatalf("unexpected records: %+v", records)
	}

	ben := records[1]
	if ben.Score("quiz1") != shared.MissedScore || ben.Score("quiz3") != 0 || ben.Score("quiz4") != 0 {
		t.Errorf("upload values not normalized: %+v", ben.Scores)
	}
}

func TestService_LookupAndSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	svc.Upload(ctx, "midterm", uploadRows())

	res, err := svc.Lookup(ctx, "midterm", "  ana ", "CRUZ", "2021-0001 ")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if res.Record.IDNumber != "2021-0001" || res.Token == "" {
		t.Fatalf("unexpected lookup result: %+v", res)
	}
	if res.Grade != "1.00" || !res.Passed {
		t.Errorf("expected 1.00 passing, got %s passed=%t", res.Grade, res.Passed)
	}

	t.Run("Detail", func(t *testing.T) {
		view, err := svc.Detail(ctx, res.Token)
		if err != nil {
			t.Fatalf("Detail failed: %v", err)
		}
		if view.FullName != "CRUZ, ANA" || view.Breakdown.Display != "1.00" || len(view.Breakdown.Categories) != 2 {
			t.Errorf("unexpected detail view: %+v", view)
		}
	})

	t.Run("EndSession", func(t *testing.T) {
		if err := svc.EndSession(ctx, res.Token); err != nil {
			t.Fatalf("EndSession failed: %v", err)
		}
		if _, err := svc.Detail(ctx, res.Token); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound after EndSession, got %v", err)
		}
	})

	t.Run("Invalid token", func(t *testing.T) {
		if _, err := svc.Detail(ctx, "bogus"); !errors.Is(err, shared.ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})
}

func TestService_LookupErrors(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	svc.Upload(ctx, "midterm", uploadRows())

	t.Run("Wrong name", func(t *testing.T) {
		if _, err := svc.Lookup(ctx, "midterm", "Ana", "Reyes", "2021-0001"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Blank field", func(t *testing.T) {
		_, err := svc.Lookup(ctx, "midterm", "Ana", "", "2021-0001")
		var ve shared.ValidationError
		if !errors.As(err, &ve) || ve.Field != shared.FieldLastName {
			t.Errorf("expected ValidationError on lastName, got %v", err)
		}
	})

	t.Run("Unknown template", func(t *testing.T) {
		if _, err := svc.Lookup(ctx, "summer", "Ana", "Cruz", "2021-0001"); !errors.Is(err, shared.ErrUnknownTemplate) {
			t.Errorf("expected ErrUnknownTemplate, got %v", err)
		}
	})

	t.Run("Other template collection is separate", func(t *testing.T) {
		if _, err := svc.Lookup(ctx, "final", "Ana", "Cruz", "2021-0001"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound in final collection, got %v", err)
		}
	})

	t.Run("Store outage", func(t *testing.T) {
		st.SetFailure(errors.New("connection reset"))
		defer st.SetFailure(nil)

		_, err := svc.Lookup(ctx, "midterm", "Ana", "Cruz", "2021-0001")
		if !errors.Is(err, shared.ErrStoreUnavailable) {
			t.Errorf("expected ErrStoreUnavailable, got %v", err)
		}
		if errors.Is(err, shared.ErrNotFound) {
			t.Error("outage must not look like NotFound")
		}
	})
}

func TestService_DeleteThenLookup(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	svc.Upload(ctx, "midterm", uploadRows())

	if err := svc.Delete(ctx, "midterm", "2021-0002"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := svc.Lookup(ctx, "midterm", "Ben", "Reyes", "2021-0002"); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := svc.Delete(ctx, "midterm", " "); err == nil {
		t.Error("expected validation error for blank id")
	}
}

func TestService_StoredGradeIgnored(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	// No idNumber field: the document id stands in for it.
	st.Upsert(ctx, collection, "2021-0009", map[string]any{
		"firstName": "Dan", "lastName": "Lim", "midtermGrade": 1.0,
	})

	res, err := svc.Lookup(ctx, "midterm", "Dan", "Lim", "2021-0009")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if res.Record.Grade != 5 || res.Passed {
		t.Errorf("expected recomputed failing 5.00, got %v passed=%t", res.Record.Grade, res.Passed)
	}
}

func TestService_Save(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	svc.Upload(ctx, "midterm", uploadRows())

	t.Run("Edit recomputes grade", func(t *testing.T) {
		rec, err := svc.Save(ctx, "midterm", "2021-0001", map[string]any{"midtermwrittenexam": "0"})
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if rec.Score("midtermwrittenexam") != 0 || rec.Score("quiz1") != 95 {
			t.Errorf("edit not merged: %+v", rec.Scores)
		}
		if rec.Grade == 1 {
			t.Error("grade was not recomputed after edit")
		}

		docs, _ := st.ListAll(ctx, collection)
		if docs[0].Fields["midtermGrade"] != rec.Grade {
			t.Errorf("stored grade %v, want %v", docs[0].Fields["midtermGrade"], rec.Grade)
		}
	})

	t.Run("Missing record", func(t *testing.T) {
		if _, err := svc.Save(ctx, "midterm", "2099-0000", map[string]any{"quiz1": 1}); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ID is immutable", func(t *testing.T) {
		_, err := svc.Save(ctx, "midterm", "2021-0001", map[string]any{"idNumber": "2021-7777"})
		var ve shared.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	t.Run("Name cannot be blanked", func(t *testing.T) {
		_, err := svc.Save(ctx, "midterm", "2021-0001", map[string]any{"firstName": "  "})
		var ve shared.ValidationError
		if !errors.As(err, &ve) || ve.Field != shared.FieldFirstName {
			t.Errorf("expected ValidationError on firstName, got %v", err)
		}
	})
}

func TestService_UploadStoreOutage(t *testing.T) {
	svc, st := newTestService(t)
	st.SetFailure(errors.New("no reachable servers"))

	report, err := svc.Upload(context.Background(), "midterm", uploadRows())
	if !errors.Is(err, shared.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if report.Failed != 2 || report.Committed != 0 || report.Skipped != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestService_ListSearch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	svc.Upload(ctx, "midterm", uploadRows())

	records, err := svc.List(ctx, "midterm", "rey")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 || records[0].LastName != "Reyes" {
		t.Errorf("unexpected search result: %+v", records)
	}
}

func TestService_Export(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	svc.Upload(ctx, "midterm", uploadRows())

	buf, tmpl, err := svc.Export(ctx, "")
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if tmpl.Name != "midterm" || buf.Len() == 0 {
		t.Errorf("unexpected export: template %s, %d bytes", tmpl.Name, buf.Len())
	}
}

func TestService_Subscribe(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	feed, err := svc.Subscribe(ctx, "midterm")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// --- 1. Initial empty table ---
	snap, err := feed.Next(waitCtx)
	if err != nil || len(snap) != 0 {
		t.Fatalf("expected empty initial snapshot, got %v %v", snap, err)
	}

	// --- 2. Upload pushes the full table ---
	svc.Upload(ctx, "midterm", uploadRows())
	for len(snap) != 2 {
		snap, err = feed.Next(waitCtx)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
	}
	if snap[0].Grade != 1 {
		t.Errorf("feed records not recomputed: %+v", snap[0])
	}

	// --- 3. Close releases the listener ---
	feed.Close()
	feed.Close()
	if n := st.Watchers(collection); n != 0 {
		t.Errorf("expected listener released, %d remain", n)
	}
}
