package journal

import (
	"context"
	"testing"
	"time"
)

func TestRecordAndRecent(t *testing.T) {
	j, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	n := 0
	j.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}

	ctx := context.Background()
	for _, kind := range []string{KindPinSet, KindLogin, KindConfigReset} {
		if err := j.Record(ctx, kind, "detail "+kind); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Kind != KindConfigReset || entries[1].Kind != KindLogin {
		t.Errorf("order = %s, %s; want newest first", entries[0].Kind, entries[1].Kind)
	}
	if entries[0].ID == "" || entries[0].ID == entries[1].ID {
		t.Error("entries need distinct ids")
	}
	if !entries[0].Time.Equal(base.Add(3 * time.Second)) {
		t.Errorf("time = %v", entries[0].Time)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Record(context.Background(), KindUpdate, "v1.2.0 downloaded"); err != nil {
		t.Fatal(err)
	}
	j.Close()

	j, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	entries, err := j.Recent(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Detail != "v1.2.0 downloaded" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestNilJournal(t *testing.T) {
	var j *Journal
	if err := j.Record(context.Background(), KindPinSet, ""); err != nil {
		t.Fatal(err)
	}
	if entries, err := j.Recent(context.Background(), 10); err != nil || entries != nil {
		t.Fatalf("Recent = %v, %v", entries, err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSince(t *testing.T) {
	j, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()
	for i, kind := range []string{KindPinSet, KindLogin, KindConfigReset, KindUpdate} {
		at := base.Add(time.Duration(i) * time.Hour)
		j.now = func() time.Time { return at }
		if err := j.Record(ctx, kind, ""); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := j.Since(ctx, base.Add(90*time.Minute), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Kind != KindUpdate || entries[1].Kind != KindConfigReset {
		t.Fatalf("entries = %+v", entries)
	}

	// The bound is inclusive, including across time zones.
	entries, err = j.Since(ctx, base.Add(time.Hour).In(time.FixedZone("ART", -3*3600)), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("got %d entries, want 3", len(entries))
	}

	var nilJournal *Journal
	if got, err := nilJournal.Since(ctx, base, 5); got != nil || err != nil {
		t.Errorf("nil journal = %v, %v", got, err)
	}
}
