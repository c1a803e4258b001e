package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), nil, nil)
}

func readRaw(t *testing.T, path string) Document {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return doc
}

func TestLoadMissingIsAbsent(t *testing.T) {
	s := newTestStore(t)
	if doc := s.Load(); doc != nil {
		t.Fatalf("Load on empty dir = %v, want nil", doc)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	want := Document{KeyDeviceID: "abc", KeyUIZoomFactor: 0.8, "extra": "kept"}

	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := s.Load()
	if got.DeviceID() != "abc" || got["extra"] != "kept" {
		t.Fatalf("Load = %v, want %v", got, want)
	}
	if z, ok := got.ZoomFactor(); !ok || z != 0.8 {
		t.Fatalf("ZoomFactor = %v,%v, want 0.8,true", z, ok)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\n  \"deviceId\"") {
		t.Errorf("primary should be pretty-printed, got:\n%s", data)
	}
	if _, err := os.Stat(s.TempPath()); !os.IsNotExist(err) {
		t.Errorf("temp file should not remain after save, stat err = %v", err)
	}
}

func TestSaveWritesBackup(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(Document{"n": 1.0}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(Document{"n": 2.0}); err != nil {
		t.Fatal(err)
	}

	if got := readRaw(t, s.BackupPath())["n"]; got != 2.0 {
		t.Errorf("backup n = %v, want last committed value 2", got)
	}
}

func TestLoadRestoresCorruptPrimaryFromBackup(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(Document{"n": 1.0}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(Document{"n": 2.0}); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(s.Path(), []byte(`{"n": 2`), 0600); err != nil {
		t.Fatal(err)
	}

	got := s.Load()
	if got == nil || got["n"] != 2.0 {
		t.Fatalf("Load = %v, want last saved document", got)
	}
	if n := readRaw(t, s.Path())["n"]; n != 2.0 {
		t.Errorf("primary after restore n = %v, want 2", n)
	}
}

func TestLoadRestoresDeletedPrimaryFromBackup(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(Document{KeyStationID: "st-1"}); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(s.Path()); err != nil {
		t.Fatal(err)
	}

	got := s.Load()
	if got.StationID() != "st-1" {
		t.Fatalf("Load = %v, want station st-1", got)
	}
	if _, err := os.Stat(s.Path()); err != nil {
		t.Errorf("primary should be re-promoted: %v", err)
	}
}

func TestLoadBothUnreadable(t *testing.T) {
	s := newTestStore(t)
	os.WriteFile(s.Path(), []byte("not json"), 0600)
	os.WriteFile(s.BackupPath(), []byte(""), 0600)

	if doc := s.Load(); doc != nil {
		t.Fatalf("Load = %v, want nil", doc)
	}
}

func TestLoadRejectsNonObject(t *testing.T) {
	s := newTestStore(t)
	os.WriteFile(s.Path(), []byte(`[1,2,3]`), 0600)

	if doc := s.Load(); doc != nil {
		t.Fatalf("Load = %v, want nil for non-object document", doc)
	}
}

func TestLoadAcceptsCommentsAndTrailingCommas(t *testing.T) {
	s := newTestStore(t)
	content := `{
  // set by the installer
  "deviceId": "dev-1",
  "deviceLabel": "front desk",
}`
	os.WriteFile(s.Path(), []byte(content), 0600)

	doc := s.Load()
	if doc.DeviceID() != "dev-1" || doc.DeviceLabel() != "front desk" {
		t.Fatalf("Load = %v", doc)
	}
}

func TestMerge(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Merge(Document{"a": "1", "b": "2"})
	if err != nil {
		t.Fatalf("Merge on absent doc: %v", err)
	}
	if got["a"] != "1" || got["b"] != "2" {
		t.Fatalf("Merge = %v", got)
	}

	got, err = s.Merge(Document{"b": "3", "a": nil, "c": "4"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got["a"]; ok {
		t.Error("nil value should remove key a")
	}
	if got["b"] != "3" || got["c"] != "4" {
		t.Errorf("Merge = %v", got)
	}

	stored := s.Load()
	if stored["b"] != "3" || stored["c"] != "4" {
		t.Errorf("stored = %v", stored)
	}
}

func TestModifyNilPartialDoesNotWrite(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Modify(func(Document) (Document, error) { return nil, nil })
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("Modify = %v, want nil", got)
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Error("no file should be written when partial is nil")
	}
}

func TestModifyErrorAborts(t *testing.T) {
	s := newTestStore(t)
	s.Save(Document{"a": "1"})

	_, err := s.Modify(func(Document) (Document, error) {
		return Document{"a": "2"}, fmt.Errorf("nope")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if s.Load()["a"] != "1" {
		t.Error("document must be unchanged after fn error")
	}
}

func TestResetPreservesIdentity(t *testing.T) {
	s := newTestStore(t)
	current := Document{
		KeyDeviceID:     "D",
		KeyDeviceLabel:  "kiosk-1",
		KeyAdminPinHash: "H",
		KeyUIZoomFactor: 0.8,
		KeyStationID:    "st-9",
		KeyStationLabel: "Caja 1",
		KeyStationEmail: "caja@example.com",
		"other":         true,
	}
	if err := s.Save(current); err != nil {
		t.Fatal(err)
	}

	got, err := s.Reset(PreserveFrom(current, current))
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	stored := s.Load()
	for _, doc := range []Document{got, stored} {
		if doc.DeviceID() != "D" || doc.AdminPinHash() != "H" {
			t.Errorf("identity lost: %v", doc)
		}
		if z, ok := doc.ZoomFactor(); !ok || z != 0.8 {
			t.Errorf("zoom = %v,%v, want 0.8", z, ok)
		}
		for _, k := range []string{KeyStationID, KeyStationLabel, KeyStationEmail, "other"} {
			if _, ok := doc[k]; ok {
				t.Errorf("%s should be dropped by reset: %v", k, doc)
			}
		}
	}
}

func TestResetDropsNonNumericZoom(t *testing.T) {
	s := newTestStore(t)
	current := Document{KeyDeviceID: "D", KeyDeviceLabel: "L", KeyUIZoomFactor: "0.8"}

	got, err := s.Reset(PreserveFrom(current, current))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got[KeyUIZoomFactor]; ok {
		t.Errorf("non-numeric zoom should be dropped: %v", got)
	}
	if _, ok := got[KeyAdminPinHash]; ok {
		t.Errorf("absent pin hash must stay absent: %v", got)
	}
}

func TestResetRequiresDevice(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Reset(Preserve{DeviceLabel: "x"}); err != ErrMissingDevice {
		t.Fatalf("Reset err = %v, want ErrMissingDevice", err)
	}
}

func TestInterruptedWriteLeavesPreviousDocument(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(Document{"n": 1.0}); err != nil {
		t.Fatal(err)
	}

	// Crash while writing the temp file.
	os.WriteFile(s.TempPath(), []byte(`{"n": 2, "pay`), 0600)
	if got := s.Load(); got["n"] != 1.0 {
		t.Fatalf("Load = %v, want previous document", got)
	}

	// Crash after the stale primary was removed but before the rename.
	os.Remove(s.Path())
	if got := s.Load(); got["n"] != 1.0 {
		t.Fatalf("Load = %v, want previous document from backup", got)
	}

	if err := s.Save(Document{"n": 3.0}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.TempPath()); !os.IsNotExist(err) {
		t.Error("next save should leave no temp file behind")
	}
}

func TestSaveFailsWhenTempCannotBeWritten(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(Document{"n": 1.0}); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(s.TempPath(), "blocker"), 0700); err != nil {
		t.Fatal(err)
	}

	if err := s.Save(Document{"n": 2.0}); err == nil {
		t.Fatal("Save should fail when the temp file cannot be written")
	}
	if got := readRaw(t, s.Path())["n"]; got != 1.0 {
		t.Errorf("primary n = %v, want unchanged 1", got)
	}
}

func TestSaveSurvivesBackupFailure(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(Document{"n": 1.0}); err != nil {
		t.Fatal(err)
	}
	os.Remove(s.BackupPath())
	if err := os.MkdirAll(filepath.Join(s.BackupPath(), "blocker"), 0700); err != nil {
		t.Fatal(err)
	}

	if err := s.Save(Document{"n": 2.0}); err != nil {
		t.Fatalf("backup failure must not abort save: %v", err)
	}
	if got := s.Load()["n"]; got != 2.0 {
		t.Errorf("n = %v, want 2", got)
	}
}

func TestConcurrentSavesNeverExposePartialDocuments(t *testing.T) {
	s := newTestStore(t)
	payload := strings.Repeat("x", 64<<10)
	if err := s.Save(Document{"seq": 0.0, "payload": payload}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if err := s.Save(Document{"seq": float64(w*100 + i), "payload": payload}); err != nil {
					t.Errorf("Save: %v", err)
					return
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				doc := s.Load()
				if doc == nil {
					t.Error("Load returned nil during concurrent saves")
					return
				}
				if doc["payload"] != payload {
					t.Error("Load observed a partial document")
					return
				}
			}
		}()
	}
	wg.Wait()
}
