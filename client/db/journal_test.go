// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package db

import (
	"path/filepath"
	"testing"
	"time"

	"decred.org/kernelprov/aa"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"), aa.StdOutLogger("JRNL", aa.LevelTrace))
	if err != nil {
		t.Fatalf("NewJournal error: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRuns(t *testing.T) {
	j := newTestJournal(t)

	runs, err := j.Runs(10)
	if err != nil {
		t.Fatalf("Runs error on empty journal: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected no runs, got %d", len(runs))
	}

	start := time.Unix(1_700_000_000, 0)
	for i := 0; i < 3; i++ {
		err := j.StoreRun(&RunRecord{
			StartTime: start.Add(time.Duration(i) * time.Minute),
			EndTime:   start.Add(time.Duration(i)*time.Minute + time.Second),
			Network:   "testnet",
			Account:   []string{"0x01", "0x02", "0x03"}[i],
			Deployed:  i == 0,
			Outcome:   "transaction",
		})
		if err != nil {
			t.Fatalf("StoreRun %d error: %v", i, err)
		}
	}
	// Same start time as the last one.
	if err := j.StoreRun(&RunRecord{StartTime: start.Add(2 * time.Minute), Account: "0x04"}); err != nil {
		t.Fatalf("StoreRun duplicate error: %v", err)
	}

	runs, err = j.Runs(2)
	if err != nil {
		t.Fatalf("Runs error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Account != "0x04" || runs[1].Account != "0x03" {
		t.Fatalf("wrong order: %s, %s", runs[0].Account, runs[1].Account)
	}

	runs, _ = j.Runs(0)
	if len(runs) != 4 {
		t.Fatalf("expected all 4 runs, got %d", len(runs))
	}
	oldest := runs[3]
	if oldest.Account != "0x01" || !oldest.Deployed || oldest.Network != "testnet" || !oldest.StartTime.Equal(start) {
		t.Fatalf("oldest record not preserved: %+v", oldest)
	}
}

func TestJournalReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewJournal(path, aa.Disabled)
	if err != nil {
		t.Fatalf("NewJournal error: %v", err)
	}
	if err := j.StoreRun(&RunRecord{StartTime: time.Now(), Err: "boom"}); err != nil {
		t.Fatalf("StoreRun error: %v", err)
	}
	j.Close()

	j, err = NewJournal(path, aa.Disabled)
	if err != nil {
		t.Fatalf("NewJournal reopen error: %v", err)
	}
	defer j.Close()
	runs, err := j.Runs(1)
	if err != nil || len(runs) != 1 || runs[0].Err != "boom" {
		t.Fatalf("record lost after reopen: %v, %+v", err, runs)
	}
}
