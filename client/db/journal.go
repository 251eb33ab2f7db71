// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package db is the provisioning run journal. It records what each run did
// for later inspection and is never used to decide whether an account exists.
package db

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"decred.org/kernelprov/aa"
	"go.etcd.io/bbolt"
)

var runsBucket = []byte("runs")

// RunRecord is the journal entry for one provisioning run.
type RunRecord struct {
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	Network         string    `json:"network"`
	Owner           string    `json:"owner"`
	Salt            string    `json:"salt"`
	Account         string    `json:"account,omitempty"`
	Deployed        bool      `json:"deployed"`
	DeployTx        string    `json:"deployTx,omitempty"`
	DerivedMismatch bool      `json:"derivedMismatch"`
	Outcome         string    `json:"outcome,omitempty"`
	OutcomeHash     string    `json:"outcomeHash,omitempty"`
	Err             string    `json:"err,omitempty"`
}

// Journal is a bbolt-backed store of RunRecords keyed by start time.
type Journal struct {
	*bbolt.DB
	log aa.Logger
}

// NewJournal opens or creates the journal database at path.
func NewJournal(path string, log aa.Logger) (*Journal, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("error opening journal %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{DB: db, log: log}, nil
}

func timeKey(t time.Time) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(t.UnixNano()))
	return k
}

// StoreRun adds a record. Records with the same start time are stored under
// the next free nanosecond.
func (j *Journal) StoreRun(r *RunRecord) error {
	v, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return j.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(runsBucket)
		if bkt == nil {
			return fmt.Errorf("runs bucket not found")
		}
		k := timeKey(r.StartTime)
		for bkt.Get(k) != nil {
			binary.BigEndian.PutUint64(k, binary.BigEndian.Uint64(k)+1)
		}
		j.log.Debugf("Storing run record for account %s", r.Account)
		return bkt.Put(k, v)
	})
}

// Runs returns up to n records, newest first. n <= 0 returns all records.
func (j *Journal) Runs(n int) ([]*RunRecord, error) {
	var runs []*RunRecord
	err := j.View(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(runsBucket)
		if bkt == nil {
			return fmt.Errorf("runs bucket not found")
		}
		cursor := bkt.Cursor()
		for k, v := cursor.Last(); k != nil; k, v = cursor.Prev() {
			if n > 0 && len(runs) >= n {
				break
			}
			r := new(RunRecord)
			if err := json.Unmarshal(v, r); err != nil {
				return fmt.Errorf("error decoding run %x: %w", k, err)
			}
			runs = append(runs, r)
		}
		return nil
	})
	return runs, err
}
