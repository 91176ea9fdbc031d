// Package ledger remembers what was last reported for each contact, so
// digests only mention contacts whose standing changed.
package ledger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/xaenox/leadbot/internal/scoring"
)

var reportsBucket = []byte("reports")

// Entry is the last reported standing of a contact.
type Entry struct {
	Category   scoring.Category `json:"category"`
	Score      float64          `json:"score"`
	ReportedAt time.Time        `json:"reported_at"`
}

// Ledger is a bolt-backed map from user id to Entry.
type Ledger struct {
	db *bolt.DB

	// ScoreDelta is the smallest score movement that counts as a change.
	ScoreDelta float64
}

func Open(path string, scoreDelta float64) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create ledger directory: %w", err)
		}
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open ledger %q: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(reportsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not ensure ledger bucket exists: %w", err)
	}
	return &Ledger{db: db, ScoreDelta: scoreDelta}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func id2key(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

// Get returns the recorded entry for a user, if any.
func (l *Ledger) Get(userID int64) (Entry, bool, error) {
	var (
		e     Entry
		found bool
	)
	err := l.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(reportsBucket).Get(id2key(userID))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &e)
	})
	return e, found, err
}

// Changed reports whether the category differs from the recorded one or the
// score moved by at least ScoreDelta. Unrecorded contacts always count as
// changed.
func (l *Ledger) Changed(userID int64, score scoring.LeadScore) (bool, error) {
	e, found, err := l.Get(userID)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}
	if e.Category != score.Category {
		return true, nil
	}
	return math.Abs(e.Score-score.Score) >= l.ScoreDelta, nil
}

// Record stores the given scores in one transaction.
func (l *Ledger) Record(scores map[int64]scoring.LeadScore, at time.Time) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(reportsBucket)
		for userID, s := range scores {
			v, err := json.Marshal(Entry{Category: s.Category, Score: s.Score, ReportedAt: at})
			if err != nil {
				return err
			}
			if err := b.Put(id2key(userID), v); err != nil {
				return err
			}
		}
		return nil
	})
}
