package storage

import (
	"encoding/json"
	"fmt"
	"sort"

	"bulkmail/models"

	"go.etcd.io/bbolt"
)

// HistoryStorage keeps the local (demo/offline) send history. The email list
// and the message list are stored independently; callers that mutate one are
// responsible for keeping the other consistent.
type HistoryStorage struct {
	db *bbolt.DB
}

// NewHistoryStorage creates a history storage on an initialized database
func NewHistoryStorage(db *bbolt.DB) *HistoryStorage {
	return &HistoryStorage{db: db}
}

// Emails returns the owner's email history in insertion order
func (s *HistoryStorage) Emails(owner string) ([]string, error) {
	var emails []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return readJSON(tx.Bucket(bucketDemoEmails), owner, &emails)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read email history: %w", err)
	}
	return emails, nil
}

// Messages returns the owner's message history, most recent first
func (s *HistoryStorage) Messages(owner string) ([]models.Record, error) {
	var messages []models.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		return readJSON(tx.Bucket(bucketDemoMessages), owner, &messages)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read message history: %w", err)
	}
	return messages, nil
}

// AddEmails appends addresses not already present and returns how many were added
func (s *HistoryStorage) AddEmails(owner string, emails []string) (int, error) {
	added := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDemoEmails)

		var existing []string
		if err := readJSON(bucket, owner, &existing); err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(existing))
		for _, e := range existing {
			seen[e] = struct{}{}
		}
		for _, e := range emails {
			if e == "" {
				continue
			}
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			existing = append(existing, e)
			added++
		}
		return writeJSON(bucket, owner, existing)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save email history: %w", err)
	}
	return added, nil
}

// AddMessages stores records ahead of the existing ones, keeping the list
// ordered most recent first
func (s *HistoryStorage) AddMessages(owner string, records []models.Record) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDemoMessages)

		var existing []models.Record
		if err := readJSON(bucket, owner, &existing); err != nil {
			return err
		}
		merged := make([]models.Record, 0, len(records)+len(existing))
		merged = append(merged, records...)
		merged = append(merged, existing...)
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].Timestamp.After(merged[j].Timestamp)
		})
		return writeJSON(bucket, owner, merged)
	})
	if err != nil {
		return fmt.Errorf("failed to save message history: %w", err)
	}
	return nil
}

// DeleteMessages removes the records whose ids are listed and returns how many were removed
func (s *HistoryStorage) DeleteMessages(owner string, ids []string) (int, error) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDemoMessages)

		var existing []models.Record
		if err := readJSON(bucket, owner, &existing); err != nil {
			return err
		}
		kept := existing[:0]
		for _, rec := range existing {
			if _, ok := drop[rec.ID]; ok {
				removed++
				continue
			}
			kept = append(kept, rec)
		}
		return writeJSON(bucket, owner, kept)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}
	return removed, nil
}

func readJSON(bucket *bbolt.Bucket, key string, v interface{}) error {
	data := bucket.Get([]byte(key))
	if data == nil {
		return nil
	}
	return json.Unmarshal(data, v)
}

func writeJSON(bucket *bbolt.Bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(key), data)
}
