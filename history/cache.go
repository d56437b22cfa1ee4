// Package history mirrors a user's sent-message history and the recipient
// addresses seen in it.
package history

import (
	"context"
	"sort"
	"strings"
	"sync"

	"bulkmail/models"
	"bulkmail/utils"
)

// Cache holds the loaded history of one owner. Mutations go to the source
// first and the cache is refreshed from the source only after it confirms.
type Cache struct {
	mu       sync.RWMutex
	source   Source
	emails   []string
	messages []models.Record
}

// NewCache creates an empty cache over source
func NewCache(source Source) *Cache {
	return &Cache{source: source}
}

// Load replaces the cached lists with the source's content
func (c *Cache) Load(ctx context.Context) error {
	snap, err := c.source.Load(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.emails = snap.Emails
	c.messages = snap.Messages
	c.mu.Unlock()
	return nil
}

// Emails returns the email history in source order
func (c *Cache) Emails() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.emails))
	copy(out, c.emails)
	return out
}

// Messages returns the message history, most recent first
func (c *Cache) Messages() []models.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Record, len(c.messages))
	copy(out, c.messages)
	return out
}

// Find looks up a cached message by id
func (c *Cache) Find(id string) (models.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, rec := range c.messages {
		if rec.ID == id {
			return rec, true
		}
	}
	return models.Record{}, false
}

// ApplySelection turns the sidebar selection into what the composer should
// be filled with. At most one message may be applied; an empty selection
// applies nothing.
func (c *Cache) ApplySelection(emails []string, messageIDs []string) (models.Selection, error) {
	if len(messageIDs) > 1 {
		return models.Selection{}, ErrMultipleMessages
	}

	selection := models.Selection{Emails: dedupe(emails)}
	if len(messageIDs) == 1 {
		rec, ok := c.Find(messageIDs[0])
		if !ok {
			return models.Selection{}, ErrRecordNotFound
		}
		selection.Message = &rec
	}
	return selection, nil
}

// DeleteSelected removes messages by id and reloads
func (c *Cache) DeleteSelected(ctx context.Context, ids []string) error {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return ErrNothingSelected
	}

	if err := c.source.Delete(ctx, ids); err != nil {
		return err
	}
	utils.Log.Debug("Deleted %d history message(s)", len(ids))
	return c.Load(ctx)
}

// DeleteOne removes a single message after confirm approves it
func (c *Cache) DeleteOne(ctx context.Context, id string, confirm func(models.Record) bool) error {
	rec, ok := c.Find(id)
	if !ok {
		return ErrRecordNotFound
	}
	if confirm == nil || !confirm(rec) {
		return ErrNotConfirmed
	}
	return c.DeleteSelected(ctx, []string{id})
}

// Record appends freshly sent records and reloads
func (c *Cache) Record(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := c.source.Append(ctx, records); err != nil {
		return err
	}
	return c.Load(ctx)
}

// RememberEmails adds addresses to the email history without a send
func (c *Cache) RememberEmails(ctx context.Context, emails []string) error {
	emails = dedupe(emails)
	if len(emails) == 0 {
		return ErrNothingSelected
	}
	if err := c.source.AddEmails(ctx, emails); err != nil {
		return err
	}
	return c.Load(ctx)
}

// UniqueEmails projects records to their distinct recipients in first-seen order
func UniqueEmails(records []models.Record) []string {
	emails := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if rec.RecipientEmail == "" {
			continue
		}
		if _, ok := seen[rec.RecipientEmail]; ok {
			continue
		}
		seen[rec.RecipientEmail] = struct{}{}
		emails = append(emails, rec.RecipientEmail)
	}
	return emails
}

func sortRecent(records []models.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
