package history

import (
	"context"

	"bulkmail/models"
	"bulkmail/storage"
)

// Snapshot is the content of a source at one point in time
type Snapshot struct {
	Emails   []string
	Messages []models.Record
}

// Source is where a history comes from. A deployment uses exactly one kind
// of source for a given owner.
type Source interface {
	Load(ctx context.Context) (Snapshot, error)
	Append(ctx context.Context, records []models.Record) error
	AddEmails(ctx context.Context, emails []string) error
	Delete(ctx context.Context, ids []string) error
}

// RemoteAPI is the subset of the config service used for history
type RemoteAPI interface {
	ListHistory(ctx context.Context, token string) ([]models.Record, error)
	SaveHistory(ctx context.Context, token string, records []models.Record) error
	DeleteHistory(ctx context.Context, token string, ids []string) error
}

// RemoteSource reads and writes the history kept by the config service,
// scoped by the owner's token. It is authoritative.
type RemoteSource struct {
	api   RemoteAPI
	token string
}

// NewRemoteSource creates a remote source for the owner of token
func NewRemoteSource(api RemoteAPI, token string) *RemoteSource {
	return &RemoteSource{api: api, token: token}
}

// Load fetches the messages and derives the email list from them
func (s *RemoteSource) Load(ctx context.Context) (Snapshot, error) {
	records, err := s.api.ListHistory(ctx, s.token)
	if err != nil {
		return Snapshot{}, err
	}
	sortRecent(records)
	return Snapshot{Emails: UniqueEmails(records), Messages: records}, nil
}

// Append stores new records
func (s *RemoteSource) Append(ctx context.Context, records []models.Record) error {
	return s.api.SaveHistory(ctx, s.token, records)
}

// AddEmails is a no-op: remote emails only exist through messages
func (s *RemoteSource) AddEmails(ctx context.Context, emails []string) error {
	return nil
}

// Delete removes records by id
func (s *RemoteSource) Delete(ctx context.Context, ids []string) error {
	return s.api.DeleteHistory(ctx, s.token, ids)
}

// LocalSource keeps the history in the local database. Used by the demo page
// and by deployments running with history.mode = "local".
type LocalSource struct {
	store *storage.HistoryStorage
	owner string
}

// NewLocalSource creates a local source for owner
func NewLocalSource(store *storage.HistoryStorage, owner string) *LocalSource {
	return &LocalSource{store: store, owner: owner}
}

// Load reads both lists as stored
func (s *LocalSource) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	emails, err := s.store.Emails(s.owner)
	if err != nil {
		return Snapshot{}, err
	}
	messages, err := s.store.Messages(s.owner)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Emails: emails, Messages: messages}, nil
}

// Append stores the records and remembers their recipients, keeping the
// two independent lists consistent
func (s *LocalSource) Append(ctx context.Context, records []models.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.AddMessages(s.owner, records); err != nil {
		return err
	}
	_, err := s.store.AddEmails(s.owner, UniqueEmails(records))
	return err
}

// AddEmails remembers addresses without sending anything
func (s *LocalSource) AddEmails(ctx context.Context, emails []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.store.AddEmails(s.owner, emails)
	return err
}

// Delete removes records by id. The email list is left alone.
func (s *LocalSource) Delete(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.store.DeleteMessages(s.owner, ids)
	return err
}
