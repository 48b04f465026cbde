// Package supabase persists interview records in a Supabase (PostgREST) table.
package supabase

import (
	"context"
	"fmt"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	pkgerrors "github.com/AltairaLabs/InterviewKit/pkg/errors"
	"github.com/AltairaLabs/InterviewKit/runtime/interview"
	"github.com/AltairaLabs/InterviewKit/runtime/records"
)

const component = "records"

// DefaultTable is used when Config.Table is empty.
const DefaultTable = "interviews"

// Config holds the project credentials and target table.
type Config struct {
	URL            string
	ServiceRoleKey string
	Table          string
}

// tableAPI is the subset of the client the store uses. Both the Supabase
// client and a bare PostgREST client satisfy it.
type tableAPI interface {
	From(table string) *postgrest.QueryBuilder
}

// Store implements records.Store with the PostgREST API of a Supabase project.
type Store struct {
	client tableAPI
	table  string
}

var _ records.Store = (*Store)(nil)

// New creates a store from project credentials.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" || cfg.ServiceRoleKey == "" {
		return nil, fmt.Errorf("supabase url and service role key are required")
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}
	return &Store{client: client, table: cfg.Table}, nil
}

// Create inserts rec and returns the id assigned by the database.
func (s *Store) Create(ctx context.Context, rec *interview.InterviewRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if rec == nil {
		return "", fmt.Errorf("record is nil")
	}

	var rows []interview.InterviewRecord
	_, err := s.client.From(s.table).
		Insert(rec.Fields(), false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return "", pkgerrors.New(component, "Create", err)
	}
	if len(rows) == 0 || rows[0].ID == "" {
		return "", pkgerrors.New(component, "Create", fmt.Errorf("insert returned no id"))
	}
	return rows[0].ID, nil
}

// Update sets fields on the record with id.
func (s *Store) Update(ctx context.Context, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := records.ValidateFields(fields); err != nil {
		return err
	}

	var rows []interview.InterviewRecord
	_, err := s.client.From(s.table).
		Update(fields, "representation", "").
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return pkgerrors.New(component, "Update", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: %s", records.ErrNotFound, id)
	}
	return nil
}

// GetByID reads the record with id.
func (s *Store) GetByID(ctx context.Context, id string) (*interview.InterviewRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []interview.InterviewRecord
	_, err := s.client.From(s.table).
		Select("*", "", false).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return nil, pkgerrors.New(component, "GetByID", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", records.ErrNotFound, id)
	}
	return &rows[0], nil
}
