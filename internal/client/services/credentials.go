package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/cardgpt/internal/client/client"
	"github.com/dmitrijs2005/cardgpt/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/cardgpt/internal/dbx"
)

const (
	keyCredential = "credential"
	keyAuthMode   = "auth_mode"
)

// CredentialStore keeps the credential medium between runs. Nothing else
// about the session is persisted.
type CredentialStore interface {
	// Load returns the stored credential when it was saved under mode, and
	// a zero credential otherwise.
	Load(ctx context.Context, mode client.AuthMode) (client.Credential, error)
	Save(ctx context.Context, mode client.AuthMode, cred client.Credential) error
	Clear(ctx context.Context) error
}

type sqlCredentialStore struct {
	db *sql.DB
}

// NewCredentialStore returns a CredentialStore over the local metadata table.
func NewCredentialStore(db *sql.DB) CredentialStore {
	return &sqlCredentialStore{db: db}
}

func (s *sqlCredentialStore) Load(ctx context.Context, mode client.AuthMode) (client.Credential, error) {
	repo := metadata.NewSQLiteRepository(s.db)

	storedMode, ok, err := repo.Get(ctx, keyAuthMode)
	if err != nil {
		return client.Credential{}, err
	}
	if !ok || client.AuthMode(storedMode) != mode {
		return client.Credential{}, nil
	}

	raw, ok, err := repo.Get(ctx, keyCredential)
	if err != nil || !ok {
		return client.Credential{}, err
	}

	var cred client.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return client.Credential{}, fmt.Errorf("decode stored credential: %w", err)
	}
	return cred, nil
}

// Save writes mode and credential in a single transaction.
func (s *sqlCredentialStore) Save(ctx context.Context, mode client.AuthMode, cred client.Credential) error {
	raw, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Put(ctx, keyAuthMode, []byte(mode)); err != nil {
			return err
		}
		return repo.Put(ctx, keyCredential, raw)
	})
}

func (s *sqlCredentialStore) Clear(ctx context.Context) error {
	return metadata.NewSQLiteRepository(s.db).Delete(ctx, keyAuthMode, keyCredential)
}
