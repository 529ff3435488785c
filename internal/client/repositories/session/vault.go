// Package session persists the signed-in session in the local state database,
// sealed with AES-GCM under a key derived from the device secret. Vault
// implements rest.SessionStore.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/farmmarket/internal/client/models"
	"github.com/dmitrijs2005/farmmarket/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/farmmarket/internal/common"
	"github.com/dmitrijs2005/farmmarket/internal/cryptox"
	"github.com/dmitrijs2005/farmmarket/internal/dbx"
)

const (
	keySession = "session"
	keyNonce   = "session_nonce"
	keySalt    = "vault_salt"

	saltSize = 16
)

// ErrSealed is returned when the stored session cannot be opened with the
// current device secret.
var ErrSealed = errors.New("stored session cannot be opened")

type Vault struct {
	db     *sql.DB
	secret []byte

	mu  sync.Mutex
	key []byte
}

func NewVault(db *sql.DB, secret string) *Vault {
	return &Vault{db: db, secret: []byte(secret)}
}

// sealKey derives the vault key once, creating the salt on first use.
func (v *Vault) sealKey(ctx context.Context) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key != nil {
		return v.key, nil
	}

	repo := metadata.NewSQLiteRepository(v.db)
	salt, err := repo.Get(ctx, keySalt)
	if errors.Is(err, common.ErrNotFound) {
		salt = common.GenerateRandByteArray(saltSize)
		err = repo.Set(ctx, keySalt, salt)
	}
	if err != nil {
		return nil, err
	}

	key, err := cryptox.DeriveKey(v.secret, salt)
	if err != nil {
		return nil, err
	}
	v.key = key
	return key, nil
}

func (v *Vault) Load(ctx context.Context) (*models.Session, error) {
	repo := metadata.NewSQLiteRepository(v.db)

	ct, err := repo.Get(ctx, keySession)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	nonce, err := repo.Get(ctx, keyNonce)
	if err != nil {
		return nil, err
	}

	key, err := v.sealKey(ctx)
	if err != nil {
		return nil, err
	}

	var s models.Session
	if err := cryptox.Open(ct, nonce, key, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSealed, err)
	}
	return &s, nil
}

func (v *Vault) Save(ctx context.Context, s *models.Session) error {
	key, err := v.sealKey(ctx)
	if err != nil {
		return err
	}

	ct, nonce, err := cryptox.Seal(s, key)
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}

	return dbx.WithTx(ctx, v.db, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, keySession, ct); err != nil {
			return err
		}
		return repo.Set(ctx, keyNonce, nonce)
	})
}

func (v *Vault) Clear(ctx context.Context) error {
	return metadata.NewSQLiteRepository(v.db).Delete(ctx, keySession, keyNonce)
}

// Close wipes the derived key from memory.
func (v *Vault) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	common.WipeByteArray(v.key)
	v.key = nil
	common.WipeByteArray(v.secret)
}
