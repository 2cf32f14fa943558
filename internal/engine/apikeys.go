package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/events"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/repo"
)

const apiKeyPrefix = "gt_"

// CreateAPIKey issues a key for actorID. The plaintext is returned once; only
// its hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name string) (domain.APIKey, string, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return domain.APIKey{}, "", ValidationError{Fields: map[string]string{"actor_id": "required"}}
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", err
	}
	plain := apiKeyPrefix + hex.EncodeToString(buf)
	now := e.stamp()
	key := domain.APIKey{
		ID:        newID(),
		ActorID:   actorID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureActor(ctx, tx, actorID, now); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := e.events().Append(ctx, tx, events.APIKeyCreated, "", "api_key", key.ID, actorID, events.EventPayload{"name": key.Name}); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plain, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, actorID string) ([]domain.APIKey, error) {
	return e.Repo.ListAPIKeys(ctx, actorID)
}

// RevokeAPIKey deletes one of actorID's keys. Keys of other actors are
// reported as not found.
func (e Engine) RevokeAPIKey(ctx context.Context, id, actorID string) error {
	keys, err := e.Repo.ListAPIKeys(ctx, actorID)
	if err != nil {
		return err
	}
	owned := false
	for _, k := range keys {
		if k.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		return repo.ErrNotFound
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteAPIKey(ctx, tx, id); err != nil {
		return err
	}
	if err := e.events().Append(ctx, tx, events.APIKeyRevoked, "", "api_key", id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}
