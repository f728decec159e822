package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"coinfluence/internal/models"
	"coinfluence/internal/repository"
)

const (
	scopePledge        = "pledge"
	scopeTokenCreation = "token_creation"
)

// Keys are chosen by clients, so each is namespaced by the caller it belongs
// to: the pledging wallet, or the influencer being launched.
func pledgeScope(userAddress string) string {
	return scopePledge + ":" + userAddress
}

func tokenCreationScope(influencerID uint) string {
	return fmt.Sprintf("%s:%d", scopeTokenCreation, influencerID)
}

// requestHash fingerprints the normalized request so a reused key with a
// different payload can be told apart from a genuine retry.
func requestHash(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to hash request: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// replayIdempotent loads a stored response for (scope, key) into out.
// It reports false when the key has not been seen.
func replayIdempotent(ctx context.Context, tx *repository.Repository, scope, key, hash string, out interface{}) (bool, error) {
	rec, err := tx.GetIdempotencyKey(ctx, scope, key)
	if err != nil {
		if repository.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load idempotency key: %w", err)
	}
	if rec.RequestHash != hash {
		return false, ErrIdempotencyConflict
	}

	raw, err := json.Marshal(rec.Response)
	if err != nil {
		return false, fmt.Errorf("failed to decode stored response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode stored response: %w", err)
	}
	return true, nil
}

// rememberIdempotent stores the response produced for (scope, key) in the
// caller's transaction. A concurrent request racing on the same key loses on
// the unique index and is reported as a conflict.
func rememberIdempotent(ctx context.Context, tx *repository.Repository, scope, key, hash string, response interface{}) error {
	raw, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	var doc models.JSONB
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	err = tx.SaveIdempotencyKey(ctx, &models.IdempotencyKey{
		Scope:       scope,
		Key:         key,
		RequestHash: hash,
		StatusCode:  http.StatusOK,
		Response:    doc,
	})
	if err != nil {
		if repository.IsDuplicate(err) {
			return ErrIdempotencyConflict
		}
		return fmt.Errorf("failed to store idempotency key: %w", err)
	}
	return nil
}
