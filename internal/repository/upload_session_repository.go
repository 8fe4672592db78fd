package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/doc-control-api/internal/models"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
)

const uploadSessionPrefix = "upload:session:"

// UploadSessionRepository keeps upload sessions in Redis until they expire or
// are consumed.
type UploadSessionRepository struct {
	client *redis.Client
}

// NewUploadSessionRepository constructs the repository.
func NewUploadSessionRepository(client *redis.Client) *UploadSessionRepository {
	return &UploadSessionRepository{client: client}
}

// UploadSessionKey returns the Redis key of an upload session.
func UploadSessionKey(uploadID string) string {
	return uploadSessionPrefix + uploadID
}

// Save stores the session with the given TTL.
func (r *UploadSessionRepository) Save(ctx context.Context, session *models.UploadSession, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("save upload session: redis unavailable")
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal upload session: %w", err)
	}
	if err := r.client.Set(ctx, UploadSessionKey(session.UploadID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set upload session: %w", err)
	}
	return nil
}

// Get returns a session; an absent or expired one yields ErrUploadSessionNotFound.
func (r *UploadSessionRepository) Get(ctx context.Context, uploadID string) (*models.UploadSession, error) {
	if r.client == nil {
		return nil, appErrors.ErrUploadSessionNotFound
	}
	raw, err := r.client.Get(ctx, UploadSessionKey(uploadID)).Bytes()
	return decodeSession(raw, err)
}

// Consume atomically reads and deletes a session so it completes at most once.
func (r *UploadSessionRepository) Consume(ctx context.Context, uploadID string) (*models.UploadSession, error) {
	if r.client == nil {
		return nil, appErrors.ErrUploadSessionNotFound
	}
	raw, err := r.client.GetDel(ctx, UploadSessionKey(uploadID)).Bytes()
	return decodeSession(raw, err)
}

func decodeSession(raw []byte, err error) (*models.UploadSession, error) {
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrUploadSessionNotFound
		}
		return nil, fmt.Errorf("redis get upload session: %w", err)
	}
	var session models.UploadSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal upload session: %w", err)
	}
	return &session, nil
}
