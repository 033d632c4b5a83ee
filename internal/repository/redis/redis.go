package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"garageBooking/domain"

	"github.com/redis/go-redis/v9"
)

var ErrTokenNotFound = errors.New("token not found or expired")

type TokenRepository struct {
	client *redis.Client
}

func NewTokenRepository(client *redis.Client) *TokenRepository {
	return &TokenRepository{
		client: client,
	}
}

func userKey(userID uint) string {
	return fmt.Sprintf("token:user:%d", userID)
}

func lookupKey(token string) string {
	return fmt.Sprintf("token:lookup:%s", token)
}

// StoreToken keeps one session per account. A previous session's lookup key
// is dropped so the old token stops validating.
func (r *TokenRepository) StoreToken(ctx context.Context, data domain.Session, ttl time.Duration) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal token data: %w", err)
	}

	if prev, err := r.GetSession(ctx, data.UserID); err == nil && prev.Token != data.Token {
		r.client.Del(ctx, lookupKey(prev.Token))
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, userKey(data.UserID), jsonData, ttl)
	pipe.Set(ctx, lookupKey(data.Token), data.UserID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store token in Redis: %w", err)
	}

	return nil
}

// GetSession retrieve session data by user ID
func (r *TokenRepository) GetSession(ctx context.Context, userID uint) (*domain.Session, error) {
	val, err := r.client.Get(ctx, userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token from Redis: %w", err)
	}

	var tokenData domain.Session
	if err := json.Unmarshal([]byte(val), &tokenData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token data: %w", err)
	}

	return &tokenData, nil
}

// ValidateToken returns the account a live token belongs to.
func (r *TokenRepository) ValidateToken(ctx context.Context, token string) (uint, error) {
	userID, err := r.client.Get(ctx, lookupKey(token)).Uint64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrTokenNotFound
		}
		return 0, fmt.Errorf("failed to validate token: %w", err)
	}

	return uint(userID), nil
}

// RefreshTokenTTL extends the token expiration time
func (r *TokenRepository) RefreshTokenTTL(ctx context.Context, userID uint, newTTL time.Duration) error {
	tokenData, err := r.GetSession(ctx, userID)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Expire(ctx, userKey(userID), newTTL)
	pipe.Expire(ctx, lookupKey(tokenData.Token), newTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to refresh token TTL: %w", err)
	}

	return nil
}

// RevokeToken ends the account's session. Missing sessions are not an error.
func (r *TokenRepository) RevokeToken(ctx context.Context, userID uint) error {
	keys := []string{userKey(userID)}
	if tokenData, err := r.GetSession(ctx, userID); err == nil {
		keys = append(keys, lookupKey(tokenData.Token))
	} else if !errors.Is(err, ErrTokenNotFound) {
		return err
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	return nil
}

// ClaimResetCode marks a password reset code as used. It reports false when
// the code was already claimed.
func (r *TokenRepository) ClaimResetCode(ctx context.Context, code string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, "reset:used:"+code, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim reset code: %w", err)
	}

	return ok, nil
}
