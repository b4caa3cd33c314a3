package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tsreddit/internal/auth"
	"tsreddit/internal/model"
)

// ErrInvalidRefreshToken is returned for unknown, expired or revoked refresh tokens.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// SessionService issues and revokes bearer tokens. Credential checks are
// not part of this service; tokens are minted for already known users.
type SessionService interface {
	Issue(ctx context.Context, user *model.User) (accessToken, refreshToken string, err error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string, access *auth.Claims) error
}

type sessionService struct {
	jwtService *auth.JWTService
	tokenStore auth.TokenStoreInterface
	now        func() time.Time
}

// NewSessionService creates a new session service.
func NewSessionService(jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface) SessionService {
	return &sessionService{
		jwtService: jwtService,
		tokenStore: tokenStore,
		now:        time.Now,
	}
}

func (s *sessionService) Issue(ctx context.Context, user *model.User) (string, string, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Name)
	if err != nil {
		return "", "", fmt.Errorf("generate access token: %w", err)
	}
	tokenID, refreshToken, err := s.jwtService.GenerateRefreshToken(user.ID, user.Name)
	if err != nil {
		return "", "", fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, user.ID, auth.RefreshTokenExpiry); err != nil {
		return "", "", fmt.Errorf("store refresh token: %w", err)
	}
	return accessToken, refreshToken, nil
}

func (s *sessionService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}

	storedUserID, err := s.tokenStore.GetRefreshToken(ctx, claims.ID)
	if err != nil || storedUserID != claims.UserID {
		return "", ErrInvalidRefreshToken
	}

	accessToken, err := s.jwtService.GenerateAccessToken(claims.UserID, claims.Name)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return accessToken, nil
}

// Logout revokes the refresh token and, when the caller presented one, the
// access token of the current request.
func (s *sessionService) Logout(ctx context.Context, refreshToken string, access *auth.Claims) error {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return ErrInvalidRefreshToken
	}
	if access != nil && access.UserID != claims.UserID {
		return ErrInvalidRefreshToken
	}

	if err := s.tokenStore.DeleteRefreshToken(ctx, claims.ID); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	if access != nil {
		if ttl := access.Remaining(s.now()); ttl > 0 {
			if err := s.tokenStore.BlacklistAccessToken(ctx, access.ID, ttl); err != nil {
				return fmt.Errorf("blacklist access token: %w", err)
			}
		}
	}
	return nil
}
