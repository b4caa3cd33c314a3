package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tsreddit/internal/auth"
	"tsreddit/internal/model"
)

// MockTokenStore is a mock implementation of auth.TokenStoreInterface.
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) StoreRefreshToken(ctx context.Context, tokenID string, userID uint, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, userID, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) GetRefreshToken(ctx context.Context, tokenID string) (uint, error) {
	args := m.Called(ctx, tokenID)
	return args.Get(0).(uint), args.Error(1)
}

func (m *MockTokenStore) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

func (m *MockTokenStore) BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

func TestSessionService_IssueAndRefresh(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret")
	mockTokenStore := new(MockTokenStore)
	svc := NewSessionService(jwtService, mockTokenStore)
	user := &model.User{ID: 5, Name: "alice"}

	mockTokenStore.On("StoreRefreshToken", mock.Anything, mock.AnythingOfType("string"), uint(5), auth.RefreshTokenExpiry).Return(nil)
	access, refresh, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)
	assert.NotEmpty(t, access)

	claims, err := jwtService.ValidateRefreshToken(refresh)
	require.NoError(t, err)
	mockTokenStore.On("GetRefreshToken", mock.Anything, claims.ID).Return(uint(5), nil)

	fresh, err := svc.RefreshToken(context.Background(), refresh)
	require.NoError(t, err)
	accessClaims, err := jwtService.ValidateAccessToken(fresh)
	require.NoError(t, err)
	assert.Equal(t, uint(5), accessClaims.UserID)

	mockTokenStore.AssertExpectations(t)
}

func TestSessionService_RefreshToken(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret")
	tokenID, refresh, err := jwtService.GenerateRefreshToken(5, "alice")
	require.NoError(t, err)
	access, err := jwtService.GenerateAccessToken(5, "alice")
	require.NoError(t, err)

	tests := []struct {
		name          string
		token         string
		setupMock     func(*MockTokenStore)
		expectedError error
	}{
		{
			name:  "revoked token",
			token: refresh,
			setupMock: func(m *MockTokenStore) {
				m.On("GetRefreshToken", mock.Anything, tokenID).Return(uint(0), auth.ErrTokenRevoked)
			},
			expectedError: ErrInvalidRefreshToken,
		},
		{
			name:  "owner mismatch",
			token: refresh,
			setupMock: func(m *MockTokenStore) {
				m.On("GetRefreshToken", mock.Anything, tokenID).Return(uint(6), nil)
			},
			expectedError: ErrInvalidRefreshToken,
		},
		{
			name:          "access token presented",
			token:         access,
			setupMock:     func(m *MockTokenStore) {},
			expectedError: ErrInvalidRefreshToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTokenStore := new(MockTokenStore)
			tt.setupMock(mockTokenStore)
			svc := NewSessionService(jwtService, mockTokenStore)

			got, err := svc.RefreshToken(context.Background(), tt.token)

			assert.Equal(t, tt.expectedError, err)
			assert.Empty(t, got)
			mockTokenStore.AssertExpectations(t)
		})
	}
}

func TestSessionService_Logout(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret")
	tokenID, refresh, err := jwtService.GenerateRefreshToken(5, "alice")
	require.NoError(t, err)
	access, err := jwtService.GenerateAccessToken(5, "alice")
	require.NoError(t, err)
	accessClaims, err := jwtService.ValidateAccessToken(access)
	require.NoError(t, err)

	mockTokenStore := new(MockTokenStore)
	mockTokenStore.On("DeleteRefreshToken", mock.Anything, tokenID).Return(nil)
	mockTokenStore.On("BlacklistAccessToken", mock.Anything, accessClaims.ID, mock.AnythingOfType("time.Duration")).Return(nil)
	svc := NewSessionService(jwtService, mockTokenStore)

	require.NoError(t, svc.Logout(context.Background(), refresh, accessClaims))
	mockTokenStore.AssertExpectations(t)
}

func TestSessionService_LogoutErrors(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret")
	tokenID, refresh, err := jwtService.GenerateRefreshToken(5, "alice")
	require.NoError(t, err)

	svc := NewSessionService(jwtService, new(MockTokenStore))
	assert.Equal(t, ErrInvalidRefreshToken, svc.Logout(context.Background(), "garbage", nil))
	assert.Equal(t, ErrInvalidRefreshToken, svc.Logout(context.Background(), refresh, &auth.Claims{UserID: 9}))

	mockTokenStore := new(MockTokenStore)
	mockTokenStore.On("DeleteRefreshToken", mock.Anything, tokenID).Return(errors.New("redis down"))
	svc = NewSessionService(jwtService, mockTokenStore)
	assert.Error(t, svc.Logout(context.Background(), refresh, nil))
}
