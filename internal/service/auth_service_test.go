package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"booknest/internal/auth"
	"booknest/internal/errors"
	"booknest/internal/model"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

// MockTokenStore is a mock implementation of TokenStoreInterface.
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

func hashedUser(t *testing.T, password string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &model.User{ID: 1, Username: "alice", Email: "alice@example.com", PasswordHash: string(hash), Role: model.RoleUser}
}

func TestAuthService_Register(t *testing.T) {
	tests := []struct {
		name          string
		role          string
		setupMock     func(*MockUserRepository)
		expectedError error
		expectedRole  model.UserRole
	}{
		{
			name: "successful registration",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "alice@example.com").Return(nil, gorm.ErrRecordNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)
			},
			expectedRole: model.RoleUser,
		},
		{
			name: "admin registration",
			role: "admin",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "alice@example.com").Return(nil, gorm.ErrRecordNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)
			},
			expectedRole: model.RoleAdmin,
		},
		{
			name:          "unknown role",
			role:          "root",
			setupMock:     func(m *MockUserRepository) {},
			expectedError: errors.ErrInvalidRole,
		},
		{
			name: "email already registered",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "alice@example.com").Return(&model.User{ID: 1}, nil)
			},
			expectedError: errors.ErrEmailTaken,
		},
		{
			name: "concurrent registration wins the unique index",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "alice@example.com").Return(nil, gorm.ErrRecordNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(gorm.ErrDuplicatedKey)
			},
			expectedError: errors.ErrEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			tt.setupMock(repo)
			svc := NewAuthService(repo, auth.NewJWTService("secret"), new(MockTokenStore))

			user, err := svc.Register(context.Background(), "alice", "alice@example.com", "password123", tt.role)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "alice@example.com", user.Email)
				assert.Equal(t, tt.expectedRole, user.Role)
				assert.NotEqual(t, "password123", user.PasswordHash)
				assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	user := hashedUser(t, "password123")

	tests := []struct {
		name          string
		email         string
		password      string
		setupMocks    func(*MockUserRepository, *MockTokenStore)
		expectedError error
	}{
		{
			name:     "successful login",
			email:    user.Email,
			password: "password123",
			setupMocks: func(r *MockUserRepository, s *MockTokenStore) {
				r.On("FindByEmail", mock.Anything, user.Email).Return(user, nil)
				s.On("StoreRefreshToken", mock.Anything, mock.AnythingOfType("string"), user.ID, auth.RefreshTokenExpiry).Return(nil)
			},
		},
		{
			name:     "wrong password",
			email:    user.Email,
			password: "nope",
			setupMocks: func(r *MockUserRepository, s *MockTokenStore) {
				r.On("FindByEmail", mock.Anything, user.Email).Return(user, nil)
			},
			expectedError: errors.ErrInvalidCredentials,
		},
		{
			name:     "unknown email",
			email:    "ghost@example.com",
			password: "password123",
			setupMocks: func(r *MockUserRepository, s *MockTokenStore) {
				r.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, gorm.ErrRecordNotFound)
			},
			expectedError: errors.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			store := new(MockTokenStore)
			tt.setupMocks(repo, store)
			jwtService := auth.NewJWTService("secret")
			svc := NewAuthService(repo, jwtService, store)

			access, refresh, got, err := svc.Login(context.Background(), tt.email, tt.password)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Empty(t, access)
			} else {
				require.NoError(t, err)
				assert.Equal(t, user.ID, got.ID)
				claims, err := jwtService.ValidateToken(access)
				require.NoError(t, err)
				assert.Equal(t, model.RoleUser, claims.Role)
				_, err = jwtService.ValidateToken(refresh)
				assert.NoError(t, err)
			}
			repo.AssertExpectations(t)
			store.AssertExpectations(t)
		})
	}
}

func TestAuthService_RefreshToken(t *testing.T) {
	user := hashedUser(t, "password123")
	jwtService := auth.NewJWTService("secret")
	tokenID, refresh, err := jwtService.GenerateRefreshToken(user)
	require.NoError(t, err)

	t.Run("tracked token", func(t *testing.T) {
		repo := new(MockUserRepository)
		store := new(MockTokenStore)
		promoted := *user
		promoted.Role = model.RoleAdmin
		store.On("GetRefreshToken", mock.Anything, tokenID).Return(user.ID, nil)
		repo.On("FindByID", mock.Anything, user.ID).Return(&promoted, nil)

		access, err := NewAuthService(repo, jwtService, store).RefreshToken(context.Background(), refresh)
		require.NoError(t, err)
		claims, err := jwtService.ValidateToken(access)
		require.NoError(t, err)
		assert.Equal(t, model.RoleAdmin, claims.Role, "refreshed token reflects current role")
		store.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("forgotten token", func(t *testing.T) {
		store := new(MockTokenStore)
		store.On("GetRefreshToken", mock.Anything, tokenID).Return(uint(0), errors.ErrInvalidToken)

		_, err := NewAuthService(new(MockUserRepository), jwtService, store).RefreshToken(context.Background(), refresh)
		assert.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := NewAuthService(new(MockUserRepository), jwtService, new(MockTokenStore)).RefreshToken(context.Background(), "garbage")
		assert.ErrorIs(t, err, errors.ErrInvalidToken)
	})

	t.Run("access token presented as refresh token", func(t *testing.T) {
		access, err := jwtService.GenerateAccessToken(user)
		require.NoError(t, err)
		_, err = NewAuthService(new(MockUserRepository), jwtService, new(MockTokenStore)).RefreshToken(context.Background(), access)
		assert.ErrorIs(t, err, errors.ErrInvalidToken)
	})
}

func TestAuthService_Logout(t *testing.T) {
	user := hashedUser(t, "password123")
	jwtService := auth.NewJWTService("secret")
	refreshID, refresh, err := jwtService.GenerateRefreshToken(user)
	require.NoError(t, err)
	access, err := jwtService.GenerateAccessToken(user)
	require.NoError(t, err)
	accessClaims, err := jwtService.ValidateToken(access)
	require.NoError(t, err)

	store := new(MockTokenStore)
	store.On("DeleteRefreshToken", mock.Anything, refreshID).Return(nil)
	store.On("BlacklistAccessToken", mock.Anything, accessClaims.ID, mock.MatchedBy(func(ttl time.Duration) bool {
		return ttl > 0 && ttl <= auth.AccessTokenExpiry
	})).Return(nil)

	svc := NewAuthService(new(MockUserRepository), jwtService, store)
	require.NoError(t, svc.Logout(context.Background(), refresh, access))
	store.AssertExpectations(t)

	assert.ErrorIs(t, svc.Logout(context.Background(), "garbage", ""), errors.ErrInvalidToken)
}
