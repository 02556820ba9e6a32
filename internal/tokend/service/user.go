package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aussiebroadwan/tokend/internal/tokend/domain"
	"github.com/aussiebroadwan/tokend/internal/tokend/store"
	"github.com/aussiebroadwan/tokend/pkg/cryptox"
	"github.com/aussiebroadwan/tokend/pkg/idx"
)

const (
	MinPasswordLength = 8
	MaxUsernameLength = 64
)

var (
	ErrUsernameAlreadyTaken = errors.New("username already taken")
	ErrWeakPassword         = errors.New("password too short")
	ErrInvalidUsername      = errors.New("invalid username")
)

// UserService manages credentials for the operator CLI. The token endpoint
// never writes through it.
type UserService struct {
	Store  store.Store
	Hasher *cryptox.Hasher
}

// CreateUser hashes password and stores a new credential.
func (s *UserService) CreateUser(ctx context.Context, username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || utf8.RuneCountInString(username) > MaxUsernameLength || strings.ContainsAny(username, " \t\r\n") {
		return domain.User{}, ErrInvalidUsername
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return domain.User{}, ErrWeakPassword
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrUsernameAlreadyTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return s.Store.Users().GetUserByID(ctx, u.ID)
}

// SetPassword replaces the password of an existing user.
func (s *UserService) SetPassword(ctx context.Context, username, password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.Store.Users().UpdatePasswordHash(ctx, u.ID, hash)
}
