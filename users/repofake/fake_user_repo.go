package fakeuserrepo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finledger/auth-server/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory users.Repo for tests.
type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Create(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, taken := ur.emailIds[user.Email]; taken {
		return users.ErrDuplicateEmail
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	cp := *user
	ur.users[cp.ID] = &cp
	ur.emailIds[cp.Email] = cp.ID
	return nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (ur *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *ur.users[id]
	return &cp, nil
}

func (ur *FakeUserRepo) SetRefreshToken(_ context.Context, userID, refreshToken string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[userID]
	if !ok {
		return users.ErrNotFound
	}
	user.RefreshToken = refreshToken
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (ur *FakeUserRepo) RotateRefreshToken(_ context.Context, userID, current, next string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[userID]
	if !ok {
		return users.ErrNotFound
	}
	if user.RefreshToken != current {
		return users.ErrStaleRefreshToken
	}
	user.RefreshToken = next
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (ur *FakeUserRepo) RecordLogin(_ context.Context, userID, refreshToken string, at time.Time) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[userID]
	if !ok {
		return users.ErrNotFound
	}
	user.RefreshToken = refreshToken
	loginAt := at
	user.LastLoginAt = &loginAt
	user.UpdatedAt = at
	return nil
}

func (ur *FakeUserRepo) ClearRefreshToken(_ context.Context, userID string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[userID]
	if !ok {
		return users.ErrNotFound
	}
	user.RefreshToken = ""
	user.UpdatedAt = time.Now().UTC()
	return nil
}
