package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maruel/awth/internal/docdb"
	"github.com/maruel/awth/internal/storage/entity"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUserNotFound is returned when no live user has the requested ID.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned on registration with an email already in use.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials is returned by [UserService.Authenticate].
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInput wraps validation failures.
	ErrInvalidInput = errors.New("invalid input")

	errPasswordRequired = errors.New("password is required")
)

// UserService handles user management and authentication.
type UserService struct {
	db   *DB
	cost int

	// dummyHash is compared against when the email is unknown, so that
	// unknown emails take as long as bad passwords.
	dummyHash func() []byte
}

// NewUserService creates a new user service hashing passwords with the given
// bcrypt cost.
func NewUserService(db *DB, cost int) *UserService {
	s := &UserService{db: db, cost: cost}
	s.dummyHash = sync.OnceValue(func() []byte {
		h, _ := bcrypt.GenerateFromPassword([]byte("dummy password"), cost)
		return h
	})
	return s
}

// Register creates a user. The email must not be used by another user.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*entity.User, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, errPasswordRequired)
	}
	// Hash outside of the lock: bcrypt is slow on purpose.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	u := &entity.User{
		Meta:         docdb.NewMeta(docdb.NewID()),
		Username:     username,
		Email:        entity.NormalizeEmail(email),
		PasswordHash: hash,
		Posts:        docdb.NewRelation[*entity.Post](),
	}
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	err = s.db.Users.Do(func(c *docdb.Collection[*entity.User]) error {
		if s.db.emails.Has(u.Email) {
			return ErrUserExists
		}
		if !c.Add(u) {
			return fmt.Errorf("failed to add user %s", u.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "storage: registered user", "id", u.ID, "username", u.Username)
	return u.Clone(), nil
}

// Get returns the user with the given ID.
func (s *UserService) Get(id docdb.ID) (*entity.User, error) {
	u, ok := s.db.Users.Get(id)
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// Authenticate verifies user credentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	var u *entity.User
	_ = s.db.Users.Do(func(*docdb.Collection[*entity.User]) error {
		if row, ok := s.db.emails.Get(entity.NormalizeEmail(email)); ok {
			u = row.Clone()
		}
		return nil
	})
	if u == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		slog.InfoContext(ctx, "storage: authentication failed", "id", u.ID)
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Posts returns the posts of u that still exist, in relation order. u is
// typically a clone obtained from Get or Authenticate.
func (s *UserService) Posts(u *entity.User) []*entity.Post {
	var out []*entity.Post
	_ = s.db.Posts.Do(func(c *docdb.Collection[*entity.Post]) error {
		for _, p := range u.Posts.Present(c) {
			out = append(out, p.Clone())
		}
		return nil
	})
	return out
}

// Count returns the number of live users.
func (s *UserService) Count() int {
	return s.db.Users.Stats().Live
}
