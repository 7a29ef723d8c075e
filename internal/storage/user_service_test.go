package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUserService(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)
	users := NewUserService(db, testConfig().BcryptCost)

	u, err := users.Register(ctx, "ada", " Ada@Example.com", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if u.Email != "ada@example.com" {
		t.Errorf("Email = %q, want normalized", u.Email)
	}
	if string(u.PasswordHash) == "secret" {
		t.Error("password stored in clear")
	}

	t.Run("Register", func(t *testing.T) {
		tests := []struct {
			name                      string
			username, email, password string
			want                      error
		}{
			{"duplicate email", "bob", "ADA@example.com", "x", ErrUserExists},
			{"missing password", "bob", "bob@example.com", "", ErrInvalidInput},
			{"missing username", "", "bob@example.com", "x", ErrInvalidInput},
			{"bad email", "bob", "bob", "x", ErrInvalidInput},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := users.Register(ctx, tt.username, tt.email, tt.password); !errors.Is(err, tt.want) {
					t.Errorf("Register() = %v, want %v", err, tt.want)
				}
			})
		}
		if n := users.Count(); n != 1 {
			t.Errorf("Count() = %d, want 1", n)
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		got, err := users.Authenticate(ctx, "ada@EXAMPLE.com", "secret")
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != u.ID {
			t.Errorf("ID = %s, want %s", got.ID, u.ID)
		}
		for _, c := range []struct{ email, password string }{
			{"ada@example.com", "wrong"},
			{"nobody@example.com", "secret"},
		} {
			if _, err := users.Authenticate(ctx, c.email, c.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Authenticate(%q, %q) = %v", c.email, c.password, err)
			}
		}
	})

	t.Run("Get", func(t *testing.T) {
		got, err := users.Get(u.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Username != "ada" {
			t.Errorf("Username = %q", got.Username)
		}
		if _, err := users.Get(u.ID + 1); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("Get(unknown) = %v", err)
		}
	})
}

func TestPostService(t *testing.T) {
	ctx := context.Background()
	db, _ := newTestDB(t)
	users := NewUserService(db, testConfig().BcryptCost)
	posts := NewPostService(db)
	u, err := users.Register(ctx, "ada", "ada@example.com", "secret")
	if err != nil {
		t.Fatal(err)
	}

	var ids []string
	for _, caption := range []string{"a", "b", "c"} {
		p, err := posts.Create(ctx, u.ID, caption)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, p.ID.String())
	}

	captions := func() []string {
		t.Helper()
		got, err := users.Get(u.ID)
		if err != nil {
			t.Fatal(err)
		}
		var out []string
		for _, p := range users.Posts(got) {
			out = append(out, p.Caption)
		}
		return out
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, captions()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	t.Run("Create errors", func(t *testing.T) {
		before := db.Posts.Stats().Live
		if _, err := posts.Create(ctx, u.ID+1, "orphan"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("Create(unknown user) = %v", err)
		}
		if _, err := posts.Create(ctx, u.ID, " "); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Create(blank) = %v", err)
		}
		if after := db.Posts.Stats().Live; after != before {
			t.Errorf("live posts = %d, want %d", after, before)
		}
	})

	t.Run("Update", func(t *testing.T) {
		got, err := users.Get(u.ID)
		if err != nil {
			t.Fatal(err)
		}
		id := got.Posts.IDs[1]
		if _, err := posts.Update(id, "B"); err != nil {
			t.Fatal(err)
		}
		if _, err := posts.Update(id, ""); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Update(blank) = %v", err)
		}
		if diff := cmp.Diff([]string{"a", "B", "c"}, captions()); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		got, err := users.Get(u.ID)
		if err != nil {
			t.Fatal(err)
		}
		id := got.Posts.IDs[0]
		if err := posts.Delete(ctx, id); err != nil {
			t.Fatal(err)
		}
		if err := posts.Delete(ctx, id); !errors.Is(err, ErrPostNotFound) {
			t.Errorf("second Delete() = %v", err)
		}
		if _, err := posts.Get(id); !errors.Is(err, ErrPostNotFound) {
			t.Errorf("Get(deleted) = %v", err)
		}
		if diff := cmp.Diff([]string{"B", "c"}, captions()); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		// The ID stays in the relation.
		got, _ = users.Get(u.ID)
		if got.Posts.Len() != 3 {
			t.Errorf("relation length = %d, want 3", got.Posts.Len())
		}
	})
}
