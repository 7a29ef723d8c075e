// Package entity defines the documents persisted by the server: posts and the
// users that own them.
package entity

import (
	"errors"
	"slices"
	"strings"

	"github.com/maruel/awth/internal/docdb"
)

var (
	errCaptionEmpty  = errors.New("caption is required")
	errUsernameEmpty = errors.New("username is required")
	errEmailInvalid  = errors.New("email is invalid")
)

// Post is a captioned post.
type Post struct {
	docdb.Meta
	Caption string `json:"caption" jsonschema:"description=Post caption"`
}

// Clone returns a copy of the post.
func (p *Post) Clone() *Post {
	c := *p
	return &c
}

// Validate checks that the post is valid.
func (p *Post) Validate() error {
	if strings.TrimSpace(p.Caption) == "" {
		return errCaptionEmpty
	}
	return nil
}

// User is an account. Posts lists the IDs of the posts it authored, in
// creation order.
type User struct {
	docdb.Meta
	Username     string                `json:"username" jsonschema:"description=Display name"`
	Email        string                `json:"email" jsonschema:"description=Login email address"`
	PasswordHash []byte                `json:"password_hash" jsonschema:"description=Bcrypt-hashed password"`
	Posts        docdb.Relation[*Post] `json:"posts" jsonschema:"description=Posts authored by the user"`
}

// Clone returns a deep copy of the user, relation cache included.
func (u *User) Clone() *User {
	c := *u
	c.PasswordHash = slices.Clone(u.PasswordHash)
	c.Posts = u.Posts.Clone()
	return &c
}

// Validate checks that the user is valid.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return errUsernameEmpty
	}
	if !ValidEmail(u.Email) {
		return errEmailInvalid
	}
	return nil
}

// PostsRelation selects the Posts relation, for docdb.ResolveAll.
func PostsRelation(u *User) *docdb.Relation[*Post] {
	return &u.Posts
}

// NormalizeEmail returns the form of an email address used as lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail performs a minimal syntactic check.
func ValidEmail(email string) bool {
	local, domain, ok := strings.Cut(email, "@")
	return ok && local != "" && strings.Contains(domain, ".") && !strings.ContainsAny(email, " \t\r\n")
}
