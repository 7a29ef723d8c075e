package handlers

import (
	"time"

	"github.com/maruel/awth/internal/docdb"
	"github.com/maruel/awth/internal/storage/entity"
)

// PostResponse is a post.
type PostResponse struct {
	ID       docdb.ID  `json:"id"`
	Caption  string    `json:"caption"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

func newPostResponse(p *entity.Post) *PostResponse {
	return &PostResponse{ID: p.ID, Caption: p.Caption, Created: p.Created, Modified: p.Modified}
}

// UserResponse is a user with its posts that still exist.
type UserResponse struct {
	ID       docdb.ID        `json:"id"`
	Username string          `json:"username"`
	Email    string          `json:"email,omitempty"`
	Created  time.Time       `json:"created"`
	PostIDs  []docdb.ID      `json:"post_ids"`
	Posts    []*PostResponse `json:"posts"`
}

func newUserResponse(u *entity.User, posts []*entity.Post) *UserResponse {
	resp := &UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Created:  u.Created,
		PostIDs:  u.Posts.IDs,
		Posts:    make([]*PostResponse, 0, len(posts)),
	}
	if resp.PostIDs == nil {
		resp.PostIDs = []docdb.ID{}
	}
	for _, p := range posts {
		resp.Posts = append(resp.Posts, newPostResponse(p))
	}
	return resp
}
