package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/maruel/awth/internal/server/handlers"
	"github.com/maruel/awth/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	t  *testing.T
	db *storage.DB
	h  http.Handler
}

func newTestServer(t *testing.T, saveRatePerMin int) *testServer {
	t.Helper()
	cfg := storage.DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	cfg.JWTSecret = strings.Repeat("cd", 32)
	reg := prometheus.NewRegistry()
	m, err := storage.NewMetrics(reg)
	if err != nil {
		t.Fatal(err)
	}
	db, err := storage.OpenDB(context.Background(), t.TempDir(), &cfg, m)
	if err != nil {
		t.Fatal(err)
	}
	users := storage.NewUserService(db, cfg.BcryptCost)
	h := NewRouter(&Config{
		DB:             db,
		Users:          users,
		Posts:          storage.NewPostService(db),
		Tokens:         handlers.NewTokens(cfg.Secret(), cfg.TokenTTL),
		Gatherer:       reg,
		SaveRatePerMin: saveRatePerMin,
		Version:        "test",
	})
	return &testServer{t: t, db: db, h: h}
}

// do sends a request and decodes the JSON response into out, if not nil.
func (s *testServer) do(method, path, token string, in, out any) int {
	s.t.Helper()
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			s.t.Fatal(err)
		}
		body = bytes.NewReader(b)
	}
	r := httptest.NewRequest(method, path, body)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.h.ServeHTTP(w, r)
	if out != nil && w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			s.t.Fatalf("%s %s: %v\n%s", method, path, err, w.Body.String())
		}
	}
	return w.Code
}

func (s *testServer) register(username, email string) *handlers.AuthResponse {
	s.t.Helper()
	var resp handlers.AuthResponse
	req := handlers.RegisterRequest{Username: username, Email: email, Password: "secret"}
	if code := s.do("POST", "/register", "", req, &resp); code != http.StatusOK {
		s.t.Fatalf("register: status %d", code)
	}
	return &resp
}

func TestRouter(t *testing.T) {
	t.Run("welcome", func(t *testing.T) {
		s := newTestServer(t, 0)
		w := httptest.NewRecorder()
		s.h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		if w.Code != http.StatusOK || w.Body.String() != "welcome!" {
			t.Errorf("GET / = %d %q", w.Code, w.Body.String())
		}
	})

	t.Run("posts lifecycle", func(t *testing.T) {
		s := newTestServer(t, 0)
		ada := s.register("ada", "ada@example.com")
		bob := s.register("bob", "bob@example.com")

		var captions []string
		var postIDs []string
		for _, c := range []string{"a", "b"} {
			var p handlers.PostResponse
			code := s.do("POST", "/users/"+ada.ID.String()+"/posts", ada.Token, map[string]string{"caption": c}, &p)
			if code != http.StatusOK {
				t.Fatalf("create post: status %d", code)
			}
			captions = append(captions, p.Caption)
			postIDs = append(postIDs, p.ID.String())
		}

		// Posting as somebody else or anonymously is refused.
		if code := s.do("POST", "/users/"+ada.ID.String()+"/posts", bob.Token, map[string]string{"caption": "x"}, nil); code != http.StatusUnauthorized {
			t.Errorf("post as other user: status %d", code)
		}
		if code := s.do("POST", "/users/"+ada.ID.String()+"/posts", "", map[string]string{"caption": "x"}, nil); code != http.StatusUnauthorized {
			t.Errorf("anonymous post: status %d", code)
		}

		var login handlers.AuthResponse
		if code := s.do("POST", "/login", "", handlers.LoginRequest{Email: "ada@example.com", Password: "secret"}, &login); code != http.StatusOK {
			t.Fatalf("login: status %d", code)
		}
		var got []string
		for _, p := range login.User.Posts {
			got = append(got, p.Caption)
		}
		if diff := cmp.Diff(captions, got); diff != "" {
			t.Errorf("login posts (-want +got):\n%s", diff)
		}

		if code := s.do("DELETE", "/posts/"+postIDs[0], bob.Token, nil, nil); code != http.StatusUnauthorized {
			t.Errorf("delete by other user: status %d", code)
		}
		if code := s.do("DELETE", "/posts/"+postIDs[0], ada.Token, nil, nil); code != http.StatusOK {
			t.Errorf("delete: status %d", code)
		}
		if code := s.do("GET", "/posts/"+postIDs[0], "", nil, nil); code != http.StatusNotFound {
			t.Errorf("get deleted post: status %d", code)
		}

		var user handlers.UserResponse
		if code := s.do("GET", "/users/"+ada.ID.String(), "", nil, &user); code != http.StatusOK {
			t.Fatalf("get user: status %d", code)
		}
		if len(user.PostIDs) != 2 || len(user.Posts) != 1 || user.Posts[0].Caption != "b" {
			t.Errorf("user = %+v", user)
		}
		if user.Email != "" {
			t.Error("email shown to anonymous caller")
		}
		if code := s.do("GET", "/users/"+ada.ID.String(), ada.Token, nil, &user); code != http.StatusOK || user.Email != "ada@example.com" {
			t.Errorf("get self: status %d, email %q", code, user.Email)
		}

		var updated handlers.PostResponse
		if code := s.do("PATCH", "/posts/"+postIDs[1], ada.Token, map[string]string{"caption": "B"}, &updated); code != http.StatusOK || updated.Caption != "B" {
			t.Errorf("update: status %d, caption %q", code, updated.Caption)
		}
	})

	t.Run("errors", func(t *testing.T) {
		s := newTestServer(t, 0)
		ada := s.register("ada", "ada@example.com")
		tests := []struct {
			name         string
			method, path string
			token        string
			body         any
			want         int
		}{
			{"duplicate email", "POST", "/register", "", handlers.RegisterRequest{Username: "x", Email: "ADA@example.com", Password: "p"}, http.StatusConflict},
			{"missing field", "POST", "/register", "", handlers.RegisterRequest{Username: "x"}, http.StatusBadRequest},
			{"unknown field", "POST", "/register", "", map[string]string{"nickname": "x"}, http.StatusBadRequest},
			{"bad password", "POST", "/login", "", handlers.LoginRequest{Email: "ada@example.com", Password: "nope"}, http.StatusUnauthorized},
			{"bad id", "GET", "/users/not-an-id!", "", nil, http.StatusBadRequest},
			{"unknown user", "GET", "/users/" + (ada.ID + 1).String(), "", nil, http.StatusNotFound},
			{"bad token", "DELETE", "/posts/" + ada.ID.String(), "garbage", nil, http.StatusUnauthorized},
			{"unknown collection", "GET", "/schema/comments", "", nil, http.StatusNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if code := s.do(tt.method, tt.path, tt.token, tt.body, nil); code != tt.want {
					t.Errorf("status = %d, want %d", code, tt.want)
				}
			})
		}
	})

	t.Run("save is rate limited", func(t *testing.T) {
		s := newTestServer(t, 1)
		s.register("ada", "ada@example.com")
		var resp handlers.SaveResponse
		if code := s.do("POST", "/save", "", nil, &resp); code != http.StatusOK {
			t.Fatalf("save: status %d", code)
		}
		want := []handlers.CollectionStats{{Name: "posts"}, {Name: "users", Live: 1}}
		if diff := cmp.Diff(want, resp.Collections); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
		if code := s.do("GET", "/save", "", nil, nil); code != http.StatusTooManyRequests {
			t.Errorf("second save: status %d", code)
		}
	})

	t.Run("schema and metrics", func(t *testing.T) {
		s := newTestServer(t, 0)
		var schema handlers.SchemaResponse
		if code := s.do("GET", "/schema/users", "", nil, &schema); code != http.StatusOK {
			t.Fatalf("schema: status %d", code)
		}
		if len(schema.Columns) == 0 {
			t.Error("no columns")
		}
		w := httptest.NewRecorder()
		s.h.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
		if !strings.Contains(w.Body.String(), "awth_collection_loads_total") {
			t.Errorf("metrics missing collection counters:\n%s", w.Body.String())
		}
	})
}

func TestTokens(t *testing.T) {
	tokens := handlers.NewTokens([]byte(strings.Repeat("k", 32)), time.Hour)
	tok, err := tokens.Issue(42)
	if err != nil {
		t.Fatal(err)
	}
	id, err := tokens.Parse(tok)
	if err != nil || id != 42 {
		t.Errorf("Parse() = %d, %v", id, err)
	}
	other := handlers.NewTokens([]byte(strings.Repeat("x", 32)), time.Hour)
	if _, err := other.Parse(tok); err == nil {
		t.Error("token accepted with another secret")
	}
	expired := handlers.NewTokens([]byte(strings.Repeat("k", 32)), -time.Minute)
	tok, err = expired.Issue(42)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tokens.Parse(tok); err == nil {
		t.Error("expired token accepted")
	}
}
