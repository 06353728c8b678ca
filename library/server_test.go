package library

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeLibrary is an in-memory library API.
type fakeLibrary struct {
	t *testing.T

	mu      sync.Mutex
	books   []Book
	users   []User
	borrows []BorrowRecord
	nextID  int
	hits    map[string]int
	auth    []string
	token   string

	// failNext makes the next n requests answer with failStatus.
	failNext   int
	failStatus int

	// gate, when set, blocks requests until it is closed.
	gate chan struct{}
}

func newFakeLibrary(t *testing.T) (*fakeLibrary, *httptest.Server) {
	t.Helper()
	f := &fakeLibrary{
		t: t,
		books: []Book{
			{ID: 1, Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593", Status: BookAvailable, Location: "A1"},
			{ID: 2, Title: "Emma", Author: "Jane Austen", ISBN: "9780141439587", Status: BookBorrowed, Location: "B2"},
		},
		users: []User{
			{ID: 5, Username: "ada", Email: "ada@example.com", Role: RoleMember, Status: "active"},
		},
		nextID: 3,
		hits:   make(map[string]int),
		token:  "session-token",
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeLibrary) hitCount(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[route]
}

func (f *fakeLibrary) authHeaders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.auth...)
}

func (f *fakeLibrary) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/")
	route := r.Method + " " + path

	f.mu.Lock()
	f.hits[route]++
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	gate := f.gate
	if f.failNext > 0 {
		f.failNext--
		status := f.failStatus
		f.mu.Unlock()
		http.Error(w, `{"detail":"unavailable"}`, status)
		return
	}
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(path, "/")
	switch {
	case route == "GET stats":
		borrowed := 0
		for _, b := range f.books {
			if b.Status == BookBorrowed {
				borrowed++
			}
		}
		f.write(w, http.StatusOK, LibraryStats{
			TotalBooks:    len(f.books),
			BorrowedBooks: borrowed,
			ActiveMembers: len(f.users),
			TotalMembers:  len(f.users),
		})

	case route == "GET books":
		search := strings.ToLower(r.URL.Query().Get("search"))
		page := BooksPage{Data: []Book{}}
		for _, b := range f.books {
			if strings.Contains(strings.ToLower(b.Title), search) {
				page.Data = append(page.Data, b)
			}
		}
		page.Total = len(page.Data)
		f.write(w, http.StatusOK, page)

	case route == "GET users":
		f.write(w, http.StatusOK, UsersPage{Data: f.users, Total: len(f.users)})

	case r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "users" && parts[2] == "borrows":
		id, _ := strconv.Atoi(parts[1])
		history := []BorrowRecord{}
		for _, rec := range f.borrows {
			if rec.UserID == id {
				history = append(history, rec)
			}
		}
		f.write(w, http.StatusOK, history)

	case route == "POST books":
		var in BookInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			f.write(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
			return
		}
		b := Book{ID: f.nextID, Title: in.Title, Author: in.Author, ISBN: in.ISBN, Status: BookAvailable, Location: in.Location}
		f.nextID++
		f.books = append(f.books, b)
		f.write(w, http.StatusCreated, b)

	case len(parts) == 2 && parts[0] == "books":
		id, _ := strconv.Atoi(parts[1])
		idx := f.bookIndex(id)
		if idx < 0 {
			f.write(w, http.StatusNotFound, map[string]string{"detail": "book not found"})
			return
		}
		switch r.Method {
		case http.MethodGet:
			f.write(w, http.StatusOK, f.books[idx])
		case http.MethodPatch:
			var in BookInput
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in.Title != "" {
				f.books[idx].Title = in.Title
			}
			if in.Status != "" {
				f.books[idx].Status = in.Status
			}
			f.write(w, http.StatusOK, f.books[idx])
		case http.MethodDelete:
			f.books = append(f.books[:idx], f.books[idx+1:]...)
			w.WriteHeader(http.StatusNoContent)
		}

	case route == "POST borrows":
		var p BorrowParams
		_ = json.NewDecoder(r.Body).Decode(&p)
		idx := f.bookIndex(p.BookID)
		if idx < 0 {
			f.write(w, http.StatusNotFound, map[string]string{"detail": "book not found"})
			return
		}
		f.books[idx].Status = BookBorrowed
		rec := BorrowRecord{ID: len(f.borrows) + 1, BookID: p.BookID, UserID: p.UserID}
		f.borrows = append(f.borrows, rec)
		f.write(w, http.StatusCreated, rec)

	case route == "POST auth/login":
		var creds Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			f.write(w, http.StatusUnauthorized, map[string]string{"detail": "invalid credentials"})
			return
		}
		f.write(w, http.StatusOK, LoginResponse{Token: f.token, User: &f.users[0]})

	default:
		f.write(w, http.StatusNotFound, map[string]string{"detail": "no route " + route})
	}
}

func (f *fakeLibrary) bookIndex(id int) int {
	for i, b := range f.books {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (f *fakeLibrary) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		f.t.Errorf("encode response: %v", err)
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, cfg Config) *Client {
	t.Helper()
	cfg.BaseURL = srv.URL + "/api/"
	cfg.HTTPClient = srv.Client()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}
