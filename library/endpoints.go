package library

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/transport"
)

// Operation names.
const (
	OpGetLibraryStats   = "getLibraryStats"
	OpGetBooks          = "getBooks"
	OpGetBook           = "getBook"
	OpGetUsers          = "getUsers"
	OpUserBorrowHistory = "userBorrowHistory"

	OpAddBook    = "addBook"
	OpUpdateBook = "updateBook"
	OpDeleteBook = "deleteBook"
	OpBorrowBook = "borrowBook"
	OpReturnBook = "returnBook"
	OpLogin      = "login"
)

// Tag types.
const (
	TagBooks         = "Books"
	TagUsers         = "Users"
	TagStats         = "Stats"
	TagBorrowHistory = "BorrowHistory"
)

// BookTag names one book.
func BookTag(id int) cache.Tag { return cache.EntityTag(TagBooks, id) }

// UserTag names one user.
func UserTag(id int) cache.Tag { return cache.EntityTag(TagUsers, id) }

// HistoryTag names one user's borrow history.
func HistoryTag(userID int) cache.Tag { return cache.EntityTag(TagBorrowHistory, userID) }

// SearchParams are the parameters of getBooks and getUsers.
type SearchParams struct {
	Search string `json:"search"`
}

// IDParams identify one book.
type IDParams struct {
	ID int `json:"id"`
}

// HistoryParams are the parameters of userBorrowHistory.
type HistoryParams struct {
	UserID int `json:"userId"`
}

// UpdateBookParams are the parameters of updateBook.
type UpdateBookParams struct {
	ID   int       `json:"id"`
	Book BookInput `json:"book"`
}

// BorrowParams are the parameters of borrowBook and returnBook.
type BorrowParams struct {
	BookID int `json:"bookId"`
	UserID int `json:"userId"`
}

// Router maps library operations onto REST routes relative to the API root.
var Router = transport.RouterFunc(route)

func route(op transport.Operation) (transport.Route, error) {
	switch op.Name {
	case OpGetLibraryStats:
		return transport.Route{Method: http.MethodGet, Path: "stats"}, nil

	case OpGetBooks, OpGetUsers:
		var p SearchParams
		if err := transport.DecodeParams(op.Params, &p); err != nil {
			return transport.Route{}, err
		}
		path := "books"
		if op.Name == OpGetUsers {
			path = "users"
		}
		return transport.Route{
			Method: http.MethodGet,
			Path:   path,
			Query:  url.Values{"search": {p.Search}},
		}, nil

	case OpGetBook:
		var p IDParams
		if err := transport.DecodeParams(op.Params, &p); err != nil {
			return transport.Route{}, err
		}
		return transport.Route{Method: http.MethodGet, Path: bookPath(p.ID)}, nil

	case OpUserBorrowHistory:
		var p HistoryParams
		if err := transport.DecodeParams(op.Params, &p); err != nil {
			return transport.Route{}, err
		}
		return transport.Route{Method: http.MethodGet, Path: "users/" + strconv.Itoa(p.UserID) + "/borrows"}, nil

	case OpAddBook:
		var p BookInput
		if err := transport.DecodeParams(op.Params, &p); err != nil {
			return transport.Route{}, err
		}
		return transport.Route{Method: http.MethodPost, Path: "books", Body: p}, nil

	case OpUpdateBook:
		var p UpdateBookParams
		if err := transport.DecodeParams(op.Params, &p); err != nil {
			return transport.Route{}, err
		}
		return transport.Route{Method: http.MethodPatch, Path: bookPath(p.ID), Body: p.Book}, nil

	case OpDeleteBook:
		var p IDParams
		if err := transport.DecodeParams(op.Params, &p); err != nil {
			return transport.Route{}, err
		}
		return transport.Route{Method: http.MethodDelete, Path: bookPath(p.ID)}, nil

	case OpBorrowBook:
		var p BorrowParams
		if err := transport.DecodeParams(op.Params, &p); err != nil {
			return transport.Route{}, err
		}
		return transport.Route{Method: http.MethodPost, Path: "borrows", Body: p}, nil

	case OpReturnBook:
		var p BorrowParams
		if err := transport.DecodeParams(op.Params, &p); err != nil {
			return transport.Route{}, err
		}
		return transport.Route{
			Method: http.MethodPatch,
			Path:   "borrows/" + strconv.Itoa(p.BookID),
			Body:   map[string]int{"userId": p.UserID},
		}, nil

	case OpLogin:
		var p Credentials
		if err := transport.DecodeParams(op.Params, &p); err != nil {
			return transport.Route{}, err
		}
		return transport.Route{Method: http.MethodPost, Path: "auth/login", Body: p}, nil

	default:
		return transport.Route{}, fmt.Errorf("%w: %s", transport.ErrUnknownOperation, op.Name)
	}
}

func bookPath(id int) string { return "books/" + strconv.Itoa(id) }

func statsRequest() cache.QueryRequest {
	return cache.QueryRequest{
		Name: OpGetLibraryStats,
		Tags: []cache.Tag{cache.CollectionTag(TagStats)},
	}
}

func booksRequest(search string) cache.QueryRequest {
	return cache.QueryRequest{
		Name:         OpGetBooks,
		Params:       SearchParams{Search: search},
		Tags:         []cache.Tag{cache.CollectionTag(TagBooks)},
		ProvidesFunc: providesBooks,
	}
}

func bookRequest(id int) cache.QueryRequest {
	return cache.QueryRequest{
		Name:   OpGetBook,
		Params: IDParams{ID: id},
		Tags:   []cache.Tag{BookTag(id)},
	}
}

func usersRequest(search string) cache.QueryRequest {
	return cache.QueryRequest{
		Name:         OpGetUsers,
		Params:       SearchParams{Search: search},
		Tags:         []cache.Tag{cache.CollectionTag(TagUsers)},
		ProvidesFunc: providesUsers,
	}
}

func historyRequest(userID int) cache.QueryRequest {
	return cache.QueryRequest{
		Name:   OpUserBorrowHistory,
		Params: HistoryParams{UserID: userID},
		Tags:   []cache.Tag{HistoryTag(userID)},
	}
}

func providesBooks(payload []byte) []cache.Tag {
	var page BooksPage
	if err := json.Unmarshal(payload, &page); err != nil {
		return nil
	}
	tags := make([]cache.Tag, 0, len(page.Data))
	for _, b := range page.Data {
		tags = append(tags, BookTag(b.ID))
	}
	return tags
}

func providesUsers(payload []byte) []cache.Tag {
	var page UsersPage
	if err := json.Unmarshal(payload, &page); err != nil {
		return nil
	}
	tags := make([]cache.Tag, 0, len(page.Data))
	for _, u := range page.Data {
		tags = append(tags, UserTag(u.ID))
	}
	return tags
}

func borrowInvalidates(p BorrowParams) []cache.Tag {
	return []cache.Tag{BookTag(p.BookID), HistoryTag(p.UserID), cache.CollectionTag(TagStats)}
}
