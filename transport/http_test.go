package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func testRouter() Router {
	return RouterFunc(func(op Operation) (Route, error) {
		switch op.Name {
		case "getBooks":
			var p struct {
				Search string `json:"search"`
			}
			if err := DecodeParams(op.Params, &p); err != nil {
				return Route{}, err
			}
			return Route{Method: http.MethodGet, Path: "books", Query: url.Values{"search": {p.Search}}}, nil
		case "addBook":
			return Route{Method: http.MethodPost, Path: "books", Body: op.Params}, nil
		default:
			return Route{}, ErrUnknownOperation
		}
	})
}

func TestHTTPFunc_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/books" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("search"); got != "dune" {
			t.Errorf("search = %q, want dune", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":[],"total":0}`)
	}))
	defer srv.Close()

	fn, err := NewHTTPFunc(HTTPConfig{BaseURL: srv.URL + "/api", Router: testRouter(), Client: srv.Client()})
	if err != nil {
		t.Fatalf("NewHTTPFunc() error = %v", err)
	}

	payload, err := NewAdapter(fn).Execute(context.Background(),
		Operation{Kind: KindQuery, Name: "getBooks", Params: map[string]any{"search": "dune"}}, "tok")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if string(payload) != `{"data":[],"total":0}` {
		t.Errorf("payload = %s", payload)
	}
}

func TestHTTPFunc_MutationBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["title"] != "Dune" {
			t.Errorf("title = %v", body["title"])
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":1,"title":"Dune"}`)
	}))
	defer srv.Close()

	fn, err := NewHTTPFunc(HTTPConfig{BaseURL: srv.URL + "/api/", Router: testRouter(), Client: srv.Client()})
	if err != nil {
		t.Fatalf("NewHTTPFunc() error = %v", err)
	}
	_, err = NewAdapter(fn).Execute(context.Background(),
		Operation{Kind: KindMutation, Name: "addBook", Params: map[string]any{"title": "Dune"}}, "")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestHTTPFunc_StatusAndRoutingErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	fn, err := NewHTTPFunc(HTTPConfig{BaseURL: srv.URL, Router: testRouter(), Client: srv.Client()})
	if err != nil {
		t.Fatalf("NewHTTPFunc() error = %v", err)
	}
	a := NewAdapter(fn)

	_, err = a.Execute(context.Background(), Operation{Name: "getBooks"}, "")
	if status, ok := HTTPStatus(err); !ok || status != http.StatusInternalServerError {
		t.Errorf("Execute() error = %v, want HTTP 500", err)
	}

	tests := []struct {
		name string
		op   Operation
		want error
	}{
		{"unknown operation", Operation{Name: "unknown"}, ErrUnknownOperation},
		{"unencodable params", Operation{Name: "getBooks", Params: make(chan int)}, ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Execute(context.Background(), tt.op, "")
			if !IsNetwork(err) || !errors.Is(err, tt.want) {
				t.Fatalf("Execute() error = %v, want NetworkError wrapping %v", err, tt.want)
			}
			if IsTransient(err) {
				t.Errorf("IsTransient(%v) = true, want false", err)
			}
		})
	}
}

func TestHTTPFunc_BodyTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`"`))
		_, _ = w.Write(bytes.Repeat([]byte("x"), MaxBodyBytes))
		_, _ = w.Write([]byte(`"`))
	}))
	defer srv.Close()

	fn, err := NewHTTPFunc(HTTPConfig{BaseURL: srv.URL, Router: testRouter(), Client: srv.Client()})
	if err != nil {
		t.Fatalf("NewHTTPFunc() error = %v", err)
	}

	_, err = NewAdapter(fn).Execute(context.Background(), Operation{Name: "getBooks"}, "")
	if !IsDecode(err) || !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("Execute() error = %v, want DecodeError wrapping ErrBodyTooLarge", err)
	}
	if IsTransient(err) {
		t.Errorf("IsTransient(%v) = true, want false", err)
	}
}

func TestNewHTTPFunc_Validation(t *testing.T) {
	if _, err := NewHTTPFunc(HTTPConfig{BaseURL: "http://localhost"}); err == nil {
		t.Error("expected error without router")
	}
	if _, err := NewHTTPFunc(HTTPConfig{BaseURL: "relative/path", Router: testRouter()}); err == nil {
		t.Error("expected error for relative base url")
	}
}
