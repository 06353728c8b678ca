package library

import "time"

// BookStatus is the circulation state of a book.
type BookStatus string

const (
	BookAvailable BookStatus = "available"
	BookBorrowed  BookStatus = "borrowed"
	BookReserved  BookStatus = "reserved"
)

// Book is a catalogue entry.
type Book struct {
	ID       int        `json:"id"`
	Title    string     `json:"title"`
	Author   string     `json:"author"`
	ISBN     string     `json:"isbn"`
	Status   BookStatus `json:"status"`
	Location string     `json:"location"`
}

// BookInput holds the writable fields of a book.
type BookInput struct {
	Title    string     `json:"title,omitempty"`
	Author   string     `json:"author,omitempty"`
	ISBN     string     `json:"isbn,omitempty"`
	Status   BookStatus `json:"status,omitempty"`
	Location string     `json:"location,omitempty"`
}

// UserRole is a member's role.
type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleLibrarian UserRole = "librarian"
	RoleMember    UserRole = "member"
)

// User is a library member or staff account.
type User struct {
	ID       int      `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`
	Status   string   `json:"status"`
}

// LibraryStats is the dashboard summary.
type LibraryStats struct {
	TotalBooks    int `json:"totalBooks"`
	BorrowedBooks int `json:"borrowedBooks"`
	ActiveMembers int `json:"activeMembers"`
	TotalMembers  int `json:"totalMembers"`
}

// BooksPage is the response of a book search.
type BooksPage struct {
	Data  []Book `json:"data"`
	Total int    `json:"total"`
}

// UsersPage is the response of a user search.
type UsersPage struct {
	Data  []User `json:"data"`
	Total int    `json:"total"`
}

// BorrowRecord is one loan in a user's history.
type BorrowRecord struct {
	ID         int        `json:"id"`
	BookID     int        `json:"bookId"`
	UserID     int        `json:"userId"`
	BorrowedAt time.Time  `json:"borrowedAt"`
	DueAt      *time.Time `json:"dueAt,omitempty"`
	ReturnedAt *time.Time `json:"returnedAt,omitempty"`
}

// Credentials are the login form fields.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}
