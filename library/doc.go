// Package library is a typed client for the library-management REST API,
// built on the query cache.
//
// Queries (stats, books, users, borrow history) are cached, deduplicated and
// tagged. Mutations invalidate the tags they touch, and any query still
// observed through a subscription is refetched in the background:
//
//	addBook     invalidates Books, Stats
//	updateBook  invalidates Books:<id>
//	deleteBook  invalidates Books:<id>, Stats
//	borrowBook  invalidates Books:<bookId>, BorrowHistory:<userId>, Stats
//	returnBook  invalidates Books:<bookId>, BorrowHistory:<userId>, Stats
//
// Login stores the returned session token in an auth.Store, which the cache
// reads at every dispatch.
package library
