// Package cache provides a client-side query cache with tag-based
// invalidation.
//
// A QueryCache issues named queries through an injected Transport, keeps one
// entry per RequestKey, and shares a single in-flight fetch among every
// concurrent subscriber of that key. Queries declare the Tags their results
// provide; mutations declare the Tags they invalidate. When a mutation
// succeeds, every entry whose provided tags match is marked stale and either
// refetched (if it has subscribers) or evicted (if it has none).
//
// Subscribers observe every entry transition through Subscription.Updates, in
// the order the transitions happened. Entries with no subscribers are evicted
// after Policy.KeepUnusedFor.
//
// Tag matching is asymmetric:
//
//	provided \ invalidated   Books          (Books, 7)
//	Books                    match          match
//	(Books, 7)               match          match
//	(Books, 9)               match          no match
package cache
