// Package auth supplies bearer tokens to outbound requests.
//
// A TokenSource is read synchronously at every dispatch, so a token that
// changes between requests is always picked up. Store is the mutable
// implementation fed by a login flow; it inspects JWT claims to expose the
// caller's Identity and to stop handing out expired tokens.
package auth
