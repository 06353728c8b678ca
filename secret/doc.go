// Package secret resolves secret references in configuration values.
//
// It supports:
//   - Strict environment expansion (see ExpandEnvStrict)
//   - Pluggable secret providers (see Provider)
//   - Resolving secret references in configuration values (see Resolver)
//
// References use the prefix "secretref:":
//   - Full value:  secretref:file:/run/secrets/library_token
//   - Inline use:  Bearer secretref:env:LIBRARY_SESSION
//
// Two providers are built in: "file" reads a file and trims surrounding
// whitespace, "env" reads a variable through the resolver's lookup.
package secret
