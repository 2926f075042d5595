// Package auth issues and checks the bearer tokens guarding the local API.
//
// At startup the host signs a ScopeShell token and writes it to a 0600 file
// the desktop shell reads. Observer tokens can be minted for dashboards that
// only watch builds. Tokens are HS256 JWTs validated by signature and expiry
// alone.
package auth
