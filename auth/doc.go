// Package auth turns credentials into identities and identities into
// sessions.
//
// There are two ways to obtain an identity: a local account (username and
// password) or a federated one, where an external provider vouches for the
// user and we only keep its subject id.
//
// Local passwords are never stored, only a salted one-way hash produced by
// a PasswordHasher. Argon2id is the default, bcrypt is available for
// deployments that prefer it, and both keep verifying after switching the
// default because the hash encodes which algorithm produced it.
//
// Verify will never tell the caller if the username or the password was
// wrong, and it does roughly the same amount of work in both cases.
//
// Once an identity is known, Sessions hands out a random opaque token kept
// in memory on the server, the cookie carries nothing else. Every request
// re-reads the user from the store using the id recorded for the token,
// so nothing the client sends can change who it is.
//
// Tokens are lost when they expire, when the process restarts or when the
// cache evicts them, in any of those cases the user simply logs in again.
//
// The federated flow (Broker) is a plain OAuth2 authorization code
// exchange. The state parameter is a short-lived signed token tied to a
// cookie, so a callback only completes in the browser that started it.
// A failure at any step ends the attempt, there are no retries.
package auth
