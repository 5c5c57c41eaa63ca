// Package backend groups authentication backends that satisfy
// goSession.Backend.
//
//   - memory: a self-contained credential service for tests and local
//     development. It hashes passwords with Argon2id and issues JWTs.
//   - httpapi: a JSON/HTTP client for a remote service, plus a handler that
//     serves any Backend over the same contract.
package backend
