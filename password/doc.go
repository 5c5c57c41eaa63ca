// Package password hashes and verifies account passwords with Argon2id.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.NeedsRehash] reports hashes produced with weaker parameters so a
// credential backend can upgrade them after a successful login.
//
// Only the reference backends use this package. The session client never sees
// a password hash.
package password
