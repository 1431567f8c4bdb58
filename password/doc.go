// Package password implements password hashing, verification, and policy
// checks with Argon2id defaults.
//
// # Output format
//
// Argon2 hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Bcrypt hashes use the standard $2a$/$2b$ prefix form. [Detect] maps a
// stored hash back to its algorithm so callers can verify legacy material
// while minting new hashes with the primary [Hasher]. If the stored hash
// was produced with weaker parameters, [Hasher.NeedsRehash] returns true so
// the caller can re-hash on the next successful login.
//
// # Worker pool
//
// Hashing is deliberately slow. [Pool] bounds the number of hash
// computations running at once so a burst of logins cannot monopolize the
// scheduler; callers go through [Pool.Hash] and [Pool.Verify], which block
// on a free slot or the context, whichever comes first.
//
// # Architecture boundaries
//
// This package owns hashing, verification, and the structural password
// policy. Lockout counting and credential storage belong to the engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other goIdentity package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
