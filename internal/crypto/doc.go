// Package crypto implements the layered key wrapping used by credsync.
//
// A passphrase is stretched with PBKDF2-HMAC-SHA256 (100,000 iterations,
// 32-byte salt) into a MasterKey. The master key only wraps per-credential
// content keys; credential payloads are encrypted with their content key.
//
// Wire framing, shared by every replica:
//   - wrappedKey = AES-256-GCM(contentKey, masterKey, iv) || iv[12]
//   - encItem    = AES-256-GCM(json(payload), contentKey, iv) || iv[12]
//
// Every seal draws a fresh 12-byte IV from crypto/rand.
package crypto
