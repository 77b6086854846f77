// Package bolt provides the device-local ReplicaStore on top of bbolt.
//
// Layout:
//   - keys, metadata, sync_records: owner -> zone -> uuid -> JSON row
//   - sync_state: owner -> zone -> JSON manifest row
//   - pending: owner -> zone -> credential uuid (rows not yet pushed)
//   - device: salt and passphrase verifier, unencrypted
//
// A bbolt file has a single writer, which serializes gencount assignment
// when the store is used on the server side of a test harness.
package bolt
