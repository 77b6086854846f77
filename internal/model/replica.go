package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultZone is the zone used when a caller does not name one.
const DefaultZone = "default"

// Defaults applied by Push to fields left empty by a device.
const (
	DefaultProtocol    int32 = 443
	DefaultPort        int32 = 443
	DefaultEncVersion  int32 = 1
	DefaultContextID         = "default"
	DefaultAccessGroup       = "default"
)

// KeyClass describes the role of a stored key.
type KeyClass string

const (
	KeyClassSymmetric         KeyClass = "symmetric"
	KeyClassAsymmetricPublic  KeyClass = "asymmetric-public"
	KeyClassAsymmetricPrivate KeyClass = "asymmetric-private"
)

// KeyType names the algorithm a key is used with.
type KeyType string

const (
	KeyTypeAES256GCM KeyType = "AES-256-GCM"
	KeyTypeEd25519   KeyType = "Ed25519"
	KeyTypeX25519    KeyType = "X25519"
)

// Layer identifies one of the three replicated record layers.
type Layer string

const (
	LayerKeys        Layer = "keys"
	LayerMetadata    Layer = "metadata"
	LayerSyncRecords Layer = "sync_records"
)

// CryptoKey is a per-credential content key in wrapped form.
type CryptoKey struct {
	UUID        uuid.UUID
	KeyClass    KeyClass
	KeyType     KeyType
	Data        []byte
	UsageFlags  uint32
	AccessGroup string
	GenCount    int64
	Tombstone   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CredentialMetadata is the searchable, non-secret part of a credential.
type CredentialMetadata struct {
	UUID            uuid.UUID
	Server          string
	Account         string
	Protocol        int32
	Port            int32
	Path            string
	Label           string
	PasswordKeyUUID uuid.UUID
	MetadataKeyUUID *uuid.UUID
	AccessGroup     string
	GenCount        int64
	Tombstone       bool
}

// SyncRecord carries the encrypted credential payload.
type SyncRecord struct {
	Zone          string
	UUID          uuid.UUID
	ParentKeyUUID uuid.UUID
	GenCount      int64
	WrappedKey    []byte
	EncItem       []byte
	EncVersion    int32
	ContextID     string
	Tombstone     bool
}

// SyncState is the manifest row of a zone.
type SyncState struct {
	Owner    uuid.UUID
	Zone     string
	GenCount int64
	Digest   []byte
}

// ListOptions filters layer listings.
type ListOptions struct {
	// Since returns only rows with gencount strictly greater than it.
	Since             int64
	IncludeTombstoned bool
}

// DigestFunc computes a manifest digest from live sync record UUIDs.
type DigestFunc func(uuids []uuid.UUID) []byte

// ReplicaStore persists the three record layers and the zone manifest.
// Writes are upserts keyed by (owner, zone, uuid).
type ReplicaStore interface {
	UpsertKey(ctx context.Context, owner uuid.UUID, zone string, key CryptoKey) error
	UpsertMetadata(ctx context.Context, owner uuid.UUID, zone string, meta CredentialMetadata) error
	UpsertSyncRecord(ctx context.Context, owner uuid.UUID, record SyncRecord) error

	GetKey(ctx context.Context, owner uuid.UUID, zone string, id uuid.UUID) (CryptoKey, error)
	GetMetadata(ctx context.Context, owner uuid.UUID, zone string, id uuid.UUID) (CredentialMetadata, error)
	GetSyncRecord(ctx context.Context, owner uuid.UUID, zone string, id uuid.UUID) (SyncRecord, error)

	ListKeys(ctx context.Context, owner uuid.UUID, zone string, opts ListOptions) ([]CryptoKey, error)
	ListMetadata(ctx context.Context, owner uuid.UUID, zone string, opts ListOptions) ([]CredentialMetadata, error)
	ListSyncRecords(ctx context.Context, owner uuid.UUID, zone string, opts ListOptions) ([]SyncRecord, error)
	SearchMetadata(ctx context.Context, owner uuid.UUID, zone string, query string) ([]CredentialMetadata, error)

	// NextGenCount atomically increments and returns the zone counter.
	NextGenCount(ctx context.Context, owner uuid.UUID, zone string) (int64, error)
	// AdvanceGenCount raises the zone counter to at least floor and returns it.
	AdvanceGenCount(ctx context.Context, owner uuid.UUID, zone string, floor int64) (int64, error)
	// RefreshManifest recomputes the zone digest over live sync records
	// while holding the zone's counter lock.
	RefreshManifest(ctx context.Context, owner uuid.UUID, zone string, digest DigestFunc) (SyncState, error)
	GetSyncState(ctx context.Context, owner uuid.UUID, zone string) (SyncState, error)

	// LockZone runs fn while holding the zone's counter lock, so pushes to
	// one zone never interleave. A transactional store discards what fn
	// wrote when fn returns an error; a failed write does not undo the ones
	// before it. LockZone must not be nested.
	LockZone(ctx context.Context, owner uuid.UUID, zone string, fn func(store ReplicaStore) error) error
	// ReadZone runs fn against one consistent view of the zone.
	ReadZone(ctx context.Context, owner uuid.UUID, zone string, fn func(store ReplicaStore) error) error
}

// PushRequest is a batch of changed rows sent by a device.
type PushRequest struct {
	Zone        string
	Keys        []CryptoKey
	Metadata    []CredentialMetadata
	SyncRecords []SyncRecord
}

// Assignment reports the gencount given to one pushed row.
type Assignment struct {
	Layer    Layer
	UUID     uuid.UUID
	GenCount int64
}

// PushResult is returned by Push.
type PushResult struct {
	GenCount       int64
	ItemsProcessed int
	Assigned       []Assignment
}

// PullRequest asks for rows changed after a gencount.
type PullRequest struct {
	Zone              string
	SinceGenCount     int64
	IncludeTombstoned bool
}

// PullResult holds all rows changed after the requested gencount.
type PullResult struct {
	Keys        []CryptoKey
	Metadata    []CredentialMetadata
	SyncRecords []SyncRecord
	GenCount    int64
}

// Len returns the number of rows across all layers.
func (r PullResult) Len() int {
	return len(r.Keys) + len(r.Metadata) + len(r.SyncRecords)
}
