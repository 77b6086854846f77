package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dtroode/credsync/internal/model"
)

var _ model.ReplicaStore = (*ReplicaRepository)(nil)

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ReplicaRepository stores the server copy of every owner's zones.
type ReplicaRepository struct {
	conn *Connection
	db   querier
}

func NewReplicaRepository(db *Connection) *ReplicaRepository {
	return &ReplicaRepository{conn: db, db: db}
}

func (r *ReplicaRepository) bound(tx pgx.Tx) *ReplicaRepository {
	return &ReplicaRepository{conn: r.conn, db: tx}
}

// LockZone opens a transaction holding the zone's sync_state row lock and
// hands fn a repository bound to it. Every write inside runs in its own
// savepoint, so a rejected row leaves earlier ones in place.
func (r *ReplicaRepository) LockZone(ctx context.Context, owner uuid.UUID, zone string, fn func(store model.ReplicaStore) error) error {
	return r.conn.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := lockState(ctx, tx, owner, zone); err != nil {
			return err
		}
		return fn(r.bound(tx))
	})
}

// ReadZone runs fn inside a read-only repeatable read transaction. Pushes
// commit counter and rows together, so the snapshot never shows a gencount
// without the rows it covers.
func (r *ReplicaRepository) ReadZone(ctx context.Context, _ uuid.UUID, _ string, fn func(store model.ReplicaStore) error) error {
	return r.conn.InSnapshot(ctx, func(tx pgx.Tx) error {
		return fn(r.bound(tx))
	})
}

// lockState creates the zone's sync_state row if needed and locks it until
// the transaction ends.
func lockState(ctx context.Context, tx pgx.Tx, owner uuid.UUID, zone string) (int64, error) {
	const ensure = `
		INSERT INTO sync_state (owner_id, zone, gencount) VALUES ($1, $2, 0)
		ON CONFLICT (owner_id, zone) DO NOTHING`
	if _, err := tx.Exec(ctx, ensure, owner, zone); err != nil {
		return 0, fmt.Errorf("failed to ensure sync state: %w", err)
	}

	const lock = `SELECT gencount FROM sync_state WHERE owner_id = $1 AND zone = $2 FOR UPDATE`
	var gen int64
	if err := tx.QueryRow(ctx, lock, owner, zone).Scan(&gen); err != nil {
		return 0, fmt.Errorf("failed to lock sync state: %w", err)
	}
	return gen, nil
}

// write runs a single statement in its own (sub)transaction.
func (r *ReplicaRepository) write(ctx context.Context, query string, args ...any) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query, args...)
		return err
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

const keyColumns = `uuid, key_class, key_type, data, usage_flags, access_group, gencount, tombstone, created_at, updated_at`

func (r *ReplicaRepository) UpsertKey(ctx context.Context, owner uuid.UUID, zone string, key model.CryptoKey) error {
	const query = `
		INSERT INTO crypto_keys (owner_id, zone, uuid, key_class, key_type, data, usage_flags, access_group, gencount, tombstone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (owner_id, zone, uuid) DO UPDATE SET
			key_class = EXCLUDED.key_class,
			key_type = EXCLUDED.key_type,
			data = EXCLUDED.data,
			usage_flags = EXCLUDED.usage_flags,
			access_group = EXCLUDED.access_group,
			gencount = EXCLUDED.gencount,
			tombstone = EXCLUDED.tombstone,
			updated_at = NOW()
		WHERE EXCLUDED.gencount > crypto_keys.gencount`

	err := r.write(ctx, query,
		owner, zone, key.UUID, string(key.KeyClass), string(key.KeyType), key.Data,
		int64(key.UsageFlags), key.AccessGroup, key.GenCount, key.Tombstone,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert key: %w", err)
	}
	return nil
}

func (r *ReplicaRepository) GetKey(ctx context.Context, owner uuid.UUID, zone string, id uuid.UUID) (model.CryptoKey, error) {
	query := `SELECT ` + keyColumns + ` FROM crypto_keys WHERE owner_id = $1 AND zone = $2 AND uuid = $3`

	key, err := scanKey(r.db.QueryRow(ctx, query, owner, zone, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CryptoKey{}, model.ErrNotFound
		}
		return model.CryptoKey{}, fmt.Errorf("failed to get key: %w", err)
	}
	return key, nil
}

func (r *ReplicaRepository) ListKeys(ctx context.Context, owner uuid.UUID, zone string, opts model.ListOptions) ([]model.CryptoKey, error) {
	query := `SELECT ` + keyColumns + ` FROM crypto_keys
		WHERE owner_id = $1 AND zone = $2 AND gencount > $3 AND ($4 OR NOT tombstone)
		ORDER BY gencount ASC`

	rows, err := r.db.Query(ctx, query, owner, zone, opts.Since, opts.IncludeTombstoned)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []model.CryptoKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

func scanKey(row rowScanner) (model.CryptoKey, error) {
	var (
		key   model.CryptoKey
		flags int64
	)
	err := row.Scan(
		&key.UUID, &key.KeyClass, &key.KeyType, &key.Data, &flags, &key.AccessGroup,
		&key.GenCount, &key.Tombstone, &key.CreatedAt, &key.UpdatedAt,
	)
	key.UsageFlags = uint32(flags)
	return key, err
}

const metadataColumns = `uuid, server, account, protocol, port, path, label, password_key_uuid, metadata_key_uuid, access_group, gencount, tombstone`

func (r *ReplicaRepository) UpsertMetadata(ctx context.Context, owner uuid.UUID, zone string, meta model.CredentialMetadata) error {
	const query = `
		INSERT INTO credential_metadata (owner_id, zone, uuid, server, account, protocol, port, path, label,
			password_key_uuid, metadata_key_uuid, access_group, gencount, tombstone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (owner_id, zone, uuid) DO UPDATE SET
			server = EXCLUDED.server,
			account = EXCLUDED.account,
			protocol = EXCLUDED.protocol,
			port = EXCLUDED.port,
			path = EXCLUDED.path,
			label = EXCLUDED.label,
			password_key_uuid = EXCLUDED.password_key_uuid,
			metadata_key_uuid = EXCLUDED.metadata_key_uuid,
			access_group = EXCLUDED.access_group,
			gencount = EXCLUDED.gencount,
			tombstone = EXCLUDED.tombstone,
			updated_at = NOW()
		WHERE EXCLUDED.gencount > credential_metadata.gencount`

	err := r.write(ctx, query,
		owner, zone, meta.UUID, meta.Server, meta.Account, meta.Protocol, meta.Port, meta.Path, meta.Label,
		meta.PasswordKeyUUID, meta.MetadataKeyUUID, meta.AccessGroup, meta.GenCount, meta.Tombstone,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert metadata: %w", err)
	}
	return nil
}

func (r *ReplicaRepository) GetMetadata(ctx context.Context, owner uuid.UUID, zone string, id uuid.UUID) (model.CredentialMetadata, error) {
	query := `SELECT ` + metadataColumns + ` FROM credential_metadata WHERE owner_id = $1 AND zone = $2 AND uuid = $3`

	meta, err := scanMetadata(r.db.QueryRow(ctx, query, owner, zone, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CredentialMetadata{}, model.ErrNotFound
		}
		return model.CredentialMetadata{}, fmt.Errorf("failed to get metadata: %w", err)
	}
	return meta, nil
}

func (r *ReplicaRepository) ListMetadata(ctx context.Context, owner uuid.UUID, zone string, opts model.ListOptions) ([]model.CredentialMetadata, error) {
	query := `SELECT ` + metadataColumns + ` FROM credential_metadata
		WHERE owner_id = $1 AND zone = $2 AND gencount > $3 AND ($4 OR NOT tombstone)
		ORDER BY gencount ASC`

	return r.queryMetadata(ctx, query, owner, zone, opts.Since, opts.IncludeTombstoned)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchMetadata matches live rows whose server or account contains query,
// ignoring case.
func (r *ReplicaRepository) SearchMetadata(ctx context.Context, owner uuid.UUID, zone string, query string) ([]model.CredentialMetadata, error) {
	q := `SELECT ` + metadataColumns + ` FROM credential_metadata
		WHERE owner_id = $1 AND zone = $2 AND NOT tombstone
			AND (server ILIKE $3 OR account ILIKE $3)
		ORDER BY server, account`

	pattern := "%" + likeEscaper.Replace(query) + "%"
	return r.queryMetadata(ctx, q, owner, zone, pattern)
}

func (r *ReplicaRepository) queryMetadata(ctx context.Context, query string, args ...any) ([]model.CredentialMetadata, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	var out []model.CredentialMetadata
	for rows.Next() {
		meta, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		out = append(out, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	return out, nil
}

func scanMetadata(row rowScanner) (model.CredentialMetadata, error) {
	var meta model.CredentialMetadata
	err := row.Scan(
		&meta.UUID, &meta.Server, &meta.Account, &meta.Protocol, &meta.Port, &meta.Path, &meta.Label,
		&meta.PasswordKeyUUID, &meta.MetadataKeyUUID, &meta.AccessGroup, &meta.GenCount, &meta.Tombstone,
	)
	return meta, err
}

const syncRecordColumns = `zone, uuid, parent_key_uuid, gencount, wrapped_key, enc_item, enc_version, context_id, tombstone`

func (r *ReplicaRepository) UpsertSyncRecord(ctx context.Context, owner uuid.UUID, record model.SyncRecord) error {
	const query = `
		INSERT INTO sync_records (owner_id, zone, uuid, parent_key_uuid, gencount, wrapped_key, enc_item, enc_version, context_id, tombstone)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (owner_id, zone, uuid) DO UPDATE SET
			parent_key_uuid = EXCLUDED.parent_key_uuid,
			gencount = EXCLUDED.gencount,
			wrapped_key = EXCLUDED.wrapped_key,
			enc_item = EXCLUDED.enc_item,
			enc_version = EXCLUDED.enc_version,
			context_id = EXCLUDED.context_id,
			tombstone = EXCLUDED.tombstone,
			updated_at = NOW()
		WHERE EXCLUDED.gencount > sync_records.gencount`

	err := r.write(ctx, query,
		owner, record.Zone, record.UUID, record.ParentKeyUUID, record.GenCount,
		record.WrappedKey, record.EncItem, record.EncVersion, record.ContextID, record.Tombstone,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert sync record: %w", err)
	}
	return nil
}

func (r *ReplicaRepository) GetSyncRecord(ctx context.Context, owner uuid.UUID, zone string, id uuid.UUID) (model.SyncRecord, error) {
	query := `SELECT ` + syncRecordColumns + ` FROM sync_records WHERE owner_id = $1 AND zone = $2 AND uuid = $3`

	rec, err := scanSyncRecord(r.db.QueryRow(ctx, query, owner, zone, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SyncRecord{}, model.ErrNotFound
		}
		return model.SyncRecord{}, fmt.Errorf("failed to get sync record: %w", err)
	}
	return rec, nil
}

func (r *ReplicaRepository) ListSyncRecords(ctx context.Context, owner uuid.UUID, zone string, opts model.ListOptions) ([]model.SyncRecord, error) {
	query := `SELECT ` + syncRecordColumns + ` FROM sync_records
		WHERE owner_id = $1 AND zone = $2 AND gencount > $3 AND ($4 OR NOT tombstone)
		ORDER BY gencount ASC`

	rows, err := r.db.Query(ctx, query, owner, zone, opts.Since, opts.IncludeTombstoned)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync records: %w", err)
	}
	defer rows.Close()

	var out []model.SyncRecord
	for rows.Next() {
		rec, err := scanSyncRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sync records: %w", err)
	}
	return out, nil
}

func scanSyncRecord(row rowScanner) (model.SyncRecord, error) {
	var rec model.SyncRecord
	err := row.Scan(
		&rec.Zone, &rec.UUID, &rec.ParentKeyUUID, &rec.GenCount, &rec.WrappedKey, &rec.EncItem,
		&rec.EncVersion, &rec.ContextID, &rec.Tombstone,
	)
	return rec, err
}

// NextGenCount bumps the zone counter, creating the zone on first use.
// Inside LockZone the row is already locked by the surrounding transaction.
func (r *ReplicaRepository) NextGenCount(ctx context.Context, owner uuid.UUID, zone string) (int64, error) {
	const query = `
		INSERT INTO sync_state (owner_id, zone, gencount)
		VALUES ($1, $2, 1)
		ON CONFLICT (owner_id, zone) DO UPDATE SET
			gencount = sync_state.gencount + 1,
			updated_at = NOW()
		RETURNING gencount`

	var gen int64
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, owner, zone).Scan(&gen)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to advance gencount: %w", err)
	}
	return gen, nil
}

func (r *ReplicaRepository) AdvanceGenCount(ctx context.Context, owner uuid.UUID, zone string, floor int64) (int64, error) {
	const query = `
		INSERT INTO sync_state (owner_id, zone, gencount)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, zone) DO UPDATE SET
			gencount = GREATEST(sync_state.gencount, EXCLUDED.gencount),
			updated_at = NOW()
		RETURNING gencount`

	var gen int64
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, owner, zone, floor).Scan(&gen)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to advance gencount: %w", err)
	}
	return gen, nil
}

func (r *ReplicaRepository) RefreshManifest(ctx context.Context, owner uuid.UUID, zone string, digest model.DigestFunc) (model.SyncState, error) {
	state := model.SyncState{Owner: owner, Zone: zone}

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		gen, err := lockState(ctx, tx, owner, zone)
		if err != nil {
			return err
		}
		state.GenCount = gen

		const live = `SELECT uuid FROM sync_records WHERE owner_id = $1 AND zone = $2 AND NOT tombstone`
		rows, err := tx.Query(ctx, live, owner, zone)
		if err != nil {
			return fmt.Errorf("failed to list live records: %w", err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
		if err != nil {
			return fmt.Errorf("failed to scan live records: %w", err)
		}

		state.Digest = digest(ids)
		const update = `UPDATE sync_state SET digest = $3, updated_at = NOW() WHERE owner_id = $1 AND zone = $2`
		if _, err := tx.Exec(ctx, update, owner, zone, state.Digest); err != nil {
			return fmt.Errorf("failed to store digest: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.SyncState{}, err
	}
	return state, nil
}

func (r *ReplicaRepository) GetSyncState(ctx context.Context, owner uuid.UUID, zone string) (model.SyncState, error) {
	const query = `SELECT gencount, digest FROM sync_state WHERE owner_id = $1 AND zone = $2`

	state := model.SyncState{Owner: owner, Zone: zone}
	if err := r.db.QueryRow(ctx, query, owner, zone).Scan(&state.GenCount, &state.Digest); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SyncState{}, model.ErrNotFound
		}
		return model.SyncState{}, fmt.Errorf("failed to get sync state: %w", err)
	}
	return state, nil
}
