package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dtroode/credsync/internal/model"
)

const maxZoneLen = 128

// Validator is implemented by every request message.
type Validator interface {
	Validate() error
}

// Encode marshals v into the payload of a BytesValue.
func Encode(v any) (*wrapperspb.BytesValue, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return wrapperspb.Bytes(data), nil
}

// Decode unmarshals a BytesValue payload into v, rejecting unknown fields
// and trailing data. If v is a Validator it is validated too.
func Decode(in *wrapperspb.BytesValue, v any) error {
	dec := json.NewDecoder(bytes.NewReader(in.GetValue()))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &model.ValidationError{Field: "body", Reason: err.Error()}
	}
	if _, err := dec.Token(); err != io.EOF {
		return &model.ValidationError{Field: "body", Reason: "trailing data after message"}
	}
	if val, ok := v.(Validator); ok {
		return val.Validate()
	}
	return nil
}

func validateZone(zone string) error {
	if len(zone) > maxZoneLen {
		return &model.ValidationError{Field: "zone", Reason: fmt.Sprintf("longer than %d bytes", maxZoneLen)}
	}
	return nil
}

func requireUUID(field string, id uuid.UUID) error {
	if id == uuid.Nil {
		return &model.ValidationError{Field: field, Reason: "must be set"}
	}
	return nil
}

// Key is a wrapped content key on the wire.
type Key struct {
	UUID        uuid.UUID `json:"uuid"`
	KeyClass    string    `json:"key_class"`
	KeyType     string    `json:"key_type"`
	Data        []byte    `json:"data"`
	UsageFlags  uint32    `json:"usage_flags"`
	AccessGroup string    `json:"access_group,omitempty"`
	GenCount    int64     `json:"gencount"`
	Tombstone   bool      `json:"tombstone"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

func (k Key) Validate() error {
	if err := requireUUID("keys.uuid", k.UUID); err != nil {
		return err
	}
	switch model.KeyClass(k.KeyClass) {
	case model.KeyClassSymmetric, model.KeyClassAsymmetricPublic, model.KeyClassAsymmetricPrivate:
	default:
		return &model.ValidationError{Field: "keys.key_class", Reason: fmt.Sprintf("unknown class %q", k.KeyClass)}
	}
	switch model.KeyType(k.KeyType) {
	case model.KeyTypeAES256GCM, model.KeyTypeEd25519, model.KeyTypeX25519:
	default:
		return &model.ValidationError{Field: "keys.key_type", Reason: fmt.Sprintf("unknown type %q", k.KeyType)}
	}
	if !k.Tombstone && len(k.Data) == 0 {
		return &model.ValidationError{Field: "keys.data", Reason: "must not be empty"}
	}
	return nil
}

func KeyFromModel(k model.CryptoKey) Key {
	return Key{
		UUID:        k.UUID,
		KeyClass:    string(k.KeyClass),
		KeyType:     string(k.KeyType),
		Data:        k.Data,
		UsageFlags:  k.UsageFlags,
		AccessGroup: k.AccessGroup,
		GenCount:    k.GenCount,
		Tombstone:   k.Tombstone,
		CreatedAt:   k.CreatedAt,
		UpdatedAt:   k.UpdatedAt,
	}
}

func (k Key) Model() model.CryptoKey {
	return model.CryptoKey{
		UUID:        k.UUID,
		KeyClass:    model.KeyClass(k.KeyClass),
		KeyType:     model.KeyType(k.KeyType),
		Data:        k.Data,
		UsageFlags:  k.UsageFlags,
		AccessGroup: k.AccessGroup,
		GenCount:    k.GenCount,
		Tombstone:   k.Tombstone,
		CreatedAt:   k.CreatedAt,
		UpdatedAt:   k.UpdatedAt,
	}
}

// Metadata is a credential's searchable metadata on the wire.
type Metadata struct {
	UUID            uuid.UUID  `json:"uuid"`
	Server          string     `json:"server"`
	Account         string     `json:"account"`
	Protocol        int32      `json:"protocol,omitempty"`
	Port            int32      `json:"port,omitempty"`
	Path            string     `json:"path,omitempty"`
	Label           string     `json:"label,omitempty"`
	PasswordKeyUUID uuid.UUID  `json:"password_key_uuid"`
	MetadataKeyUUID *uuid.UUID `json:"metadata_key_uuid,omitempty"`
	AccessGroup     string     `json:"access_group,omitempty"`
	GenCount        int64      `json:"gencount"`
	Tombstone       bool       `json:"tombstone"`
}

func (m Metadata) Validate() error {
	if err := requireUUID("metadata.uuid", m.UUID); err != nil {
		return err
	}
	if err := requireUUID("metadata.password_key_uuid", m.PasswordKeyUUID); err != nil {
		return err
	}
	if m.Port < 0 || m.Port > 65535 {
		return &model.ValidationError{Field: "metadata.port", Reason: "out of range"}
	}
	if m.Protocol < 0 {
		return &model.ValidationError{Field: "metadata.protocol", Reason: "must not be negative"}
	}
	return nil
}

func MetadataFromModel(m model.CredentialMetadata) Metadata {
	return Metadata{
		UUID:            m.UUID,
		Server:          m.Server,
		Account:         m.Account,
		Protocol:        m.Protocol,
		Port:            m.Port,
		Path:            m.Path,
		Label:           m.Label,
		PasswordKeyUUID: m.PasswordKeyUUID,
		MetadataKeyUUID: m.MetadataKeyUUID,
		AccessGroup:     m.AccessGroup,
		GenCount:        m.GenCount,
		Tombstone:       m.Tombstone,
	}
}

func (m Metadata) Model() model.CredentialMetadata {
	return model.CredentialMetadata{
		UUID:            m.UUID,
		Server:          m.Server,
		Account:         m.Account,
		Protocol:        m.Protocol,
		Port:            m.Port,
		Path:            m.Path,
		Label:           m.Label,
		PasswordKeyUUID: m.PasswordKeyUUID,
		MetadataKeyUUID: m.MetadataKeyUUID,
		AccessGroup:     m.AccessGroup,
		GenCount:        m.GenCount,
		Tombstone:       m.Tombstone,
	}
}

// SyncRecord is an encrypted credential payload on the wire.
type SyncRecord struct {
	UUID          uuid.UUID `json:"uuid"`
	ParentKeyUUID uuid.UUID `json:"parent_key_uuid"`
	GenCount      int64     `json:"gencount"`
	WrappedKey    []byte    `json:"wrapped_key"`
	EncItem       []byte    `json:"enc_item"`
	EncVersion    int32     `json:"enc_version,omitempty"`
	ContextID     string    `json:"context_id,omitempty"`
	Tombstone     bool      `json:"tombstone"`
}

func (r SyncRecord) Validate() error {
	if err := requireUUID("sync_records.uuid", r.UUID); err != nil {
		return err
	}
	if err := requireUUID("sync_records.parent_key_uuid", r.ParentKeyUUID); err != nil {
		return err
	}
	if r.EncVersion != 0 && r.EncVersion != model.DefaultEncVersion {
		return &model.ValidationError{Field: "sync_records.enc_version", Reason: fmt.Sprintf("unsupported version %d", r.EncVersion)}
	}
	if r.Tombstone {
		return nil
	}
	if len(r.WrappedKey) == 0 {
		return &model.ValidationError{Field: "sync_records.wrapped_key", Reason: "must not be empty"}
	}
	if len(r.EncItem) == 0 {
		return &model.ValidationError{Field: "sync_records.enc_item", Reason: "must not be empty"}
	}
	return nil
}

func SyncRecordFromModel(r model.SyncRecord) SyncRecord {
	return SyncRecord{
		UUID:          r.UUID,
		ParentKeyUUID: r.ParentKeyUUID,
		GenCount:      r.GenCount,
		WrappedKey:    r.WrappedKey,
		EncItem:       r.EncItem,
		EncVersion:    r.EncVersion,
		ContextID:     r.ContextID,
		Tombstone:     r.Tombstone,
	}
}

func (r SyncRecord) Model(zone string) model.SyncRecord {
	return model.SyncRecord{
		Zone:          zone,
		UUID:          r.UUID,
		ParentKeyUUID: r.ParentKeyUUID,
		GenCount:      r.GenCount,
		WrappedKey:    r.WrappedKey,
		EncItem:       r.EncItem,
		EncVersion:    r.EncVersion,
		ContextID:     r.ContextID,
		Tombstone:     r.Tombstone,
	}
}

// PushRequest is the body of Sync/Push.
type PushRequest struct {
	Zone        string       `json:"zone"`
	Keys        []Key        `json:"keys"`
	Metadata    []Metadata   `json:"metadata"`
	SyncRecords []SyncRecord `json:"sync_records"`
}

func (p PushRequest) Validate() error {
	if err := validateZone(p.Zone); err != nil {
		return err
	}
	for _, k := range p.Keys {
		if err := k.Validate(); err != nil {
			return err
		}
	}
	for _, m := range p.Metadata {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	for _, r := range p.SyncRecords {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func PushRequestFromModel(req model.PushRequest) PushRequest {
	out := PushRequest{Zone: req.Zone}
	for _, k := range req.Keys {
		out.Keys = append(out.Keys, KeyFromModel(k))
	}
	for _, m := range req.Metadata {
		out.Metadata = append(out.Metadata, MetadataFromModel(m))
	}
	for _, r := range req.SyncRecords {
		out.SyncRecords = append(out.SyncRecords, SyncRecordFromModel(r))
	}
	return out
}

func (p PushRequest) Model() model.PushRequest {
	out := model.PushRequest{Zone: p.Zone}
	for _, k := range p.Keys {
		out.Keys = append(out.Keys, k.Model())
	}
	for _, m := range p.Metadata {
		out.Metadata = append(out.Metadata, m.Model())
	}
	for _, r := range p.SyncRecords {
		out.SyncRecords = append(out.SyncRecords, r.Model(p.Zone))
	}
	return out
}

// Assignment reports the gencount given to one pushed row.
type Assignment struct {
	Layer    string    `json:"layer"`
	UUID     uuid.UUID `json:"uuid"`
	GenCount int64     `json:"gencount"`
}

// PushResponse is the body returned by Sync/Push.
type PushResponse struct {
	GenCount       int64        `json:"gencount"`
	ItemsProcessed int          `json:"items_processed"`
	Assigned       []Assignment `json:"assigned"`
}

func PushResponseFromModel(res model.PushResult) PushResponse {
	out := PushResponse{GenCount: res.GenCount, ItemsProcessed: res.ItemsProcessed}
	for _, a := range res.Assigned {
		out.Assigned = append(out.Assigned, Assignment{Layer: string(a.Layer), UUID: a.UUID, GenCount: a.GenCount})
	}
	return out
}

func (p PushResponse) Model() model.PushResult {
	out := model.PushResult{GenCount: p.GenCount, ItemsProcessed: p.ItemsProcessed}
	for _, a := range p.Assigned {
		out.Assigned = append(out.Assigned, model.Assignment{Layer: model.Layer(a.Layer), UUID: a.UUID, GenCount: a.GenCount})
	}
	return out
}

// PullRequest is the body of Sync/Pull.
type PullRequest struct {
	Zone              string `json:"zone"`
	SinceGenCount     int64  `json:"since_gencount"`
	IncludeTombstoned bool   `json:"include_tombstoned"`
}

func (p PullRequest) Validate() error {
	if err := validateZone(p.Zone); err != nil {
		return err
	}
	if p.SinceGenCount < 0 {
		return &model.ValidationError{Field: "since_gencount", Reason: "must not be negative"}
	}
	return nil
}

// PullResponse is the body returned by Sync/Pull.
type PullResponse struct {
	Keys        []Key        `json:"keys"`
	Metadata    []Metadata   `json:"metadata"`
	SyncRecords []SyncRecord `json:"sync_records"`
	GenCount    int64        `json:"gencount"`
}

func PullResponseFromModel(res model.PullResult) PullResponse {
	out := PullResponse{GenCount: res.GenCount}
	for _, k := range res.Keys {
		out.Keys = append(out.Keys, KeyFromModel(k))
	}
	for _, m := range res.Metadata {
		out.Metadata = append(out.Metadata, MetadataFromModel(m))
	}
	for _, r := range res.SyncRecords {
		out.SyncRecords = append(out.SyncRecords, SyncRecordFromModel(r))
	}
	return out
}

func (p PullResponse) Model(zone string) model.PullResult {
	out := model.PullResult{GenCount: p.GenCount}
	for _, k := range p.Keys {
		out.Keys = append(out.Keys, k.Model())
	}
	for _, m := range p.Metadata {
		out.Metadata = append(out.Metadata, m.Model())
	}
	for _, r := range p.SyncRecords {
		out.SyncRecords = append(out.SyncRecords, r.Model(zone))
	}
	return out
}

// ManifestRequest is the body of Sync/Manifest.
type ManifestRequest struct {
	Zone string `json:"zone"`
}

func (m ManifestRequest) Validate() error {
	return validateZone(m.Zone)
}

// ManifestResponse is the body returned by Sync/Manifest.
type ManifestResponse struct {
	Zone     string `json:"zone"`
	GenCount int64  `json:"gencount"`
	Digest   []byte `json:"digest"`
}

// Credentials is the body of Auth/Signup and Auth/Login.
type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	if c.Login == "" {
		return &model.ValidationError{Field: "login", Reason: "must not be empty"}
	}
	if c.Password == "" {
		return &model.ValidationError{Field: "password", Reason: "must not be empty"}
	}
	return nil
}

// RefreshRequest is the body of Auth/Refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r RefreshRequest) Validate() error {
	if r.RefreshToken == "" {
		return &model.ValidationError{Field: "refresh_token", Reason: "must not be empty"}
	}
	return nil
}

// Session is returned by every Auth method.
type Session struct {
	UserID       uuid.UUID `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	VaultSalt    []byte    `json:"vault_salt,omitempty"`
}

func SessionFromModel(s model.Session) Session {
	return Session{
		UserID:       s.UserID,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		VaultSalt:    s.VaultSalt,
	}
}

func (s Session) Model() model.Session {
	return model.Session{
		UserID:       s.UserID,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		VaultSalt:    s.VaultSalt,
	}
}
