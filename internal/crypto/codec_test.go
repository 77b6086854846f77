package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/credsync/internal/model"
)

func TestCodec_RoundTrip(t *testing.T) {
	master, _, err := DeriveMasterKey("pw", nil)
	require.NoError(t, err)
	codec := NewCodec()

	payloads := []model.Secret{
		{URL: "https://github.com", Username: "alice", Password: "p@ss1"},
		{Password: ""},
		{URL: "ftp://x", Username: "ü", Password: "пароль", Notes: "line1\nline2"},
	}

	for _, p := range payloads {
		ck, err := GenerateContentKey()
		require.NoError(t, err)
		wrapped, err := master.WrapKey(ck)
		require.NoError(t, err)

		encItem, err := codec.Encrypt(p, ck)
		require.NoError(t, err)

		var got model.Secret
		require.NoError(t, codec.Decrypt(master, wrapped, encItem, &got))
		assert.Equal(t, p, got)
	}
}

func TestCodec_FreshIVPerCall(t *testing.T) {
	ck, err := GenerateContentKey()
	require.NoError(t, err)
	codec := NewCodec()

	a, err := codec.Encrypt(model.Secret{Password: "same"}, ck)
	require.NoError(t, err)
	b, err := codec.Encrypt(model.Secret{Password: "same"}, ck)
	require.NoError(t, err)

	assert.NotEqual(t, a[len(a)-IVSize:], b[len(b)-IVSize:])
	assert.NotEqual(t, a, b)
}

func TestCodec_TamperedItem(t *testing.T) {
	master, _, err := DeriveMasterKey("pw", nil)
	require.NoError(t, err)
	codec := NewCodec()

	ck, err := GenerateContentKey()
	require.NoError(t, err)
	wrapped, err := master.WrapKey(ck)
	require.NoError(t, err)
	encItem, err := codec.Encrypt(model.Secret{Password: "secret"}, ck)
	require.NoError(t, err)

	encItem[0] ^= 0xff

	got := model.Secret{Notes: "untouched"}
	err = codec.Decrypt(master, wrapped, encItem, &got)
	assert.ErrorIs(t, err, model.ErrCorruptData)
	assert.Equal(t, "untouched", got.Notes)

	err = codec.DecryptWithKey(ck, []byte("short"), &got)
	assert.ErrorIs(t, err, model.ErrCorruptData)
}

func TestCodec_WrongContentKey(t *testing.T) {
	codec := NewCodec()
	ck, err := GenerateContentKey()
	require.NoError(t, err)
	other, err := GenerateContentKey()
	require.NoError(t, err)

	encItem, err := codec.Encrypt(model.Secret{Password: "x"}, ck)
	require.NoError(t, err)

	var got model.Secret
	err = codec.DecryptWithKey(other, encItem, &got)
	assert.ErrorIs(t, err, model.ErrCorruptData)
}

func TestCodec_BadKeySize(t *testing.T) {
	_, err := NewCodec().Encrypt(model.Secret{}, []byte("short"))
	assert.Error(t, err)
}

func TestCodec_MismatchedPayloadLeavesOutUntouched(t *testing.T) {
	ck, err := GenerateContentKey()
	require.NoError(t, err)
	codec := NewCodec()

	// A valid document with one mistyped field: a plain json.Unmarshal
	// still fills url and username before reporting it.
	encItem, err := codec.Encrypt(map[string]any{
		"url":      "https://example.com",
		"username": "mallory",
		"password": 42,
	}, ck)
	require.NoError(t, err)

	got := model.Secret{URL: "https://keep.me", Username: "alice", Password: "old"}
	err = codec.DecryptWithKey(ck, encItem, &got)
	require.ErrorIs(t, err, model.ErrCorruptData)
	assert.Equal(t, model.Secret{URL: "https://keep.me", Username: "alice", Password: "old"}, got)
}

func TestCodec_DecryptNeedsPointer(t *testing.T) {
	ck, err := GenerateContentKey()
	require.NoError(t, err)
	codec := NewCodec()

	encItem, err := codec.Encrypt(model.Secret{Password: "x"}, ck)
	require.NoError(t, err)

	var got model.Secret
	assert.Error(t, codec.DecryptWithKey(ck, encItem, got))
	assert.Error(t, codec.DecryptWithKey(ck, encItem, (*model.Secret)(nil)))
}
