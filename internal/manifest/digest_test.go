package manifest

import (
	"crypto/sha256"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDigest_OrderIndependent(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	d1 := Digest([]uuid.UUID{a, b, c})
	d2 := Digest([]uuid.UUID{c, a, b})

	assert.Len(t, d1, DigestSize)
	assert.Equal(t, d1, d2)
}

func TestDigest_Format(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000001")

	want := sha256.Sum256([]byte("00000000-0000-0000-0000-000000000001|00000000-0000-0000-0000-000000000002"))
	assert.Equal(t, want[:], Digest([]uuid.UUID{a, b}))
}

func TestDigest_Empty(t *testing.T) {
	want := sha256.Sum256(nil)
	assert.Equal(t, want[:], Digest(nil))
}

func TestDigest_ChangesWithSet(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.NotEqual(t, Digest([]uuid.UUID{a}), Digest([]uuid.UUID{a, b}))
}

func TestEqual(t *testing.T) {
	d := Digest([]uuid.UUID{uuid.New()})
	assert.True(t, Equal(d, append([]byte(nil), d...)))
	assert.False(t, Equal(d, nil))
	assert.False(t, Equal(nil, nil))
}
