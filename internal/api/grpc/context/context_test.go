package context

import (
	stdctx "context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/metadata"
)

func TestManager_Owner(t *testing.T) {
	m := NewManager()
	owner := uuid.New()
	spoofed := metadata.NewIncomingContext(stdctx.Background(), metadata.Pairs("owner", uuid.NewString()))

	tests := []struct {
		name   string
		ctx    stdctx.Context
		want   uuid.UUID
		wantOK bool
	}{
		{name: "set", ctx: m.WithOwner(stdctx.Background(), owner), want: owner, wantOK: true},
		{name: "missing", ctx: stdctx.Background()},
		{name: "nil owner", ctx: m.WithOwner(stdctx.Background(), uuid.Nil)},
		{name: "caller metadata ignored", ctx: spoofed},
		{name: "value set over caller metadata", ctx: m.WithOwner(spoofed, owner), want: owner, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Owner(tt.ctx)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
