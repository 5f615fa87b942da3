package notify

import (
	"testing"

	"vetcare/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	chat := &fakeChannel{kind: entity.ChannelChat}
	inApp := &fakeChannel{kind: entity.ChannelInApp}

	r, err := NewRegistry(inApp, chat)
	require.NoError(t, err)

	got, ok := r.Lookup(entity.ChannelChat)
	assert.True(t, ok)
	assert.Same(t, chat, got)

	_, ok = r.Lookup(entity.ChannelEmail)
	assert.False(t, ok)

	assert.Equal(t, []entity.ChannelKind{entity.ChannelChat, entity.ChannelInApp}, r.Kinds())
}

func TestNewRegistry_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		channels []Channel
	}{
		{
			name:     "duplicate kind",
			channels: []Channel{&fakeChannel{kind: entity.ChannelEmail}, &fakeChannel{kind: entity.ChannelEmail}},
		},
		{
			name:     "unknown kind",
			channels: []Channel{&fakeChannel{kind: entity.ChannelKind("SMS")}},
		},
		{
			name:     "nil channel",
			channels: []Channel{nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRegistry(tt.channels...)
			assert.Nil(t, r)
			assert.ErrorIs(t, err, ErrInvalidRegistry)
		})
	}
}

func TestNewRegistry_Empty(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	assert.Empty(t, r.Kinds())
}
