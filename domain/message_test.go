package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConversationKey_Is_Order_Insensitive(t *testing.T) {
	req := require.New(t)

	ab := NewConversationKey("alice", "bob")
	ba := NewConversationKey("bob", "alice")

	req.Equal(ab, ba)
	req.Equal("alice|bob", ab.String())
}

func TestConversationKey_Other(t *testing.T) {
	req := require.New(t)
	key := NewConversationKey("alice", "bob")

	req.Equal("bob", key.Other("alice"))
	req.Equal("alice", key.Other("bob"))
	req.Equal("", key.Other("clara"))
}

func TestConversationKey_Contains_And_IsZero(t *testing.T) {
	req := require.New(t)
	key := NewConversationKey("alice", "bob")

	req.True(key.Contains("alice"))
	req.False(key.Contains("clara"))
	req.False(key.IsZero())
	req.True(ConversationKey{}.IsZero())
}

func TestTrimBody(t *testing.T) {
	req := require.New(t)

	req.Equal("hello", TrimBody("  hello \n"))
	req.Equal("", TrimBody(" \t\n "))
}
