package proto

import (
	"testing"

	"github.com/charmbracelet/x/exp/golden"
	"github.com/stretchr/testify/require"
)

var messages = []Message{
	{
		Role:    RoleSystem,
		Content: "you are a medieval king",
	},
	{
		Role:    RoleUser,
		Content: "first 4 natural numbers",
	},
	{
		Role:    RoleAssistant,
		Content: "1, 2, 3, 4",
	},
	{
		Role:    RoleUser,
		Content: "as a json array",
	},
	{
		Role:    RoleAssistant,
		Content: "",
	},
	{
		Role:    RoleAssistant,
		Content: "[ 1, 2, 3, 4 ]",
	},
}

func TestStringer(t *testing.T) {
	golden.RequireEqual(t, []byte(Conversation(messages).String()))
}

func TestLastPrompt(t *testing.T) {
	t.Run("no prompt", func(t *testing.T) {
		require.Empty(t, Conversation(nil).LastPrompt())
	})
	t.Run("multiple prompts", func(t *testing.T) {
		require.Equal(t, "as a json array", Conversation(messages).LastPrompt())
	})
}
