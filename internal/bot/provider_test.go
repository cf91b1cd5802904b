package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCollaborator(t *testing.T) {
	assert.IsType(t, Disabled{}, NewCollaborator("openai", "", "any"))
	assert.IsType(t, &Anthropic{}, NewCollaborator("anthropic", "key", ""))
	assert.IsType(t, &OpenAI{}, NewCollaborator("openai", "key", ""))
	assert.IsType(t, &OpenAI{}, NewCollaborator("", "key", ""))
}

func TestDisabledComplete(t *testing.T) {
	_, err := Disabled{}.Complete(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
