package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrigger(t *testing.T) {
	hidden, ok := Trigger("/Collab summarize this")
	assert.True(t, ok)
	assert.False(t, hidden)

	hidden, ok = Trigger("  /CollabMe what did I miss?")
	assert.True(t, ok)
	assert.True(t, hidden)

	_, ok = Trigger("hello /Collab")
	assert.False(t, ok, "prefix must lead the message")

	_, ok = Trigger("just chatting")
	assert.False(t, ok)
}

func TestParseCommandFile(t *testing.T) {
	intent := ParseCommand("/Collab file notes/todo.py: write a hello world")
	assert.Equal(t, IntentFile, intent.Kind)
	assert.Equal(t, "notes/todo.py", intent.Path)
	assert.Equal(t, "write a hello world", intent.Instructions)
	assert.Empty(t, intent.Language)
}

func TestParseCommandFileWithLanguage(t *testing.T) {
	intent := ParseCommand("/Collab file app.txt Python: fizzbuzz")
	assert.Equal(t, IntentFile, intent.Kind)
	assert.Equal(t, "app.txt", intent.Path)
	assert.Equal(t, "python", intent.Language)
	assert.Equal(t, "fizzbuzz", intent.Instructions)
}

func TestParseCommandFolder(t *testing.T) {
	intent := ParseCommand("/Collab folder src: build a tiny web page")
	assert.Equal(t, IntentFolder, intent.Kind)
	assert.Equal(t, "src", intent.Path)
	assert.Equal(t, "build a tiny web page", intent.Instructions)
}

func TestParseCommandCaseInsensitiveKeyword(t *testing.T) {
	intent := ParseCommand("/Collab FILE main.py: do it")
	assert.Equal(t, IntentFile, intent.Kind)
	assert.Equal(t, "main.py", intent.Path)
}

func TestParseCommandQuery(t *testing.T) {
	intent := ParseCommand("/Collab what deadlines did we agree on?")
	assert.Equal(t, IntentQuery, intent.Kind)
	assert.Equal(t, "what deadlines did we agree on?", intent.Instructions)
}

func TestParseCommandEmptyFallsBackToDefault(t *testing.T) {
	for _, cmd := range []string{"/Collab", "/Collab   ", "/CollabMe"} {
		intent := ParseCommand(cmd)
		assert.Equal(t, IntentQuery, intent.Kind)
		assert.Equal(t, DefaultQuery, intent.Instructions)
	}
}

func TestParseCommandHiddenPrefix(t *testing.T) {
	intent := ParseCommand("/CollabMe file secret.py: just for me")
	assert.Equal(t, IntentFile, intent.Kind)
	assert.Equal(t, "secret.py", intent.Path)
}

func TestExtractJump(t *testing.T) {
	cleaned, id := ExtractJump("That was discussed here. [jump_to: 142]")
	assert.Equal(t, "That was discussed here.", cleaned)
	if assert.NotNil(t, id) {
		assert.Equal(t, 142, *id)
	}

	cleaned, id = ExtractJump("No reference at all.")
	assert.Equal(t, "No reference at all.", cleaned)
	assert.Nil(t, id)

	// tag in the middle is not a trailing annotation
	text := "Here [jump_to: 3] and more"
	cleaned, id = ExtractJump(text)
	assert.Equal(t, text, cleaned)
	assert.Nil(t, id)

	cleaned, id = ExtractJump("Trailing spaces. [jump_to:7]   ")
	assert.Equal(t, "Trailing spaces.", cleaned)
	if assert.NotNil(t, id) {
		assert.Equal(t, 7, *id)
	}
}

func TestExtractCodeBlocks(t *testing.T) {
	raw := "Sure!\n```python:app.py\nprint('hi')\n```\nand styling:\n```css\nbody {}\n```\n"
	blocks := ExtractCodeBlocks(raw)
	if assert.Len(t, blocks, 2) {
		assert.Equal(t, "app.py", blocks[0].Filename)
		assert.Equal(t, "python", blocks[0].Language)
		assert.Equal(t, "print('hi')", blocks[0].Content)

		assert.Empty(t, blocks[1].Filename)
		assert.Equal(t, "css", blocks[1].Language)
	}
}

func TestExtractCodeBlocksBareToken(t *testing.T) {
	// a bare token with a dot is a filename, without a dot a language
	blocks := ExtractCodeBlocks("```index.html\n<p>hi</p>\n```")
	if assert.Len(t, blocks, 1) {
		assert.Equal(t, "index.html", blocks[0].Filename)
		assert.Equal(t, "text", blocks[0].Language)
	}

	blocks = ExtractCodeBlocks("```Go\nfmt.Println(1)\n```")
	if assert.Len(t, blocks, 1) {
		assert.Empty(t, blocks[0].Filename)
		assert.Equal(t, "go", blocks[0].Language)
	}
}

func TestExtractCodeBlocksSkipsEmptyBodies(t *testing.T) {
	blocks := ExtractCodeBlocks("```python\n\n```\n```python\nx = 1\n```")
	if assert.Len(t, blocks, 1) {
		assert.Equal(t, "x = 1", blocks[0].Content)
	}
}

func TestExtractCodeBlocksNoFence(t *testing.T) {
	assert.Empty(t, ExtractCodeBlocks("plain prose, no code"))
}

func TestFormatHistory(t *testing.T) {
	entries := []HistoryEntry{
		{ID: 1, Sender: "alice", Content: "hello"},
		{ID: 2, Sender: "bob", Content: "gone", Deleted: true},
		{ID: 3, Sender: "bob", Content: "hi back"},
	}
	text := FormatHistory(entries)
	assert.Equal(t, "[id:1] alice: hello\n[id:3] bob: hi back", text)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("[id:1] alice: hello", "summarize", false)
	assert.Contains(t, prompt, "Collab-X")
	assert.Contains(t, prompt, `request is: "summarize"`)
	assert.Contains(t, prompt, "[id:1] alice: hello")
	assert.NotContains(t, prompt, "fenced")

	withCode := BuildPrompt("", "write code", true)
	assert.Contains(t, withCode, "```language:filename")
}
