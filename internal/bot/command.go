package bot

import (
	"regexp"
	"strings"
)

const (
	// Prefix routes a chat message to the bot with a room-wide reply.
	Prefix = "/Collab"
	// HiddenPrefix routes a chat message to the bot with a requester-only
	// reply.
	HiddenPrefix = "/CollabMe"

	// DefaultQuery stands in when the command carries no arguments.
	DefaultQuery = "Summarize our chat so far."
)

// Trigger reports whether content is a bot command and, if so, whether the
// reply is hidden (requester only) or broadcast to the room.
func Trigger(content string) (hidden, ok bool) {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, HiddenPrefix) {
		return true, true
	}
	if strings.HasPrefix(trimmed, Prefix) {
		return false, true
	}
	return false, false
}

const (
	IntentQuery  = "query"
	IntentFile   = "file"
	IntentFolder = "folder"
)

// Intent is the structured form of one parsed bot command.
type Intent struct {
	Kind         string
	Path         string
	Instructions string
	Language     string // file intents only, empty means guess from extension
}

var (
	filePattern   = regexp.MustCompile(`(?i)^file\s+([^\s:]+)(?:\s+(\w+):)?\s*:?\s*(.*)$`)
	folderPattern = regexp.MustCompile(`(?i)^folder\s+([^\s:]+)\s*:?\s*(.*)$`)
)

// ParseCommand extracts the optional file/folder target and the instructions
// from a command's text. Commands that name no target become free-form
// queries; an empty command falls back to the default query.
func ParseCommand(content string) Intent {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, HiddenPrefix) {
		trimmed = strings.TrimPrefix(trimmed, HiddenPrefix)
	} else {
		trimmed = strings.TrimPrefix(trimmed, Prefix)
	}
	trimmed = strings.TrimSpace(trimmed)

	if m := filePattern.FindStringSubmatch(trimmed); m != nil {
		return Intent{
			Kind:         IntentFile,
			Path:         strings.TrimSpace(m[1]),
			Language:     strings.ToLower(m[2]),
			Instructions: strings.TrimSpace(m[3]),
		}
	}
	if m := folderPattern.FindStringSubmatch(trimmed); m != nil {
		return Intent{
			Kind:         IntentFolder,
			Path:         strings.TrimSpace(m[1]),
			Instructions: strings.TrimSpace(m[2]),
		}
	}

	if trimmed == "" {
		trimmed = DefaultQuery
	}
	return Intent{Kind: IntentQuery, Instructions: trimmed}
}
