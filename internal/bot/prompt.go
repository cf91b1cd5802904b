package bot

import (
	"fmt"
	"strings"
)

// HistoryEntry is one chat message as the prompt sees it.
type HistoryEntry struct {
	ID      int
	Sender  string
	Content string
	Deleted bool
}

// FormatHistory renders chat history as "[id:N] Sender: content" lines,
// soft-deleted messages excluded.
func FormatHistory(entries []HistoryEntry) string {
	var lines []string
	for _, e := range entries {
		if e.Deleted {
			continue
		}
		lines = append(lines, fmt.Sprintf("[id:%d] %s: %s", e.ID, e.Sender, e.Content))
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt assembles the Collab-X prompt from formatted history and the
// user's request. withCodeDirective asks for fenced code blocks annotated
// with filenames, used when the command targets a file or folder.
func BuildPrompt(historyText, userQuery string, withCodeDirective bool) string {
	var sb strings.Builder
	sb.WriteString(`You are 'Collab-X', a helpful AI assistant integrated into this chat application.
Your personality is helpful, concise, and professional.
You are part of the Collab-X application.

A user has asked for your help regarding their chat history.
The user's specific request is: "`)
	sb.WriteString(userQuery)
	sb.WriteString(`"

The chat history you are analyzing is formatted as: [id:MESSAGE_ID] Sender: Message

--- TASK ---
1.  Analyze the chat history below to answer the user's request.
2.  If your answer refers to a specific, single message (e.g., "you mentioned X here"),
    find the *most relevant* MESSAGE_ID for that reference.
3.  After you write your answer, append a special tag: [jump_to: ID]
    (e.g., "I found the message where you discussed the deadline." [jump_to: 142])
4.  ONLY add the [jump_to: ID] tag if you are referencing ONE specific message.
5.  If it's a general summary (e.g., "you talked about two things..."), DO NOT add the tag.
`)
	if withCodeDirective {
		sb.WriteString(`6.  The user wants code written into the shared workspace. Answer with fenced
    code blocks. Annotate each block as ` + "```language:filename" + ` so the code
    can be placed at the right path.
`)
	}
	sb.WriteString("\n--- CHAT HISTORY START ---\n")
	sb.WriteString(historyText)
	sb.WriteString("\n--- CHAT HISTORY END ---\n\nYour Answer:\n")
	return sb.String()
}
