package bot

import (
	"regexp"
	"strconv"
	"strings"
)

// jumpPattern matches a single trailing [jump_to: N] annotation.
var jumpPattern = regexp.MustCompile(`\[jump_to:\s*(\d+)\]\s*$`)

// ExtractJump strips a trailing jump-to annotation from a reply and returns
// the cleaned text plus the referenced message id, nil when absent.
func ExtractJump(text string) (string, *int) {
	m := jumpPattern.FindStringSubmatchIndex(text)
	if m == nil {
		return text, nil
	}
	id, err := strconv.Atoi(text[m[2]:m[3]])
	if err != nil {
		return text, nil
	}
	return strings.TrimSpace(text[:m[0]]), &id
}

// CodeBlock is one fenced block lifted from a raw reply.
type CodeBlock struct {
	Filename string
	Language string
	Content  string
}

// blockPattern: ``` optionally followed by language:filename, a bare
// language, or a bare filename, then a newline, the body, and the closing
// fence.
var blockPattern = regexp.MustCompile("(?s)```(?:(\\w+)(?::([^\n]+))?|([^\n]+))?\n(.*?)```")

// ExtractCodeBlocks lifts every fenced code block out of a raw reply. A bare
// token after the fence counts as a filename when it contains a dot, else as
// a language tag. Empty bodies are dropped.
func ExtractCodeBlocks(text string) []CodeBlock {
	var blocks []CodeBlock
	for _, m := range blockPattern.FindAllStringSubmatch(text, -1) {
		lang := strings.ToLower(strings.TrimSpace(m[1]))
		filename := strings.TrimSpace(m[2])
		if bare := strings.TrimSpace(m[3]); bare != "" {
			if strings.Contains(bare, ".") {
				filename = bare
			} else {
				lang = strings.ToLower(bare)
			}
		}
		content := strings.TrimSpace(m[4])
		if content == "" {
			continue
		}
		if lang == "" {
			lang = "text"
		}
		blocks = append(blocks, CodeBlock{Filename: filename, Language: lang, Content: content})
	}
	return blocks
}
