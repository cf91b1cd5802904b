package workspace

import (
	"path"
	"strings"
)

var languageByExtension = map[string]string{
	".py":   "python",
	".html": "html",
	".htm":  "html",
	".js":   "javascript",
	".css":  "css",
	".json": "json",
	".md":   "markdown",
	".txt":  "text",
}

var defaultTemplates = map[string]string{
	"python": `def main():
    print("Hello from {filename}!")


if __name__ == "__main__":
    main()
`,
	"html": `<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>{filename}</title>
  </head>
  <body>
    <h1>Hello from {filename}</h1>
  </body>
</html>
`,
	"javascript": "console.log(\"Hello from {filename}!\");\n",
	"css":        "/* {filename} */\n",
	"json":       "{\n  \"message\": \"Hello from {filename}!\"\n}\n",
	"markdown":   "# {filename}\n",
	"text":       "",
}

// GuessLanguage maps a filename extension to its language tag, defaulting to
// "text".
func GuessLanguage(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if lang, ok := languageByExtension[ext]; ok {
		return lang
	}
	return "text"
}

// DefaultContent returns the greeting template for a freshly created file.
func DefaultContent(language, filename string) string {
	return strings.ReplaceAll(defaultTemplates[language], "{filename}", filename)
}

// NormalizePath collapses separators and discards empty segments, so
// "a//b\c/" becomes "a/b/c".
func NormalizePath(p string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	var segments []string
	for _, segment := range strings.Split(cleaned, "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return strings.Join(segments, "/")
}
