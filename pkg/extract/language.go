package extract

import (
	"path"
	"strings"
)

// defaultLanguage is the tag used when a fence carries no annotation
// and the path's extension is unrecognized.
const defaultLanguage = "plaintext"

// languageByExt maps file extensions to fence language tags. Dotfiles
// like .env and .gitignore resolve here too because path.Ext treats
// their whole name as the extension.
var languageByExt = map[string]string{
	".ts":        "typescript",
	".tsx":       "tsx",
	".js":        "javascript",
	".jsx":       "jsx",
	".py":        "python",
	".json":      "json",
	".html":      "html",
	".css":       "css",
	".md":        "markdown",
	".yml":       "yaml",
	".yaml":      "yaml",
	".sql":       "sql",
	".env":       "plaintext",
	".gitignore": "plaintext",
}

// LanguageForPath derives a language tag from a file path's extension,
// case-insensitively. Unknown or missing extensions map to plaintext.
func LanguageForPath(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}
	return defaultLanguage
}
