// Package extract parses model-generated text into discrete project files.
//
// The app builder asks the model to emit a project as a sequence of
// labeled fenced code blocks. Models drift on formatting, so parsing is
// best-effort: spans that do not match any known shape are skipped
// silently and an empty result is a valid outcome, not an error.
package extract

import (
	"regexp"
	"strings"
)

// FileRecord is one generated project file parsed out of a model response.
type FileRecord struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// filePattern matches the documented builder output shape:
//
//	FILE: <path>
//	```<lang>
//	<content>
//	```
//
// The closing fence must start a new line so fenced markers inside a
// content line do not terminate the block early.
var filePattern = regexp.MustCompile(
	"(?ms)^FILE:[ \\t]*([^\\n]+?)[ \\t]*\\r?\\n" +
		"```([A-Za-z0-9+#._-]*)[ \\t]*\\r?\\n" +
		"(.*?)\\r?\\n[ \\t]*```")

// headingPattern matches the documentation-style shape some completions
// fall back to: a level-2/3 heading naming the file (optionally wrapped
// in backticks), immediately followed by a fenced block. Only
// whitespace may separate the heading from the fence.
var headingPattern = regexp.MustCompile(
	"(?ms)^#{2,3}[ \\t]+([^\\n]+?)[ \\t]*\\r?\\n\\s*" +
		"```([A-Za-z0-9+#._-]*)[ \\t]*\\r?\\n" +
		"(.*?)\\r?\\n[ \\t]*```")

// Files parses a single model completion into an ordered list of file
// records. Records appear in source-text order; duplicate paths are all
// kept (dedup policy belongs to the packaging side). Matching never
// backtracks: each fenced block is consumed at most once and scanning
// resumes after its closing fence.
//
// The heading fallback only runs when the primary marker matched
// nothing, and only accepts heading tokens containing a "." so prose
// section titles ("## Overview") are not mistaken for filenames.
func Files(text string) []FileRecord {
	records := collect(filePattern, text, trimPathToken)
	if len(records) == 0 {
		records = collect(headingPattern, text, headingPathToken)
	}
	return records
}

func collect(pattern *regexp.Regexp, text string, pathFn func(string) string) []FileRecord {
	var records []FileRecord
	for _, m := range pattern.FindAllStringSubmatch(text, -1) {
		path := pathFn(m[1])
		if path == "" {
			continue
		}
		content := strings.TrimSpace(m[3])
		if content == "" {
			continue
		}
		lang := m[2]
		if lang == "" {
			lang = LanguageForPath(path)
		}
		records = append(records, FileRecord{Path: path, Content: content, Language: lang})
	}
	return records
}

// trimPathToken extracts the path from a FILE: marker line.
func trimPathToken(token string) string {
	return strings.TrimSpace(token)
}

// headingPathToken extracts a path-like token from a heading line,
// unwrapping backticks and a trailing colon. Tokens without a "." are
// rejected as prose headings.
func headingPathToken(token string) string {
	token = strings.TrimSpace(token)
	token = strings.TrimSuffix(token, ":")
	token = strings.Trim(token, "`")
	token = strings.TrimSpace(token)
	if !strings.Contains(token, ".") {
		return ""
	}
	return token
}
