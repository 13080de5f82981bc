// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

// Package envfile edits /etc/environment at about the same level as
// pam_env reads it and renders the shell scripts that bridge WSL
// environment variables into login sessions.
package envfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// DefaultPath is the PATH value assumed when the file does not define
// one. It matches the Debian default.
const DefaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin" +
	":/sbin:/bin:/usr/games:/usr/local/games"

// File edits an environment file without rewriting the lines it does
// not understand, so comments and unusual statements survive.
type File struct {
	path  string
	lines []fileLine
	index map[string]int
}

// fileLine is either a parsed variable statement or an opaque line
// kept verbatim. Serialization appends the line ending.
type fileLine struct {
	env   *statement
	other string
}

type statement struct {
	leading   string
	key       string
	value     string
	following string
}

// Open reads the environment file at path. A missing file yields an
// empty one that comes into existence on Write.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	file := &File{
		path:  path,
		index: make(map[string]int),
	}

	for _, line := range parseLines(string(data)) {
		file.lines = append(file.lines, line)

		if line.env != nil {
			// The last occurrence of a key wins, like in pam_env.
			file.index[line.env.key] = len(file.lines) - 1
		}
	}

	return file, nil
}

// Get returns the raw value of key as it appears in the file,
// including any quoting.
func (f *File) Get(key string) (string, bool) {
	i, ok := f.index[key]
	if !ok {
		return "", false
	}

	return f.lines[i].env.value, true
}

// Put sets key to value, wrapped in single quotes. Values containing
// newlines or backslashes are rejected since they could spill into
// other variables when pam_env reads the file back.
func (f *File) Put(key, value string) error {
	if strings.ContainsAny(value, "\n\\") {
		return fmt.Errorf("%s: %w", key, ErrUnsafeValue)
	}

	f.putRaw(key, singleQuote(value))

	return nil
}

// PutPath prepends path to the PATH variable unless it is already a
// member. The quoting style found in the file is kept.
func (f *File) PutPath(path string) {
	current, ok := f.Get("PATH")
	if !ok {
		current = DefaultPath
	}

	variable := ParsePathVariable(current)
	variable.Put(path)
	f.putRaw("PATH", variable.Serialize())
}

// Write stores the file back to disk.
func (f *File) Write() error {
	var out strings.Builder

	for _, line := range f.lines {
		if line.env != nil {
			out.WriteString(line.env.leading)
			out.WriteString(line.env.key)
			out.WriteByte('=')
			out.WriteString(line.env.value)
			out.WriteString(line.env.following)
		} else {
			out.WriteString(line.other)
		}

		out.WriteByte('\n')
	}

	if err := os.WriteFile(f.path, []byte(out.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}

	return nil
}

func (f *File) putRaw(key, value string) {
	if i, ok := f.index[key]; ok {
		f.lines[i].env.value = value

		return
	}

	f.lines = append(f.lines, fileLine{env: &statement{key: key, value: value}})
	f.index[key] = len(f.lines) - 1
}

// parseLines splits content into statements and opaque lines. The
// content is treated as one stream because a backslash escaped line
// ending continues the value of a statement on the next line.
func parseLines(content string) []fileLine {
	var lines []fileLine

	for pos := 0; pos < len(content); {
		if env, n, ok := parseStatement(content[pos:]); ok {
			lines = append(lines, fileLine{env: &env})
			pos += n

			continue
		}

		raw := content[pos:]
		if i := strings.IndexByte(raw, '\n'); i >= 0 {
			raw = raw[:i]
		}

		lines = append(lines, fileLine{other: raw})
		pos += len(raw) + 1
	}

	return lines
}

// parseStatement recognizes a variable declaration of the form pam_env
// accepts: optional blanks and an export keyword, a key, an equals
// sign, the value words and trailing characters such as a comment. It
// reports the number of consumed bytes including the line ending.
func parseStatement(content string) (statement, int, bool) {
	pos := skipBlanks(content, 0)
	if strings.HasPrefix(content[pos:], "export") {
		pos += len("export")
	}

	pos = skipBlanks(content, pos)

	keyStart := pos
	for pos < len(content) && isKeyByte(content[pos]) {
		pos++
	}

	if pos == keyStart || pos >= len(content) || content[pos] != '=' {
		return statement{}, 0, false
	}

	env := statement{
		leading: content[:keyStart],
		key:     content[keyStart:pos],
	}

	pos++

	value, valueLen := scanValue(content[pos:])
	env.value = value
	pos += valueLen

	followingLen := strings.IndexByte(content[pos:], '\n')
	if followingLen < 0 {
		followingLen = len(content) - pos
	}

	env.following = content[pos : pos+followingLen]
	pos += followingLen

	if pos < len(content) && content[pos] == '\n' {
		pos++
	}

	return env, pos, true
}

// scanValue finds the value span at the start of text. The value
// consists of words separated by blanks, where words may contain
// backslash escaped characters, including escaped line endings, and
// stop at a comment sign.
func scanValue(text string) (string, int) {
	end := 0
	pos := 0

	for {
		wordStart := pos
		if end > 0 {
			for wordStart < len(text) && isBlank(text[wordStart]) {
				wordStart++
			}

			if wordStart == pos {
				break
			}
		}

		wordEnd := wordStart

		for wordEnd < len(text) {
			c := text[wordEnd]
			if c == '\\' && wordEnd+1 < len(text) {
				wordEnd += 2

				continue
			}

			if isBlank(c) || c == '\n' || c == '#' || c == '\\' {
				break
			}

			wordEnd++
		}

		if wordEnd == wordStart {
			break
		}

		end = wordEnd
		pos = wordEnd
	}

	return text[:end], end
}

func skipBlanks(content string, pos int) int {
	for pos < len(content) && isBlank(content[pos]) {
		pos++
	}

	return pos
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}

func isKeyByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '_'
}

func singleQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}
