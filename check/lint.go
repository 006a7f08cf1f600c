package check

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Issue is one superficial syntax problem found in a code block.
// Line is 1-based within the block, 0 when unknown.
type Issue struct {
	Line int
	Msg  string
}

// languageAliases maps fence info words to a canonical language name.
// Names that canonicalize but have no lint case below are recognized
// prose or data formats the linter deliberately leaves alone.
var languageAliases = map[string]string{
	"python": "python", "python3": "python", "py": "python",
	"go": "go", "golang": "go",
	"javascript": "javascript", "js": "javascript", "jsx": "javascript", "mjs": "javascript",
	"typescript": "typescript", "ts": "typescript", "tsx": "typescript",
	"java": "java", "kotlin": "kotlin", "swift": "swift", "scala": "scala",
	"c": "c", "cpp": "cpp", "c++": "cpp", "csharp": "csharp", "cs": "csharp",
	"php": "php", "proto": "proto",
	"bash": "shell", "sh": "shell", "shell": "shell", "zsh": "shell",
	"json": "json", "jsonc": "jsonc",
	"yaml": "yaml", "yml": "yaml",
	"toml": "toml",
	"rust": "rust", "ruby": "ruby", "rb": "ruby", "lua": "lua", "perl": "perl",
	"r": "r", "julia": "julia", "elixir": "elixir",
	"sql": "sql", "graphql": "graphql",
	"html": "html", "xml": "xml", "svg": "svg",
	"css": "css", "scss": "scss", "less": "less",
	"markdown": "markdown", "md": "markdown", "mdx": "markdown",
	"text": "text", "plain": "text", "plaintext": "text", "txt": "text",
	"console": "console", "shell-session": "console", "output": "console",
	"diff": "diff", "http": "http", "csv": "csv", "ini": "ini", "env": "ini",
	"dockerfile": "dockerfile", "docker": "dockerfile",
	"makefile": "makefile", "make": "makefile",
	"powershell": "powershell", "ps1": "powershell",
	"nginx": "nginx", "terraform": "terraform", "hcl": "terraform",
	"vim": "vim", "tex": "tex", "latex": "tex",
}

// Canonical resolves a fence language alias ("py", "golang") to its
// canonical name. ok is false for languages the linter has never heard
// of.
func Canonical(language string) (canonical string, ok bool) {
	canonical, ok = languageAliases[strings.ToLower(language)]
	return canonical, ok
}

// Lint superficially checks a code block in the given fence language:
// data formats must parse, code must balance its delimiters and close
// its strings and comments. Languages without a lint case and empty
// blocks yield no issue. The check is intentionally shallow; it exists
// to catch the typo-level breakage copy-edited snippets pick up, not to
// compile them.
func Lint(language, code string) *Issue {
	if strings.TrimSpace(code) == "" {
		return nil
	}
	lang, _ := Canonical(language)
	switch lang {
	case "json":
		return lintJSON(code)
	case "yaml":
		return lintYAML(code)
	case "toml":
		return lintTOML(code)
	case "python":
		return pythonScanner.scan(code)
	case "go", "javascript", "typescript", "java", "c", "cpp", "csharp",
		"php", "kotlin", "swift", "scala", "proto":
		return cFamilyScanner.scan(code)
	case "shell":
		return shellScanner.scan(code)
	}
	return nil
}

func lintJSON(code string) *Issue {
	var v any
	err := json.Unmarshal([]byte(code), &v)
	if err == nil {
		return nil
	}
	iss := &Issue{Msg: fmt.Sprintf("invalid JSON: %v", err)}
	var syn *json.SyntaxError
	if errors.As(err, &syn) && int(syn.Offset) <= len(code) {
		iss.Line = 1 + strings.Count(code[:syn.Offset], "\n")
	}
	return iss
}

func lintYAML(code string) *Issue {
	dec := yaml.NewDecoder(strings.NewReader(code))
	for {
		var v any
		if err := dec.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return &Issue{Msg: fmt.Sprintf("invalid YAML: %v", err)}
		}
	}
}

func lintTOML(code string) *Issue {
	var v map[string]any
	_, err := toml.Decode(code, &v)
	if err == nil {
		return nil
	}
	iss := &Issue{Msg: fmt.Sprintf("invalid TOML: %v", err)}
	var perr toml.ParseError
	if errors.As(err, &perr) {
		iss.Line = perr.Position.Line
		iss.Msg = fmt.Sprintf("invalid TOML: %s", perr.Message)
	}
	return iss
}

// Scanner configurations per language family. Rust and ruby are absent
// on purpose: lifetime ticks ('a) and percent literals defeat a scanner
// this shallow, so those fences are recognized but left unchecked.
var (
	pythonScanner = delimScanner{
		lineComments: []string{"#"},
		quotes:       `'"`,
		triples:      true,
		delims:       true,
	}
	cFamilyScanner = delimScanner{
		lineComments: []string{"//"},
		blockOpen:    "/*",
		blockClose:   "*/",
		quotes:       "'\"`",
		multiline:    "`",
		delims:       true,
	}
	// Shell patterns close with a bare ")" inside case arms, so only
	// quoting is checked; both quote styles may span lines.
	shellScanner = delimScanner{
		lineComments: []string{"#"},
		quotes:       `'"`,
		multiline:    `'"`,
		noEscape:     `'`,
	}
)

// delimScanner walks a code block byte-wise, skipping comments and
// string literals, and checks that brackets balance and strings and
// block comments terminate.
type delimScanner struct {
	lineComments []string
	blockOpen    string
	blockClose   string
	quotes       string // string-literal delimiters
	multiline    string // quotes whose strings may span lines
	noEscape     string // quotes inside which a backslash is literal
	triples      bool   // ''' and """ docstrings span lines
	delims       bool   // balance () [] {}
}

func (s delimScanner) scan(code string) *Issue {
	type opened struct {
		ch   byte
		line int
	}
	pairs := map[byte]byte{')': '(', ']': '[', '}': '{'}

	var stack []opened
	var quote byte
	var triple, inComment bool
	quoteLine, commentLine := 0, 0
	line := 1

	i := 0
	for i < len(code) {
		c := code[i]

		if inComment {
			if strings.HasPrefix(code[i:], s.blockClose) {
				inComment = false
				i += len(s.blockClose)
				continue
			}
			if c == '\n' {
				line++
			}
			i++
			continue
		}

		if quote != 0 {
			switch {
			case c == '\\' && !strings.ContainsRune(s.noEscape, rune(quote)):
				if i+1 < len(code) && code[i+1] == '\n' {
					line++
				}
				i += 2
			case triple && c == quote && strings.HasPrefix(code[i:], strings.Repeat(string(quote), 3)):
				quote, triple = 0, false
				i += 3
			case !triple && c == quote:
				quote = 0
				i++
			case c == '\n':
				if !triple && !strings.ContainsRune(s.multiline, rune(quote)) {
					return &Issue{Line: quoteLine, Msg: "unterminated string literal"}
				}
				line++
				i++
			default:
				i++
			}
			continue
		}

		if s.blockOpen != "" && strings.HasPrefix(code[i:], s.blockOpen) {
			inComment = true
			commentLine = line
			i += len(s.blockOpen)
			continue
		}
		skipped := false
		for _, lc := range s.lineComments {
			if strings.HasPrefix(code[i:], lc) {
				for i < len(code) && code[i] != '\n' {
					i++
				}
				skipped = true
				break
			}
		}
		if skipped {
			continue
		}

		switch {
		case c == '\\':
			if i+1 < len(code) && code[i+1] == '\n' {
				line++
			}
			i += 2
		case strings.ContainsRune(s.quotes, rune(c)):
			quote = c
			quoteLine = line
			if s.triples && strings.HasPrefix(code[i:], strings.Repeat(string(c), 3)) {
				triple = true
				i += 3
			} else {
				i++
			}
		case c == '\n':
			line++
			i++
		case s.delims && (c == '(' || c == '[' || c == '{'):
			stack = append(stack, opened{c, line})
			i++
		case s.delims && (c == ')' || c == ']' || c == '}'):
			if len(stack) == 0 || stack[len(stack)-1].ch != pairs[c] {
				return &Issue{Line: line, Msg: fmt.Sprintf("unexpected %q", string(c))}
			}
			stack = stack[:len(stack)-1]
			i++
		default:
			i++
		}
	}

	switch {
	case quote != 0:
		return &Issue{Line: quoteLine, Msg: "unterminated string literal"}
	case inComment:
		return &Issue{Line: commentLine, Msg: "unterminated block comment"}
	case len(stack) > 0:
		top := stack[len(stack)-1]
		return &Issue{Line: top.line, Msg: fmt.Sprintf("unclosed %q", string(top.ch))}
	}
	return nil
}
