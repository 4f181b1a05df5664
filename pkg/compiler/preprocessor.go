package compiler

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"fixshade/pkg/ir"
)

// Macro is a #define: a simple replacement or, with Args, a function-like
// macro.
type Macro struct {
	Args []string
	Body string
}

// Preprocess expands #include and #define directives. #version,
// #extension and precision statements are dropped. Every directive line
// becomes an empty line so the line numbers of the main file hold until
// the first include.
func Preprocess(src string, baseDir string) (string, error) {
	return PreprocessFrom(src, baseDir, nil)
}

// Sources supplies #include files by slash-separated path. A nil Sources
// means the host file system.
type Sources interface {
	ReadFile(name string) ([]byte, error)
}

// PreprocessFrom is Preprocess with includes read from files, resolved
// relative to dir inside it.
func PreprocessFrom(src, dir string, files Sources) (string, error) {
	out, _, err := PreprocessMapped(src, dir, files)
	return out, err
}

// LineOrigin is where a line of preprocessed text came from. File is empty
// for the main source, otherwise the included file's path.
type LineOrigin struct {
	File string
	Line int
}

// LineMap holds the origin of every preprocessed line; entry i describes
// line i+1.
type LineMap []LineOrigin

// Pos translates a position in preprocessed text back to the file and line
// it was written on. Positions the map does not cover pass through.
func (m LineMap) Pos(p ir.Pos) ir.Pos {
	if p.Line < 1 || p.Line > len(m) {
		return p
	}
	o := m[p.Line-1]
	return ir.Pos{File: o.File, Line: o.Line, Col: p.Col}
}

// PreprocessMapped is PreprocessFrom that also reports where each output
// line came from.
func PreprocessMapped(src, dir string, files Sources) (string, LineMap, error) {
	pp := &preprocessor{
		defines: make(map[string]Macro),
		done:    make(map[string]bool),
		files:   files,
		root:    dir,
	}
	return pp.run(src, "", dir, map[string]bool{})
}

type preprocessor struct {
	defines map[string]Macro
	done    map[string]bool // resolved paths already included
	files   Sources
	root    string
}

// run expands src, which is the file named file ("" for the main source).
// The output has exactly one LineMap entry per line.
func (pp *preprocessor) run(src, file, baseDir string, stack map[string]bool) (string, LineMap, error) {
	var out strings.Builder
	var lines LineMap
	fail := func(n int, err error) (string, LineMap, error) {
		if file != "" {
			return "", nil, fmt.Errorf("%s: line %d: %w", file, n+1, err)
		}
		return "", nil, fmt.Errorf("line %d: %w", n+1, err)
	}
	for n, line := range strings.Split(src, "\n") {
		here := LineOrigin{File: file, Line: n + 1}
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#define"):
			if err := pp.define(strings.TrimSpace(strings.TrimPrefix(trimmed, "#define"))); err != nil {
				return fail(n, err)
			}
			lines = append(lines, here)

		case strings.HasPrefix(trimmed, "#undef"):
			delete(pp.defines, strings.TrimSpace(strings.TrimPrefix(trimmed, "#undef")))
			lines = append(lines, here)

		case strings.HasPrefix(trimmed, "#include"):
			body, inner, err := pp.include(trimmed, baseDir, stack)
			if err != nil {
				return fail(n, err)
			}
			if inner == nil {
				inner = LineMap{here}
			}
			out.WriteString(body)
			lines = append(lines, inner...)

		case strings.HasPrefix(trimmed, "#version"), strings.HasPrefix(trimmed, "#extension"),
			strings.HasPrefix(trimmed, "precision "):
			lines = append(lines, here)

		case strings.HasPrefix(trimmed, "#"):
			return fail(n, fmt.Errorf("unsupported directive %q", strings.Fields(trimmed)[0]))

		default:
			out.WriteString(applyDefines(line, pp.defines))
			lines = append(lines, here)
		}
		out.WriteString("\n")
	}
	return strings.TrimSuffix(out.String(), "\n"), lines, nil
}

// define parses the text after #define: NAME VALUE or NAME(ARGS) VALUE.
func (pp *preprocessor) define(rest string) error {
	if rest == "" {
		return fmt.Errorf("empty #define")
	}
	nameEnd := 0
	for nameEnd < len(rest) && isIdentPart(rune(rest[nameEnd])) {
		nameEnd++
	}
	name := rest[:nameEnd]
	if name == "" || !isIdentStart(rune(name[0])) {
		return fmt.Errorf("invalid macro name in #define %s", rest)
	}
	rest = rest[nameEnd:]

	var args []string
	// A function-like macro has '(' immediately after its name.
	if strings.HasPrefix(rest, "(") {
		closeParen := strings.Index(rest, ")")
		if closeParen == -1 {
			return fmt.Errorf("unterminated macro parameter list")
		}
		if argStr := strings.TrimSpace(rest[1:closeParen]); argStr != "" {
			for _, arg := range strings.Split(argStr, ",") {
				args = append(args, strings.TrimSpace(arg))
			}
		}
		rest = rest[closeParen+1:]
	}

	value := strings.TrimSpace(rest)
	if len(args) == 0 {
		value = applyDefines(value, pp.defines)
	}
	pp.defines[name] = Macro{Args: args, Body: value}
	return nil
}

// include resolves #include "file" against baseDir. A file already
// included is skipped and yields no lines; one that includes itself
// through the current chain is an error.
func (pp *preprocessor) include(directive, baseDir string, stack map[string]bool) (string, LineMap, error) {
	parts := strings.SplitN(directive, "\"", 3)
	if len(parts) < 3 {
		return "", nil, fmt.Errorf("invalid include directive: %s", directive)
	}
	filename := parts[1]

	key, dir, err := pp.resolve(baseDir, filename)
	if err != nil {
		return "", nil, err
	}
	if stack[key] {
		return "", nil, fmt.Errorf("circular include detected: %s", filename)
	}
	if pp.done[key] {
		return "", nil, nil
	}
	pp.done[key] = true

	content, err := pp.read(key)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read included file %s: %w", filename, err)
	}

	inner := make(map[string]bool, len(stack)+1)
	for k, v := range stack {
		inner[k] = v
	}
	inner[key] = true
	return pp.run(string(content), pp.displayName(key), dir, inner)
}

// displayName is how positions name an included file: its tree path, or
// on the host its path relative to the main source's directory.
func (pp *preprocessor) displayName(key string) string {
	if pp.files != nil {
		return key
	}
	if root, err := filepath.Abs(pp.root); err == nil {
		if rel, err := filepath.Rel(root, key); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return key
}

// resolve names an included file and the directory its own includes are
// relative to. On the host, a name missing next to the including file is
// tried against the working directory.
func (pp *preprocessor) resolve(baseDir, filename string) (key, dir string, err error) {
	if pp.files != nil {
		key = path.Clean(path.Join(baseDir, filename))
		if key == ".." || strings.HasPrefix(key, "../") {
			return "", "", fmt.Errorf("include %s escapes the source tree", filename)
		}
		return key, path.Dir(key), nil
	}

	fullPath := filepath.Join(baseDir, filename)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		if cwdPath, absErr := filepath.Abs(filename); absErr == nil {
			if _, err := os.Stat(cwdPath); err == nil {
				fullPath = cwdPath
			}
		}
	}
	key, err = filepath.Abs(fullPath)
	if err != nil {
		return "", "", err
	}
	return key, filepath.Dir(key), nil
}

func (pp *preprocessor) read(key string) ([]byte, error) {
	if pp.files != nil {
		return pp.files.ReadFile(key)
	}
	return os.ReadFile(key)
}

// applyDefines replaces macro names in input on identifier boundaries.
func applyDefines(input string, defines map[string]Macro) string {
	if len(defines) == 0 {
		return input
	}

	var sb strings.Builder
	n := len(input)
	i := 0
	for i < n {
		if !isIdentStart(rune(input[i])) {
			// Skip over numbers whole so a suffix like 1.0f is not a name.
			if input[i] >= '0' && input[i] <= '9' {
				start := i
				for i < n && isIdentPart(rune(input[i])) {
					i++
				}
				sb.WriteString(input[start:i])
				continue
			}
			sb.WriteByte(input[i])
			i++
			continue
		}

		start := i
		for i < n && isIdentPart(rune(input[i])) {
			i++
		}
		word := input[start:i]
		macro, ok := defines[word]
		if !ok {
			sb.WriteString(word)
			continue
		}
		if len(macro.Args) == 0 {
			sb.WriteString(macro.Body)
			continue
		}

		args, end, ok := macroArgs(input, i)
		if !ok || len(args) != len(macro.Args) {
			// Not a call: leave the name alone.
			sb.WriteString(word)
			continue
		}
		// Substitute all parameters in one pass so an argument's text is
		// never rewritten by a later parameter name.
		argMap := make(map[string]Macro, len(macro.Args))
		for k, argName := range macro.Args {
			argMap[argName] = Macro{Body: applyDefines(args[k], defines)}
		}
		sb.WriteString(applyDefines(applyDefines(macro.Body, argMap), defines))
		i = end
	}
	return sb.String()
}

// macroArgs reads a parenthesised, comma separated argument list starting
// at or after position i (after optional blanks). It returns the arguments
// and the index just past the closing parenthesis.
func macroArgs(input string, i int) ([]string, int, bool) {
	n := len(input)
	j := i
	for j < n && (input[j] == ' ' || input[j] == '\t') {
		j++
	}
	if j >= n || input[j] != '(' {
		return nil, 0, false
	}
	j++

	var args []string
	var cur strings.Builder
	depth := 1
	for ; j < n; j++ {
		c := input[j]
		switch {
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				args = append(args, strings.TrimSpace(cur.String()))
				return args, j + 1, true
			}
		case c == ',' && depth == 1:
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	return nil, 0, false
}

func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
