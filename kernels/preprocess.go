package kernels

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// defineDirective starts a default definition inside a kernel file:
//
//	//!define GROUP_SIZE 128
const defineDirective = "//!define"

// Options are parsed build options.
type Options struct {
	// Defines holds -D NAME=VALUE definitions. They override the file's
	// own defaults.
	Defines map[string]string
	// Ignored lists options the WGSL toolchain has no use for, such as
	// -cl-fast-relaxed-math.
	Ignored []string
}

// ParseOptions parses a build option string. "-D NAME=VALUE",
// "-DNAME=VALUE" and "-D NAME" (value 1) are recognised.
func ParseOptions(s string) (Options, error) {
	opts := Options{Defines: make(map[string]string)}
	fields := strings.Fields(s)
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		var def string
		switch {
		case f == "-D":
			if i+1 >= len(fields) {
				return opts, fmt.Errorf("kernels: -D without a definition")
			}
			i++
			def = fields[i]
		case strings.HasPrefix(f, "-D"):
			def = f[2:]
		default:
			opts.Ignored = append(opts.Ignored, f)
			continue
		}
		name, value, ok := strings.Cut(def, "=")
		if !ok {
			value = "1"
		}
		if !isIdent(name) {
			return opts, fmt.Errorf("kernels: invalid define name %q", name)
		}
		opts.Defines[name] = value
	}
	return opts, nil
}

// Preprocess resolves //!define defaults against opts and substitutes every
// defined name that appears as a whole word. Directive lines are blanked so
// that line numbers in compiler output still match the file.
func Preprocess(src string, opts Options) (string, map[string]string, error) {
	defs := make(map[string]string)
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), defineDirective)
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) != 2 || !isIdent(fields[0]) {
			return "", nil, fmt.Errorf("kernels: line %d: malformed %s directive", i+1, defineDirective)
		}
		defs[fields[0]] = fields[1]
		lines[i] = ""
	}
	for k, v := range opts.Defines {
		defs[k] = v
	}
	if len(defs) == 0 {
		return src, defs, nil
	}
	for i, line := range lines {
		lines[i] = substitute(line, defs)
	}
	return strings.Join(lines, "\n"), defs, nil
}

// substitute replaces identifiers found in defs. Line comments are left
// alone.
func substitute(line string, defs map[string]string) string {
	code, comment := line, ""
	if i := strings.Index(line, "//"); i >= 0 {
		code, comment = line[:i], line[i:]
	}
	var b strings.Builder
	for i := 0; i < len(code); {
		r := rune(code[i])
		if !isIdentStart(r) {
			b.WriteByte(code[i])
			i++
			continue
		}
		j := i + 1
		for j < len(code) && isIdentPart(rune(code[j])) {
			j++
		}
		word := code[i:j]
		if v, ok := defs[word]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(word)
		}
		i = j
	}
	return b.String() + comment
}

// FormatDefines renders defines as build options in a stable order.
func FormatDefines(defs map[string]string) string {
	names := make([]string, 0, len(defs))
	for k := range defs {
		names = append(names, k)
	}
	sort.Strings(names)
	var b strings.Builder
	for i, k := range names {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "-D %s=%s", k, defs[k])
	}
	return b.String()
}

func isIdent(s string) bool {
	if s == "" || !isIdentStart(rune(s[0])) {
		return false
	}
	for _, r := range s[1:] {
		if !isIdentPart(r) {
			return false
		}
	}
	return true
}

func isIdentStart(r rune) bool { return r == '_' || (r < unicode.MaxASCII && unicode.IsLetter(r)) }
func isIdentPart(r rune) bool  { return isIdentStart(r) || (r >= '0' && r <= '9') }
