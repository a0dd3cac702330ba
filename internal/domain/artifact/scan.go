package artifact

import (
	"regexp"
	"sort"
	"strings"
)

// Source is artifact text with a per-byte map of code positions and brace depth
type Source struct {
	Text  string
	code  []bool
	depth []int
}

// Span is a half-open byte range
type Span struct {
	Start int
	End   int
}

// Scan indexes artifact text
func Scan(text string) *Source {
	s := &Source{Text: text, code: make([]bool, len(text)), depth: make([]int, len(text))}
	depth := 0
	for i := 0; i < len(text); i++ {
		s.depth[i] = depth
		switch c := text[i]; {
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			j := strings.IndexByte(text[i:], '\n')
			if j < 0 {
				j = len(text) - i
			}
			s.fill(i, i+j, depth)
			i += j - 1
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			j := strings.Index(text[i+2:], "*/")
			end := len(text)
			if j >= 0 {
				end = i + 2 + j + 2
			}
			s.fill(i, end, depth)
			i = end - 1
		case c == '"' || c == '\'' || c == '`':
			end := stringEnd(text, i)
			s.fill(i, end, depth)
			i = end - 1
		case c == '{':
			s.code[i] = true
			depth++
		case c == '}':
			s.code[i] = true
			if depth > 0 {
				depth--
			}
		default:
			s.code[i] = true
		}
	}
	return s
}

func (s *Source) fill(from, to, depth int) {
	for k := from; k < to && k < len(s.Text); k++ {
		s.depth[k] = depth
	}
}

func stringEnd(text string, start int) int {
	quote := text[start]
	for i := start + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		case '\n':
			if quote != '`' {
				return i + 1
			}
		}
	}
	return len(text)
}

// IsCode reports whether the byte at i is outside strings and comments
func (s *Source) IsCode(i int) bool {
	return i >= 0 && i < len(s.code) && s.code[i]
}

// Depth returns the brace depth at i
func (s *Source) Depth(i int) int {
	if i < 0 || i >= len(s.depth) {
		return 0
	}
	return s.depth[i]
}

// Line returns the 1-based line of byte offset i
func (s *Source) Line(i int) int {
	if i > len(s.Text) {
		i = len(s.Text)
	}
	return strings.Count(s.Text[:i], "\n") + 1
}

// MatchBrace returns the index of the brace closing the one at open, or -1
func (s *Source) MatchBrace(open int) int {
	if !s.IsCode(open) || s.Text[open] != '{' {
		return -1
	}
	want := s.depth[open] + 1
	for j := open + 1; j < len(s.Text); j++ {
		if s.code[j] && s.Text[j] == '}' && s.depth[j] == want {
			return j
		}
	}
	return -1
}

// CodeMatches returns regexp matches whose first byte is code
func (s *Source) CodeMatches(re *regexp.Regexp, within Span) [][]int {
	var out [][]int
	for _, m := range re.FindAllStringSubmatchIndex(s.Text[within.Start:within.End], -1) {
		for k := range m {
			if m[k] >= 0 {
				m[k] += within.Start
			}
		}
		if s.IsCode(m[0]) {
			out = append(out, m)
		}
	}
	return out
}

// All is the span covering the whole text
func (s *Source) All() Span {
	return Span{0, len(s.Text)}
}

var classPattern = regexp.MustCompile(`\bclass\s+([A-Za-z_$][\w$]*)\s*(?:extends\s+([A-Za-z_$][\w$.]*)\s*)?\{`)

// ClassDecl is a class declaration found in the artifact
type ClassDecl struct {
	Name     string
	Base     string
	BaseSpan Span // zero when the class has no extends clause
	NameSpan Span
	Header   Span // "class ... {" up to and including the brace
	Body     Span // between the braces, exclusive
}

// Classes returns every top-level class declaration
func (s *Source) Classes() []ClassDecl {
	var out []ClassDecl
	for _, m := range s.CodeMatches(classPattern, s.All()) {
		if s.depth[m[0]] != 0 {
			continue
		}
		open := m[1] - 1
		closing := s.MatchBrace(open)
		if closing < 0 {
			continue
		}
		decl := ClassDecl{
			Name:     s.Text[m[2]:m[3]],
			NameSpan: Span{m[2], m[3]},
			Header:   Span{m[0], m[1]},
			Body:     Span{open + 1, closing},
		}
		if m[4] >= 0 {
			decl.Base = s.Text[m[4]:m[5]]
			decl.BaseSpan = Span{m[4], m[5]}
		}
		out = append(out, decl)
	}
	return out
}

// Class returns the named top-level class
func (s *Source) Class(name string) (ClassDecl, bool) {
	for _, c := range s.Classes() {
		if c.Name == name {
			return c, true
		}
	}
	return ClassDecl{}, false
}

var methodPattern = regexp.MustCompile(`(?:async\s+)?\*?\s*([A-Za-z_$][\w$]*)\s*\(([^()]*)\)\s*\{`)

var notMethods = map[string]bool{"if": true, "for": true, "while": true, "switch": true, "catch": true, "function": true, "with": true}

// MethodDecl is a method found directly in a class body
type MethodDecl struct {
	Name   string
	Params []string
	Header Span
	Body   Span // between the braces, exclusive
}

// Methods returns the methods declared directly in the class body
func (s *Source) Methods(class ClassDecl) []MethodDecl {
	level := s.Depth(class.Body.Start)
	var out []MethodDecl
	for _, m := range s.CodeMatches(methodPattern, class.Body) {
		name := s.Text[m[2]:m[3]]
		if s.depth[m[0]] != level || notMethods[name] {
			continue
		}
		open := m[1] - 1
		closing := s.MatchBrace(open)
		if closing < 0 {
			continue
		}
		var params []string
		for _, p := range strings.Split(s.Text[m[4]:m[5]], ",") {
			if p = strings.TrimSpace(p); p != "" {
				params = append(params, p)
			}
		}
		out = append(out, MethodDecl{Name: name, Params: params, Header: Span{m[0], m[1]}, Body: Span{open + 1, closing}})
	}
	return out
}

// Method returns the named method of the class
func (s *Source) Method(class ClassDecl, name string) (MethodDecl, bool) {
	for _, m := range s.Methods(class) {
		if m.Name == name {
			return m, true
		}
	}
	return MethodDecl{}, false
}

// Edit replaces a span of text
type Edit struct {
	Span Span
	Text string
}

// Apply applies non-overlapping edits to text. Edits may be given in any order.
func Apply(text string, edits ...Edit) string {
	if len(edits) == 0 {
		return text
	}
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Span.Start < sorted[j].Span.Start })

	var b strings.Builder
	last := 0
	for _, e := range sorted {
		if e.Span.Start < last {
			continue
		}
		b.WriteString(text[last:e.Span.Start])
		b.WriteString(e.Text)
		last = e.Span.End
	}
	b.WriteString(text[last:])
	return b.String()
}

// Target returns the named class, else the first top-level class
func (s *Source) Target(name string) (ClassDecl, bool) {
	classes := s.Classes()
	for _, c := range classes {
		if c.Name == name {
			return c, true
		}
	}
	if len(classes) == 0 {
		return ClassDecl{}, false
	}
	return classes[0], true
}

// CallArgs splits the arguments of a call whose opening parenthesis is at open.
// It returns the argument spans and the index of the closing parenthesis, or -1.
func (s *Source) CallArgs(open int) ([]Span, int) {
	if !s.IsCode(open) || s.Text[open] != '(' {
		return nil, -1
	}
	var args []Span
	depth := 0
	start := open + 1
	for i := open + 1; i < len(s.Text); i++ {
		if !s.IsCode(i) {
			continue
		}
		switch s.Text[i] {
		case '(', '[', '{':
			depth++
		case ']', '}':
			depth--
		case ')':
			if depth == 0 {
				if strings.TrimSpace(s.Text[start:i]) != "" {
					args = append(args, Span{start, i})
				}
				return args, i
			}
			depth--
		case ',':
			if depth == 0 {
				args = append(args, Span{start, i})
				start = i + 1
			}
		}
	}
	return nil, -1
}
