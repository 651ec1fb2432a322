package toolchain

import "strings"

// SpecifierKind tells which syntactic form carried a module specifier.
type SpecifierKind int

const (
	ImportDeclaration SpecifierKind = iota
	ExportDeclaration
)

// ModuleSpecifier is the string literal of an import or export declaration.
// Start and End delimit the literal's contents in the source text, without
// the quotes.
type ModuleSpecifier struct {
	Kind  SpecifierKind
	Value string
	Start int
	End   int
}

// ScanModuleSpecifiers returns the module specifiers of every top-level
// style import/export declaration in src:
//
//	import x from "a"; import "a"; import type { T } from "a"
//	export * from "a"; export { x } from "a"
//
// Comments, strings, template literals and regular expressions are skipped
// so that specifier-like text inside them is never reported. Dynamic
// import() and require() calls are not declarations and are ignored.
func ScanModuleSpecifiers(src string) []ModuleSpecifier {
	s := &scanner{src: src}
	var out []ModuleSpecifier
	for {
		tok := s.next()
		if tok.kind == tokEOF {
			return out
		}
		if tok.kind != tokIdent || (tok.text != "import" && tok.text != "export") {
			continue
		}
		if s.prevDot {
			continue
		}
		var (
			spec ModuleSpecifier
			ok   bool
		)
		if tok.text == "import" {
			spec, ok = s.importSpecifier()
		} else {
			spec, ok = s.exportSpecifier()
		}
		if ok {
			out = append(out, spec)
		}
	}
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokPunct
	tokOther
)

type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
}

type scanner struct {
	src     string
	pos     int
	last    token
	prevDot bool
}

// importSpecifier consumes an import declaration up to its specifier.
func (s *scanner) importSpecifier() (ModuleSpecifier, bool) {
	first := s.next()
	switch {
	case first.kind == tokString:
		return specifierFrom(ImportDeclaration, first), true
	case first.kind == tokPunct && (first.text == "(" || first.text == "."):
		return ModuleSpecifier{}, false
	}
	depth := 0
	for tok := first; tok.kind != tokEOF; tok = s.next() {
		if tok.kind == tokPunct {
			switch tok.text {
			case "{":
				depth++
			case "}":
				depth--
			case ";", "=":
				if depth == 0 {
					return ModuleSpecifier{}, false
				}
			}
			continue
		}
		if depth == 0 && tok.kind == tokIdent && tok.text == "from" {
			if spec, ok := s.fromClause(ImportDeclaration); ok {
				return spec, true
			}
		}
	}
	return ModuleSpecifier{}, false
}

// exportSpecifier handles the re-export forms: export * [as ns] from "a",
// export [type] { ... } from "a". Any other export has no specifier.
func (s *scanner) exportSpecifier() (ModuleSpecifier, bool) {
	tok := s.next()
	if tok.kind == tokIdent && tok.text == "type" {
		tok = s.next()
	}
	if tok.kind != tokPunct {
		return ModuleSpecifier{}, false
	}
	switch tok.text {
	case "*":
		if next := s.peek(); next.kind == tokIdent && next.text == "as" {
			s.next()
			s.next()
		}
	case "{":
		for depth := 1; depth > 0; {
			t := s.next()
			switch {
			case t.kind == tokEOF:
				return ModuleSpecifier{}, false
			case t.kind == tokPunct && t.text == "{":
				depth++
			case t.kind == tokPunct && t.text == "}":
				depth--
			}
		}
	default:
		return ModuleSpecifier{}, false
	}
	if next := s.peek(); next.kind != tokIdent || next.text != "from" {
		return ModuleSpecifier{}, false
	}
	s.next()
	return s.fromClause(ExportDeclaration)
}

// fromClause reads the string literal following a from keyword.
func (s *scanner) fromClause(kind SpecifierKind) (ModuleSpecifier, bool) {
	if next := s.peek(); next.kind != tokString {
		return ModuleSpecifier{}, false
	}
	return specifierFrom(kind, s.next()), true
}

func specifierFrom(kind SpecifierKind, lit token) ModuleSpecifier {
	return ModuleSpecifier{
		Kind:  kind,
		Value: lit.text,
		Start: lit.start + 1,
		End:   lit.end - 1,
	}
}

func (s *scanner) peek() token {
	saved, savedLast, savedDot := s.pos, s.last, s.prevDot
	tok := s.next()
	s.pos, s.last, s.prevDot = saved, savedLast, savedDot
	return tok
}

func (s *scanner) next() token {
	s.prevDot = s.last.kind == tokPunct && s.last.text == "."
	tok := s.scan()
	if tok.kind != tokEOF {
		s.last = tok
	}
	return tok
}

func (s *scanner) scan() token {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			s.pos++
		case c == '/' && s.at(1) == '/':
			for s.pos < len(s.src) && s.src[s.pos] != '\n' {
				s.pos++
			}
		case c == '/' && s.at(1) == '*':
			end := strings.Index(s.src[s.pos+2:], "*/")
			if end < 0 {
				s.pos = len(s.src)
			} else {
				s.pos += end + 4
			}
		case c == '"' || c == '\'':
			return s.scanString(c)
		case c == '`':
			s.skipTemplate()
			return token{kind: tokOther, text: "`"}
		case c == '/' && s.regexAllowed():
			s.skipRegex()
			return token{kind: tokOther, text: "/"}
		case isIdentStart(c):
			start := s.pos
			for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
				s.pos++
			}
			return token{kind: tokIdent, text: s.src[start:s.pos], start: start, end: s.pos}
		default:
			s.pos++
			return token{kind: tokPunct, text: string(c), start: s.pos - 1, end: s.pos}
		}
	}
	return token{kind: tokEOF, start: len(s.src), end: len(s.src)}
}

func (s *scanner) at(offset int) byte {
	if s.pos+offset < len(s.src) {
		return s.src[s.pos+offset]
	}
	return 0
}

func (s *scanner) scanString(quote byte) token {
	start := s.pos
	s.pos++
	var b strings.Builder
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '\\' && s.pos+1 < len(s.src) {
			b.WriteByte(s.src[s.pos+1])
			s.pos += 2
			continue
		}
		s.pos++
		if c == quote || c == '\n' {
			break
		}
		b.WriteByte(c)
	}
	return token{kind: tokString, text: b.String(), start: start, end: s.pos}
}

func (s *scanner) skipTemplate() {
	s.pos++
	depth := 0
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\\':
			s.pos += 2
			continue
		case c == '`' && depth == 0:
			s.pos++
			return
		case c == '$' && s.at(1) == '{':
			depth++
			s.pos += 2
			continue
		case c == '}' && depth > 0:
			depth--
		}
		s.pos++
	}
}

func (s *scanner) skipRegex() {
	s.pos++
	inClass := false
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		s.pos++
		switch {
		case c == '\\':
			s.pos++
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
				s.pos++
			}
			return
		case c == '\n':
			return
		}
	}
}

// regexAllowed reports whether a slash at the current position starts a
// regular expression literal rather than a division.
func (s *scanner) regexAllowed() bool {
	switch s.last.kind {
	case tokEOF:
		return true
	case tokIdent:
		switch s.last.text {
		case "return", "typeof", "instanceof", "in", "of", "new", "delete", "void", "throw", "case", "do", "else", "yield", "await":
			return true
		}
		return false
	case tokString, tokOther:
		return false
	case tokPunct:
		return s.last.text != ")" && s.last.text != "]" && s.last.text != "}"
	}
	return true
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
