package pattern

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned for constructs the engine deliberately does
// not implement (horizontal/vertical whitespace classes, backreferences,
// inline flags, control escapes).
var ErrUnsupported = errors.New("pattern: unsupported construct")

// ErrSyntax is returned for malformed patterns.
var ErrSyntax = errors.New("pattern: syntax error")

func unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}

func syntaxf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSyntax, fmt.Sprintf(format, args...))
}

// Compile parses re into a Matcher tree and runs the optimizer over it.
// ignoreCase selects the semantics of :reic.
func Compile(re string, ignoreCase bool) (Matcher, error) {
	p := &parser{src: []rune(re), ignoreCase: ignoreCase}
	m, err := p.parseAlternation()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.src) {
		return nil, syntaxf("unbalanced parenthesis at %d", p.pos)
	}
	return optimize(m), nil
}

type parser struct {
	src        []rune
	pos        int
	ignoreCase bool
}

func (p *parser) peek() (rune, bool) {
	if p.pos >= len(p.src) {
		return 0, false
	}
	return p.src[p.pos], true
}

func (p *parser) next() (rune, bool) {
	r, ok := p.peek()
	if ok {
		p.pos++
	}
	return r, ok
}

// parseAlternation := concat ('|' concat)*
func (p *parser) parseAlternation() (Matcher, error) {
	first, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	branches := []Matcher{first}
	for {
		r, ok := p.peek()
		if !ok || r != '|' {
			break
		}
		p.pos++
		next, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		branches = append(branches, next)
	}
	if len(branches) == 1 {
		return branches[0], nil
	}
	return OrMatcher{Branches: branches}, nil
}

// parseConcat := quantified*
func (p *parser) parseConcat() (Matcher, error) {
	var parts []Matcher
	for {
		r, ok := p.peek()
		if !ok || r == '|' || r == ')' {
			break
		}
		m, err := p.parseQuantified()
		if err != nil {
			return nil, err
		}
		parts = append(parts, m)
	}
	if len(parts) == 0 {
		return TrueMatcher{}, nil
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return SeqMatcher{Parts: parts}, nil
}

// parseQuantified := atom ('*' | '+' | '?' | '{m,n}')?
func (p *parser) parseQuantified() (Matcher, error) {
	atom, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	r, ok := p.peek()
	if !ok {
		return atom, nil
	}
	switch r {
	case '*':
		p.pos++
		return ZeroOrMoreMatcher{Inner: atom}, nil
	case '+':
		p.pos++
		return RepeatMatcher{Inner: atom, Min: 1, Max: -1}, nil
	case '?':
		p.pos++
		return ZeroOrOneMatcher{Inner: atom}, nil
	case '{':
		save := p.pos
		min, max, ok := p.tryParseBraceRange()
		if !ok {
			p.pos = save
			return atom, nil
		}
		return RepeatMatcher{Inner: atom, Min: min, Max: max}, nil
	}
	return atom, nil
}

func (p *parser) tryParseBraceRange() (min, max int, ok bool) {
	p.pos++ // consume '{'
	minStr := ""
	for {
		r, good := p.peek()
		if !good || r < '0' || r > '9' {
			break
		}
		minStr += string(r)
		p.pos++
	}
	if minStr == "" {
		return 0, 0, false
	}
	r, good := p.peek()
	if !good {
		return 0, 0, false
	}
	if r == '}' {
		p.pos++
		n := atoiSafe(minStr)
		return n, n, true
	}
	if r != ',' {
		return 0, 0, false
	}
	p.pos++
	maxStr := ""
	for {
		r, good := p.peek()
		if !good || r < '0' || r > '9' {
			break
		}
		maxStr += string(r)
		p.pos++
	}
	r, good = p.peek()
	if !good || r != '}' {
		return 0, 0, false
	}
	p.pos++
	n := atoiSafe(minStr)
	if maxStr == "" {
		return n, -1, true
	}
	return n, atoiSafe(maxStr), true
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// parseAtom handles a single atom: literal, '.', char class, group,
// lookaround, or anchor.
func (p *parser) parseAtom() (Matcher, error) {
	r, ok := p.next()
	if !ok {
		return nil, syntaxf("unexpected end of pattern")
	}
	switch r {
	case '.':
		return AnyMatcher{}, nil
	case '^':
		return StartMatcher{}, nil
	case '$':
		return EndMatcher{}, nil
	case '(':
		return p.parseGroup()
	case '[':
		return p.parseCharClass()
	case '\\':
		return p.parseEscape()
	case '*', '+', '?':
		return nil, syntaxf("dangling modifier %q", r)
	case ')':
		return nil, syntaxf("unbalanced parenthesis")
	default:
		return CharSeqMatcher{Chars: []rune{r}, IgnoreCase: p.ignoreCase}, nil
	}
}

func (p *parser) parseGroup() (Matcher, error) {
	if r, ok := p.peek(); ok && r == '?' {
		p.pos++
		r2, ok2 := p.next()
		if !ok2 {
			return nil, syntaxf("unclosed parenthesis")
		}
		switch r2 {
		case ':':
			inner, err := p.parseAlternation()
			if err != nil {
				return nil, err
			}
			if err := p.expect(')'); err != nil {
				return nil, err
			}
			return inner, nil
		case '=':
			inner, err := p.parseAlternation()
			if err != nil {
				return nil, err
			}
			if err := p.expect(')'); err != nil {
				return nil, err
			}
			return PositiveLookaheadMatcher{Inner: inner}, nil
		case '!':
			inner, err := p.parseAlternation()
			if err != nil {
				return nil, err
			}
			if err := p.expect(')'); err != nil {
				return nil, err
			}
			return NegativeLookaheadMatcher{Inner: inner}, nil
		default:
			return nil, unsupportedf("inline flag (?%c...)", r2)
		}
	}
	inner, err := p.parseAlternation()
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return inner, nil
}

func (p *parser) expect(r rune) error {
	got, ok := p.next()
	if !ok || got != r {
		return syntaxf("unbalanced parenthesis")
	}
	return nil
}

func (p *parser) parseCharClass() (Matcher, error) {
	negate := false
	if r, ok := p.peek(); ok && r == '^' {
		negate = true
		p.pos++
	}
	set := make(map[rune]bool)
	var ranges [][2]rune
	first := true
	for {
		r, ok := p.next()
		if !ok {
			return nil, syntaxf("unclosed character class")
		}
		if r == ']' && !first {
			break
		}
		first = false
		if r == '\\' {
			esc, err := p.readClassEscape()
			if err != nil {
				return nil, err
			}
			set[esc] = true
			continue
		}
		if nr, ok2 := p.peek(); ok2 && nr == '-' {
			save := p.pos
			p.pos++
			if hi, ok3 := p.peek(); ok3 && hi != ']' {
				p.pos++
				ranges = append(ranges, [2]rune{r, hi})
				continue
			}
			p.pos = save
		}
		set[r] = true
	}
	return CharClassMatcher{Set: set, Ranges: ranges, Negate: negate}, nil
}

func (p *parser) readClassEscape() (rune, error) {
	r, ok := p.next()
	if !ok {
		return 0, syntaxf("unclosed character class")
	}
	switch r {
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case 'r':
		return '\r', nil
	case '\\', ']', '-', '^':
		return r, nil
	default:
		return r, nil
	}
}

// parseEscape handles '\' outside a character class: digit classes are
// supported as inline char classes; whitespace classes, backreferences,
// control escapes and unicode properties are deliberately unsupported.
func (p *parser) parseEscape() (Matcher, error) {
	r, ok := p.next()
	if !ok {
		return nil, syntaxf("dangling modifier \\")
	}
	switch r {
	case 'd':
		return CharClassMatcher{Ranges: [][2]rune{{'0', '9'}}}, nil
	case 'D':
		return CharClassMatcher{Ranges: [][2]rune{{'0', '9'}}, Negate: true}, nil
	case 'w':
		return CharClassMatcher{Ranges: [][2]rune{{'a', 'z'}, {'A', 'Z'}, {'0', '9'}}, Set: map[rune]bool{'_': true}}, nil
	case 'W':
		return CharClassMatcher{Ranges: [][2]rune{{'a', 'z'}, {'A', 'Z'}, {'0', '9'}}, Set: map[rune]bool{'_': true}, Negate: true}, nil
	case 's', 'S', 'h', 'H', 'v', 'V':
		return nil, unsupportedf("whitespace character class \\%c", r)
	case 'p', 'P':
		return nil, syntaxf("unknown character property")
	case '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return nil, unsupportedf("backreference \\%c", r)
	case 'c':
		return nil, unsupportedf("control escape \\c")
	case '.', '*', '+', '?', '(', ')', '[', ']', '{', '}', '|', '^', '$', '\\':
		return CharSeqMatcher{Chars: []rune{r}, IgnoreCase: p.ignoreCase}, nil
	default:
		return CharSeqMatcher{Chars: []rune{r}, IgnoreCase: p.ignoreCase}, nil
	}
}
