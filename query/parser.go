package query

import (
	"fmt"
	"strings"

	"github.com/hupe1980/bitrow/term"
)

const (
	tokenTerminators = "&|():-\""
	legalEscapes     = "&|():-\"\\"
)

// Parse parses input into a match tree. Stream prefixes (`name:token`)
// are resolved through resolver; when resolver is nil any stream
// prefix is a parse error. The default stream is 0.
func Parse(input string, resolver StreamResolver) (Node, error) {
	p := &parser{input: input, resolver: resolver}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, &ParseError{
			Message:  fmt.Sprintf("unexpected %q", p.peek()),
			Position: p.pos,
		}
	}
	return node, nil
}

type parser struct {
	input    string
	pos      int
	resolver StreamResolver
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []Node{left}
	for {
		p.skipSpace()
		if p.peek() != '|' {
			break
		}
		p.next()
		child, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return &Or{Children: children}, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseSimple()
	if err != nil {
		return nil, err
	}
	children := []Node{left}
	for {
		p.skipSpace()
		switch c := p.peek(); {
		case c == '&':
			p.next()
		case c == 0 || c == ')' || c == '|':
			if len(children) == 1 {
				return children[0], nil
			}
			return &And{Children: children}, nil
		}
		// Juxtaposition implies '&'.
		child, err := p.parseSimple()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
}

func (p *parser) parseSimple() (Node, error) {
	p.skipSpace()
	switch p.peek() {
	case '-':
		p.next()
		child, err := p.parseSimple()
		if err != nil {
			return nil, err
		}
		return &Not{Child: child}, nil
	case '(':
		p.next()
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return node, nil
	default:
		return p.parseTerm()
	}
}

func (p *parser) parseTerm() (Node, error) {
	p.skipSpace()
	if p.peek() == '"' {
		return p.parsePhrase(0)
	}

	namePos := p.pos
	left, err := p.parseToken()
	if err != nil {
		return nil, err
	}
	if p.peek() != ':' {
		return &Unigram{Text: left, Stream: 0}, nil
	}

	// left names a stream; a token or phrase follows the colon.
	p.next()
	stream, err := p.resolveStream(left, namePos)
	if err != nil {
		return nil, err
	}
	if p.peek() == '"' {
		return p.parsePhrase(stream)
	}
	right, err := p.parseToken()
	if err != nil {
		return nil, err
	}
	return &Unigram{Text: right, Stream: stream}, nil
}

func (p *parser) parsePhrase(stream term.StreamId) (Node, error) {
	if err := p.expect('"'); err != nil {
		return nil, err
	}
	var grams []string
	for {
		p.skipSpace()
		switch p.peek() {
		case '"':
			p.next()
			return &Phrase{Grams: grams, Stream: stream}, nil
		case 0:
			return nil, &ParseError{Message: "unterminated phrase", Position: p.pos}
		}
		gram, err := p.parseToken()
		if err != nil {
			return nil, err
		}
		grams = append(grams, gram)
	}
}

func (p *parser) parseToken() (string, error) {
	var b strings.Builder
	for {
		c := p.peek()
		if c == 0 || isSpace(c) || strings.IndexByte(tokenTerminators, c) >= 0 {
			break
		}
		if c == '\\' {
			p.next()
			e := p.peek()
			if e == 0 || strings.IndexByte(legalEscapes, e) < 0 {
				return "", &ParseError{
					Message:  fmt.Sprintf("bad escape %q", e),
					Position: p.pos,
				}
			}
			c = e
		}
		b.WriteByte(c)
		p.next()
	}
	if b.Len() == 0 {
		return "", &ParseError{Message: "expected token", Position: p.pos}
	}
	return b.String(), nil
}

func (p *parser) resolveStream(name string, pos int) (term.StreamId, error) {
	if p.resolver == nil {
		return 0, &ParseError{
			Message:  fmt.Sprintf("unknown stream %q", name),
			Position: pos,
		}
	}
	id, err := p.resolver.Resolve(name)
	if err != nil {
		return 0, &ParseError{
			Message:  fmt.Sprintf("stream %q: %v", name, err),
			Position: pos,
		}
	}
	return id, nil
}

func (p *parser) expect(c byte) error {
	if p.peek() != c {
		return &ParseError{
			Message:  fmt.Sprintf("expected %q, got %q", c, p.peek()),
			Position: p.pos,
		}
	}
	p.next()
	return nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && isSpace(p.input[p.pos]) {
		p.pos++
	}
}

// peek returns the next byte, or 0 at end of input.
func (p *parser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) next() {
	p.pos++
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
