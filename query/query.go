// Package query parses the boolean match-query language into a tree of
// match nodes. The grammar:
//
//	or     := and ('|' and)*
//	and    := simple (('&' | ε) simple)*
//	simple := '-' simple | '(' or ')' | term
//	term   := token | token ':' token | phrase | token ':' phrase
//	phrase := '"' token* '"'
//
// Juxtaposed simples imply '&'. Tokens end at whitespace or at any of
// the characters &|():-" and a backslash escapes each of those plus
// itself. Parse failures carry the byte offset at which they occurred.
package query

import (
	"fmt"
	"strings"

	"github.com/hupe1980/bitrow/term"
)

// Node is a node in a parsed match tree.
type Node interface {
	fmt.Stringer
	matchNode()
}

// And matches documents that satisfy every child.
type And struct {
	Children []Node
}

// Or matches documents that satisfy at least one child.
type Or struct {
	Children []Node
}

// Not matches documents that do not satisfy the child.
type Not struct {
	Child Node
}

// Unigram matches documents containing a single token in a stream.
type Unigram struct {
	Text   string
	Stream term.StreamId
}

// Phrase matches documents containing the grams adjacently, in order,
// in a stream.
type Phrase struct {
	Grams  []string
	Stream term.StreamId
}

func (*And) matchNode()     {}
func (*Or) matchNode()      {}
func (*Not) matchNode()     {}
func (*Unigram) matchNode() {}
func (*Phrase) matchNode()  {}

func (n *And) String() string {
	return "AND(" + joinNodes(n.Children) + ")"
}

func (n *Or) String() string {
	return "OR(" + joinNodes(n.Children) + ")"
}

func (n *Not) String() string {
	return "NOT(" + n.Child.String() + ")"
}

func (n *Unigram) String() string {
	return fmt.Sprintf("UNIGRAM(%q, %d)", n.Text, n.Stream)
}

func (n *Phrase) String() string {
	quoted := make([]string, len(n.Grams))
	for i, g := range n.Grams {
		quoted[i] = fmt.Sprintf("%q", g)
	}
	return fmt.Sprintf("PHRASE([%s], %d)", strings.Join(quoted, " "), n.Stream)
}

func joinNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}

// Term returns the hashed term the unigram matches against.
func (n *Unigram) Term() term.Term {
	return term.New(n.Text, n.Stream)
}

// Terms returns the hashed terms the phrase matches against: one term
// per gram, then the combined n-gram term covering the whole phrase.
func (n *Phrase) Terms() []term.Term {
	if len(n.Grams) == 0 {
		return nil
	}
	terms := make([]term.Term, 0, len(n.Grams)+1)
	combined := term.New(n.Grams[0], n.Stream)
	terms = append(terms, combined)
	for _, g := range n.Grams[1:] {
		next := term.New(g, n.Stream)
		terms = append(terms, next)
		combined = combined.Extend(next)
	}
	if len(n.Grams) > 1 {
		terms = append(terms, combined)
	}
	return terms
}

// StreamResolver maps a stream name from a `name:token` prefix to a
// stream id.
type StreamResolver interface {
	Resolve(name string) (term.StreamId, error)
}

// StreamResolverFunc adapts a function to the StreamResolver interface.
type StreamResolverFunc func(name string) (term.StreamId, error)

// Resolve calls f.
func (f StreamResolverFunc) Resolve(name string) (term.StreamId, error) {
	return f(name)
}

// ParseError describes a parse failure and the byte offset in the
// input at which it occurred.
type ParseError struct {
	Message  string
	Position int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("query: parse error at offset %d: %s", e.Position, e.Message)
}
