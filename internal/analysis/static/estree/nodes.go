// Filename: estree/nodes.go
// Package estree defines the program tree consumed by the taint engine. The node
// kinds follow the ESTree format closely enough that JSON produced by
// esprima/acorn style parsers decodes directly, and the tree-sitter front end
// builds the same nodes from JavaScript source.
package estree

import (
	"strconv"
)

// Kind names a node type using its ESTree spelling.
type Kind string

const (
	KindProgram              Kind = "Program"
	KindFunctionDeclaration  Kind = "FunctionDeclaration"
	KindExpressionStatement  Kind = "ExpressionStatement"
	KindWhileStatement       Kind = "WhileStatement"
	KindIfStatement          Kind = "IfStatement"
	KindBlockStatement       Kind = "BlockStatement"
	KindIdentifier           Kind = "Identifier"
	KindLiteral              Kind = "Literal"
	KindMemberExpression     Kind = "MemberExpression"
	KindBinaryExpression     Kind = "BinaryExpression"
	KindLogicalExpression    Kind = "LogicalExpression"
	KindCallExpression       Kind = "CallExpression"
	KindNewExpression        Kind = "NewExpression"
	KindAssignmentExpression Kind = "AssignmentExpression"
)

// Position is a 1-based line and 0-based column, as ESTree "loc" reports them.
// The zero value means the location is unknown.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Position) String() string {
	if p.Line == 0 {
		return "-"
	}
	return strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Column)
}

// Node is implemented by every tree node. The set of implementations is closed;
// consumers type-switch over the concrete pointer types below.
type Node interface {
	Kind() Kind
	Pos() Position
}

// Program is the root of a tree.
type Program struct {
	Body []Node
	Loc  Position
	// Recovered is set when the source front end hit syntax errors and replaced
	// the affected regions with Unknown nodes.
	Recovered bool
}

// FunctionDeclaration is a named function statement.
type FunctionDeclaration struct {
	ID     *Identifier
	Params []Node
	Body   *BlockStatement
	Loc    Position
}

// ExpressionStatement wraps an expression evaluated for its effects.
type ExpressionStatement struct {
	Expression Node
	Loc        Position
}

// WhileStatement is a pre-tested loop.
type WhileStatement struct {
	Test Node
	Body Node
	Loc  Position
}

// IfStatement is a conditional with an optional alternate.
type IfStatement struct {
	Test       Node
	Consequent Node
	Alternate  Node
	Loc        Position
}

// BlockStatement is a braced statement list.
type BlockStatement struct {
	Body []Node
	Loc  Position
}

// Identifier is a bare name.
type Identifier struct {
	Name string
	Loc  Position
}

// Literal is a constant. Value holds a string, float64, bool or nil; Raw is the
// source text when the producer supplied it.
type Literal struct {
	Value any
	Raw   string
	Regex bool
	Loc   Position
}

// MemberExpression is a property access, dotted (a.b) or computed (a["b"]).
type MemberExpression struct {
	Object   Node
	Property Node
	Computed bool
	Loc      Position
}

// BinaryExpression is a two-operand operator application. Logical operators
// (&&, ||, ??) decode to this type with Logical set.
type BinaryExpression struct {
	Operator string
	Left     Node
	Right    Node
	Logical  bool
	Loc      Position
}

// CallExpression is a call. Constructor calls (new X()) decode to this type with
// New set.
type CallExpression struct {
	Callee    Node
	Arguments []Node
	New       bool
	Loc       Position
}

// AssignmentExpression assigns Right to Left. Operator is "=" or a compound
// operator such as "+=".
type AssignmentExpression struct {
	Operator string
	Left     Node
	Right    Node
	Loc      Position
}

// Unknown stands in for any node kind the engine does not model. It keeps the
// original type name for diagnostics.
type Unknown struct {
	Type string
	Loc  Position
}

func (*Program) Kind() Kind              { return KindProgram }
func (*FunctionDeclaration) Kind() Kind  { return KindFunctionDeclaration }
func (*ExpressionStatement) Kind() Kind  { return KindExpressionStatement }
func (*WhileStatement) Kind() Kind       { return KindWhileStatement }
func (*IfStatement) Kind() Kind          { return KindIfStatement }
func (*BlockStatement) Kind() Kind       { return KindBlockStatement }
func (*Identifier) Kind() Kind           { return KindIdentifier }
func (*Literal) Kind() Kind              { return KindLiteral }
func (*MemberExpression) Kind() Kind     { return KindMemberExpression }
func (*AssignmentExpression) Kind() Kind { return KindAssignmentExpression }
func (u *Unknown) Kind() Kind            { return Kind(u.Type) }

func (b *BinaryExpression) Kind() Kind {
	if b.Logical {
		return KindLogicalExpression
	}
	return KindBinaryExpression
}

func (c *CallExpression) Kind() Kind {
	if c.New {
		return KindNewExpression
	}
	return KindCallExpression
}

func (n *Program) Pos() Position              { return n.Loc }
func (n *FunctionDeclaration) Pos() Position  { return n.Loc }
func (n *ExpressionStatement) Pos() Position  { return n.Loc }
func (n *WhileStatement) Pos() Position       { return n.Loc }
func (n *IfStatement) Pos() Position          { return n.Loc }
func (n *BlockStatement) Pos() Position       { return n.Loc }
func (n *Identifier) Pos() Position           { return n.Loc }
func (n *Literal) Pos() Position              { return n.Loc }
func (n *MemberExpression) Pos() Position     { return n.Loc }
func (n *BinaryExpression) Pos() Position     { return n.Loc }
func (n *CallExpression) Pos() Position       { return n.Loc }
func (n *AssignmentExpression) Pos() Position { return n.Loc }
func (n *Unknown) Pos() Position              { return n.Loc }

// Text renders the literal the way names are compared: strings verbatim,
// numbers in shortest decimal form, booleans and null as their keywords, and
// regular expressions as their source text.
func (l *Literal) Text() string {
	if l.Regex && l.Raw != "" {
		return l.Raw
	}
	switch v := l.Value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		if l.Raw != "" {
			return l.Raw
		}
		return "null"
	default:
		return l.Raw
	}
}

// Statements returns the statement list a body position contributes: the list of
// a block, or the statement itself when a single statement stands in for a block
// (`if (c) x = y;`, `else if`).
func Statements(n Node) []Node {
	switch s := n.(type) {
	case nil:
		return nil
	case *BlockStatement:
		if s == nil {
			return nil
		}
		return s.Body
	default:
		return []Node{n}
	}
}
