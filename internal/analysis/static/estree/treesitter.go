// Filename: estree/treesitter.go
// Front end that builds program trees from JavaScript source using Tree-sitter.
package estree

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// ParseSource parses JavaScript source text and converts the concrete syntax
// tree into the node kinds the engine understands. Syntax errors do not fail the
// parse; Tree-sitter recovers, the affected regions become Unknown nodes and
// Program.Recovered is set.
func ParseSource(ctx context.Context, filename string, src []byte) (*Program, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter failed to parse %s: %w", filename, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	c := &converter{source: src}
	program := c.program(root)
	program.Recovered = root.HasError()
	return program, nil
}

type converter struct {
	source []byte
}

// NodeContent extracts the string content of a node from the source byte slice.
func NodeContent(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return node.Content(source)
}

func position(node *sitter.Node) Position {
	p := node.StartPoint()
	return Position{Line: int(p.Row) + 1, Column: int(p.Column)}
}

func (c *converter) program(root *sitter.Node) *Program {
	return &Program{Body: c.statementList(root), Loc: position(root)}
}

// statementList converts the named children of node, skipping comments.
func (c *converter) statementList(node *sitter.Node) []Node {
	var out []Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "comment" || child.Type() == "empty_statement" {
			continue
		}
		out = append(out, c.statement(child)...)
	}
	return out
}

// statement may expand to several statements: `var a = x, b = y;` becomes two
// assignments.
func (c *converter) statement(node *sitter.Node) []Node {
	switch node.Type() {
	case "expression_statement":
		expr := firstNamed(node)
		if expr == nil {
			return nil
		}
		// `a = 1, b = 2;` is a sequence of independent statements here.
		if expr.Type() == "sequence_expression" {
			var out []Node
			for _, e := range flattenSequence(expr) {
				out = append(out, &ExpressionStatement{Expression: c.expression(e), Loc: position(e)})
			}
			return out
		}
		return []Node{&ExpressionStatement{Expression: c.expression(expr), Loc: position(node)}}

	case "lexical_declaration", "variable_declaration":
		var out []Node
		for i := 0; i < int(node.NamedChildCount()); i++ {
			decl := node.NamedChild(i)
			if decl.Type() != "variable_declarator" {
				continue
			}
			name := decl.ChildByFieldName("name")
			value := decl.ChildByFieldName("value")
			if name == nil || value == nil {
				continue
			}
			out = append(out, &ExpressionStatement{
				Expression: &AssignmentExpression{
					Operator: "=",
					Left:     c.expression(name),
					Right:    c.expression(value),
					Loc:      position(decl),
				},
				Loc: position(decl),
			})
		}
		return out

	case "function_declaration", "generator_function_declaration":
		fn := &FunctionDeclaration{Loc: position(node)}
		if name := node.ChildByFieldName("name"); name != nil {
			fn.ID = &Identifier{Name: NodeContent(name, c.source), Loc: position(name)}
		}
		if params := node.ChildByFieldName("parameters"); params != nil {
			for i := 0; i < int(params.NamedChildCount()); i++ {
				fn.Params = append(fn.Params, c.expression(params.NamedChild(i)))
			}
		}
		if body := node.ChildByFieldName("body"); body != nil {
			fn.Body = c.block(body)
		}
		return []Node{fn}

	case "while_statement":
		return []Node{&WhileStatement{
			Test: c.expression(node.ChildByFieldName("condition")),
			Body: c.body(node.ChildByFieldName("body")),
			Loc:  position(node),
		}}

	case "if_statement":
		stmt := &IfStatement{
			Test:       c.expression(node.ChildByFieldName("condition")),
			Consequent: c.body(node.ChildByFieldName("consequence")),
			Loc:        position(node),
		}
		if alt := node.ChildByFieldName("alternative"); alt != nil {
			// else_clause wraps the statement that follows `else`.
			if alt.Type() == "else_clause" {
				alt = firstNamed(alt)
			}
			if alt != nil {
				stmt.Alternate = c.body(alt)
			}
		}
		return []Node{stmt}

	case "statement_block":
		return []Node{c.block(node)}

	default:
		return []Node{&Unknown{Type: node.Type(), Loc: position(node)}}
	}
}

func (c *converter) block(node *sitter.Node) *BlockStatement {
	return &BlockStatement{Body: c.statementList(node), Loc: position(node)}
}

// body converts a statement used as a loop or branch body. Declarations that
// expand to several statements are wrapped in a block.
func (c *converter) body(node *sitter.Node) Node {
	if node == nil {
		return nil
	}
	if node.Type() == "statement_block" {
		return c.block(node)
	}
	stmts := c.statement(node)
	if len(stmts) == 1 {
		return stmts[0]
	}
	return &BlockStatement{Body: stmts, Loc: position(node)}
}

func (c *converter) expression(node *sitter.Node) Node {
	if node == nil {
		return nil
	}
	loc := position(node)

	switch node.Type() {
	case "identifier", "property_identifier", "shorthand_property_identifier",
		"private_property_identifier", "this", "super", "undefined":
		return &Identifier{Name: NodeContent(node, c.source), Loc: loc}

	case "string":
		raw := NodeContent(node, c.source)
		return &Literal{Value: unquote(raw), Raw: raw, Loc: loc}

	case "number":
		raw := NodeContent(node, c.source)
		lit := &Literal{Raw: raw, Loc: loc}
		if f, err := strconv.ParseFloat(strings.ReplaceAll(raw, "_", ""), 64); err == nil {
			lit.Value = f
		} else if i, err := strconv.ParseInt(strings.ReplaceAll(raw, "_", ""), 0, 64); err == nil {
			lit.Value = float64(i)
		}
		return lit

	case "true", "false":
		return &Literal{Value: node.Type() == "true", Raw: node.Type(), Loc: loc}

	case "null":
		return &Literal{Value: nil, Raw: "null", Loc: loc}

	case "regex":
		return &Literal{Raw: NodeContent(node, c.source), Regex: true, Loc: loc}

	case "member_expression":
		return &MemberExpression{
			Object:   c.expression(node.ChildByFieldName("object")),
			Property: c.expression(node.ChildByFieldName("property")),
			Loc:      loc,
		}

	case "subscript_expression":
		return &MemberExpression{
			Object:   c.expression(node.ChildByFieldName("object")),
			Property: c.expression(node.ChildByFieldName("index")),
			Computed: true,
			Loc:      loc,
		}

	case "binary_expression":
		op := operator(node, c.source)
		return &BinaryExpression{
			Operator: op,
			Left:     c.expression(node.ChildByFieldName("left")),
			Right:    c.expression(node.ChildByFieldName("right")),
			Logical:  op == "&&" || op == "||" || op == "??",
			Loc:      loc,
		}

	case "assignment_expression", "augmented_assignment_expression":
		op := "="
		if node.Type() == "augmented_assignment_expression" {
			op = operator(node, c.source)
		}
		return &AssignmentExpression{
			Operator: op,
			Left:     c.expression(node.ChildByFieldName("left")),
			Right:    c.expression(node.ChildByFieldName("right")),
			Loc:      loc,
		}

	case "call_expression":
		return &CallExpression{
			Callee:    c.expression(node.ChildByFieldName("function")),
			Arguments: c.arguments(node.ChildByFieldName("arguments")),
			Loc:       loc,
		}

	case "new_expression":
		return &CallExpression{
			Callee:    c.expression(node.ChildByFieldName("constructor")),
			Arguments: c.arguments(node.ChildByFieldName("arguments")),
			New:       true,
			Loc:       loc,
		}

	case "parenthesized_expression":
		return c.expression(firstNamed(node))

	default:
		return &Unknown{Type: node.Type(), Loc: loc}
	}
}

func (c *converter) arguments(node *sitter.Node) []Node {
	if node == nil {
		return nil
	}
	var args []Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		arg := node.NamedChild(i)
		if arg.Type() == "comment" {
			continue
		}
		args = append(args, c.expression(arg))
	}
	return args
}

// operator reads the operator token of a binary or augmented assignment node.
func operator(node *sitter.Node, source []byte) string {
	if op := node.ChildByFieldName("operator"); op != nil {
		return NodeContent(op, source)
	}
	// Fallback: the first anonymous child between the operands.
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if !child.IsNamed() {
			return child.Type()
		}
	}
	return ""
}

func firstNamed(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "comment" {
			return child
		}
	}
	return nil
}

func flattenSequence(node *sitter.Node) []*sitter.Node {
	if node.Type() != "sequence_expression" {
		return []*sitter.Node{node}
	}
	var out []*sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		out = append(out, flattenSequence(node.NamedChild(i))...)
	}
	return out
}

// unquote strips the delimiters of a string literal. Escape sequences are
// interpreted when the literal is valid Go syntax once re-quoted.
func unquote(raw string) string {
	if len(raw) < 2 {
		return raw
	}
	inner := raw[1 : len(raw)-1]
	if s, err := strconv.Unquote(`"` + strings.ReplaceAll(inner, `"`, `\"`) + `"`); err == nil {
		return s
	}
	return inner
}
