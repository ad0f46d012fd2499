// Filename: estree/decode.go
package estree

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrUnsupportedRoot is returned when the top-level JSON value is not a Program.
var ErrUnsupportedRoot = errors.New("estree: root node is not a Program")

// rawNode is the superset of every ESTree field the decoder reads. Fields whose
// shape varies by node type stay raw until the type is known.
type rawNode struct {
	Type       string                `json:"type"`
	Name       string                `json:"name"`
	Value      jsoniter.RawMessage   `json:"value"`
	Raw        string                `json:"raw"`
	Regex      *struct{}             `json:"regex"`
	Operator   string                `json:"operator"`
	Computed   bool                  `json:"computed"`
	Object     jsoniter.RawMessage   `json:"object"`
	Property   jsoniter.RawMessage   `json:"property"`
	Left       jsoniter.RawMessage   `json:"left"`
	Right      jsoniter.RawMessage   `json:"right"`
	Callee     jsoniter.RawMessage   `json:"callee"`
	Arguments  []jsoniter.RawMessage `json:"arguments"`
	Expression jsoniter.RawMessage   `json:"expression"`
	Test       jsoniter.RawMessage   `json:"test"`
	Consequent jsoniter.RawMessage   `json:"consequent"`
	Alternate  jsoniter.RawMessage   `json:"alternate"`
	ID         jsoniter.RawMessage   `json:"id"`
	Params     []jsoniter.RawMessage `json:"params"`
	Body       jsoniter.RawMessage   `json:"body"`
	Loc        *struct {
		Start Position `json:"start"`
	} `json:"loc"`
}

// Decode parses an ESTree JSON document whose root is a Program.
func Decode(data []byte) (*Program, error) {
	node, err := decodeNode(data)
	if err != nil {
		return nil, err
	}
	program, ok := node.(*Program)
	if !ok {
		if node == nil {
			return nil, ErrUnsupportedRoot
		}
		return nil, fmt.Errorf("%w: got %s", ErrUnsupportedRoot, node.Kind())
	}
	return program, nil
}

// DecodeFile reads and decodes an ESTree JSON file.
func DecodeFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program tree %s: %w", path, err)
	}
	program, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode program tree %s: %w", path, err)
	}
	return program, nil
}

func isNull(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeNode(data []byte) (Node, error) {
	if isNull(data) {
		return nil, nil
	}
	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var loc Position
	if raw.Loc != nil {
		loc = raw.Loc.Start
	}

	switch Kind(raw.Type) {
	case KindProgram:
		body, err := decodeList(raw.Body)
		if err != nil {
			return nil, wrap(raw.Type, "body", err)
		}
		return &Program{Body: body, Loc: loc}, nil

	case KindBlockStatement:
		body, err := decodeList(raw.Body)
		if err != nil {
			return nil, wrap(raw.Type, "body", err)
		}
		return &BlockStatement{Body: body, Loc: loc}, nil

	case KindFunctionDeclaration:
		fn := &FunctionDeclaration{Loc: loc}
		id, err := decodeNode(raw.ID)
		if err != nil {
			return nil, wrap(raw.Type, "id", err)
		}
		fn.ID, _ = id.(*Identifier)
		for _, p := range raw.Params {
			param, err := decodeNode(p)
			if err != nil {
				return nil, wrap(raw.Type, "params", err)
			}
			fn.Params = append(fn.Params, param)
		}
		body, err := decodeNode(raw.Body)
		if err != nil {
			return nil, wrap(raw.Type, "body", err)
		}
		fn.Body, _ = body.(*BlockStatement)
		return fn, nil

	case KindExpressionStatement:
		expr, err := decodeNode(raw.Expression)
		if err != nil {
			return nil, wrap(raw.Type, "expression", err)
		}
		return &ExpressionStatement{Expression: expr, Loc: loc}, nil

	case KindWhileStatement:
		test, body, err := decodePair(raw.Test, raw.Body)
		if err != nil {
			return nil, wrap(raw.Type, "test/body", err)
		}
		return &WhileStatement{Test: test, Body: body, Loc: loc}, nil

	case KindIfStatement:
		test, consequent, err := decodePair(raw.Test, raw.Consequent)
		if err != nil {
			return nil, wrap(raw.Type, "test/consequent", err)
		}
		alternate, err := decodeNode(raw.Alternate)
		if err != nil {
			return nil, wrap(raw.Type, "alternate", err)
		}
		return &IfStatement{Test: test, Consequent: consequent, Alternate: alternate, Loc: loc}, nil

	case KindIdentifier:
		return &Identifier{Name: raw.Name, Loc: loc}, nil

	case KindLiteral:
		lit := &Literal{Raw: raw.Raw, Regex: raw.Regex != nil, Loc: loc}
		if !isNull(raw.Value) {
			if err := json.Unmarshal(raw.Value, &lit.Value); err != nil {
				return nil, wrap(raw.Type, "value", err)
			}
		}
		return lit, nil

	case KindMemberExpression:
		object, property, err := decodePair(raw.Object, raw.Property)
		if err != nil {
			return nil, wrap(raw.Type, "object/property", err)
		}
		return &MemberExpression{Object: object, Property: property, Computed: raw.Computed, Loc: loc}, nil

	case KindBinaryExpression, KindLogicalExpression:
		left, right, err := decodePair(raw.Left, raw.Right)
		if err != nil {
			return nil, wrap(raw.Type, "left/right", err)
		}
		return &BinaryExpression{
			Operator: raw.Operator,
			Left:     left,
			Right:    right,
			Logical:  Kind(raw.Type) == KindLogicalExpression,
			Loc:      loc,
		}, nil

	case KindAssignmentExpression:
		left, right, err := decodePair(raw.Left, raw.Right)
		if err != nil {
			return nil, wrap(raw.Type, "left/right", err)
		}
		return &AssignmentExpression{Operator: raw.Operator, Left: left, Right: right, Loc: loc}, nil

	case KindCallExpression, KindNewExpression:
		callee, err := decodeNode(raw.Callee)
		if err != nil {
			return nil, wrap(raw.Type, "callee", err)
		}
		call := &CallExpression{Callee: callee, New: Kind(raw.Type) == KindNewExpression, Loc: loc}
		for _, a := range raw.Arguments {
			arg, err := decodeNode(a)
			if err != nil {
				return nil, wrap(raw.Type, "arguments", err)
			}
			call.Arguments = append(call.Arguments, arg)
		}
		return call, nil

	default:
		return &Unknown{Type: raw.Type, Loc: loc}, nil
	}
}

// decodeList decodes a statement list. A single object is accepted in place of a
// list so that function and loop bodies given as a bare BlockStatement still
// decode.
func decodeList(data []byte) ([]Node, error) {
	if isNull(data) {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(data)
	if trimmed[0] != '[' {
		node, err := decodeNode(trimmed)
		if err != nil {
			return nil, err
		}
		return Statements(node), nil
	}

	var items []jsoniter.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(items))
	for _, item := range items {
		node, err := decodeNode(item)
		if err != nil {
			return nil, err
		}
		if node != nil {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

func decodePair(a, b []byte) (Node, Node, error) {
	first, err := decodeNode(a)
	if err != nil {
		return nil, nil, err
	}
	second, err := decodeNode(b)
	if err != nil {
		return nil, nil, err
	}
	return first, second, nil
}

func wrap(nodeType, field string, err error) error {
	return fmt.Errorf("%s.%s: %w", nodeType, field, err)
}
