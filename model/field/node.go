package field

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// NodeKind identifies the shape held by a Node.
type NodeKind int

const (
	KindNull NodeKind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

func (k NodeKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	}
	return "unknown"
}

// Node is a typed view over a decoded JSON document. Exactly one of the
// payload fields is meaningful, as selected by Kind.
type Node struct {
	Kind    NodeKind
	Text    string
	Number  json.Number
	Bool    bool
	Members map[string]*Node
	Items   []*Node
}

// IsScalar reports whether the node holds a string, number or bool.
func (n *Node) IsScalar() bool {
	if n == nil {
		return false
	}
	switch n.Kind {
	case KindString, KindNumber, KindBool:
		return true
	}
	return false
}

// Member returns the named object member or nil.
func (n *Node) Member(name string) *Node {
	if n == nil || n.Kind != KindObject {
		return nil
	}
	return n.Members[name]
}

// Keys returns object member names in sorted order.
func (n *Node) Keys() []string {
	if n == nil || n.Kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(n.Members))
	for k := range n.Members {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Parse decodes JSON data into a Node tree. Numbers keep their literal form.
func Parse(data []byte) (*Node, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw interface{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("failed to decode payload: trailing data")
	}
	return FromValue(raw)
}

// FromValue converts the output of a UseNumber json decoder into a Node.
func FromValue(raw interface{}) (*Node, error) {
	switch actual := raw.(type) {
	case nil:
		return &Node{Kind: KindNull}, nil
	case string:
		return &Node{Kind: KindString, Text: actual}, nil
	case json.Number:
		return &Node{Kind: KindNumber, Number: actual}, nil
	case float64:
		return &Node{Kind: KindNumber, Number: json.Number(formatFloat(actual))}, nil
	case bool:
		return &Node{Kind: KindBool, Bool: actual}, nil
	case map[string]interface{}:
		ret := &Node{Kind: KindObject, Members: make(map[string]*Node, len(actual))}
		for k, v := range actual {
			child, err := FromValue(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			ret.Members[k] = child
		}
		return ret, nil
	case []interface{}:
		ret := &Node{Kind: KindArray, Items: make([]*Node, 0, len(actual))}
		for i, v := range actual {
			child, err := FromValue(v)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			ret.Items = append(ret.Items, child)
		}
		return ret, nil
	}
	return nil, fmt.Errorf("unsupported payload type %T", raw)
}

// Interface converts the node back into plain Go values (json.Number for numbers).
func (n *Node) Interface() interface{} {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindString:
		return n.Text
	case KindNumber:
		return n.Number
	case KindBool:
		return n.Bool
	case KindObject:
		ret := make(map[string]interface{}, len(n.Members))
		for k, v := range n.Members {
			ret[k] = v.Interface()
		}
		return ret
	case KindArray:
		ret := make([]interface{}, 0, len(n.Items))
		for _, v := range n.Items {
			ret = append(ret, v.Interface())
		}
		return ret
	}
	return nil
}
