// Package render implements the logic-template engine used for outbound
// notification copy: {{var}} substitution and nested
// {{#if var}}...{{else}}...{{/if}} blocks over a flat variable map.
package render

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// node is one parsed template element.
type node interface {
	render(sb *strings.Builder, vars map[string]any)
}

type textNode string

func (n textNode) render(sb *strings.Builder, vars map[string]any) {
	sb.WriteString(string(n))
}

type varNode string

func (n varNode) render(sb *strings.Builder, vars map[string]any) {
	sb.WriteString(Stringify(vars[string(n)]))
}

type ifNode struct {
	varName  string
	then     []node
	els      []node
	seenElse bool
}

func (n *ifNode) render(sb *strings.Builder, vars map[string]any) {
	branch := n.then
	if !Truthy(vars[n.varName]) {
		branch = n.els
	}
	for _, child := range branch {
		child.render(sb, vars)
	}
}

// frame is one level of the explicit parse stack. The root frame has a nil
// ifNode; every {{#if}} pushes a frame carrying its raw token so the block
// can be re-emitted literally if it is never closed.
type frame struct {
	open     *ifNode
	rawToken string
	nodes    []node
}

// Render renders a template against a flat variable map. It never fails: a
// parse anomaly degrades to best-effort flat substitution, unmatched
// {{else}}/{{/if}} tokens are emitted as literal text, and missing variables
// render as empty string.
func Render(template string, vars map[string]any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = flatSubstitute(template, vars)
		}
	}()

	nodes := parse(template)
	var sb strings.Builder
	for _, n := range nodes {
		n.render(&sb, vars)
	}
	return sb.String()
}

// parse tokenizes the template and builds the node tree with an explicit
// stack so conditional blocks nest arbitrarily.
func parse(template string) []node {
	stack := []*frame{{}}
	top := func() *frame { return stack[len(stack)-1] }
	emit := func(n node) { top().nodes = append(top().nodes, n) }

	rest := template
	for len(rest) > 0 {
		open := strings.Index(rest, "{{")
		if open < 0 {
			emit(textNode(rest))
			break
		}
		if open > 0 {
			emit(textNode(rest[:open]))
		}
		rest = rest[open:]

		end := strings.Index(rest, "}}")
		if end < 0 {
			// Dangling "{{" is literal text.
			emit(textNode(rest))
			break
		}

		token := rest[:end+2]
		inner := strings.TrimSpace(rest[2:end])
		rest = rest[end+2:]

		switch {
		case strings.HasPrefix(inner, "#if "):
			name := strings.TrimSpace(inner[len("#if "):])
			stack = append(stack, &frame{
				open:     &ifNode{varName: name},
				rawToken: token,
			})

		case inner == "else":
			f := top()
			if f.open == nil || f.open.seenElse {
				// No conditional to attach to: literal text.
				emit(textNode(token))
				continue
			}
			f.open.then = f.nodes
			f.open.seenElse = true
			f.nodes = nil

		case inner == "/if":
			if len(stack) == 1 {
				emit(textNode(token))
				continue
			}
			f := top()
			stack = stack[:len(stack)-1]
			if f.open.seenElse {
				f.open.els = f.nodes
			} else {
				f.open.then = f.nodes
			}
			emit(f.open)

		default:
			if strings.HasPrefix(inner, "#") {
				// Unknown block token: literal text.
				emit(textNode(token))
				continue
			}
			emit(varNode(inner))
		}
	}

	// Unclosed {{#if}} blocks: re-emit their open tokens literally and
	// splice their children back into the parent.
	for len(stack) > 1 {
		f := top()
		stack = stack[:len(stack)-1]
		spliced := make([]node, 0, len(f.nodes)+3)
		spliced = append(spliced, textNode(f.rawToken))
		if f.open.seenElse {
			spliced = append(spliced, f.open.then...)
			spliced = append(spliced, textNode("{{else}}"))
		}
		spliced = append(spliced, f.nodes...)
		top().nodes = append(top().nodes, spliced...)
	}

	return stack[0].nodes
}

// flatSubstitute is the degraded rendering path: plain {{var}} replacement
// over the raw template, no conditional logic.
func flatSubstitute(template string, vars map[string]any) string {
	var sb strings.Builder
	rest := template
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			sb.WriteString(rest)
			return sb.String()
		}
		sb.WriteString(rest[:open])
		rest = rest[open:]

		end := strings.Index(rest, "}}")
		if end < 0 {
			sb.WriteString(rest)
			return sb.String()
		}
		name := strings.TrimSpace(rest[2:end])
		sb.WriteString(Stringify(vars[name]))
		rest = rest[end+2:]
	}
}

// Truthy implements the renderer's truthiness table: false/nil/NaN and
// numeric zero are falsy, strings are falsy only when empty after trimming,
// arrays only when empty, everything else (maps included) is truthy.
func Truthy(v any) bool {
	if v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.TrimSpace(t) != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case float32:
		return t != 0 && !math.IsNaN(float64(t))
	case int:
		return t != 0
	case int64:
		return t != 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f != 0 && !math.IsNaN(f)
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return Truthy(rv.Elem().Interface())
	}
	return true
}

// Stringify converts a variable value to its rendered text. Missing values
// (nil) render as empty string.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return ""
		}
		return Stringify(rv.Elem().Interface())
	}

	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		var sb strings.Builder
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(Stringify(rv.Index(i).Interface()))
		}
		return sb.String()
	}

	return fmt.Sprint(v)
}
