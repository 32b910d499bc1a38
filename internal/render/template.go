// Package render implements the sandboxed message template pipeline:
// a small {{ variable }} / {% if %} dialect with whitelisted filters,
// template validation, safe context defaults and a bounded render cache.
//
// Templates never reach process, file or import capabilities; the only
// executable surface is the filter whitelist.
package render

import (
	"fmt"
	"strings"

	"guest-messaging/internal/common/errors"
)

// node is one parsed template element.
type node interface{}

// textNode is literal template text.
type textNode string

// varNode is a {{ path | filter:arg }} substitution.
type varNode struct {
	path    string
	filters []filterCall
	raw     string
}

// ifNode is a {% if path %} ... {% else %} ... {% endif %} block.
type ifNode struct {
	cond string
	then []node
	els  []node
}

type filterCall struct {
	name string
	arg  string
}

// token is one lexed template chunk.
type token struct {
	kind tokenKind
	text string // trimmed contents for var/tag tokens, raw text otherwise
}

type tokenKind int

const (
	tokenText tokenKind = iota
	tokenVar            // {{ ... }}
	tokenTag            // {% ... %}
)

// lex splits a template into text, variable and tag tokens. Unclosed
// delimiters are a syntax error.
func lex(template string) ([]token, error) {
	var tokens []token
	rest := template

	for len(rest) > 0 {
		openVar := strings.Index(rest, "{{")
		openTag := strings.Index(rest, "{%")

		next, closer, kind := -1, "", tokenText
		switch {
		case openVar >= 0 && (openTag < 0 || openVar < openTag):
			next, closer, kind = openVar, "}}", tokenVar
		case openTag >= 0:
			next, closer, kind = openTag, "%}", tokenTag
		}

		if next < 0 {
			tokens = append(tokens, token{kind: tokenText, text: rest})
			break
		}

		if next > 0 {
			tokens = append(tokens, token{kind: tokenText, text: rest[:next]})
		}

		end := strings.Index(rest[next+2:], closer)
		if end < 0 {
			return nil, errors.RenderError(
				fmt.Sprintf("unclosed %q delimiter at offset %d", rest[next:next+2], len(template)-len(rest)+next), nil)
		}

		inner := strings.TrimSpace(rest[next+2 : next+2+end])
		tokens = append(tokens, token{kind: kind, text: inner})
		rest = rest[next+2+end+2:]
	}

	return tokens, nil
}

// parse builds the node tree from a token stream.
func parse(template string) ([]node, error) {
	tokens, err := lex(template)
	if err != nil {
		return nil, err
	}

	nodes, remaining, err := parseNodes(tokens, "")
	if err != nil {
		return nil, err
	}
	if len(remaining) > 0 {
		return nil, errors.RenderError(fmt.Sprintf("unexpected tag %q", remaining[0].text), nil)
	}
	return nodes, nil
}

// parseNodes consumes tokens until one of the stop tags ("else"/"endif")
// when inside an if block, or the end of input at the top level.
func parseNodes(tokens []token, context string) ([]node, []token, error) {
	var nodes []node

	for len(tokens) > 0 {
		tok := tokens[0]

		switch tok.kind {
		case tokenText:
			nodes = append(nodes, textNode(tok.text))
			tokens = tokens[1:]

		case tokenVar:
			v, err := parseVar(tok.text)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, v)
			tokens = tokens[1:]

		case tokenTag:
			fields := strings.Fields(tok.text)
			if len(fields) == 0 {
				return nil, nil, errors.RenderError("empty tag", nil)
			}

			switch fields[0] {
			case "if":
				if len(fields) != 2 {
					return nil, nil, errors.RenderError(fmt.Sprintf("malformed if tag %q", tok.text), nil)
				}
				block := &ifNode{cond: fields[1]}

				var err error
				block.then, tokens, err = parseNodes(tokens[1:], "if")
				if err != nil {
					return nil, nil, err
				}
				if len(tokens) == 0 {
					return nil, nil, errors.RenderError("unterminated if block, missing endif", nil)
				}
				if tokens[0].text == "else" {
					block.els, tokens, err = parseNodes(tokens[1:], "else")
					if err != nil {
						return nil, nil, err
					}
					if len(tokens) == 0 {
						return nil, nil, errors.RenderError("unterminated else block, missing endif", nil)
					}
				}
				// tokens[0] is now "endif"
				tokens = tokens[1:]
				nodes = append(nodes, block)

			case "else", "endif":
				if context == "" {
					return nil, nil, errors.RenderError(fmt.Sprintf("%s without matching if", fields[0]), nil)
				}
				if fields[0] == "else" && context == "else" {
					return nil, nil, errors.RenderError("duplicate else in if block", nil)
				}
				return nodes, tokens, nil

			default:
				return nil, nil, errors.RenderError(fmt.Sprintf("unsupported tag %q", fields[0]), nil)
			}
		}
	}

	if context != "" {
		return nil, nil, errors.RenderError("unterminated if block, missing endif", nil)
	}
	return nodes, nil, nil
}

// parseVar parses "path | filter:arg | filter" expression text.
func parseVar(expr string) (*varNode, error) {
	if expr == "" {
		return nil, errors.RenderError("empty variable expression", nil)
	}

	parts := strings.Split(expr, "|")
	path := strings.TrimSpace(parts[0])
	if path == "" || !validPath(path) {
		return nil, errors.RenderError(fmt.Sprintf("invalid variable reference %q", expr), nil)
	}

	v := &varNode{path: path, raw: expr}
	for _, part := range parts[1:] {
		call, err := parseFilterCall(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		v.filters = append(v.filters, call)
	}
	return v, nil
}

func parseFilterCall(spec string) (filterCall, error) {
	if spec == "" {
		return filterCall{}, errors.RenderError("empty filter name", nil)
	}

	name, arg := spec, ""
	if idx := strings.IndexByte(spec, ':'); idx >= 0 {
		name = strings.TrimSpace(spec[:idx])
		arg = strings.TrimSpace(spec[idx+1:])
		arg = strings.Trim(arg, `"'`)
	}
	if name == "" {
		return filterCall{}, errors.RenderError(fmt.Sprintf("malformed filter %q", spec), nil)
	}
	return filterCall{name: name, arg: arg}, nil
}

// validPath accepts dot-separated identifiers: letters, digits, underscores.
func validPath(path string) bool {
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return false
		}
		for i, r := range segment {
			switch {
			case r == '_',
				r >= 'a' && r <= 'z',
				r >= 'A' && r <= 'Z':
			case r >= '0' && r <= '9':
				if i == 0 {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}
