package tei

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// node is an element of the parsed markup. Text nodes have an empty name.
type node struct {
	name     string
	attrs    map[string]string
	text     string
	children []*node
}

func parse(markup []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(markup))
	dec.CharsetReader = charset.NewReaderLabel
	dec.Entity = xml.HTMLEntity

	root := &node{name: "#document"}
	stack := []*node{root}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse markup: %w", err)
		}
		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			el := &node{name: t.Name.Local}
			if len(t.Attr) > 0 {
				el.attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					el.attrs[a.Name.Local] = a.Value
				}
			}
			top.children = append(top.children, el)
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			top.children = append(top.children, &node{text: string(t)})
		}
	}
	if len(stack) != 1 {
		return nil, errors.New("parse markup: unexpected end of document")
	}
	if !hasElement(root) {
		return nil, errors.New("parse markup: no root element")
	}
	return root, nil
}

func hasElement(n *node) bool {
	for _, c := range n.children {
		if c.name != "" {
			return true
		}
	}
	return false
}

func (n *node) attr(name string) (string, bool) {
	v, ok := n.attrs[name]
	return v, ok
}

// prune drops every descendant element for which drop returns true.
func (n *node) prune(drop func(*node) bool) {
	kept := n.children[:0]
	for _, c := range n.children {
		if c.name != "" && drop(c) {
			continue
		}
		c.prune(drop)
		kept = append(kept, c)
	}
	n.children = kept
}

// find returns the first descendant named name in document order.
func (n *node) find(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
		if f := c.find(name); f != nil {
			return f
		}
	}
	return nil
}

// findAll returns every descendant named name in document order.
func (n *node) findAll(name string) []*node {
	var out []*node
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
		}
		out = append(out, c.findAll(name)...)
	}
	return out
}

// childElements returns direct element children whose name is in names.
func (n *node) childElements(names ...string) []*node {
	var out []*node
	for _, c := range n.children {
		for _, name := range names {
			if c.name == name {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// textContent concatenates all descendant text.
func (n *node) textContent() string {
	if n.name == "" {
		return n.text
	}
	var b strings.Builder
	n.writeText(&b)
	return b.String()
}

func (n *node) writeText(b *strings.Builder) {
	for _, c := range n.children {
		if c.name == "" {
			b.WriteString(c.text)
			continue
		}
		c.writeText(b)
	}
}
