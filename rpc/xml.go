// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package rpc

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/schema"
	"github.com/netascode/go-ncx/val"
)

type xmlWriter struct {
	b  strings.Builder
	ns map[string]string
}

func (w *xmlWriter) text(s string) {
	_ = xml.EscapeText(&w.b, []byte(s)) //nolint:errcheck // strings.Builder never fails
}

// open writes the start tag; xmlns is added when prefix changes the
// namespace and its URI is known
func (w *xmlWriter) open(name, prefix, parent string) {
	w.b.WriteString("<" + name)
	if prefix != "" && prefix != parent {
		if uri, ok := w.ns[prefix]; ok {
			w.b.WriteString(` xmlns="`)
			w.text(uri)
			w.b.WriteString(`"`)
		}
	}
}

// encodeRPC renders the operation element of op holding the children of
// input, ready to be wrapped in an <rpc> envelope
func encodeRPC(op *schema.Object, input *val.Value, ns map[string]string) string {
	w := &xmlWriter{ns: ns}
	prefix := op.Prefix()
	w.open(op.Name, prefix, "")
	if input == nil || input.NumChildren() == 0 {
		w.b.WriteString("/>")
		return w.b.String()
	}
	w.b.WriteString(">")
	for _, ch := range input.Children() {
		w.node(ch, prefix)
	}
	w.b.WriteString("</" + op.Name + ">")
	return w.b.String()
}

func (w *xmlWriter) node(v *val.Value, parent string) {
	name := v.Name()
	prefix := v.Prefix()
	w.open(name, prefix, parent)
	if prefix == "" {
		prefix = parent
	}

	if name == "filter" && v.Parent() != nil && v.Parent().Object().IsRPCInput() {
		w.filter(v, prefix)
		return
	}

	if v.HasChildStorage() {
		if v.NumChildren() == 0 {
			w.b.WriteString("/>")
			return
		}
		w.b.WriteString(">")
		for _, ch := range v.Children() {
			w.node(ch, prefix)
		}
		w.b.WriteString("</" + name + ">")
		return
	}

	switch p := v.Payload().(type) {
	case nil, val.Empty:
		w.b.WriteString("/>")
		return
	case val.Internal:
		w.b.WriteString(">" + p.Text)
	case val.External:
		w.b.WriteString(">" + p.Data)
	default:
		w.b.WriteString(">")
		w.text(val.Text(p))
	}
	w.b.WriteString("</" + name + ">")
}

// filter renders a subtree filter from a tree or markup, and an XPath
// filter from any other text
func (w *xmlWriter) filter(v *val.Value, prefix string) {
	if v.HasChildStorage() {
		w.b.WriteString(` type="subtree">`)
		for _, ch := range v.Children() {
			w.node(ch, prefix)
		}
		w.b.WriteString("</filter>")
		return
	}
	text := strings.TrimSpace(v.String())
	if strings.HasPrefix(text, "<") {
		w.b.WriteString(` type="subtree">` + text + "</filter>")
		return
	}
	w.b.WriteString(` type="xpath" select="`)
	w.text(text)
	w.b.WriteString(`"/>`)
}

// replyNoise are reply members reported through other channels
var replyNoise = map[string]bool{"rpc-error": true, "ok": true}

// decodeXML builds generic nodes from an XML fragment: elements with
// element children become containers, the others string leaves
func decodeXML(data string) ([]*val.Value, error) {
	type frame struct {
		name     string
		text     strings.Builder
		children []*val.Value
	}
	var (
		top   []*val.Value
		stack []*frame
	)
	dec := xml.NewDecoder(strings.NewReader(data))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reply XML: %w", ncx.ErrInvalidValue, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, &frame{name: t.Name.Local})
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		case xml.EndElement:
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			var v *val.Value
			text := strings.TrimSpace(f.text.String())
			switch {
			case len(f.children) > 0:
				v = val.NewContainer(f.name)
				for _, ch := range f.children {
					if err := v.AddChild(ch); err != nil {
						return nil, err
					}
				}
			case text != "":
				v = val.NewString(f.name, text)
			default:
				v = val.NewContainer(f.name)
			}
			if len(stack) == 0 {
				if !replyNoise[f.name] {
					top = append(top, v)
				}
				continue
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, v)
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: reply XML ends inside <%s>", ncx.ErrUnterminatedString, stack[len(stack)-1].name)
	}
	return top, nil
}
