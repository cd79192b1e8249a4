// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package schema

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// descriptorFile is the YAML layout accepted by LoadYAML:
//
//	module: ex
//	namespace: 10
//	nodes:
//	  - kind: rpc
//	    name: get-config
//	    children:
//	      - kind: input
//	        children:
//	          - {kind: leaf, name: source, type: string, default: running}
type descriptorFile struct {
	Module    string       `yaml:"module" validate:"required"`
	Namespace uint32       `yaml:"namespace" validate:"required,gt=1"`
	Nodes     []descriptor `yaml:"nodes" validate:"required,dive"`
}

type descriptor struct {
	Kind           string       `yaml:"kind" validate:"required,oneof=container list leaf leaf-list choice case rpc input output anyxml"`
	Name           string       `yaml:"name"`
	Type           string       `yaml:"type" validate:"required_if=Kind leaf,required_if=Kind leaf-list"`
	Default        *string      `yaml:"default"`
	Mandatory      bool         `yaml:"mandatory"`
	Config         *bool        `yaml:"config"`
	Presence       bool         `yaml:"presence"`
	MinElements    uint32       `yaml:"min-elements"`
	MaxElements    uint32       `yaml:"max-elements" validate:"omitempty,gtefield=MinElements"`
	OrderedByUser  bool         `yaml:"ordered-by-user"`
	Keys           []string     `yaml:"keys" validate:"required_if=Kind list"`
	When           string       `yaml:"when"`
	DefaultCase    string       `yaml:"default-case"`
	DefaultParm    string       `yaml:"default-parm"`
	Enums          []string     `yaml:"enums" validate:"required_if=Type enumeration"`
	Bits           []string     `yaml:"bits" validate:"required_if=Type bits"`
	Members        []string     `yaml:"members" validate:"required_if=Type union"`
	FractionDigits int          `yaml:"fraction-digits" validate:"gte=0,lte=18"`
	MinLength      int          `yaml:"min-length" validate:"gte=0"`
	Root           bool         `yaml:"root"`
	Description    string       `yaml:"description"`
	Children       []descriptor `yaml:"children" validate:"dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadYAML reads object templates from a YAML descriptor
//
// The descriptor is a flat stand-in for compiled YANG: it carries exactly
// the metadata the value-tree core consumes (kinds, types, defaults, when
// expressions, keys, cardinality). Every top-level node is tagged with the
// file's module prefix and namespace.
func LoadYAML(r io.Reader) ([]*Object, error) {
	var file descriptorFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("schema: decode: %w", err)
	}
	if err := validate.Struct(&file); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, fmt.Errorf("schema: %s: failed %q constraint", fe.Namespace(), fe.Tag())
		}
		return nil, fmt.Errorf("schema: %w", err)
	}

	objs := make([]*Object, 0, len(file.Nodes))
	for i := range file.Nodes {
		o, err := file.Nodes[i].object()
		if err != nil {
			return nil, err
		}
		o.Module = file.Module
		o.Namespace = file.Namespace
		objs = append(objs, o)
	}
	return objs, nil
}

// LoadFile reads object templates from a YAML descriptor file
func LoadFile(path string) ([]*Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}

func (d *descriptor) object() (*Object, error) {
	kind, err := ParseKind(d.Kind)
	if err != nil {
		return nil, fmt.Errorf("schema: %s: %w", d.Name, err)
	}
	if d.Name == "" && kind != KindInput && kind != KindOutput {
		return nil, fmt.Errorf("schema: %s without a name", kind)
	}

	o := &Object{
		Kind:           kind,
		Name:           d.Name,
		Mandatory:      d.Mandatory,
		Presence:       d.Presence,
		MinElements:    d.MinElements,
		MaxElements:    d.MaxElements,
		OrderedByUser:  d.OrderedByUser,
		Keys:           d.Keys,
		When:           d.When,
		DefaultCase:    d.DefaultCase,
		DefaultParm:    d.DefaultParm,
		Enums:          d.Enums,
		Bits:           d.Bits,
		FractionDigits: d.FractionDigits,
		MinLength:      d.MinLength,
		Root:           d.Root,
		Description:    d.Description,
	}
	if d.Config != nil {
		o.NoConfig = !*d.Config
	}
	if d.Default != nil {
		o.Default = *d.Default
		o.HasDefault = true
	}

	switch kind {
	case KindLeaf, KindLeafList:
		if o.Type, err = ParseBaseType(d.Type); err != nil {
			return nil, fmt.Errorf("schema: %s: %w", d.Name, err)
		}
		for _, m := range d.Members {
			mt, err := ParseBaseType(m)
			if err != nil {
				return nil, fmt.Errorf("schema: %s: union member: %w", d.Name, err)
			}
			o.Members = append(o.Members, mt)
		}
	case KindContainer, KindRPC:
		o.Type = TypeContainer
	case KindInput:
		o.Name, o.Type = "input", TypeContainer
	case KindOutput:
		o.Name, o.Type = "output", TypeContainer
	case KindList:
		o.Type = TypeList
	case KindAnyxml:
		o.Type = TypeAnyxml
	}

	for i := range d.Children {
		ch, err := d.Children[i].object()
		if err != nil {
			return nil, err
		}
		ch.Parent = o
		o.Children = append(o.Children, ch)
	}

	if kind == KindList {
		for _, k := range o.Keys {
			if key := o.Child(k); key == nil || key.Kind != KindLeaf {
				return nil, fmt.Errorf("schema: list %s: key %q is not a child leaf", o.Name, k)
			}
		}
	}
	if o.DefaultParm != "" && o.FindData(o.DefaultParm) == nil {
		return nil, fmt.Errorf("schema: %s: default-parm %q not found", o.Name, o.DefaultParm)
	}
	if o.DefaultCase != "" && o.Child(o.DefaultCase) == nil {
		return nil, fmt.Errorf("schema: %s: default-case %q not found", o.Name, o.DefaultCase)
	}
	return o, nil
}
