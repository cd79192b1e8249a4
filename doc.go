// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package ncx is the run-time core shared by a NETCONF/YANG agent and its
// interactive management client: typed value trees shaped by YANG object
// templates, the engine that defaults and validates them, the parser that
// turns command-line and script text into trees, and the script interpreter
// that sequences commands with conditionals and loops.
//
// The root package holds what every layer shares: the failure taxonomy
// (Status, Error), the pluggable Logger and the per-session Config.
//
// # Packages
//
//   - schema: immutable object templates and a YAML descriptor loader
//   - val: value nodes, index chains, instance identifiers, partial-lock
//     slots, defaulting and validation, JSON and gNMI path codecs
//   - cond: expression evaluation for when, if, while and eval
//   - plock: partial-lock control blocks and the session lock table
//   - vars: the layered variable store
//   - cli: the command-line and script parameter parser
//   - runstack: script frames and the if/while state machine
//   - shell: the line interpreter tying the above together
//   - rpc: gNMI and NETCONF dispatchers consuming finished trees
//   - cmd/ncxsh: the command-line front end (run, exec, parse, check)
//
// # Quick Start
//
// Parse a command line against a template and finish the tree:
//
//	obj := schema.Container("prog",
//	    schema.Leaf("mode", schema.TypeString, schema.Default("slow")),
//	    schema.Leaf("count", schema.TypeUint32),
//	    schema.Leaf("verbose", schema.TypeBoolean, schema.Default("false")),
//	)
//	p := cli.NewParser()
//	tree, err := p.Parse([]string{"prog", "--mode=fast", "--count=3"}, obj)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	id, _ := val.InstanceID(tree.FindChild(0, "count"), val.FormatXPath1, false)
//
// # Error Handling
//
// Every failure carries a Status usable with errors.Is. Scans that continue
// past a bad parameter return a single *Error listing every finding:
//
//	if errors.Is(err, ncx.ErrUnknownParm) {
//	    var nerr *ncx.Error
//	    errors.As(err, &nerr)
//	    for _, m := range nerr.Errors {
//	        fmt.Println(m.String())
//	    }
//	}
//
// # Concurrency
//
// A session is driven by a single goroutine. Partial locks are the only
// construct shared between sessions; plock.Manager serializes lock
// acquisition on the shared running tree.
//
// # References
//
//   - NETCONF: RFC 6241
//   - Partial Lock RPC for NETCONF: RFC 5717
//   - YANG: RFC 7950
//   - expr: https://github.com/expr-lang/expr
//   - gjson: https://github.com/tidwall/gjson
//   - sjson: https://github.com/tidwall/sjson
//   - gnmic: https://github.com/openconfig/gnmic
package ncx
