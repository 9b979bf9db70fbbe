// Package effectgen lowers effect-generic declarations into concrete,
// monomorphic variants.
//
// A declaration marked #[maybe(async)] is generic over whether the async
// effect is present. Types may carry fields that exist only under some
// effects (#[cfg(effect = async)]), traits may define associated items
// whose shape depends on the effect, and methods inherit their enclosing
// declaration's effects. The engine produces one variant per assignment,
// keeps the pre-generic layout of every type under the all-absent
// assignment, and binds every call site to exactly one variant.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	effectgen/
//	├── effect/          Effect kinds, sets, assignments and cfg predicates
//	├── syntax/          Annotation grammar: #[maybe], #[cfg], headers, calls
//	├── decl/            Declaration model and structural validation
//	├── fields/          Conditional fields and capability synthesis
//	├── propagate/       Effect propagation graph and components
//	├── mono/            Monomorphization engine and variant catalog
//	├── abi/             Legacy layout compatibility checker
//	├── callsite/        Call-site effect resolution
//	├── compiler/        Pass orchestration over a compilation unit
//	├── manifest/        YAML declaration manifests and configuration
//	├── errors/          Structured diagnostics for batch reporting
//	└── cmd/effectgen/   Command-line front end
//
// # Quick Start
//
// Lower a manifest:
//
//	m, err := manifest.Load("fs.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg, err := m.Config.Compiler()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sources, diags := m.Sources()
//	// diags holds annotation parse failures
//
//	res, err := compiler.New(cfg).Compile(ctx, sources)
//	if err != nil {
//	    log.Fatal(err) // cancelled
//	}
//	if err := res.Err(); err != nil {
//	    log.Fatal(err) // every blocking diagnostic at once
//	}
//	for _, v := range res.Catalog.Variants() {
//	    fmt.Println(v.Name) // File<async>, File<!async>, ...
//	}
//
// # Thread Safety
//
// A Compiler is safe for concurrent use; each Compile call owns its
// catalog. Models and graphs are read-only after construction. The catalog
// computes each variant once even under concurrent demand, and a
// cancelled compilation discards it.
package effectgen
