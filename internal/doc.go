// Package internal contains sandboxgraph's core implementation packages.
//
// # Package Organization
//
//   - module: the TranspiledModule vertex type and its edge bookkeeping
//   - graph: the Manager that owns the module graph and implements the
//     transpile/evaluate/reset lifecycle
//   - resolver: specifier resolution (relative, bare, aliased, external)
//   - loader: the transformer-chain contract and loader context capability
//     surface
//   - preset: template-driven loader-chain and alias selection
//   - transform: the reference transformer implementations a deployment
//     ships (identity, JSON, raw asset, CSS injection)
//   - eval: the embedded-JS-VM evaluation collaborator
//   - downloader: the external dependency-download collaborator
//   - serialize: the graph's persisted wire format
//   - storage: the Save/Load blob backends (memory, Postgres, minio)
//   - diagnostics: warning/error collection and overlay rendering
//   - hostevents: the websocket hub broadcasting compile results
//   - docreset: host document reset between non-HMR compiles
//   - orchestrator: the single-slot compile-request pipeline
//   - localwatch: a filesystem-backed compile-request source for local dev
//   - config: Viper/godotenv-backed configuration loading
//   - logging: structured logging
//   - version: build-time version metadata
//
// # Inter-Package Communication
//
// graph.Manager is the only package that imports every other leaf
// package; module, loader, preset, transform, resolver, eval, serialize,
// storage, diagnostics and downloader never import graph, which keeps the
// module graph's vertex type free of orchestration concerns. Among the
// leaves, resolver, serialize and downloader import module, transform
// imports loader, and preset imports loader and transform.
// orchestrator, hostevents, docreset and localwatch sit above graph and
// drive it from an external trigger (an HTTP request, a filesystem
// change, a websocket connection).
package internal
