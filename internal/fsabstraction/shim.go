package fsabstraction

import "embed"

// ShimSource embeds the locally-resolving subset of this package (the
// enumerated API plus its syscall-backed implementation and the
// package-level convenience functions bundled user code calls). It
// excludes remote.go and cache.go: a bundle already runs inside its
// target (pod, node, or batch job's own filesystem), so "remote" always
// collapses to local syscalls there, and the short-lived result cache is
// a dispatch-side concern the bootstrap has no use for.
//
// The bundle packager (internal/bundle) copies these same three files
// into every archive's /fs_shim/ directory so a captured function calling
// fsabstraction.List(ctx, path) compiles and behaves identically whether
// it runs in-process or inside a generated bootstrap.
//
//go:embed api.go local.go default.go
var ShimSource embed.FS
