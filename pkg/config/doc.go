// Package config implements configuration loading, environment resolution,
// and schema validation for k3sforge cluster deployments.
//
// # Overview
//
// The config package is the entry point of the configuration synthesis
// pipeline. It turns a declarative JSON document (global defaults plus
// per-node overrides) into a validated, strongly typed Config that the
// cloudinit, netconf, and synth packages consume.
//
// # Pipeline
//
// Loading proceeds in fixed stages, each feeding the next:
//
//  1. Read .env (godotenv, override semantics) so ENV: markers can resolve
//     against freshly loaded variables.
//  2. Parse the JSON document into an untyped tree (RawConfig).
//  3. Resolve ENV:NAME string markers anywhere in the tree against the
//     process environment (ResolveEnv). Unresolved optional markers are
//     dropped; the drop is recorded so the validator can distinguish a
//     missing required field from a missing environment variable.
//  4. Validate the resolved tree with explicit, ordered checks
//     (ValidateTree): shape, authentication mode, vmid uniqueness, user
//     field inventory, password exclusivity, network fragment rules.
//  5. Decode the tree into the typed model and run struct-tag validation
//     as a final typed pass.
//
// Stages 3-5 are pure; only stages 1-2 touch the filesystem.
//
// # Error Taxonomy
//
// All failures are reported as *ConfigError values carrying an ErrorKind
// and the JSON path of the offending field:
//
//	ConfigError{
//	    Kind: KindSchemaViolation,
//	    Path: "nodes[1].role",
//	    Message: "must be one of: server, agent, storage",
//	}
//
// Callers classify errors with the Is* predicates (IsEnvVarMissing,
// IsSchemaViolation, ...) rather than string matching.
//
// # Validation Order
//
// Checks run in a fixed order and fail fast on the first violation:
// top-level shape, proxmox connection settings, node list, user entries,
// network fragments. Cross-field rules (authentication oneOf, password
// exclusivity, device referential integrity) are ordinary functions,
// testable in isolation; no generic schema interpreter is involved.
//
// # Thread Safety
//
// Config values are immutable after Load returns. The Loader itself is
// safe for concurrent use.
package config
