// Package version holds the module's release identifier, surfaced in the
// NIP-11 document and the CLI's --version/help output.
package version

// V is the current release identifier.
const V = "0.1.0"
