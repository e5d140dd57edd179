// Package textutil provides small text helpers shared by the CLI and the
// artifact writer: directory-safe slugs for episode names and display
// casing for table output.
package textutil
