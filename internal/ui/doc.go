// Package ui styles terminal output for the CLI: a small [Palette] of lipgloss styles for status lines
// and a bordered [Table] for listings such as the route table.
package ui
