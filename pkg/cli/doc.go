// Package cli provides the terminal styling and formatting primitives
// shared by npcworld's diagnostic commands: a lipgloss theme/frame
// renderer for the status view and human-readable duration/byte
// formatters for the scaling substrate's counters.
package cli
