// Package tools provides host command helpers shared by the announcer and
// the autostart installer.
//
// Ownership boundary:
// - command execution helpers
//
// - detached process launch
package tools
