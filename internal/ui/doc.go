// Package ui renders the terminal pieces of kxapi: the KerbalX credential
// prompt and the error messages pulled from a session.
//
// # Components
//
//   - prompt.go: TerminalPrompter, a Bubble Tea form with a masked password
//     field that implements login.Prompter
//   - message.go: RenderError, which turns a consumed session.Error into a
//     bordered Lipgloss block
//   - theme.go, keys.go: colors and key bindings
//
// # Prompt Keys
//
//	enter      submit (moves to the password field when it is empty)
//	tab/down   next field
//	shift+tab  previous field
//	esc/ctrl+c cancel; the login sequence releases its waiters with false
package ui
