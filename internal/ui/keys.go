package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the credential prompt bindings.
type keyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding
	Cancel key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "Next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "Previous field"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Login"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "Cancel"),
		),
	}
}

// helpLine renders the short help shown under the form.
func (k keyMap) helpLine(s Styles) string {
	bindings := []key.Binding{k.Submit, k.Next, k.Cancel}
	out := ""
	for i, b := range bindings {
		if i > 0 {
			out += s.MutedText.Render("  ")
		}
		h := b.Help()
		out += s.AccentText.Render(h.Key) + " " + s.MutedText.Render(h.Desc)
	}
	return out
}
