package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/kxapi/internal/session"
)

// MessageOptions tunes RenderError.
type MessageOptions struct {
	// UpgradeURL is linked from upgrade-required messages.
	UpgradeURL string
	Theme      string
}

// RenderError formats a consumed session error for the terminal. The zero
// Error renders as "".
func RenderError(err session.Error, opts MessageOptions) string {
	s := GetTheme(opts.Theme).Styles()

	var title string
	var lines []string
	switch err.Kind {
	case session.ErrorNone:
		return ""
	case session.ErrorConnectionFailed:
		title = "Unable to Connect to KerbalX.com!"
		lines = []string{"Check your net connection and that you can reach KerbalX in a browser"}
	case session.ErrorUpgradeRequired:
		title = "Upgrade Required"
		if msg := strings.TrimSpace(err.Message); msg != "" {
			lines = append(lines, msg)
		}
		if opts.UpgradeURL != "" {
			lines = append(lines, "Goto "+s.InfoText.Underline(true).Render(opts.UpgradeURL)+" for more info")
		}
	default:
		parts := strings.Split(err.Message, "\n")
		title = parts[0]
		for _, p := range parts[1:] {
			if p != "" {
				lines = append(lines, p)
			}
		}
	}

	body := []string{s.DangerText.Render(title)}
	for _, l := range lines {
		body = append(body, s.Text.Render(l))
	}
	return s.Box.Render(lipgloss.JoinVertical(lipgloss.Left, body...))
}

// RenderSuccess formats a one-line confirmation in the theme's success color.
func RenderSuccess(msg, theme string) string {
	return GetTheme(theme).Styles().SuccessText.Render(msg)
}
