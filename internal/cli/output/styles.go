package output

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#1F5FA8", Dark: "#4A90D9"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6B6B6B", Dark: "#8A8A8A"}
	colorError   = lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#FF6B6B"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#B7791F", Dark: "#F5C26B"}
	colorInfo    = lipgloss.AdaptiveColor{Light: "#2B6CB0", Dark: "#7FB3F5"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#2F855A", Dark: "#68D391"}
	colorSource  = lipgloss.AdaptiveColor{Light: "#5A4FCF", Dark: "#9F95FF"}
)

// Styles are the text-mode styles bound to one lipgloss renderer.
type Styles struct {
	Header1   lipgloss.Style
	Header2   lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	ModelPath lipgloss.Style
	Source    lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Info      lipgloss.Style
	Success   lipgloss.Style
}

// NewStyles builds the styles for lr.
func NewStyles(lr *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1:   lr.NewStyle().Bold(true).Foreground(colorPrimary).Underline(true),
		Header2:   lr.NewStyle().Bold(true).Foreground(colorPrimary),
		Bold:      lr.NewStyle().Bold(true),
		Muted:     lr.NewStyle().Foreground(colorMuted),
		ModelPath: lr.NewStyle().Foreground(colorPrimary),
		Source:    lr.NewStyle().Foreground(colorSource),
		Error:     lr.NewStyle().Bold(true).Foreground(colorError),
		Warning:   lr.NewStyle().Foreground(colorWarning),
		Info:      lr.NewStyle().Foreground(colorInfo),
		Success:   lr.NewStyle().Foreground(colorSuccess),
	}
}
