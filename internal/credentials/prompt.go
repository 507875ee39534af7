package credentials

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/stlpine/clustergo/pkg/models"
)

var (
	promptTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	promptHelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
)

// PromptSource implements spec §4.1 source 5: an interactive terminal
// prompt, reached only when stdin is attached to a terminal and the caller
// has declared interactive use via ClusterTarget.AllowInteractiveCredentials.
type PromptSource struct {
	allowInteractive bool

	// isTerminal is swappable for tests.
	isTerminal func() bool
}

func NewPromptSource(allowInteractive bool) *PromptSource {
	return &PromptSource{
		allowInteractive: allowInteractive,
		isTerminal:       func() bool { return term.IsTerminal(int(0)) },
	}
}

func (s *PromptSource) Name() string { return "interactive-prompt" }

func (s *PromptSource) Resolve(_ context.Context, target models.ClusterTarget) (models.CredentialBundle, error) {
	if !s.allowInteractive || !target.AllowInteractiveCredentials {
		return models.CredentialBundle{}, nil
	}
	if !s.isTerminal() {
		return models.CredentialBundle{}, nil
	}

	program := tea.NewProgram(newPromptModel(target.Host, target.Username))
	result, err := program.Run()
	if err != nil {
		return models.CredentialBundle{}, fmt.Errorf("interactive prompt: %w", err)
	}

	m, ok := result.(promptModel)
	if !ok || m.cancelled {
		return models.CredentialBundle{}, nil
	}
	return models.CredentialBundle{Password: m.input.Value()}, nil
}

// promptModel is a minimal bubbletea program asking for one password, in
// the teacher's TUI idiom (textinput + lipgloss title/help styling) rather
// than a bare fmt.Scanln.
type promptModel struct {
	host      string
	username  string
	input     textinput.Model
	cancelled bool
	done      bool
}

func newPromptModel(host, username string) promptModel {
	ti := textinput.New()
	ti.Placeholder = "password"
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '*'
	ti.Focus()
	ti.CharLimit = 4096
	ti.Width = 40

	return promptModel{host: host, username: username, input: ti}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	title := promptTitleStyle.Render(fmt.Sprintf("Credentials required for %s@%s", m.username, m.host))
	help := promptHelpStyle.Render("enter to submit · esc to cancel")
	return fmt.Sprintf("%s\n\n%s\n\n%s\n", title, m.input.View(), help)
}
