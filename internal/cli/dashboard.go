package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/pveiga-dev/ai-employee/internal/vault"
)

// Dashboard panel indices.
const (
	panelQueue = iota
	panelPending
	panelActivity
	panelCount
)

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	// Data.
	counts  vault.QueueCounts
	pending []pendingSnapshot
	events  []eventSnapshot

	// State.
	loading bool
	err     error
}

type pendingSnapshot struct {
	priority  string
	subdomain string
	subject   string
	stale     bool
}

type eventSnapshot struct {
	time   string
	actor  string
	action string
	result string
}

// dataLoadedMsg carries loaded data back to the model.
type dataLoadedMsg struct {
	counts  vault.QueueCounts
	pending []pendingSnapshot
	events  []eventSnapshot
	err     error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	priCritical = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	priHigh     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	priMedium   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	priLow      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	resultSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	resultFailure = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	staleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{
		activePanel: panelQueue,
		loading:     true,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadData
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			m.loading = true
			return m, loadData
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.counts = msg.counts
		m.pending = msg.pending
		m.events = msg.events
		m.err = nil
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" AI Employee Dashboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Loading data...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	queuePanel := m.renderQueuePanel()
	pendingPanel := m.renderPendingPanel()
	activityPanel := m.renderActivityPanel()

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		// Horizontal layout: three columns.
		colWidth := availableWidth / 3
		queuePanel = m.applyPanelStyle(panelQueue, queuePanel, colWidth-4)
		pendingPanel = m.applyPanelStyle(panelPending, pendingPanel, colWidth-4)
		activityPanel = m.applyPanelStyle(panelActivity, activityPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, queuePanel, pendingPanel, activityPanel)
	} else {
		// Vertical layout: stacked.
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		queuePanel = m.applyPanelStyle(panelQueue, queuePanel, panelWidth)
		pendingPanel = m.applyPanelStyle(panelPending, pendingPanel, panelWidth)
		activityPanel = m.applyPanelStyle(panelActivity, activityPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, queuePanel, pendingPanel, activityPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderQueuePanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Queue"))
	b.WriteString("\n")

	c := m.counts
	rows := []struct {
		label string
		value int
	}{
		{"Needs Action", c.NeedsAction},
		{"Plans", c.Plans},
		{"Pending Approval", c.PendingApproval},
		{"Approved", c.Approved},
		{"Rejected", c.Rejected},
		{"Done today", c.DoneToday},
	}
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("  %-18s %d\n", r.label, r.value))
	}

	return b.String()
}

func (m dashboardModel) renderPendingPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Pending Approval"))
	b.WriteString("\n")

	if len(m.pending) == 0 {
		b.WriteString("  Nothing waiting for a decision.")
		return b.String()
	}

	for _, p := range m.pending {
		pri := styleForPriority(p.priority).Render(fmt.Sprintf("[%s]", p.priority))
		line := fmt.Sprintf("  %s %s", pri, truncate(p.subject, 40))
		if p.stale {
			line += " " + staleStyle.Render("STALE")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("\n  Total: %d request(s)", len(m.pending)))

	return b.String()
}

func (m dashboardModel) renderActivityPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Today's Activity"))
	b.WriteString("\n")

	if len(m.events) == 0 {
		b.WriteString("  No activity recorded today.")
		return b.String()
	}

	for _, e := range m.events {
		res := resultSuccess
		if e.result != "success" {
			res = resultFailure
		}
		b.WriteString(fmt.Sprintf("  %s %s %s %s\n",
			e.time, e.actor, truncate(e.action, 24), res.Render(e.result)))
	}

	return b.String()
}

func styleForPriority(priority string) lipgloss.Style {
	switch priority {
	case "critical":
		return priCritical
	case "high":
		return priHigh
	case "medium":
		return priMedium
	case "low":
		return priLow
	default:
		return lipgloss.NewStyle()
	}
}

func loadData() tea.Msg {
	result := dataLoadedMsg{}

	if V == nil {
		result.err = fmt.Errorf("vault not initialized")
		return result
	}
	result.counts = V.Counts()

	items, err := V.ListFolder(vault.FolderPendingApproval)
	if err != nil {
		result.err = fmt.Errorf("loading pending approvals: %w", err)
		return result
	}
	for _, it := range items {
		result.pending = append(result.pending, pendingSnapshot{
			priority:  string(it.Header.Priority),
			subdomain: it.Subdomain,
			subject:   it.Header.Subject,
			stale:     it.Header.Stale,
		})
	}

	if Audit != nil {
		entries, err := Audit.ReadDay(time.Now())
		if err == nil {
			// Newest first, capped to keep the panel scannable.
			for i := len(entries) - 1; i >= 0 && len(result.events) < 15; i-- {
				e := entries[i]
				stamp := e.Timestamp
				if t, perr := time.Parse(time.RFC3339, e.Timestamp); perr == nil {
					stamp = t.Local().Format("15:04")
				}
				result.events = append(result.events, eventSnapshot{
					time:   stamp,
					actor:  e.Actor,
					action: e.ActionType,
					result: e.Result,
				})
			}
		}
	}

	return result
}

var dashboardVault string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive TUI view of the queue and today's activity",
	Long: `Launch an interactive terminal dashboard showing folder counts,
requests waiting for approval, and today's audit trail.

Navigate between panels with Tab, refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := reinitIfSet(dashboardVault); err != nil {
			return err
		}
		if V == nil {
			return fmt.Errorf("vault not initialized")
		}
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardVault, "vault", "", "vault root directory (default: VAULT_PATH or current directory)")
	rootCmd.AddCommand(dashboardCmd)
}
