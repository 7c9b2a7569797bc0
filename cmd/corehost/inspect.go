package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/embercore/corehost/host"
	"github.com/embercore/corehost/hostenv"
	"github.com/embercore/corehost/locator"
	"github.com/embercore/corehost/tpa"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#87CEEB"))

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// inspection is everything the host would resolve before starting the
// runtime, gathered without executing anything.
type inspection struct {
	env        *hostenv.HostEnvironment
	settings   hostenv.Settings
	runtime    *locator.Handle
	runtimeErr error
	assembly   string
	trustList  []string
}

type inspectModel struct {
	env      *hostenv.HostEnvironment
	settings hostenv.Settings
	log      *zap.Logger

	view  viewport.Model
	info  *inspection
	ready bool
}

type inspectedMsg struct{ info *inspection }

func newInspectModel(env *hostenv.HostEnvironment, settings hostenv.Settings, log *zap.Logger) *inspectModel {
	return &inspectModel{env: env, settings: settings, log: log}
}

func (m *inspectModel) Init() tea.Cmd {
	return m.inspect
}

func (m *inspectModel) inspect() tea.Msg {
	ctx := context.Background()
	info := &inspection{env: m.env, settings: m.settings}

	info.assembly, _ = hostenv.AssemblyPath(m.env.HostPath)

	handle, err := locator.New(m.log).Locate(ctx, m.settings.RuntimeRoot, m.env.HostDir)
	if err != nil {
		info.runtimeErr = err
		return inspectedMsg{info: info}
	}
	info.runtime = handle

	list := tpa.NewBuilder([]string{m.settings.Libraries, handle.Dir}, tpa.WithLogger(m.log)).List()
	for _, entry := range strings.Split(list, tpa.ListSeparator) {
		if entry != "" {
			info.trustList = append(info.trustList, entry)
		}
	}
	return inspectedMsg{info: info}
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		if !m.ready {
			m.view = viewport.New(msg.Width, msg.Height-2)
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = msg.Height - 2
		}
		m.view.SetContent(m.content())

	case inspectedMsg:
		m.info = msg.info
		if m.ready {
			m.view.SetContent(m.content())
		}
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m *inspectModel) content() string {
	if m.info == nil {
		return "Resolving host environment..."
	}
	var b strings.Builder
	kv := func(k, v string) {
		b.WriteString("  ")
		b.WriteString(keyStyle.Render(k))
		b.WriteString(" = ")
		b.WriteString(v)
		b.WriteString("\n")
	}

	b.WriteString(sectionStyle.Render("Host"))
	b.WriteString("\n")
	kv("path", m.info.env.HostPath)
	kv("assembly", m.info.assembly)
	kv(hostenv.EnvRuntimeRoot, m.info.settings.RuntimeRoot)
	kv(hostenv.EnvLibraries, m.info.settings.Libraries)
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Runtime library"))
	b.WriteString("\n")
	if m.info.runtimeErr != nil {
		b.WriteString("  ")
		b.WriteString(errorStyle.Render(m.info.runtimeErr.Error()))
		b.WriteString("\n")
		return b.String()
	}
	kv("path", m.info.runtime.Path)
	kv("dir", m.info.runtime.Dir)
	kv("entry symbol", host.EntrySymbol)
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render(
		fmt.Sprintf("Trusted platform assemblies (%d)", len(m.info.trustList))))
	b.WriteString("\n")
	for _, entry := range m.info.trustList {
		b.WriteString("  ")
		b.WriteString(entry)
		b.WriteString("\n")
	}
	return b.String()
}

func (m *inspectModel) View() string {
	if !m.ready {
		return "Resolving host environment..."
	}
	return titleStyle.Render("corehost inspect") + " " + m.env.HostName + "\n" +
		m.view.View() + "\n" +
		helpStyle.Render("↑/↓ scroll • q quit")
}

func runInspect(env *hostenv.HostEnvironment, settings hostenv.Settings, log *zap.Logger) error {
	p := tea.NewProgram(newInspectModel(env, settings, log), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
