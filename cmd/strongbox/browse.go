package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/benaskins/strongbox/internal/binding"
	"github.com/benaskins/strongbox/internal/codec"
	"github.com/benaskins/strongbox/internal/logbuf"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse and edit secrets interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		// The alt screen owns the terminal, so log records go to a ring the
		// view renders instead of stderr. Set before the store captures its logger.
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logs := logbuf.New(50, level)
		slog.SetDefault(slog.New(logs))

		a, err := openApp("browse")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		m := newBrowseModel(a)
		m.logs = logs
		p := tea.NewProgram(m, tea.WithAltScreen())
		m.notify.program = p

		// Another strongbox process writing a secret also rewrites the
		// metadata file, so watching it is enough to pick up external edits.
		go func() {
			if err := binding.Watch(ctx, a.cfg.Metadata, m.group); err != nil {
				slog.Warn("watching metadata", "error", err)
			}
		}()

		_, err = p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	staleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

const mask = "••••••••"

type browseMode int

const (
	modeList browseMode = iota
	modeNewKey
	modeNewValue
	modeConfirmDelete
)

type refreshMsg struct{}

type valueMsg struct {
	key   string
	value string
	ok    bool
}

// notifier forwards observer callbacks into the program. Callbacks may fire
// on the event loop itself, so sends never block the caller.
type notifier struct {
	program *tea.Program
}

func (n *notifier) send(msg tea.Msg) {
	if n.program == nil {
		return
	}
	go n.program.Send(msg)
}

type refresherFunc func()

func (f refresherFunc) Refresh() { f() }

type browseModel struct {
	app    *app
	notify *notifier
	logs   *logbuf.Ring
	group  *binding.Group
	props  map[string]*binding.Property[string]

	keys     []string
	cursor   int
	revealed map[string]string
	mode     browseMode
	input    textinput.Model
	newKey   string
	status   string
	failed   bool
}

func newBrowseModel(a *app) *browseModel {
	ti := textinput.New()
	ti.CharLimit = 4096

	m := &browseModel{
		app:      a,
		notify:   &notifier{},
		group:    &binding.Group{},
		props:    make(map[string]*binding.Property[string]),
		revealed: make(map[string]string),
		input:    ti,
	}
	m.group.Add(refresherFunc(func() { m.notify.send(refreshMsg{}) }))
	m.reload()
	return m
}

// reload re-lists keys and binds any key seen for the first time.
func (m *browseModel) reload() {
	m.keys = m.app.plain.Keys()
	for _, k := range m.keys {
		if _, ok := m.props[k]; ok {
			continue
		}
		p := binding.New(m.app.plain, k, codec.String)
		key := k
		p.Subscribe(func(v string, ok bool) {
			m.notify.send(valueMsg{key: key, value: v, ok: ok})
		})
		m.props[k] = p
		m.group.Add(p)
	}
	if m.cursor >= len(m.keys) {
		m.cursor = max(len(m.keys)-1, 0)
	}
}

func (m *browseModel) selected() (string, bool) {
	if len(m.keys) == 0 {
		return "", false
	}
	return m.keys[m.cursor], true
}

func (m *browseModel) setStatus(s string, failed bool) {
	m.status, m.failed = s, failed
}

func (m *browseModel) Init() tea.Cmd {
	return nil
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		m.reload()
		return m, nil

	case valueMsg:
		if !msg.ok {
			delete(m.revealed, msg.key)
		} else if _, shown := m.revealed[msg.key]; shown {
			m.revealed[msg.key] = msg.value
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modeNewKey, modeNewValue:
			return m.updateInput(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		default:
			return m.updateList(msg)
		}
	}
	return m, nil
}

func (m *browseModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.keys)-1 {
			m.cursor++
		}
	case "enter", " ":
		key, ok := m.selected()
		if !ok {
			break
		}
		if _, shown := m.revealed[key]; shown {
			delete(m.revealed, key)
			break
		}
		m.reveal(key)
	case "n":
		m.mode = modeNewKey
		m.input.Reset()
		m.input.Placeholder = "key"
		m.input.EchoMode = textinput.EchoNormal
		m.setStatus("", false)
		return m, m.input.Focus()
	case "d":
		if _, ok := m.selected(); ok {
			m.mode = modeConfirmDelete
		}
	case "r":
		m.setStatus("refreshed", false)
		g := m.group
		return m, func() tea.Msg {
			g.Refresh()
			return nil
		}
	}
	return m, nil
}

// reveal reads through the audited store so every disclosure is logged.
func (m *browseModel) reveal(key string) {
	data, ok := m.app.store.Data(key)
	if !ok {
		m.setStatus(fmt.Sprintf("%s is gone", key), true)
		m.reload()
		return
	}
	if v, ok := codec.String.Decode(data); ok {
		m.revealed[key] = v
		return
	}
	hex, _ := codec.Lookup(codec.Bytes.Name())
	s, _ := hex.Format(data)
	m.revealed[key] = "0x" + s
}

func (m *browseModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		m.input.Blur()
		return m, nil
	case "enter":
		v := m.input.Value()
		if m.mode == modeNewKey {
			if strings.TrimSpace(v) == "" {
				m.setStatus("key cannot be empty", true)
				return m, nil
			}
			m.newKey = v
			m.mode = modeNewValue
			m.input.Reset()
			m.input.Placeholder = "value"
			m.input.EchoMode = textinput.EchoPassword
			return m, nil
		}

		key := m.newKey
		m.app.store.SetData(key, codec.String.Encode(v))
		m.input.Blur()
		m.input.Reset()
		m.mode = modeList
		m.reload()
		if p, ok := m.props[key]; ok {
			p.Refresh()
		}
		if got, ok := m.app.plain.Data(key); !ok || string(got) != v {
			m.setStatus(fmt.Sprintf("%s was not stored", key), true)
		} else {
			m.setStatus(fmt.Sprintf("%s stored", key), false)
			for i, k := range m.keys {
				if k == key {
					m.cursor = i
				}
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *browseModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key, ok := m.selected()
	m.mode = modeList
	if !ok {
		return m, nil
	}
	switch msg.String() {
	case "y", "Y":
		m.app.store.Delete(key)
		if p, ok := m.props[key]; ok {
			p.Refresh()
		}
		delete(m.revealed, key)
		m.reload()
		m.setStatus(fmt.Sprintf("%s deleted", key), false)
	default:
		m.setStatus("", false)
	}
	return m, nil
}

func (m *browseModel) View() string {
	var b strings.Builder

	scope := m.app.cfg.AccessGroup
	if scope == "" {
		scope = "default group"
	}
	b.WriteString(titleStyle.Render("strongbox") + dimStyle.Render(" · "+scope) + "\n\n")

	if len(m.keys) == 0 {
		b.WriteString(dimStyle.Render("  no secrets stored") + "\n")
	}

	meta := m.app.store.Metadata()
	for i, k := range m.keys {
		value := dimStyle.Render(mask)
		if v, shown := m.revealed[k]; shown {
			value = v
		}
		line := fmt.Sprintf("%-32s %s", k, value)
		if md := meta.Get(k); md != nil && md.RotationDue(time.Now().UTC()) {
			line += " " + staleStyle.Render("stale")
		}
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> ") + selectedStyle.Render(line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}

	b.WriteString("\n")
	switch m.mode {
	case modeNewKey, modeNewValue:
		b.WriteString(m.input.View() + "\n")
		b.WriteString(dimStyle.Render("enter confirm · esc cancel") + "\n")
	case modeConfirmDelete:
		key, _ := m.selected()
		b.WriteString(errorStyle.Render(fmt.Sprintf("delete %s? (y/N)", key)) + "\n")
	default:
		if m.status != "" {
			style := dimStyle
			if m.failed {
				style = errorStyle
			}
			b.WriteString(style.Render(m.status) + "\n")
		}
		if m.logs != nil {
			for _, r := range m.logs.Last(3) {
				style := dimStyle
				if r.Level >= slog.LevelWarn {
					style = staleStyle
				}
				b.WriteString(style.Render(r.String()) + "\n")
			}
		}
		b.WriteString(dimStyle.Render("↑/↓ move · enter reveal · n new · d delete · r refresh · q quit") + "\n")
	}
	return b.String()
}
