// Package tui renders the artworks table in a terminal with bubbletea.
// It only draws view.State and forwards key presses as view events.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Sternrassler/artic-table/pkg/artwork"
	"github.com/Sternrassler/artic-table/pkg/logging"
	"github.com/Sternrassler/artic-table/pkg/view"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"
)

// TableView is the part of view.View the terminal UI drives.
type TableView interface {
	State() view.State
	Load(ctx context.Context) error
	Reload(ctx context.Context) error
	OnPageChange(ctx context.Context, firstIndex int) error
	OnRowToggle(id int64) (bool, error)
	OnHeaderAction()
	DismissDialog()
	ConfirmDialog(ctx context.Context, raw string) error
}

// StateMsg delivers a new view state to the program.
type StateMsg view.State

// opDoneMsg reports the outcome of a blocking view call.
type opDoneMsg struct {
	op  string
	err error
}

type column struct {
	title string
	width int
}

var columns = []column{
	{"", 3},
	{"Title", 30},
	{"Place of Origin", 16},
	{"Artist", 28},
	{"Inscriptions", 22},
	{"Start", 6},
	{"End", 6},
}

// Model is the bubbletea model.
type Model struct {
	ctx    context.Context
	view   TableView
	logger zerolog.Logger

	keys    keyMap
	table   table.Model
	input   textinput.Model
	spinner spinner.Model
	help    help.Model

	state  view.State
	status string
	width  int
	height int
}

// New creates the model. Call Init through a tea.Program to load page 1.
func New(ctx context.Context, v TableView) Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{Title: c.title, Width: c.width}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(14),
	)
	styles := table.DefaultStyles()
	styles.Header, styles.Selected = tableStyles()
	t.SetStyles(styles)

	in := textinput.New()
	in.Placeholder = "number of rows"
	in.CharLimit = 9
	in.Width = 20
	in.Prompt = "› "

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:     ctx,
		view:    v,
		logger:  logging.NewLogger(logging.ComponentTUI),
		keys:    newKeyMap(),
		table:   t,
		input:   in,
		spinner: sp,
		help:    help.New(),
		state:   v.State(),
	}
}

// Init loads the first page.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run("load", m.view.Load))
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		if h := msg.Height - 6; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case StateMsg:
		m.applyState(view.State(msg))
		return m, nil

	case opDoneMsg:
		m.status = ""
		if msg.err != nil && !m.state.DialogOpen {
			m.status = fmt.Sprintf("%s: %v", msg.op, msg.err)
			m.logger.Debug().Err(msg.err).Str("op", msg.op).Msg("Operation failed")
		}
		m.applyState(m.view.State())
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.state.DialogOpen {
			return m.updateDialog(msg)
		}
		return m.updateTable(msg)
	}
	return m, nil
}

func (m Model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.PrevPage):
		if m.state.CurrentPage <= 1 {
			return m, nil
		}
		first := (m.state.CurrentPage - 2) * m.state.PageSize
		return m, m.run("page", func(ctx context.Context) error {
			return m.view.OnPageChange(ctx, first)
		})

	case key.Matches(msg, m.keys.NextPage):
		if m.state.CurrentPage >= m.state.TotalPages {
			return m, nil
		}
		first := m.state.CurrentPage * m.state.PageSize
		return m, m.run("page", func(ctx context.Context) error {
			return m.view.OnPageChange(ctx, first)
		})

	case key.Matches(msg, m.keys.Reload):
		return m, m.run("reload", m.view.Reload)

	case key.Matches(msg, m.keys.Toggle):
		cursor := m.table.Cursor()
		if cursor < 0 || cursor >= len(m.state.Rows) {
			return m, nil
		}
		if _, err := m.view.OnRowToggle(m.state.Rows[cursor].ID); err != nil {
			m.status = err.Error()
		}
		m.applyState(m.view.State())
		return m, nil

	case key.Matches(msg, m.keys.Bulk):
		m.view.OnHeaderAction()
		m.input.Reset()
		m.applyState(m.view.State())
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Dismiss):
		m.view.DismissDialog()
		m.input.Blur()
		m.applyState(m.view.State())
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		if m.state.BulkBusy {
			return m, nil
		}
		raw := m.input.Value()
		return m, m.run("select", func(ctx context.Context) error {
			return m.view.ConfirmDialog(ctx, raw)
		})

	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// run wraps a blocking view call in a command.
func (m Model) run(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m *Model) applyState(s view.State) {
	m.state = s
	if !s.DialogOpen && m.input.Focused() {
		m.input.Blur()
	}

	rows := make([]table.Row, len(s.Rows))
	for i, r := range s.Rows {
		check := "[ ]"
		if s.IsSelected(r.ID) {
			check = "[x]"
		}
		rows[i] = table.Row{
			check,
			cell(r.Title, columns[1].width),
			cell(r.PlaceOfOrigin, columns[2].width),
			cell(r.ArtistDisplay, columns[3].width),
			cell(r.Inscriptions, columns[4].width),
			strconv.Itoa(r.DateStart),
			strconv.Itoa(r.DateEnd),
		}
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

// cell flattens s to one line and truncates it to width display cells.
func cell(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, width, "…")
}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Art Institute of Chicago · Artworks"))
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(errorStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))

	body := b.String()
	if !m.state.DialogOpen {
		return body
	}

	modal := m.dialogView()
	if m.width == 0 || m.height == 0 {
		return body + "\n" + modal
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
}

func (m Model) statusLine() string {
	s := m.state
	page := "-"
	if s.CurrentPage > 0 {
		page = fmt.Sprintf("%d/%d", s.CurrentPage, s.TotalPages)
	}

	parts := []string{
		"page " + page,
		fmt.Sprintf("%d artworks", s.TotalRecords),
		selectedCountStyle.Render(fmt.Sprintf("%d selected", s.SelectedCount)),
	}
	if s.Loading || s.BulkBusy {
		parts = append(parts, m.spinner.View()+" loading")
	}
	if s.LastErr != nil {
		parts = append(parts, errorStyle.Render("last fetch failed"))
	}
	return statusStyle.Render(strings.Join(parts, " · "))
}

func (m Model) dialogView() string {
	var b strings.Builder
	b.WriteString(modalTitleStyle.Render("Select first rows"))
	b.WriteString("\n")
	b.WriteString(m.input.View())

	switch {
	case m.state.BulkBusy:
		b.WriteString("\n\n" + m.spinner.View() + " fetching pages…")
	case m.state.DialogErr != nil:
		b.WriteString("\n\n" + errorStyle.Render(dialogError(m.state.DialogErr)))
	}

	b.WriteString(modalHintStyle.Render("\nenter select · esc cancel"))
	return modalStyle.Render(b.String())
}

func dialogError(err error) string {
	switch {
	case errors.Is(err, artwork.ErrInvalidInput):
		return "enter a whole number of rows, 0 or more"
	case errors.Is(err, artwork.ErrFetchFailed):
		return "could not fetch rows: " + err.Error()
	}
	return err.Error()
}
