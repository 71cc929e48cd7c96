package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gocloud.dev/blob"

	"github.com/JaINTP/vdl/internal/downloader"
	"github.com/JaINTP/vdl/internal/marketplace"
	vdlprogress "github.com/JaINTP/vdl/internal/progress"
)

type focus int

const (
	focusInput focus = iota
	focusResults
)

// Messages produced by the search client and the download manager.
type (
	searchDoneMsg    struct{ exts []marketplace.Extension }
	searchErrMsg     struct{ err error }
	searchStoppedMsg struct{}

	dlProgressMsg struct {
		key        string
		downloaded int64
		total      int64
	}
	dlDoneMsg struct {
		key        string
		downloaded int64
		total      int64
	}
	dlErrMsg struct {
		url string
		err error
	}
)

// downloadRow is the render state of one download.
type downloadRow struct {
	key        string
	url        string
	bar        progress.Model
	downloaded int64
	total      int64
	done       bool
	failed     bool
	errText    string
}

// Options configures the screen.
type Options struct {
	PageSize    int
	ByPublisher bool
	ChunkSize   int
	RateLimit   int64
}

// Model is the bubbletea model for the search-and-download screen.
type Model struct {
	client  *marketplace.Client
	manager *downloader.Manager
	opts    Options
	events  chan tea.Msg

	focus       focus
	input       string
	byPublisher bool
	searching   bool
	status      string

	results []marketplace.Extension
	cursor  int
	detail  viewport.Model

	rows []*downloadRow

	width  int
	height int
}

// New creates the screen model. The download manager is constructed here so
// its error side channel feeds the screen instead of stderr.
func New(client *marketplace.Client, bucket *blob.Bucket, opts Options) Model {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}

	events := make(chan tea.Msg, 128)
	manager := downloader.New(bucket, downloader.Options{
		ChunkSize: opts.ChunkSize,
		RateLimit: opts.RateLimit,
		OnError: func(url string, err error) {
			sendEvent(events, dlErrMsg{url: url, err: err})
		},
	})

	detail := viewport.New(78, 8)
	detail.Style = detailStyle

	return Model{
		client:      client,
		manager:     manager,
		opts:        opts,
		events:      events,
		byPublisher: opts.ByPublisher,
		detail:      detail,
		status:      "Type a query and press enter.",
	}
}

// sendEvent pushes a message without blocking; download callbacks must not
// stall when the program is shutting down and nobody drains the channel.
func sendEvent(events chan<- tea.Msg, msg tea.Msg) {
	select {
	case events <- msg:
	default:
	}
}

// listen re-arms the event pump for one message.
func (m Model) listen() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return <-events
	}
}

func (m Model) Init() tea.Cmd {
	return m.listen()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.detail.Width = msg.Width - 4
		for _, row := range m.rows {
			row.bar.Width = msg.Width - 40
		}
		return m, nil

	case searchDoneMsg:
		m.searching = false
		m.results = msg.exts
		m.cursor = 0
		if len(msg.exts) == 0 {
			m.status = "No extensions found."
		} else {
			m.status = fmt.Sprintf("%d results. enter downloads the selected extension.", len(msg.exts))
			m.focus = focusResults
			m.syncDetail()
		}
		return m, nil

	case searchErrMsg:
		m.searching = false
		m.status = errorStyle.Render(fmt.Sprintf("Search failed: %v", msg.err))
		return m, nil

	case searchStoppedMsg:
		m.searching = false
		m.results = nil
		m.status = "Search stopped."
		return m, nil

	case dlProgressMsg:
		if row := m.row(msg.key); row != nil {
			row.downloaded = msg.downloaded
			row.total = msg.total
		}
		return m, m.listen()

	case dlDoneMsg:
		if row := m.row(msg.key); row != nil {
			row.downloaded = msg.downloaded
			row.total = msg.total
			row.done = true
		}
		return m, m.listen()

	case dlErrMsg:
		for _, row := range m.rows {
			if row.url == msg.url && !row.done && !row.failed {
				row.failed = true
				row.errText = msg.err.Error()
				break
			}
		}
		return m, m.listen()
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "ctrl+p":
		m.byPublisher = !m.byPublisher
		return m, nil

	case "tab":
		if m.focus == focusInput && len(m.results) > 0 {
			m.focus = focusResults
		} else {
			m.focus = focusInput
		}
		return m, nil

	case "esc":
		if m.searching {
			// Best-effort: the flag wins unless the response already landed.
			m.client.Stop()
			m.status = "Stopping search..."
			return m, nil
		}
		m.focus = focusInput
		return m, nil

	case "enter":
		if m.focus == focusInput {
			return m.startSearch()
		}
		return m.startDownload()
	}

	// Navigation keys act on the result list; everything else is typing.
	if m.focus == focusResults {
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				m.syncDetail()
			}
		case "down", "j":
			if m.cursor < len(m.results)-1 {
				m.cursor++
				m.syncDetail()
			}
		case "q":
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.Type {
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeyRunes, tea.KeySpace:
		m.input += string(msg.Runes)
	}
	return m, nil
}

func (m Model) startSearch() (tea.Model, tea.Cmd) {
	query := strings.TrimSpace(m.input)
	if query == "" {
		m.status = "Nothing to search for."
		return m, nil
	}
	if m.searching {
		return m, nil
	}

	m.searching = true
	m.status = "Searching..."

	client := m.client
	q := marketplace.Query{
		Text:        query,
		ByPublisher: m.byPublisher,
		PageSize:    m.opts.PageSize,
	}
	return m, func() tea.Msg {
		exts, err := client.Search(context.Background(), q)
		if errors.Is(err, marketplace.ErrStopped) {
			return searchStoppedMsg{}
		}
		if err != nil {
			return searchErrMsg{err: err}
		}
		return searchDoneMsg{exts: exts}
	}
}

func (m Model) startDownload() (tea.Model, tea.Cmd) {
	if m.cursor >= len(m.results) {
		return m, nil
	}
	ext := m.results[m.cursor]

	if !ext.Downloadable() {
		m.status = errorStyle.Render(fmt.Sprintf("%s has no VSIX package.", ext.Name))
		return m, nil
	}

	key := ext.FileName()
	if row := m.row(key); row != nil && !row.failed {
		m.status = fmt.Sprintf("%s is already being downloaded.", key)
		return m, nil
	}

	row := &downloadRow{
		key: key,
		url: ext.DownloadURL,
		bar: progress.New(progress.WithDefaultGradient()),
	}
	if m.width > 40 {
		row.bar.Width = m.width - 40
	}
	m.rows = append(m.rows, row)
	m.status = fmt.Sprintf("Downloading %s...", key)

	events := m.events
	tracker := vdlprogress.NewTracker(100 * time.Millisecond)
	m.manager.Start(ext.DownloadURL, key,
		func(n, total int64) {
			if _, ok := tracker.Update(n, total); ok {
				sendEvent(events, dlProgressMsg{key: key, downloaded: n, total: total})
			}
		},
		func(n, total int64) {
			sendEvent(events, dlDoneMsg{key: key, downloaded: n, total: total})
		},
	)
	return m, nil
}

// row finds the latest download row for key.
func (m Model) row(key string) *downloadRow {
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].key == key {
			return m.rows[i]
		}
	}
	return nil
}

func (m *Model) syncDetail() {
	if m.cursor < len(m.results) {
		m.detail.SetContent(m.results[m.cursor].Summary())
		m.detail.GotoTop()
	}
}

func (m Model) View() string {
	var sections []string

	sections = append(sections, titleStyle.Render("vdl — Visual Studio Marketplace downloader"))
	sections = append(sections, m.viewInput())

	if m.searching {
		sections = append(sections, dimStyle.Render("Searching... (esc to stop)"))
	} else if len(m.results) > 0 {
		sections = append(sections, m.viewResults(), m.detail.View())
	}

	if len(m.rows) > 0 {
		sections = append(sections, sectionStyle.Render("Downloads"), m.viewDownloads())
	}

	sections = append(sections,
		dimStyle.Render(m.status),
		dimStyle.Render("tab focus | ctrl+p toggle publisher match | esc back | ctrl+c quit"),
	)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) viewInput() string {
	mode := "name"
	if m.byPublisher {
		mode = "publisher"
	}
	cursor := ""
	if m.focus == focusInput {
		cursor = "_"
	}
	return fmt.Sprintf("%s %s%s", promptStyle.Render(fmt.Sprintf("Search (%s) >", mode)), m.input, cursor)
}

func (m Model) viewResults() string {
	var b strings.Builder
	for i, ext := range m.results {
		line := fmt.Sprintf("%-32s %-12s %s", ext.Name, ext.Version, ext.Publisher)
		if !ext.Downloadable() {
			line += dimStyle.Render("  (no package)")
		}
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) viewDownloads() string {
	var b strings.Builder
	for _, row := range m.rows {
		switch {
		case row.failed:
			fmt.Fprintf(&b, "%-40s %s\n", row.key, errorStyle.Render("failed: "+row.errText))
		case row.done:
			fmt.Fprintf(&b, "%-40s done (%s)\n", row.key, vdlprogress.FormatBytes(row.downloaded))
		case row.total > 0:
			frac := float64(row.downloaded) / float64(row.total)
			fmt.Fprintf(&b, "%-40s %s %s / %s\n",
				row.key,
				row.bar.ViewAs(frac),
				vdlprogress.FormatBytes(row.downloaded),
				vdlprogress.FormatBytes(row.total),
			)
		default:
			fmt.Fprintf(&b, "%-40s %s\n", row.key, vdlprogress.FormatBytes(row.downloaded))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
