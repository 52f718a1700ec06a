package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nixlim/grouptop/internal/config"
	"github.com/nixlim/grouptop/internal/engine"
	"github.com/nixlim/grouptop/internal/grouptree"
	"github.com/nixlim/grouptop/internal/period"
	"github.com/nixlim/grouptop/internal/report"
	"github.com/nixlim/grouptop/internal/selection"
	"github.com/nixlim/grouptop/internal/storage"
)

type ViewState int

const (
	ViewReport ViewState = iota
	ViewHistory
)

// fetchResultMsg carries a finished engine request back to the UI loop.
type fetchResultMsg struct {
	seq     uint64
	poll    bool
	query   engine.Query
	started time.Time
	resp    engine.Response
	err     error
}

// realtimeTickMsg fires a realtime poll. gen invalidates ticks scheduled
// before realtime was last switched.
type realtimeTickMsg struct {
	gen int
	at  time.Time
}

type Fetcher interface {
	Fetch(ctx context.Context, q engine.Query, now time.Time) (engine.Response, error)
}

type FetchRecorder interface {
	RecordFetch(storage.FetchRecord)
}

type HistoryProvider interface {
	QueryDailySummaries(days int) []storage.DailySummary
	RecentFetches(limit int) []storage.FetchRecord
	DroppedWrites() int64
}

type CellErrorCounter interface {
	FormattingError(column string)
}

type AlertProvider interface {
	FailingReports() int
}

type Model struct {
	view     ViewState
	width    int
	height   int
	keys     KeyMap
	quitting bool

	cfg config.Config

	session    *report.Session
	fetcher    Fetcher
	recorders  []FetchRecorder
	history    HistoryProvider
	cellErrors CellErrorCounter
	alerts     AlertProvider

	spinner   spinner.Model
	menu      MenuState
	colCursor int

	detailOverlay   bool
	detailContent   string
	detailTitle     string
	detailScrollPos int

	isPersistent bool

	historyGranularity string
	historyScrollPos   int

	realtimeInterval time.Duration
	fetchTimeout     time.Duration
	tickGen          int

	now        func() time.Time
	onShutdown func()
}

func NewModel(cfg config.Config, opts ...ModelOption) Model {
	attempts := cfg.Engine.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	m := Model{
		view:               ViewReport,
		keys:               DefaultKeyMap(),
		cfg:                cfg,
		spinner:            spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
		historyGranularity: "daily",
		realtimeInterval:   cfg.RealtimeInterval(),
		fetchTimeout:       time.Duration(attempts)*cfg.Timeout() + 5*time.Second,
		now:                time.Now,
	}

	for _, opt := range opts {
		opt(&m)
	}

	if m.session == nil {
		m.session = report.NewSession(InitialState(cfg))
	}
	if m.realtimeInterval <= 0 {
		m.realtimeInterval = 10 * time.Second
	}

	return m
}

// InitialState is the empty report state described by cfg.
func InitialState(cfg config.Config) report.State {
	cols := selection.NewColumns(cfg.AllColumns(), cfg.Report.Columns)
	return report.New(cfg.Query(), cols, cfg.Formatting, cfg.Display.RowHeight, cfg.Display.BufferRows)
}

type ModelOption func(*Model)

func WithSession(s *report.Session) ModelOption {
	return func(m *Model) { m.session = s }
}

func WithFetcher(f Fetcher) ModelOption {
	return func(m *Model) { m.fetcher = f }
}

func WithFetchRecorders(r ...FetchRecorder) ModelOption {
	return func(m *Model) { m.recorders = append(m.recorders, r...) }
}

func WithHistoryProvider(h HistoryProvider) ModelOption {
	return func(m *Model) { m.history = h }
}

func WithCellErrorCounter(c CellErrorCounter) ModelOption {
	return func(m *Model) { m.cellErrors = c }
}

func WithAlertProvider(a AlertProvider) ModelOption {
	return func(m *Model) { m.alerts = a }
}

func WithStartView(v ViewState) ModelOption {
	return func(m *Model) { m.view = v }
}

func WithOnShutdown(fn func()) ModelOption {
	return func(m *Model) { m.onShutdown = fn }
}

func WithPersistenceFlag(isPersistent bool) ModelOption {
	return func(m *Model) { m.isPersistent = isPersistent }
}

func WithClock(now func() time.Time) ModelOption {
	return func(m *Model) { m.now = now }
}

// Session returns the report session the model drives.
func (m Model) Session() *report.Session {
	return m.session
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.refetch(true)}
	if m.session.State().Query.Realtime {
		cmds = append(cmds, m.realtimeTickCmd())
	}
	return tea.Batch(cmds...)
}

func (m Model) realtimeTickCmd() tea.Cmd {
	gen := m.tickGen
	return tea.Tick(m.realtimeInterval, func(t time.Time) tea.Msg {
		return realtimeTickMsg{gen: gen, at: t}
	})
}

// refetch reissues the current query. A full refetch hides the old tree.
func (m Model) refetch(full bool) tea.Cmd {
	m.session.Update(func(s report.State) report.State { return s.BeginFetch(full) })
	return m.issueFetch()
}

// changeQuery switches to q, resetting selection and scroll, and fetches it.
func (m Model) changeQuery(q engine.Query) tea.Cmd {
	m.session.Update(func(s report.State) report.State { return s.ChangeQuery(q) })
	return m.issueFetch()
}

func (m Model) issueFetch() tea.Cmd {
	seq := m.session.Tracker().Start()
	return m.fetchCmd(seq, false, m.session.State().Query)
}

func (m Model) fetchCmd(seq uint64, poll bool, q engine.Query) tea.Cmd {
	fetcher := m.fetcher
	timeout := m.fetchTimeout
	now := m.now
	return func() tea.Msg {
		started := now()
		if fetcher == nil {
			return fetchResultMsg{seq: seq, poll: poll, query: q, started: started, err: errNoEngine}
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		resp, err := fetcher.Fetch(ctx, q, started)
		return fetchResultMsg{seq: seq, poll: poll, query: q, started: started, resp: resp, err: err}
	}
}

var errNoEngine = errors.New("no engine configured")

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.session.Update(func(s report.State) report.State { return s.SetViewport(m.tableHeight()) })
		return m, nil

	case fetchResultMsg:
		return m.handleFetchResult(msg)

	case realtimeTickMsg:
		return m.handleRealtimeTick(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleFetchResult(msg fetchResultMsg) (tea.Model, tea.Cmd) {
	latest := m.session.Tracker().Finish(msg.seq, msg.poll)
	rec := storage.NewFetchRecord(msg.query, msg.resp, msg.started, msg.err)

	if !latest {
		log.Debug("dropping stale response", "request_id", rec.RequestID, "seq", msg.seq)
		m.record(rec.Stale())
		return m, nil
	}

	if msg.err != nil {
		log.Error("fetch failed", "report", rec.ReportID, "request_id", rec.RequestID, "kind", rec.ErrorKind, "err", msg.err)
		m.session.Update(func(s report.State) report.State { return s.ApplyError(msg.err) })
		m.record(rec)
		return m, nil
	}

	st := m.session.Update(func(s report.State) report.State {
		return s.ApplyRows(msg.resp.Rows, msg.resp.EmptyRange, m.now())
	})
	if st.Err != nil {
		log.Error("rejected malformed response", "request_id", rec.RequestID, "err", st.Err)
		rec = storage.NewFetchRecord(msg.query, msg.resp, msg.started, st.Err)
	} else {
		m.auditFormatting(st)
	}
	m.record(rec)
	m.colCursor = clampInt(m.colCursor, 0, len(st.Columns.Visible())-1)
	return m, nil
}

func (m Model) record(rec storage.FetchRecord) {
	for _, r := range m.recorders {
		r.RecordFetch(rec)
	}
}

// auditFormatting reports every cell whose rule failed on the new rows, once
// per response rather than once per frame.
func (m Model) auditFormatting(st report.State) {
	if len(st.Rules) == 0 {
		return
	}
	now := m.now()
	for _, row := range st.Rows {
		for col := range st.Rules {
			res := st.Rules.Cell(col, row.Value(col), now)
			if res.Err == nil {
				continue
			}
			log.Debug("cell formatting failed", "column", col, "row", row.Key(), "err", res.Err)
			if m.cellErrors != nil {
				m.cellErrors.FormattingError(col)
			}
		}
	}
}

func (m Model) handleRealtimeTick(msg realtimeTickMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.tickGen {
		return m, nil
	}
	st := m.session.State()
	if !st.Query.Realtime {
		return m, nil
	}

	cmds := []tea.Cmd{m.realtimeTickCmd()}
	if seq, ok := m.session.Tracker().StartPoll(); ok {
		st = m.session.Update(func(s report.State) report.State { return s.BeginFetch(false) })
		cmds = append(cmds, m.fetchCmd(seq, true, st.Query))
	} else {
		log.Debug("skipping realtime poll, previous fetch still in flight")
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.detailOverlay {
		return m.handleDetailOverlayKey(msg)
	}

	if m.menu.Active {
		return m.handleMenuKey(msg)
	}

	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		if m.onShutdown != nil {
			m.onShutdown()
		}
		return m, tea.Quit
	}

	switch m.view {
	case ViewReport:
		return m.handleReportKey(msg)
	case ViewHistory:
		return m.handleHistoryKey(msg)
	}

	return m, nil
}

func (m Model) handleReportKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.session.State()

	switch {
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.PageUp):
		m.moveCursor(-m.pageRows())
	case key.Matches(msg, m.keys.PageDown):
		m.moveCursor(m.pageRows())
	case key.Matches(msg, m.keys.Top):
		m.moveCursor(-len(st.Visible))
	case key.Matches(msg, m.keys.Bottom):
		m.moveCursor(len(st.Visible))

	case key.Matches(msg, m.keys.Enter):
		m.toggleCursor()
	case key.Matches(msg, m.keys.Expand):
		if row, ok := st.CursorRow(); ok && row.HasChildren && !row.Expanded {
			m.toggleCursor()
		}
	case key.Matches(msg, m.keys.Collapse):
		m.collapseOrParent()
	case key.Matches(msg, m.keys.ExpandAll):
		m.session.Update(report.State.ExpandAll)
	case key.Matches(msg, m.keys.CollapseAll):
		m.session.Update(report.State.CollapseAll)

	case key.Matches(msg, m.keys.Select):
		m.session.Update(report.State.ToggleSelect)
	case key.Matches(msg, m.keys.SelectAll):
		m.session.Update(report.State.SelectAllVisible)
	case key.Matches(msg, m.keys.ClearSel):
		m.session.Update(report.State.ClearSelection)

	case key.Matches(msg, m.keys.PrevColumn):
		m.colCursor = clampInt(m.colCursor-1, 0, len(st.Columns.Visible())-1)
	case key.Matches(msg, m.keys.NextColumn):
		m.colCursor = clampInt(m.colCursor+1, 0, len(st.Columns.Visible())-1)
	case key.Matches(msg, m.keys.Sort):
		cols := st.Columns.Visible()
		if m.colCursor >= 0 && m.colCursor < len(cols) {
			col := cols[m.colCursor]
			m.session.Update(func(s report.State) report.State { return s.SortBy(col) })
		}

	case key.Matches(msg, m.keys.Columns):
		m.menu = NewColumnMenu(st.Columns)
	case key.Matches(msg, m.keys.Granularity):
		m.menu = NewGranularityMenu(st.Query.Granularity)
	case key.Matches(msg, m.keys.Period):
		q := st.Query
		q.Period = period.NextPreset(q.Period)
		return m, m.changeQuery(q)
	case key.Matches(msg, m.keys.Realtime):
		q := st.Query
		q.Realtime = !q.Realtime
		m.tickGen++
		cmds := []tea.Cmd{m.changeQuery(q)}
		if q.Realtime {
			cmds = append(cmds, m.realtimeTickCmd())
		}
		return m, tea.Batch(cmds...)
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refetch(false)

	case key.Matches(msg, m.keys.Detail):
		if row, ok := st.CursorRow(); ok {
			m.detailOverlay = true
			m.detailTitle = "Row Detail"
			m.detailContent = m.formatRowDetail(st, row)
			m.detailScrollPos = 0
		}

	case key.Matches(msg, m.keys.Tab):
		m.view = ViewHistory
		m.historyScrollPos = 0
	}

	return m, nil
}

func (m Model) moveCursor(delta int) {
	m.session.Update(func(s report.State) report.State { return s.MoveCursor(delta) })
}

func (m Model) toggleCursor() {
	if _, err := m.session.TryUpdate(report.State.ToggleCursor); err != nil {
		log.Debug("toggle failed", "err", err)
	}
}

// collapseOrParent closes an open group, or moves to the parent of a row
// that is already closed.
func (m Model) collapseOrParent() {
	st := m.session.State()
	row, ok := st.CursorRow()
	if !ok {
		return
	}
	if row.HasChildren && row.Expanded {
		m.toggleCursor()
		return
	}
	path := row.Row.ParentPath
	if len(path) == 0 {
		return
	}
	parent := grouptree.NodeKey(path[:len(path)-1], path[len(path)-1])
	if idx := grouptree.IndexOf(st.Visible, parent); idx >= 0 {
		m.moveCursor(idx - st.Cursor)
	}
}

func (m Model) pageRows() int {
	st := m.session.State()
	rh := st.RowHeight
	if rh <= 0 {
		rh = 1
	}
	n := st.Viewport / rh
	if n < 1 {
		n = 1
	}
	return n
}

func (m Model) handleDetailOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Enter), key.Matches(msg, m.keys.Detail):
		m.detailOverlay = false
		m.detailContent = ""
		m.detailTitle = ""
		m.detailScrollPos = 0
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.detailScrollPos > 0 {
			m.detailScrollPos--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.detailScrollPos++
		return m, nil
	}

	return m, nil
}

func (m Model) formatRowDetail(st report.State, row grouptree.VisibleRow) string {
	r := row.Row
	var lines []string
	lines = append(lines, "Key:       "+row.Key)
	lines = append(lines, fmt.Sprintf("Level:     %d", r.GroupLevel))
	if r.GroupByField != "" {
		lines = append(lines, "Group by:  "+r.GroupByField)
	}
	if row.HasChildren {
		state := "collapsed"
		if row.Expanded {
			state = "expanded"
		}
		lines = append(lines, "Group:     "+state)
	}
	if st.Selection.Has(row.Key) {
		lines = append(lines, "Selected:  yes")
	}
	lines = append(lines, "")
	lines = append(lines, "Fields:")

	names := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	now := m.now()
	for _, k := range names {
		res := st.Rules.Cell(k, r.Fields[k], now)
		line := fmt.Sprintf("  %-20s %s", k, res.Text)
		if res.Err != nil {
			line += "  (" + res.Err.Error() + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Tab), key.Matches(msg, m.keys.Escape):
		m.view = ViewReport
		return m, nil
	case key.Matches(msg, m.keys.Up):
		if m.historyScrollPos > 0 {
			m.historyScrollPos--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.historyScrollPos++
		return m, nil
	}

	if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
		switch msg.Runes[0] {
		case 'd':
			m.historyGranularity = "daily"
			m.historyScrollPos = 0
			return m, nil
		case 'w':
			m.historyGranularity = "weekly"
			m.historyScrollPos = 0
			return m, nil
		case 'm':
			m.historyGranularity = "monthly"
			m.historyScrollPos = 0
			return m, nil
		}
	}

	return m, nil
}

func (m Model) handleMenuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.menu.Active = false
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.menu.Cursor > 0 {
			m.menu.Cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.menu.Cursor < len(m.menu.Options)-1 {
			m.menu.Cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter), key.Matches(msg, m.keys.Select):
		opt, ok := m.menu.Selected()
		if !ok {
			return m, nil
		}
		if m.menu.Kind == menuColumns {
			st := m.session.Update(func(s report.State) report.State { return s.ToggleColumn(opt.Key) })
			cursor := m.menu.Cursor
			m.menu = NewColumnMenu(st.Columns)
			m.menu.Cursor = cursor
			m.colCursor = clampInt(m.colCursor, 0, len(st.Columns.Visible())-1)
			return m, nil
		}

		m.menu.Active = false
		q := m.session.State().Query
		if q.Granularity == opt.Key {
			return m, nil
		}
		q.Granularity = opt.Key
		return m, m.changeQuery(q)
	}
	return m, nil
}

func (m Model) headerIndicators() string {
	var parts []string
	if !m.isPersistent {
		parts = append(parts, "[No persistence]")
	}
	if m.history != nil && m.history.DroppedWrites() > 0 {
		parts = append(parts, "[!] Writes dropped")
	}
	if m.alerts != nil {
		if n := m.alerts.FailingReports(); n > 0 {
			parts = append(parts, fmt.Sprintf("[!] %d failing", n))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + dimStyle.Render(strings.Join(parts, " "))
}

func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var output string
	switch m.view {
	case ViewReport:
		output = m.renderReport()
	case ViewHistory:
		output = m.renderHistory()
	}

	if m.height > 0 {
		lines := strings.Split(output, "\n")
		if len(lines) > m.height {
			lines = lines[:m.height]
			output = strings.Join(lines, "\n")
		}
	}

	return output
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
