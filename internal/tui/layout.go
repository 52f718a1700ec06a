package tui

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nixlim/grouptop/internal/format"
	"github.com/nixlim/grouptop/internal/grouptree"
	"github.com/nixlim/grouptop/internal/period"
	"github.com/nixlim/grouptop/internal/report"
)

const (
	minWidth  = 40
	minHeight = 6

	headerHeight       = 1
	columnHeaderHeight = 1
	statusHeight       = 1

	minLabelWidth = 16
	maxLabelWidth = 40
	minCellWidth  = 8
	maxCellWidth  = 18
)

// tableGeometry is the column layout for one frame.
type tableGeometry struct {
	labelW int
	cellW  []int
}

func computeGeometry(totalW int, columns []string) tableGeometry {
	if totalW < minWidth {
		totalW = minWidth
	}

	g := tableGeometry{labelW: totalW * 35 / 100}
	if g.labelW < minLabelWidth {
		g.labelW = minLabelWidth
	}
	if g.labelW > maxLabelWidth {
		g.labelW = maxLabelWidth
	}

	if len(columns) == 0 {
		return g
	}
	rest := totalW - g.labelW - 2
	w := rest / len(columns)
	if w < minCellWidth {
		w = minCellWidth
	}
	if w > maxCellWidth {
		w = maxCellWidth
	}
	g.cellW = make([]int, len(columns))
	for i := range g.cellW {
		g.cellW[i] = w
	}
	return g
}

// tableHeight is the number of lines left for table rows.
func (m Model) tableHeight() int {
	h := m.height
	if h < minHeight {
		h = minHeight
	}
	return h - headerHeight - columnHeaderHeight - statusHeight
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("69"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	columnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("69"))

	focusColumnStyle = lipgloss.NewStyle().
				Bold(true).
				Underline(true).
				Foreground(lipgloss.Color("15"))

	groupLabelStyle = lipgloss.NewStyle().
			Bold(true)

	selectMarkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	goodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226"))

	badStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	errorTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("226"))

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("69"))

	skeletonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("237"))

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	menuStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)

	detailOverlayStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("69")).
				Padding(1, 2)
)

// cellStyle maps a formatting style name onto a lipgloss style.
func cellStyle(name string) lipgloss.Style {
	switch name {
	case "":
		return lipgloss.NewStyle()
	case format.StyleGood:
		return goodStyle
	case format.StyleWarn:
		return warnStyle
	case format.StyleBad:
		return badStyle
	case format.StyleDim:
		return dimStyle
	case format.StyleBold:
		return groupLabelStyle
	}
	if strings.HasPrefix(name, "#") {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(name))
	}
	if _, err := strconv.Atoi(name); err == nil {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(name))
	}
	return lipgloss.NewStyle()
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripAnsi(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func fit(s string, w int, align lipgloss.Position) string {
	return lipgloss.NewStyle().Width(w).MaxWidth(w).Align(align).Render(s)
}

func (m Model) renderReport() string {
	st := m.session.State()
	cols := st.Columns.Visible()
	geo := computeGeometry(m.width, cols)

	var sections []string
	sections = append(sections, m.renderHeader(st))
	sections = append(sections, m.renderColumnHeader(st, cols, geo))
	sections = append(sections, m.renderBody(st, cols, geo))
	sections = append(sections, m.renderStatus(st))

	layout := strings.Join(sections, "\n")

	if m.menu.Active {
		layout = m.overlayMenu(layout)
	}

	if m.detailOverlay {
		layout = m.overlayDetail(layout)
	}

	return layout
}

func (m Model) renderHeader(st report.State) string {
	title := " grouptop"
	q := st.Query

	var viewLabel string
	if q.Realtime {
		viewLabel = " [Realtime]"
	} else {
		viewLabel = " [Report " + q.ReportID + "]"
	}
	viewLabel += " " + q.Period + " · " + period.Granularity(q.Granularity).Label()
	if len(q.GroupBy) > 0 {
		viewLabel += " · by " + strings.Join(q.GroupBy, " › ")
	}

	indicators := m.headerIndicators()
	help := "c:Cols u:Gran p:Period R:Live Tab:History q:Quit "

	padding := m.width - lipgloss.Width(title) - lipgloss.Width(viewLabel) - lipgloss.Width(indicators) - lipgloss.Width(help)
	if padding < 0 {
		// Help goes first on narrow terminals.
		padding += lipgloss.Width(help)
		help = ""
	}
	if padding < 0 {
		padding = 0
	}

	return headerStyle.Width(m.width).Render(title + viewLabel + indicators + strings.Repeat(" ", padding) + help)
}

func (m Model) renderColumnHeader(st report.State, cols []string, geo tableGeometry) string {
	var sb strings.Builder
	sb.WriteString(columnHeaderStyle.Render(fit("  Group", geo.labelW+2, lipgloss.Left)))
	for i, col := range cols {
		label := col + st.Sort.Indicator(col)
		cell := fit(label, geo.cellW[i], lipgloss.Right)
		if i == m.colCursor {
			sb.WriteString(focusColumnStyle.Render(cell))
		} else {
			sb.WriteString(columnHeaderStyle.Render(cell))
		}
	}
	return sb.String()
}

func (m Model) renderBody(st report.State, cols []string, geo tableGeometry) string {
	height := m.tableHeight()
	var lines []string

	switch {
	case st.Err != nil:
		lines = m.renderErrorState(st.Err)
	case st.Skeleton || (st.Loading && st.Tree == nil):
		lines = m.renderSkeleton(cols, geo, height)
	case len(st.Visible) == 0:
		msg := "  No rows"
		if st.EmptyRange {
			msg = "  The selected period is empty"
		}
		lines = []string{"", dimStyle.Render(msg)}
	default:
		lines = m.renderRows(st, cols, geo, height)
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderErrorState(err error) []string {
	return []string{
		"",
		"  " + errorTitleStyle.Render(report.Title(err)),
		"",
		"  " + err.Error(),
		"",
		dimStyle.Render("  r: retry  u/p: change query"),
	}
}

func (m Model) renderSkeleton(cols []string, geo tableGeometry, height int) []string {
	lines := []string{"  " + m.spinner.View() + " Loading..."}
	for i := 1; i < height; i++ {
		var sb strings.Builder
		bar := strings.Repeat("░", (geo.labelW-4)*(3+i%3)/5)
		sb.WriteString(fit("  "+bar, geo.labelW+2, lipgloss.Left))
		for j := range cols {
			sb.WriteString(fit("░░░░", geo.cellW[j], lipgloss.Right))
		}
		lines = append(lines, skeletonStyle.Render(sb.String()))
	}
	return lines
}

// renderRows draws the materialised window and cuts it down to the lines
// inside the viewport.
func (m Model) renderRows(st report.State, cols []string, geo tableGeometry, height int) []string {
	rows, first := st.WindowRows()
	rh := st.RowHeight
	if rh <= 0 {
		rh = 1
	}

	lines := make([]string, 0, len(rows)*rh)
	for i, row := range rows {
		lines = append(lines, m.renderRow(st, row, first+i, cols, geo))
		for k := 1; k < rh; k++ {
			lines = append(lines, "")
		}
	}

	skip := st.ScrollOffset - first*rh
	if skip < 0 {
		skip = 0
	}
	if skip > len(lines) {
		skip = len(lines)
	}
	lines = lines[skip:]
	if len(lines) > height {
		lines = lines[:height]
	}
	return lines
}

func (m Model) renderRow(st report.State, row grouptree.VisibleRow, idx int, cols []string, geo tableGeometry) string {
	mark := "  "
	if st.Selection.Has(row.Key) {
		mark = selectMarkStyle.Render("● ")
	}

	expander := "  "
	if row.HasChildren {
		if row.Expanded {
			expander = "▾ "
		} else {
			expander = "▸ "
		}
	}
	label := strings.Repeat("  ", row.Depth) + expander + row.Row.Label()
	labelCell := fit(label, geo.labelW, lipgloss.Left)
	if row.HasChildren {
		labelCell = groupLabelStyle.Render(labelCell)
	}

	var sb strings.Builder
	sb.WriteString(mark)
	sb.WriteString(labelCell)

	now := m.now()
	for i, col := range cols {
		res := st.Rules.Cell(col, row.Row.Value(col), now)
		sb.WriteString(cellStyle(res.Style).Render(fit(res.Text, geo.cellW[i], lipgloss.Right)))
	}

	line := sb.String()
	if idx == st.Cursor {
		return cursorStyle.Render(stripAnsi(line))
	}
	return line
}

func (m Model) renderStatus(st report.State) string {
	if st.Banner != nil {
		msg := " refresh failed: " + st.Banner.Error()
		if !st.LoadedAt.IsZero() {
			msg += " (showing data from " + humanize.Time(st.LoadedAt) + ")"
		}
		return bannerStyle.Width(m.width).Render(msg)
	}

	var parts []string
	if len(st.Visible) > 0 {
		parts = append(parts, fmt.Sprintf("row %d/%d", st.Cursor+1, len(st.Visible)))
	}
	parts = append(parts, fmt.Sprintf("%d groups", len(st.Tree.GroupKeys())))
	if n := st.Selection.Len(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d selected", n))
	}
	if st.Sort.Active() {
		parts = append(parts, "sorted by "+st.Sort.Column+st.Sort.Indicator(st.Sort.Column))
	}
	if st.Loading && !st.Skeleton {
		parts = append(parts, m.spinner.View()+" refreshing")
	} else if !st.LoadedAt.IsZero() {
		parts = append(parts, "updated "+humanize.Time(st.LoadedAt))
	}
	return statusBarStyle.Render(" " + strings.Join(parts, " · "))
}

func (m Model) overlayMenu(base string) string {
	content := panelTitleStyle.Render(m.menu.Title()) + "\n\n"
	for i, opt := range m.menu.Options {
		cursor := "  "
		if i == m.menu.Cursor {
			cursor = "> "
		}
		check := "[ ]"
		if opt.Enabled {
			check = "[x]"
		}
		line := cursor + check + " " + opt.Label
		if i == m.menu.Cursor {
			line = selectedStyle.Render(line)
		}
		content += line + "\n"
	}
	content += "\n" + m.menu.Footer()

	return placeOverlay(menuStyle.Render(content), base)
}

func (m Model) overlayDetail(base string) string {
	overlayW := m.width * 70 / 100
	if overlayW < 40 {
		overlayW = 40
	}
	if overlayW > m.width-4 {
		overlayW = m.width - 4
	}
	overlayH := m.height * 60 / 100
	if overlayH < 10 {
		overlayH = 10
	}
	if overlayH > m.height-4 {
		overlayH = m.height - 4
	}

	contentW := overlayW - 6
	if contentW < 10 {
		contentW = 10
	}
	contentH := overlayH - 4
	if contentH < 3 {
		contentH = 3
	}

	var wrapped []string
	for _, line := range strings.Split(m.detailContent, "\n") {
		for len(line) > contentW {
			cutAt := contentW
			for i := contentW; i > 0; i-- {
				if line[i] == ' ' {
					cutAt = i
					break
				}
			}
			wrapped = append(wrapped, line[:cutAt])
			line = strings.TrimPrefix(line[cutAt:], " ")
		}
		wrapped = append(wrapped, line)
	}

	startIdx := m.detailScrollPos
	if startIdx > len(wrapped)-contentH {
		startIdx = len(wrapped) - contentH
	}
	if startIdx < 0 {
		startIdx = 0
	}
	endIdx := startIdx + contentH
	if endIdx > len(wrapped) {
		endIdx = len(wrapped)
	}

	body := strings.Join(wrapped[startIdx:endIdx], "\n")

	title := panelTitleStyle.Render(m.detailTitle)
	footer := dimStyle.Render("Esc/Enter: Close")
	if len(wrapped) > contentH {
		footer += dimStyle.Render("  Up/Down: Scroll")
	}

	dialog := detailOverlayStyle.
		Width(overlayW - 2).
		Render(title + "\n\n" + body + "\n\n" + footer)

	return placeOverlay(dialog, base)
}

func placeOverlay(fg, bg string) string {
	return lipgloss.Place(
		lipgloss.Width(bg),
		lipgloss.Height(bg),
		lipgloss.Center,
		lipgloss.Center,
		fg,
		lipgloss.WithWhitespaceChars(" "),
	)
}
