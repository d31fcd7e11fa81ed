package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"

	"github.com/treykane/ssh-conn/internal/i18n"
	"github.com/treykane/ssh-conn/internal/model"
	"github.com/treykane/ssh-conn/internal/util"
)

// Snapshot is everything a frame depends on.
type Snapshot struct {
	Profiles []model.Profile
	Selected int
	Query    string
	Modal    Modal
	ShowHelp bool
	Notice   string
	Width    int
	Height   int
}

// Renderer turns a snapshot into a frame.
type Renderer interface {
	Render(s Snapshot) (string, error)
}

type frameRenderer struct {
	cat *i18n.Catalog
}

func newFrameRenderer(cat *i18n.Catalog) *frameRenderer {
	return &frameRenderer{cat: cat}
}

// Render draws s. A panic inside the layout code is returned as an error so
// the caller's failure accounting sees it.
func (r *frameRenderer) Render(s Snapshot) (frame string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("render panic: %v", rec)
		}
	}()
	return r.frame(s), nil
}

func (r *frameRenderer) frame(s Snapshot) string {
	width := effectiveWidth(s.Width)
	title := r.cat.T("ui.title")
	if s.Query != "" {
		title = r.cat.T("ui.title_search", s.Query)
	}
	head := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Render(title)
	subhead := r.cat.T("ui.summary", len(s.Profiles))

	top := []string{head, subhead}
	var bottom []string
	withTable := false
	switch md := s.Modal.(type) {
	case *SearchModal:
		top = append(top, r.searchBox(md, width))
		withTable = true
	case nil:
		withTable = true
		if s.ShowHelp {
			bottom = append(bottom, renderPanel(r.cat.T("help.title"), r.helpBlock(), width, lipgloss.Color("244")))
		}
	default:
		top = append(top, r.overlay(s.Modal, width))
	}
	if s.Notice != "" {
		bottom = append(bottom, renderPanel(r.cat.T("ui.status"), s.Notice, width, lipgloss.Color("205")))
	}
	bottom = append(bottom, r.keyHint(s.Modal))

	parts := make([]string, 0, len(top)+len(bottom)+1)
	parts = append(parts, top...)
	if withTable {
		chrome := 0
		for _, p := range top {
			chrome += lipgloss.Height(p)
		}
		for _, p := range bottom {
			chrome += lipgloss.Height(p)
		}
		limit := visibleRows(s.Height, chrome)
		parts = append(parts, renderPanel(r.cat.T("ui.profiles"), r.table(s, width-6, limit), width, lipgloss.Color("39")))
	}
	parts = append(parts, bottom...)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// tableChrome is the number of lines the profiles panel adds around its rows:
// two border lines, the panel title and the column header.
const tableChrome = 4

// visibleRows returns how many profile rows fit on a screen of height lines
// next to chrome lines of other content. Zero means no limit.
func visibleRows(height, chrome int) int {
	if height <= 0 {
		return 0
	}
	n := height - chrome - tableChrome
	if n < 1 {
		n = 1
	}
	return n
}

// rowWindow returns the half-open range of rows to draw so that selected
// stays visible.
func rowWindow(n, selected, limit int) (int, int) {
	if limit <= 0 || n <= limit {
		return 0, n
	}
	start := selected - limit + 1
	if start < 0 {
		start = 0
	}
	if start > n-limit {
		start = n - limit
	}
	return start, start + limit
}

func (r *frameRenderer) overlay(m Modal, width int) string {
	popup := popupWidth(width)
	switch md := m.(type) {
	case *DeleteModal:
		return r.deleteBox(md, popup)
	case *FormModal:
		return r.formBox(md, popup)
	case *HostKeyModal:
		return r.hostKeyBox(md, popup)
	case *ErrorModal:
		box := renderPanel(r.cat.T("error.title"), md.Message+"\n\n"+r.cat.T("error.dismiss"), popup, lipgloss.Color("196"))
		if f, ok := md.Return.(*FormModal); ok {
			return lipgloss.JoinVertical(lipgloss.Left, r.formBox(f, popup), box)
		}
		return box
	default:
		return ""
	}
}

type column struct {
	key string
	max int
}

var columns = []column{
	{"ui.col_host", 24},
	{"ui.col_hostname", 28},
	{"ui.col_user", 14},
	{"ui.col_port", 6},
	{"ui.col_status", 30},
	{"ui.col_proxy", 30},
	{"ui.col_identity", 30},
}

func (r *frameRenderer) table(s Snapshot, width, limit int) string {
	if len(s.Profiles) == 0 {
		if s.Query != "" {
			return r.cat.T("ui.no_matches")
		}
		return r.cat.T("ui.no_profiles")
	}
	header := make([]string, len(columns))
	rows := make([][]string, len(s.Profiles))
	widths := make([]int, len(columns))
	for i, c := range columns {
		header[i] = r.cat.T(c.key)
		widths[i] = runewidth.StringWidth(header[i])
	}
	for i, p := range s.Profiles {
		rows[i] = r.profileRow(p)
		for j, cell := range rows[i] {
			if w := ansi.StringWidth(cell); w > widths[j] {
				widths[j] = w
			}
		}
	}
	for i, c := range columns {
		if widths[i] > c.max {
			widths[i] = c.max
		}
	}
	fitWidths(widths, width-2)

	var b strings.Builder
	b.WriteString("  " + lipgloss.NewStyle().Bold(true).Render(joinCells(header, widths)) + "\n")
	selected := lipgloss.NewStyle().Reverse(true)
	start, end := rowWindow(len(rows), s.Selected, limit)
	for i := start; i < end; i++ {
		line := joinCells(rows[i], widths)
		if i == s.Selected {
			b.WriteString("> " + selected.Render(line) + "\n")
			continue
		}
		b.WriteString("  " + line + "\n")
	}
	return b.String()
}

func (r *frameRenderer) profileRow(p model.Profile) []string {
	port := "-"
	if p.Port != 0 {
		port = fmt.Sprint(p.Port)
	}
	return []string{
		p.ID,
		util.EmptyDash(p.Address),
		util.EmptyDash(p.User),
		port,
		r.statusCell(p.Status),
		util.EmptyDash(p.ProxyCommand),
		util.EmptyDash(p.IdentityFile),
	}
}

func (r *frameRenderer) statusCell(st model.Status) string {
	switch st.Kind {
	case model.StatusProbing:
		return "🟡 " + r.cat.T("status.probing")
	case model.StatusReachable:
		return "🟢 " + st.String()
	case model.StatusUnreachable:
		return "🔴 " + st.Reason
	default:
		return "⚪ " + r.cat.T("status.unknown")
	}
}

// fitWidths shrinks the widest columns until the row fits in total.
func fitWidths(widths []int, total int) {
	sum := func() int {
		n := len(widths) - 1
		for _, w := range widths {
			n += w
		}
		return n
	}
	for sum() > total {
		widest := 0
		for i, w := range widths {
			if w > widths[widest] {
				widest = i
			}
		}
		if widths[widest] <= 4 {
			return
		}
		widths[widest]--
	}
}

func joinCells(cells []string, widths []int) string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = padCell(c, widths[i])
	}
	return strings.Join(out, " ")
}

// padCell truncates s to w cells and pads it on the right.
func padCell(s string, w int) string {
	s = ansi.Truncate(s, w, "…")
	if gap := w - ansi.StringWidth(s); gap > 0 {
		s += strings.Repeat(" ", gap)
	}
	return s
}

func (r *frameRenderer) searchBox(md *SearchModal, width int) string {
	body := r.cat.T("search.prompt") + " " + md.Draft + "█"
	return renderPanel(r.cat.T("search.title"), body, width, lipgloss.Color("220"))
}

func (r *frameRenderer) deleteBox(md *DeleteModal, width int) string {
	body := r.cat.T("delete.question", md.TargetID) + "\n\n" +
		r.cat.T("delete.prompt") + " " + md.Draft + "█"
	return renderPanel(r.cat.T("delete.title"), body, width, lipgloss.Color("196"))
}

func (r *frameRenderer) hostKeyBox(md *HostKeyModal, width int) string {
	active := lipgloss.NewStyle().Reverse(true).Bold(true).Padding(0, 1)
	idle := lipgloss.NewStyle().Padding(0, 1)
	accept, reject := idle, idle
	if md.Choice == Accept {
		accept = active
	} else {
		reject = active
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Top,
		accept.Render(r.cat.T("host_key.accept")), "  ", reject.Render(r.cat.T("host_key.reject")))
	body := strings.Join([]string{
		r.cat.T("host_key.changed", md.TargetID),
		r.cat.T("host_key.risk"),
		"",
		r.cat.T("host_key.question"),
		"",
		buttons,
	}, "\n")
	return renderPanel(r.cat.T("host_key.title"), body, width, lipgloss.Color("208"))
}

func (r *frameRenderer) formBox(f *FormModal, width int) string {
	labelWidth := 0
	for _, fld := range f.Fields {
		if w := runewidth.StringWidth(r.cat.T(fld.Label)); w > labelWidth {
			labelWidth = w
		}
	}
	var lines []string
	for i, fld := range f.Fields {
		marker := "  "
		switch {
		case i == f.ErrField:
			marker = "❌"
		case fld.ReadOnly:
			marker = "🔒"
		case i == f.Focus:
			marker = "▶ "
		}
		label := runewidth.FillRight(r.cat.T(fld.Label), labelWidth)
		if fld.Required {
			label += " *"
		} else {
			label += "  "
		}
		lines = append(lines, fmt.Sprintf("%s %s  %s", marker, label, r.fieldValue(f, i)))
	}
	hint := r.cat.T("form.hint_nav")
	if f.Editing {
		hint = r.cat.T("form.hint_edit")
	}
	lines = append(lines, "", lipgloss.NewStyle().Faint(true).Render(hint))

	title := r.cat.T("form.title_add")
	if f.Mode == FormEdit {
		title = r.cat.T("form.title_edit", f.OrigID)
	}
	return renderPanel(title, strings.Join(lines, "\n"), width, lipgloss.Color("69"))
}

func (r *frameRenderer) fieldValue(f *FormModal, i int) string {
	fld := f.Fields[i]
	if f.Editing && i == f.Focus {
		return fld.input.View()
	}
	v := fld.Value()
	if v == "" {
		return lipgloss.NewStyle().Faint(true).Render(fld.input.Placeholder)
	}
	if fld.Kind == KindPassword {
		return strings.Repeat("•", runewidth.StringWidth(v))
	}
	return v
}

func (r *frameRenderer) keyHint(m Modal) string {
	key := "ui.keys_main"
	switch m.(type) {
	case *SearchModal:
		key = "ui.keys_search"
	case *DeleteModal:
		key = "ui.keys_delete"
	case *FormModal:
		return ""
	case *HostKeyModal:
		key = "ui.keys_host_key"
	case *ErrorModal:
		return ""
	}
	return lipgloss.NewStyle().Faint(true).Render(r.cat.T(key))
}

func (r *frameRenderer) helpBlock() string {
	keys := []string{
		"help.navigate", "help.connect", "help.add", "help.edit", "help.delete",
		"help.search", "help.probe", "help.probe_all", "help.refresh", "help.copy", "help.quit",
	}
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = "  " + r.cat.T(k)
	}
	return strings.Join(lines, "\n")
}

func effectiveWidth(w int) int {
	if w <= 0 {
		return 100
	}
	return w
}

func popupWidth(width int) int {
	w := width - 4
	if w > 72 {
		w = 72
	}
	return w
}

func renderPanel(title, body string, width int, accent lipgloss.Color) string {
	if width < 24 {
		width = 24
	}
	header := lipgloss.NewStyle().Bold(true).Foreground(accent).Render(title)
	content := strings.TrimSuffix(body, "\n")
	panel := strings.TrimSpace(header + "\n" + content)
	return lipgloss.NewStyle().
		Width(width).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1).
		Render(panel)
}
