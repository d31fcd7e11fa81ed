// Package ui is the interactive profile browser.
//
// The bubbletea event loop is the only goroutine that touches UI state. Every
// message is handled in the same order: route it to the active overlay (or
// the main list), merge finished probe results, then render the frame that
// View returns. A poll tick every 100ms keeps probe results flowing while no
// key is pressed.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/treykane/ssh-conn/internal/appconfig"
	"github.com/treykane/ssh-conn/internal/events"
	"github.com/treykane/ssh-conn/internal/i18n"
	"github.com/treykane/ssh-conn/internal/model"
	"github.com/treykane/ssh-conn/internal/probe"
	"github.com/treykane/ssh-conn/internal/security"
	"github.com/treykane/ssh-conn/internal/sshclient"
	"github.com/treykane/ssh-conn/internal/terminal"
	"github.com/treykane/ssh-conn/internal/util"
)

// ProfileStore is the profile storage the browser reads and mutates.
type ProfileStore interface {
	List() ([]model.Profile, error)
	Search(query string) ([]model.Profile, error)
	// Own returns the settings declared by the profile's own block, which is
	// what an edit starts from.
	Own(id string) (model.ProfileInput, error)
	Add(in model.ProfileInput) error
	Edit(id string, in model.ProfileInput) error
	Delete(id string) error
}

// Launcher runs ssh on behalf of the browser. Preflight reports a changed
// host key with an error wrapping sshclient.ErrHostKeyMismatch.
type Launcher interface {
	Preflight(ctx context.Context, p model.Profile) error
	Connect(ctx context.Context, p model.Profile) error
	PurgeHostKey(ctx context.Context, p model.Profile) error
	CommandLine(p model.Profile) string
}

// Prober runs reachability checks off the event loop.
type Prober interface {
	Submit(t probe.Target)
	Drain() []probe.Result
}

// Journal records session and profile events.
type Journal interface {
	Append(evt events.Event) error
}

// History tracks when each profile was last connected.
type History interface {
	Touch(id string) error
	Forget(id string) error
}

// Deps are the collaborators of the browser. Journal, History and Clipboard
// are optional.
type Deps struct {
	Store     ProfileStore
	Launcher  Launcher
	Prober    Prober
	Catalog   *i18n.Catalog
	Device    terminal.Device
	Config    appconfig.Config
	Journal   Journal
	History   History
	Clipboard func(string) error
	Renderer  Renderer
}

type (
	pollMsg      time.Time
	renderMsg    struct{}
	preflightMsg struct {
		id  string
		err error
	}
)

// Model is the bubbletea model of the browser.
type Model struct {
	ctx      context.Context
	store    ProfileStore
	launcher Launcher
	prober   Prober
	cat      *i18n.Catalog
	session  *terminal.Controller
	renderer Renderer
	journal  Journal
	history  History
	copy     func(string) error

	probeTimeout  time.Duration
	settle        time.Duration
	hostKeySettle time.Duration
	redact        bool
	startupProbe  bool

	profiles   []model.Profile
	statuses   map[string]model.Status
	selected   int
	query      string
	modal      Modal
	showHelp   bool
	notice     string
	connecting string
	// pendingHostKey is a profile whose changed host key arrived while
	// another overlay was active.
	pendingHostKey string
	width      int
	height     int
	quietUntil time.Time
	now        func() time.Time

	frame string
	fatal error
}

// New builds the model and loads the initial profile list.
func New(ctx context.Context, deps Deps) *Model {
	if deps.Catalog == nil {
		deps.Catalog = i18n.MustLoad(i18n.English)
	}
	if deps.Renderer == nil {
		deps.Renderer = newFrameRenderer(deps.Catalog)
	}
	if deps.Clipboard == nil {
		deps.Clipboard = clipboard.WriteAll
	}
	m := &Model{
		ctx:           ctx,
		store:         deps.Store,
		launcher:      deps.Launcher,
		prober:        deps.Prober,
		cat:           deps.Catalog,
		session:       terminal.NewController(deps.Device),
		renderer:      deps.Renderer,
		journal:       deps.Journal,
		history:       deps.History,
		copy:          deps.Clipboard,
		probeTimeout:  deps.Config.ProbeTimeout(),
		settle:        deps.Config.SettleDelay(),
		hostKeySettle: deps.Config.HostKeySettleDelay(),
		redact:        deps.Config.Security.RedactErrors,
		startupProbe:  deps.Config.Probe.OnStartup,
		statuses:      map[string]model.Status{},
		now:           time.Now,
	}
	m.reload()
	return m
}

// Run starts the browser on the real terminal and blocks until it exits.
func Run(ctx context.Context, deps Deps) error {
	if err := sshclient.EnsureSSHBinary(); err != nil {
		return err
	}
	dev := terminal.NewProgramDevice(os.Stdout)
	deps.Device = dev
	m := New(ctx, deps)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	dev.Attach(p)
	if _, err := p.Run(); err != nil {
		return err
	}
	return m.Err()
}

// Err reports why the browser stopped on its own, if it did.
func (m *Model) Err() error { return m.fatal }

func pollCmd() tea.Cmd {
	return tea.Tick(util.PollInterval, func(t time.Time) tea.Msg { return pollMsg(t) })
}

// Init starts polling. The first frame is drawn from Update: recovering from
// a failed render releases and restores the terminal, which needs the
// program's input loop running.
func (m *Model) Init() tea.Cmd {
	if m.startupProbe {
		m.probeAll()
	}
	return tea.Batch(pollCmd(), func() tea.Msg { return renderMsg{} })
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.route(msg)
	m.openPendingHostKey()
	m.mergeProbes()
	if rcmd := m.render(); rcmd != nil {
		if m.fatal != nil {
			return m, rcmd
		}
		cmd = tea.Batch(cmd, rcmd)
	}
	return m, cmd
}

func (m *Model) View() string { return m.frame }

func (m *Model) route(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case pollMsg:
		m.syncStatuses()
		return pollCmd()
	case renderMsg:
	case preflightMsg:
		return m.onPreflight(msg)
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return tea.Quit
		}
		if m.now().Before(m.quietUntil) {
			return nil
		}
		return m.handleKey(msg)
	}
	return nil
}

func (m *Model) handleKey(k tea.KeyMsg) tea.Cmd {
	switch md := m.modal.(type) {
	case nil:
		return m.mainKey(k)
	case *ErrorModal:
		m.dismissError(md)
		return nil
	case *SearchModal:
		m.searchKey(md, k)
		return nil
	case *DeleteModal:
		m.deleteKey(md, k)
		return nil
	case *FormModal:
		return m.formKey(md, k)
	case *HostKeyModal:
		return m.hostKeyKey(md, k)
	default:
		slog.Error("key routed to unknown overlay", "overlay", modalName(md))
		m.modal = nil
		return nil
	}
}

func (m *Model) mainKey(k tea.KeyMsg) tea.Cmd {
	switch k.String() {
	case "q":
		return tea.Quit
	case "down", "j":
		if m.selected < len(m.profiles)-1 {
			m.selected++
		}
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "enter":
		if p, ok := m.current(); ok {
			return m.startConnect(p)
		}
	case "a":
		m.open(newAddForm(m.cat))
	case "e":
		if p, ok := m.current(); ok {
			m.openEdit(p.ID)
		}
	case "d":
		if p, ok := m.current(); ok {
			m.open(&DeleteModal{TargetID: p.ID})
		}
	case "s", "/":
		m.open(&SearchModal{Committed: m.query, Draft: m.query})
	case "t":
		if len(m.profiles) > 0 {
			m.probeIndex(m.selected)
		}
	case "T":
		m.probeAll()
	case "r":
		m.reload()
		m.notice = m.cat.T("ui.reloaded")
	case "y":
		if p, ok := m.current(); ok {
			m.copyCommand(p)
		}
	case "?":
		m.showHelp = !m.showHelp
	}
	return nil
}

// open activates an overlay. Overlays are only opened from the main list.
func (m *Model) open(md Modal) {
	if m.modal != nil {
		slog.Warn("overlay already active", "active", modalName(m.modal), "requested", modalName(md))
		return
	}
	m.modal = md
}

func (m *Model) current() (model.Profile, bool) {
	if m.selected < 0 || m.selected >= len(m.profiles) {
		return model.Profile{}, false
	}
	return m.profiles[m.selected], true
}

// showError replaces the active overlay with an error dialog that returns to
// it once dismissed. A second error while the dialog is up is appended.
func (m *Model) showError(msg string) {
	if em, ok := m.modal.(*ErrorModal); ok {
		em.Message += "\n\n" + msg
		return
	}
	m.modal = &ErrorModal{Message: msg, Return: m.modal}
}

func (m *Model) dismissError(em *ErrorModal) {
	m.modal = em.Return
	if f, ok := em.Return.(*FormModal); ok {
		f.ErrField = -1
	}
}

func (m *Model) userMessage(err error) string {
	return security.UserMessage(err, m.redact)
}

// --- search ---

func (m *Model) searchKey(md *SearchModal, k tea.KeyMsg) {
	switch k.Type {
	case tea.KeyEsc:
		m.modal = nil
		m.applySearch(m.query)
	case tea.KeyEnter:
		m.query = strings.TrimSpace(md.Draft)
		m.modal = nil
		m.applySearch(m.query)
		m.selected = 0
	case tea.KeyBackspace:
		if r := []rune(md.Draft); len(r) > 0 {
			md.Draft = string(r[:len(r)-1])
			m.liveSearch(md)
		}
	case tea.KeyRunes, tea.KeySpace:
		md.Draft += string(k.Runes)
		if k.Type == tea.KeySpace && len(k.Runes) == 0 {
			md.Draft += " "
		}
		m.liveSearch(md)
	}
}

func (m *Model) liveSearch(md *SearchModal) {
	m.applySearch(strings.TrimSpace(md.Draft))
	m.selected = 0
}

func (m *Model) applySearch(q string) {
	list, err := m.store.Search(q)
	if err != nil {
		m.showError(m.cat.T("error.load_failed", m.userMessage(err)))
		return
	}
	m.setProfiles(list)
}

// --- delete ---

func (m *Model) deleteKey(md *DeleteModal, k tea.KeyMsg) {
	switch k.Type {
	case tea.KeyEnter:
		m.modal = nil
		if !strings.EqualFold(strings.TrimSpace(md.Draft), "yes") {
			m.notice = m.cat.T("delete.cancelled")
			return
		}
		if err := m.store.Delete(md.TargetID); err != nil {
			m.showError(m.cat.T("error.delete_failed", m.userMessage(err)))
			return
		}
		delete(m.statuses, md.TargetID)
		m.record(events.Event{Profile: md.TargetID, EventType: events.ProfileDeleted})
		if m.history != nil {
			if err := m.history.Forget(md.TargetID); err != nil {
				slog.Warn("failed to drop history entry", "profile", md.TargetID, "error", err)
			}
		}
		m.notice = m.cat.T("delete.done", md.TargetID)
		m.reload()
	case tea.KeyEsc:
		m.modal = nil
	case tea.KeyBackspace:
		if r := []rune(md.Draft); len(r) > 0 {
			md.Draft = string(r[:len(r)-1])
		}
	case tea.KeyRunes:
		md.Draft += string(k.Runes)
	}
}

// --- form ---

func (m *Model) formKey(f *FormModal, k tea.KeyMsg) tea.Cmd {
	key := k.String()
	if key == "ctrl+s" {
		m.saveForm(f)
		return nil
	}
	if key == "esc" {
		if f.Editing {
			f.setEditing(false)
		} else {
			m.modal = nil
		}
		return nil
	}
	if key == "enter" {
		f.enter()
		return nil
	}
	if f.Editing {
		return f.typeKey(k)
	}
	switch key {
	case "q":
		m.modal = nil
	case "tab", "down", "j":
		f.next()
	case "shift+tab", "up", "k":
		f.prev()
	case "s":
		m.saveForm(f)
	}
	return nil
}

func (m *Model) openEdit(id string) {
	in, err := m.store.Own(id)
	if err != nil {
		m.showError(m.cat.T("error.load_failed", m.userMessage(err)))
		return
	}
	m.open(newEditForm(m.cat, in))
}

func (m *Model) saveForm(f *FormModal) {
	if idx, msg := f.validate(m.cat); idx >= 0 {
		f.ErrField = idx
		f.Focus = idx
		f.setEditing(true)
		m.showError(msg)
		return
	}
	in := f.Input()
	kind := events.ProfileAdded
	var err error
	if f.Mode == FormAdd {
		err = m.store.Add(in)
	} else {
		kind = events.ProfileEdited
		in.ID = f.OrigID
		err = m.store.Edit(f.OrigID, in)
	}
	if err != nil {
		m.showError(m.cat.T("error.save_failed", m.userMessage(err)))
		return
	}
	m.modal = nil
	m.record(events.Event{Profile: in.ID, EventType: kind})
	m.notice = m.cat.T("form.saved", in.ID)
	m.reload()
	if f.Mode == FormAdd {
		m.selectID(in.ID)
	}
}

// --- connect and host keys ---

func (m *Model) startConnect(p model.Profile) tea.Cmd {
	m.connecting = p.ID
	m.notice = m.cat.T("ui.connecting", p.ID)
	ctx, launcher := m.ctx, m.launcher
	return func() tea.Msg {
		return preflightMsg{id: p.ID, err: launcher.Preflight(ctx, p)}
	}
}

// onPreflight acts on the result of the connection check. Failures are
// always shown, over whatever overlay is active. A clean result starts the
// session only from the main list.
func (m *Model) onPreflight(msg preflightMsg) tea.Cmd {
	if msg.id != m.connecting {
		return nil
	}
	m.connecting = ""
	m.notice = ""
	switch {
	case errors.Is(msg.err, sshclient.ErrHostKeyMismatch):
		m.record(events.Event{Profile: msg.id, EventType: events.HostKeyMismatch})
		m.pendingHostKey = msg.id
		m.openPendingHostKey()
		return nil
	case msg.err != nil:
		slog.Warn("preflight failed", "profile", msg.id, "error", security.DebugMessage(msg.err))
		m.showError(m.cat.T("error.connection_failed", m.userMessage(msg.err)))
		return nil
	}
	if m.modal != nil {
		slog.Info("connect cancelled, overlay active", "profile", msg.id, "overlay", modalName(m.modal))
		m.notice = m.cat.T("ui.connect_cancelled", msg.id)
		return nil
	}
	p, ok := m.profileByID(msg.id)
	if !ok {
		return nil
	}
	return m.runSession(p, false)
}

// openPendingHostKey asks about a changed host key once no other overlay is
// active.
func (m *Model) openPendingHostKey() {
	if m.pendingHostKey == "" || m.modal != nil {
		return
	}
	id := m.pendingHostKey
	m.pendingHostKey = ""
	if _, ok := m.profileByID(id); !ok {
		slog.Info("host key prompt dropped, profile gone", "profile", id)
		return
	}
	m.modal = &HostKeyModal{TargetID: id, Choice: Accept}
}

func (m *Model) hostKeyKey(md *HostKeyModal, k tea.KeyMsg) tea.Cmd {
	switch k.String() {
	case "left", "h":
		md.Choice = Accept
	case "right", "l":
		md.Choice = Reject
	case "tab":
		md.Choice = 1 - md.Choice
	case "y", "Y":
		return m.acceptHostKey(md.TargetID)
	case "n", "N", "esc":
		m.modal = nil
	case "enter":
		if md.Choice == Accept {
			return m.acceptHostKey(md.TargetID)
		}
		m.modal = nil
	}
	return nil
}

func (m *Model) acceptHostKey(id string) tea.Cmd {
	m.modal = nil
	p, ok := m.profileByID(id)
	if !ok {
		return nil
	}
	return m.runSession(p, true)
}

// runSession hands the terminal to ssh and takes it back. With purge set, the
// stale known_hosts entries are removed first; a failed purge is logged and
// the connection is attempted anyway.
func (m *Model) runSession(p model.Profile, purge bool) tea.Cmd {
	sid := events.NewSessionID()
	m.record(events.Event{SessionID: sid, Profile: p.ID, EventType: events.SessionStarted})

	settle := m.settle
	run := func() error { return m.launcher.Connect(m.ctx, p) }
	if purge {
		settle = m.hostKeySettle
		run = func() error {
			if err := m.launcher.PurgeHostKey(m.ctx, p); err != nil {
				slog.Warn("failed to remove stale host key, connecting anyway", "profile", p.ID, "error", err)
			} else {
				m.record(events.Event{SessionID: sid, Profile: p.ID, EventType: events.HostKeyPurged})
			}
			return m.launcher.Connect(m.ctx, p)
		}
	}

	start := m.now()
	out := m.session.Handoff(run, settle)
	m.quietUntil = m.now().Add(util.InputQuietPeriod)
	m.notice = ""
	m.reload()

	elapsed := m.now().Sub(start).Milliseconds()
	switch {
	case out.Err != nil:
		m.record(events.Event{SessionID: sid, Profile: p.ID, EventType: events.SessionFailed, Message: security.DebugMessage(out.Err), DurationMS: elapsed})
		m.showError(m.cat.T("error.session_failed", m.userMessage(out.Err)))
	case out.ResumeErr != nil:
		m.showError(m.cat.T("error.terminal_restore", out.ResumeErr.Error()))
	default:
		m.record(events.Event{SessionID: sid, Profile: p.ID, EventType: events.SessionEnded, DurationMS: elapsed})
		if m.history != nil {
			if err := m.history.Touch(p.ID); err != nil {
				slog.Warn("failed to record history", "profile", p.ID, "error", err)
			}
		}
	}
	return tea.Batch(tea.ClearScreen, tea.WindowSize())
}

func (m *Model) copyCommand(p model.Profile) {
	line := m.launcher.CommandLine(p)
	if err := m.copy(line); err != nil {
		m.showError(m.cat.T("error.clipboard", err.Error()))
		return
	}
	m.notice = m.cat.T("ui.copied", line)
}

// --- profiles and probes ---

// reload re-reads the list, keeping the committed search filter.
func (m *Model) reload() {
	m.applySearch(m.query)
}

func (m *Model) setProfiles(list []model.Profile) {
	for i := range list {
		if st, ok := m.statuses[list[i].ID]; ok {
			list[i].Status = st
		}
	}
	m.profiles = list
	m.clampSelection()
}

func (m *Model) clampSelection() {
	if m.selected >= len(m.profiles) {
		m.selected = len(m.profiles) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *Model) selectID(id string) {
	for i, p := range m.profiles {
		if p.ID == id {
			m.selected = i
			return
		}
	}
}

func (m *Model) profileByID(id string) (model.Profile, bool) {
	for _, p := range m.profiles {
		if p.ID == id {
			return p, true
		}
	}
	return model.Profile{}, false
}

func (m *Model) probeIndex(i int) {
	if m.prober == nil || i < 0 || i >= len(m.profiles) {
		return
	}
	p := m.profiles[i]
	m.statuses[p.ID] = model.Probing()
	m.profiles[i].Status = model.Probing()
	m.prober.Submit(probe.TargetFor(i, p, m.probeTimeout))
}

func (m *Model) probeAll() {
	for i := range m.profiles {
		m.probeIndex(i)
	}
}

// mergeProbes applies finished probes. A result is written to the list only
// when its index is still in range and still holds the probed profile; the
// per-id cache keeps it for the next relist either way.
func (m *Model) mergeProbes() {
	if m.prober == nil {
		return
	}
	for _, r := range m.prober.Drain() {
		m.statuses[r.ID] = r.Status
		if r.Index < 0 || r.Index >= len(m.profiles) || m.profiles[r.Index].ID != r.ID {
			slog.Debug("stale probe result dropped", "profile", r.ID, "index", r.Index)
			continue
		}
		m.profiles[r.Index].Status = r.Status
	}
}

// syncStatuses copies cached statuses onto the rows, picking up results
// dropped as stale because the list moved while they were in flight.
func (m *Model) syncStatuses() {
	for i := range m.profiles {
		if st, ok := m.statuses[m.profiles[i].ID]; ok {
			m.profiles[i].Status = st
		}
	}
}

// --- rendering ---

func (m *Model) snapshot() Snapshot {
	return Snapshot{
		Profiles: m.profiles,
		Selected: m.selected,
		Query:    m.query,
		Modal:    m.modal,
		ShowHelp: m.showHelp,
		Notice:   m.notice,
		Width:    m.width,
		Height:   m.height,
	}
}

// render refreshes the cached frame. Failures are counted by the terminal
// controller: below the limit the terminal is reset and a retry scheduled,
// at the limit the program quits and Err reports why.
func (m *Model) render() tea.Cmd {
	frame, err := m.renderer.Render(m.snapshot())
	if err == nil {
		m.frame = frame
		m.session.RenderOK()
		return nil
	}
	slog.Error("render failed, terminal reset", "failures", m.session.Failures()+1, "error", err)
	m.record(events.Event{EventType: events.RenderReset, Message: err.Error()})
	if m.session.RenderFailed(err) == terminal.Fatal {
		m.fatal = fmt.Errorf("%w: %v", terminal.ErrRenderFailed, err)
		return tea.Quit
	}
	return tea.Tick(util.RenderRetryBackoff, func(time.Time) tea.Msg { return renderMsg{} })
}

func (m *Model) record(evt events.Event) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Append(evt); err != nil {
		slog.Warn("failed to write event journal", "event", evt.EventType, "error", err)
	}
}
