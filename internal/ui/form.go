package ui

import (
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/treykane/ssh-conn/internal/i18n"
	"github.com/treykane/ssh-conn/internal/model"
	"github.com/treykane/ssh-conn/internal/util"
)

type FormMode int

const (
	FormAdd FormMode = iota
	FormEdit
)

// FieldKind tells the renderer how to show a value.
type FieldKind int

const (
	KindText FieldKind = iota
	KindNumber
	KindPassword
	KindPath
)

// Field indices of the profile form.
const (
	fieldHost = iota
	fieldHostname
	fieldUser
	fieldPort
	fieldProxyCommand
	fieldIdentityFile
	fieldPassword
	fieldCount
)

// Field is one input of the profile form. Label is a catalog key.
type Field struct {
	Label    string
	Kind     FieldKind
	Required bool
	ReadOnly bool
	input    textinput.Model
}

func (f Field) Value() string { return f.input.Value() }

// FormModal is the add/edit overlay. ErrField is the index of the field that
// failed validation, or -1.
type FormModal struct {
	Mode     FormMode
	Fields   []Field
	Focus    int
	Editing  bool
	ErrField int
	OrigID   string
}

type fieldDef struct {
	label    string
	kind     FieldKind
	required bool
	limit    int
}

var fieldDefs = [fieldCount]fieldDef{
	fieldHost:         {"form.host", KindText, true, 64},
	fieldHostname:     {"form.hostname", KindText, true, 256},
	fieldUser:         {"form.user", KindText, false, 64},
	fieldPort:         {"form.port", KindNumber, false, 5},
	fieldProxyCommand: {"form.proxy_command", KindText, false, 512},
	fieldIdentityFile: {"form.identity_file", KindPath, false, 512},
	fieldPassword:     {"form.password", KindPassword, false, 256},
}

func newFields(cat *i18n.Catalog) []Field {
	fields := make([]Field, fieldCount)
	for i, def := range fieldDefs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = def.limit
		ti.Width = 40
		ti.Placeholder = cat.T(def.label + "_hint")
		if def.kind == KindPassword {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		fields[i] = Field{Label: def.label, Kind: def.kind, Required: def.required, input: ti}
	}
	return fields
}

// newAddForm opens an empty form with editing started on the first field.
func newAddForm(cat *i18n.Catalog) *FormModal {
	f := &FormModal{Mode: FormAdd, Fields: newFields(cat), ErrField: -1}
	f.setEditing(true)
	return f
}

// newEditForm opens a form pre-filled from in. The host field is read-only
// and focus starts on the address. The password is never pre-filled; left
// empty, the stored one is kept.
func newEditForm(cat *i18n.Catalog, in model.ProfileInput) *FormModal {
	f := &FormModal{Mode: FormEdit, Fields: newFields(cat), ErrField: -1, OrigID: in.ID, Focus: fieldHostname}
	f.Fields[fieldHost].ReadOnly = true
	f.Fields[fieldHost].input.SetValue(in.ID)
	f.Fields[fieldHostname].input.SetValue(in.Address)
	f.Fields[fieldUser].input.SetValue(in.User)
	if in.Port != 0 {
		f.Fields[fieldPort].input.SetValue(strconv.Itoa(in.Port))
	}
	f.Fields[fieldProxyCommand].input.SetValue(in.ProxyCommand)
	f.Fields[fieldIdentityFile].input.SetValue(in.IdentityFile)
	return f
}

func (f *FormModal) setEditing(on bool) {
	for i := range f.Fields {
		f.Fields[i].input.Blur()
	}
	if on && f.Fields[f.Focus].ReadOnly {
		on = false
	}
	f.Editing = on
	if on {
		f.Fields[f.Focus].input.Focus()
		f.Fields[f.Focus].input.CursorEnd()
	}
}

func (f *FormModal) next() {
	n := len(f.Fields)
	for i := 1; i <= n; i++ {
		idx := (f.Focus + i) % n
		if !f.Fields[idx].ReadOnly {
			f.Focus = idx
			return
		}
	}
}

func (f *FormModal) prev() {
	n := len(f.Fields)
	for i := 1; i <= n; i++ {
		idx := (f.Focus - i + n) % n
		if !f.Fields[idx].ReadOnly {
			f.Focus = idx
			return
		}
	}
}

// enter commits the field being edited and moves on to edit the next one, or
// starts editing the focused field.
func (f *FormModal) enter() {
	if f.Editing || f.Fields[f.Focus].ReadOnly {
		f.setEditing(false)
		if f.Focus+1 < len(f.Fields) {
			f.Focus++
			f.setEditing(true)
		}
		return
	}
	if f.ErrField == f.Focus {
		f.ErrField = -1
	}
	f.setEditing(true)
}

// typeKey forwards a key to the field being edited. Read-only fields never
// reach editing, so this is a no-op for them.
func (f *FormModal) typeKey(msg tea.KeyMsg) tea.Cmd {
	if !f.Editing || f.Fields[f.Focus].ReadOnly {
		return nil
	}
	var cmd tea.Cmd
	f.Fields[f.Focus].input, cmd = f.Fields[f.Focus].input.Update(msg)
	return cmd
}

func (f *FormModal) value(i int) string {
	return strings.TrimSpace(f.Fields[i].Value())
}

// Input converts the form to a storage request. Empty fields stay unset. The
// password is taken verbatim.
func (f *FormModal) Input() model.ProfileInput {
	port, _ := util.ParseOptionalPort(f.value(fieldPort))
	return model.ProfileInput{
		ID:           f.value(fieldHost),
		Address:      f.value(fieldHostname),
		User:         f.value(fieldUser),
		Port:         port,
		ProxyCommand: f.value(fieldProxyCommand),
		IdentityFile: f.value(fieldIdentityFile),
		Password:     f.Fields[fieldPassword].Value(),
	}
}

// validate returns the index of the first invalid field and a localized
// message, or -1 when the form can be saved.
func (f *FormModal) validate(cat *i18n.Catalog) (int, string) {
	if err := util.ValidateProfileID(f.value(fieldHost)); err != nil {
		return fieldHost, fieldError(cat, "form.host", err)
	}
	if util.HasWildcard(f.value(fieldHost)) {
		return fieldHost, cat.T("validation.wildcard")
	}
	if err := util.ValidateAddress(f.value(fieldHostname)); err != nil {
		return fieldHostname, fieldError(cat, "form.hostname", err)
	}
	if err := util.ValidateUser(f.value(fieldUser)); err != nil {
		return fieldUser, fieldError(cat, "form.user", err)
	}
	if _, err := util.ParseOptionalPort(f.value(fieldPort)); err != nil {
		return fieldPort, cat.T("validation.port_range", util.MinPort, util.MaxPort)
	}
	return -1, ""
}

func fieldError(cat *i18n.Catalog, label string, err error) string {
	name := cat.T(label)
	switch {
	case errors.Is(err, util.ErrEmpty):
		return cat.T("validation.required", name)
	case errors.Is(err, util.ErrWhitespace):
		return cat.T("validation.whitespace", name)
	case errors.Is(err, util.ErrConsecutiveDots), errors.Is(err, util.ErrEdgeDot):
		return cat.T("validation.dots", name)
	case errors.Is(err, util.ErrInvalidUserChar):
		return cat.T("validation.user_chars", name)
	default:
		return name + ": " + err.Error()
	}
}
