package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/shopdrop/internal/app"
	"github.com/naveenspark/shopdrop/internal/notify"
	"github.com/naveenspark/shopdrop/pkg/domain"
)

type accountMode int

const (
	modeSignIn accountMode = iota
	modeSignUp
	modeProfile
	modeEditProfile
	modePassword
)

// formField describes one input of an account form.
type formField struct {
	label       string
	placeholder string
	secret      bool
}

var accountForms = map[accountMode][]formField{
	modeSignIn: {
		{"email   ", "you@example.com", false},
		{"password", "", true},
	},
	modeSignUp: {
		{"username", "", false},
		{"email   ", "you@example.com", false},
		{"password", "at least 6 characters", true},
		{"confirm ", "repeat password", true},
	},
	modeEditProfile: {
		{"username", "", false},
		{"email   ", "", false},
		{"address ", "optional", false},
		{"picture ", "image url, optional", false},
	},
	modePassword: {
		{"current ", "", true},
		{"new     ", "at least 6 characters", true},
		{"confirm ", "repeat new password", true},
	},
}

// -- messages --

type signedInMsg struct {
	user *domain.User
	err  error
}

type profileUpdatedMsg struct {
	user *domain.User
	err  error
}

type passwordChangedMsg struct {
	err error
}

type loggedOutMsg struct {
	err error
}

// -- model --

type accountModel struct {
	shop       *app.App
	mode       accountMode
	user       *domain.User
	fields     []string
	focus      int
	focused    bool // form owns the keyboard
	submitting bool
	err        string
	status     string
	frame      int
}

func newAccountModel(shop *app.App) accountModel {
	m := accountModel{shop: shop}
	m.setMode(modeSignIn)
	return m
}

func (m *accountModel) setMode(mode accountMode) {
	m.mode = mode
	m.fields = make([]string, len(accountForms[mode]))
	m.focus = 0
	m.focused = mode != modeProfile
	m.err = ""
	if mode == modeEditProfile && m.user != nil {
		m.fields[0] = m.user.Username
		m.fields[1] = m.user.Email
		m.fields[2] = m.user.Address
		m.fields[3] = m.user.ProfilePicture
	}
}

// setUser moves the model to the profile when signed in and to the sign-in
// form when not.
func (m *accountModel) setUser(u *domain.User) {
	m.user = u
	m.submitting = false
	switch {
	case u == nil:
		m.setMode(modeSignIn)
	case m.mode == modeSignIn || m.mode == modeSignUp:
		m.setMode(modeProfile)
	}
}

// isEditing reports whether the form is capturing keystrokes.
func (m accountModel) isEditing() bool {
	return m.mode != modeProfile && m.focused
}

func (m accountModel) Update(msg tea.Msg) (accountModel, tea.Cmd) {
	switch msg := msg.(type) {
	case shimmerTickMsg:
		m.frame++

	case signedInMsg:
		m.submitting = false
		if msg.err != nil {
			m.err = notify.Describe(msg.err)
			if m.mode == modeSignUp {
				m.err = notify.RegistrationFailed + ": " + m.err
			}
			return m, nil
		}
		m.status = "signed in as " + msg.user.DisplayName()
		m.setUser(msg.user)

	case profileUpdatedMsg:
		m.submitting = false
		if msg.err != nil {
			m.err = notify.Describe(msg.err)
			return m, nil
		}
		m.user = msg.user
		m.status = "profile updated"
		m.setMode(modeProfile)

	case passwordChangedMsg:
		m.submitting = false
		if msg.err != nil {
			m.err = notify.Describe(msg.err)
			return m, nil
		}
		m.status = "password changed"
		m.setMode(modeProfile)

	case loggedOutMsg:
		m.status = "signed out"
		m.setUser(nil)

	case tea.KeyMsg:
		if m.mode == modeProfile {
			return m.updateProfile(msg)
		}
		return m.updateForm(msg)
	}
	return m, nil
}

func (m accountModel) updateProfile(msg tea.KeyMsg) (accountModel, tea.Cmd) {
	switch msg.String() {
	case "e":
		m.status = ""
		m.setMode(modeEditProfile)
	case "p":
		m.status = ""
		m.setMode(modePassword)
	case "L":
		return m, m.logout()
	case "r":
		return m, m.refreshProfile()
	}
	return m, nil
}

func (m accountModel) updateForm(msg tea.KeyMsg) (accountModel, tea.Cmd) {
	key := msg.String()
	if !m.focused {
		if key == "enter" {
			m.focused = true
		}
		return m, nil
	}
	if m.submitting {
		return m, nil
	}
	m.err = ""

	switch key {
	case "esc":
		switch m.mode {
		case modeSignUp:
			m.setMode(modeSignIn)
		case modeEditProfile, modePassword:
			m.setMode(modeProfile)
		default:
			m.focused = false
		}
	case "ctrl+n":
		switch m.mode {
		case modeSignIn:
			m.setMode(modeSignUp)
		case modeSignUp:
			m.setMode(modeSignIn)
		}
	case "tab", "down":
		m.focus = (m.focus + 1) % len(m.fields)
	case "shift+tab", "up":
		m.focus = (m.focus - 1 + len(m.fields)) % len(m.fields)
	case "enter":
		if m.focus < len(m.fields)-1 {
			m.focus++
			return m, nil
		}
		return m.submit()
	case "ctrl+s":
		return m.submit()
	default:
		m.fields[m.focus] = editKey(m.fields[m.focus], msg)
	}
	return m, nil
}

// submit validates locally before any request is sent.
func (m accountModel) submit() (accountModel, tea.Cmd) {
	f := m.fields
	var (
		req domain.Validator
		cmd tea.Cmd
	)
	switch m.mode {
	case modeSignIn:
		r := domain.SignInRequest{Email: strings.TrimSpace(f[0]), Password: f[1]}
		req, cmd = r, m.signIn(r)
	case modeSignUp:
		if f[2] != f[3] {
			m.err = "Passwords do not match."
			return m, nil
		}
		r := domain.SignUpRequest{Username: strings.TrimSpace(f[0]), Email: strings.TrimSpace(f[1]), Password: f[2]}
		req, cmd = r, m.signUp(r)
	case modeEditProfile:
		r := domain.UpdateProfileRequest{
			Username:       strings.TrimSpace(f[0]),
			Email:          strings.TrimSpace(f[1]),
			Address:        strings.TrimSpace(f[2]),
			ProfilePicture: strings.TrimSpace(f[3]),
		}
		req, cmd = r, m.updateMe(r)
	case modePassword:
		if f[1] != f[2] {
			m.err = "Passwords do not match."
			return m, nil
		}
		r := domain.ChangePasswordRequest{CurrentPassword: f[0], NewPassword: f[1]}
		req, cmd = r, m.changePassword(r)
	default:
		return m, nil
	}
	if err := req.Validate(); err != nil {
		m.err = notify.Describe(err)
		return m, nil
	}
	m.submitting = true
	m.status = ""
	return m, cmd
}

func (m accountModel) signIn(req domain.SignInRequest) tea.Cmd {
	if m.shop == nil {
		return nil
	}
	shop := m.shop
	return func() tea.Msg {
		u, err := shop.SignIn(context.Background(), req)
		return signedInMsg{user: u, err: err}
	}
}

func (m accountModel) signUp(req domain.SignUpRequest) tea.Cmd {
	if m.shop == nil {
		return nil
	}
	shop := m.shop
	return func() tea.Msg {
		u, err := shop.SignUp(context.Background(), req)
		return signedInMsg{user: u, err: err}
	}
}

func (m accountModel) updateMe(req domain.UpdateProfileRequest) tea.Cmd {
	if m.shop == nil {
		return nil
	}
	shop := m.shop
	return func() tea.Msg {
		u, err := shop.UpdateProfile(context.Background(), req)
		return profileUpdatedMsg{user: u, err: err}
	}
}

func (m accountModel) changePassword(req domain.ChangePasswordRequest) tea.Cmd {
	if m.shop == nil {
		return nil
	}
	c := m.shop.Client
	return func() tea.Msg {
		return passwordChangedMsg{err: c.ChangePassword(context.Background(), req)}
	}
}

func (m accountModel) refreshProfile() tea.Cmd {
	if m.shop == nil {
		return nil
	}
	shop := m.shop
	return func() tea.Msg {
		u, err := shop.RefreshProfile(context.Background())
		return profileUpdatedMsg{user: u, err: err}
	}
}

func (m accountModel) logout() tea.Cmd {
	if m.shop == nil {
		return func() tea.Msg { return loggedOutMsg{} }
	}
	shop := m.shop
	return func() tea.Msg {
		return loggedOutMsg{err: shop.Logout()}
	}
}

func (m accountModel) title() string {
	switch m.mode {
	case modeSignIn:
		return "Sign in"
	case modeSignUp:
		return "Create an account"
	case modeEditProfile:
		return "Edit profile"
	case modePassword:
		return "Change password"
	}
	return "Account"
}

func (m accountModel) View() string {
	var b strings.Builder
	b.WriteString(" " + selectedStyle.Render(m.title()) + "\n\n")

	if m.mode == modeProfile {
		u := m.user
		if u == nil {
			b.WriteString(" " + dimStyle.Render("not signed in") + "\n")
			return b.String()
		}
		row := func(label, value string) {
			if value == "" {
				value = metaStyle.Render("-")
			} else {
				value = normalStyle.Render(value)
			}
			b.WriteString(" " + sectionHeaderStyle.Render(label) + " " + value + "\n")
		}
		row("username", u.Username)
		row("email   ", u.Email)
		row("role    ", string(u.Role))
		row("address ", u.Address)
		row("picture ", u.ProfilePicture)
	} else {
		for i, field := range accountForms[m.mode] {
			focused := m.focused && i == m.focus
			b.WriteString(" " + renderInput(field.label, m.fields[i], field.placeholder, focused, field.secret, m.frame) + "\n")
		}
		if !m.focused {
			b.WriteString("\n " + dimStyle.Render("press enter to type") + "\n")
		}
	}

	switch {
	case m.submitting:
		b.WriteString("\n " + dimStyle.Render("working...") + "\n")
	case m.err != "":
		b.WriteString("\n " + errorStyle.Render(m.err) + "\n")
	case m.status != "":
		b.WriteString("\n " + successStyle.Render(m.status) + "\n")
	}
	return b.String()
}

func (m accountModel) helpKeys() string {
	switch m.mode {
	case modeProfile:
		return helpEntry("e", "edit") + "  " + helpEntry("p", "password") + "  " + helpEntry("r", "refresh") + "  " + helpEntry("L", "logout") + "  " + helpEntry("q", "quit")
	case modeSignIn:
		if !m.focused {
			return helpEntry("1-4", "tabs") + "  " + helpEntry("enter", "type") + "  " + helpEntry("q", "quit")
		}
		return helpEntry("tab", "next") + "  " + helpEntry("enter", "sign in") + "  " + helpEntry("ctrl+n", "new account") + "  " + helpEntry("esc", "nav")
	case modeSignUp:
		return helpEntry("tab", "next") + "  " + helpEntry("enter", "create") + "  " + helpEntry("ctrl+n", "sign in") + "  " + helpEntry("esc", "back")
	}
	return helpEntry("tab", "next") + "  " + helpEntry("ctrl+s", "save") + "  " + helpEntry("esc", "cancel")
}
