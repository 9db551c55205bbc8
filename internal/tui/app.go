package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/shopdrop/internal/app"
	"github.com/naveenspark/shopdrop/internal/cart"
	"github.com/naveenspark/shopdrop/internal/notify"
	"github.com/naveenspark/shopdrop/pkg/domain"
)

type view int

const (
	viewCatalog view = iota
	viewCart
	viewOrders
	viewAccount
)

// noticeTTL is how long a toast stays on the notice line.
const noticeTTL = 4 * time.Second

// hydratedMsg fires once the persisted session has been loaded.
type hydratedMsg struct {
	user *domain.User
}

// signedOutMsg fires when the session ended because refresh failed.
type signedOutMsg struct{}

type noticeMsg struct {
	n notify.Notification
}

type noticeExpiredMsg struct {
	seq int
}

// App is the root Bubbletea model.
type App struct {
	shop      *app.App
	view      view
	catalog   catalogModel
	cart      cartModel
	orders    ordersModel
	account   accountModel
	hydrated  bool
	user      *domain.User
	notice    *notify.Notification
	noticeSeq int
	helpOpen  bool
	width     int
	height    int
	frame     int // logo shimmer animation frame
}

// NewApp creates a new TUI application over the application context.
func NewApp(shop *app.App) App {
	return App{
		shop:    shop,
		catalog: newCatalogModel(shop),
		cart:    newCartModel(shop),
		orders:  newOrdersModel(shop),
		account: newAccountModel(shop),
	}
}

func (a App) Init() tea.Cmd {
	if a.shop == nil {
		return shimmerTickCmd()
	}
	return tea.Batch(
		shimmerTickCmd(),
		a.catalog.Init(),
		a.waitHydrated(),
		waitNotice(a.shop.Notices.C()),
		waitSignedOut(a.shop.SignedOut()),
		waitCartChange(a.shop.Cart.Changes()),
	)
}

func (a App) waitHydrated() tea.Cmd {
	s := a.shop.Session
	return func() tea.Msg {
		s.WaitHydrated(context.Background()) //nolint:errcheck // background context never ends
		return hydratedMsg{user: s.User()}
	}
}

func waitNotice(ch <-chan notify.Notification) tea.Cmd {
	return func() tea.Msg {
		return noticeMsg{n: <-ch}
	}
}

func waitSignedOut(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return signedOutMsg{}
	}
}

func waitCartChange(ch <-chan cart.View) tea.Cmd {
	return func() tea.Msg {
		return cartChangedMsg{view: <-ch}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Chrome: header(2) + tabs(1) + notice(1) + help(1) = 5 lines
		bodyMsg := tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 5}
		a.catalog, _ = a.catalog.Update(bodyMsg)
		a.cart, _ = a.cart.Update(bodyMsg)
		a.orders, _ = a.orders.Update(bodyMsg)
		return a, nil

	case shimmerTickMsg:
		a.frame++
		a.account, _ = a.account.Update(msg)
		return a, shimmerTickCmd()

	case hydratedMsg:
		a.hydrated = true
		return a, a.startSession(msg.user)

	case signedInMsg:
		var cmd tea.Cmd
		a.account, cmd = a.account.Update(msg)
		if msg.err != nil {
			return a, cmd
		}
		return a, tea.Batch(cmd, a.startSession(msg.user))

	case profileUpdatedMsg:
		if msg.err == nil && msg.user != nil {
			a.user = msg.user
		}
		var cmd tea.Cmd
		a.account, cmd = a.account.Update(msg)
		return a, cmd

	case loggedOutMsg:
		a.endSession()
		a.account, _ = a.account.Update(msg)
		return a, nil

	case signedOutMsg:
		a.endSession()
		n := notify.Info("Signed out", "Session expired. Please sign in again.")
		a.notice = &n
		a.noticeSeq++
		var cmds []tea.Cmd
		cmds = append(cmds, expireNotice(a.noticeSeq))
		if a.shop != nil {
			cmds = append(cmds, waitSignedOut(a.shop.SignedOut()))
		}
		return a, tea.Batch(cmds...)

	case noticeMsg:
		n := msg.n
		a.notice = &n
		a.noticeSeq++
		cmds := []tea.Cmd{expireNotice(a.noticeSeq)}
		if a.shop != nil {
			cmds = append(cmds, waitNotice(a.shop.Notices.C()))
		}
		return a, tea.Batch(cmds...)

	case noticeExpiredMsg:
		if msg.seq == a.noticeSeq {
			a.notice = nil
		}
		return a, nil

	case cartChangedMsg:
		a.cart, _ = a.cart.Update(msg)
		if a.shop != nil {
			return a, waitCartChange(a.shop.Cart.Changes())
		}
		return a, nil

	case cartSyncedMsg, checkoutDoneMsg:
		var cmd tea.Cmd
		a.cart, cmd = a.cart.Update(msg)
		return a, cmd

	case productsLoadedMsg, productLoadedMsg, addedToCartMsg:
		var cmd tea.Cmd
		a.catalog, cmd = a.catalog.Update(msg)
		return a, cmd

	case ordersLoadedMsg, orderLoadedMsg:
		var cmd tea.Cmd
		a.orders, cmd = a.orders.Update(msg)
		return a, cmd

	case passwordChangedMsg:
		var cmd tea.Cmd
		a.account, cmd = a.account.Update(msg)
		return a, cmd

	case copyResultMsg:
		return a.routeToView(msg)

	case tea.KeyMsg:
		return a.handleKey(msg)
	}
	return a, nil
}

// startSession is the entry point for both a restored and a fresh session.
func (a *App) startSession(u *domain.User) tea.Cmd {
	a.user = u
	a.catalog.signedIn = u != nil
	a.account.setUser(u)
	if u == nil {
		a.view = viewAccount
		return nil
	}
	if a.view == viewAccount {
		a.view = viewCatalog
	}
	return tea.Batch(a.cart.Init(), a.orders.Init())
}

func (a *App) endSession() {
	a.user = nil
	a.catalog.signedIn = false
	a.cart = newCartModel(a.shop)
	a.cart.width, a.cart.height = a.width, a.height-5
	a.orders = newOrdersModel(a.shop)
	a.account.setUser(nil)
	a.view = viewAccount
}

func expireNotice(seq int) tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return a, tea.Quit
	}
	if !a.hydrated {
		if key == "q" {
			return a, tea.Quit
		}
		return a, nil
	}

	if a.helpOpen {
		switch key {
		case "esc", "h", "q":
			a.helpOpen = false
		}
		return a, nil
	}

	if !a.isEditing() {
		switch key {
		case "q":
			return a, tea.Quit
		case "h":
			a.helpOpen = true
			return a, nil
		case "1":
			a.view = viewCatalog
			return a, nil
		case "2", "3":
			if a.user == nil {
				n := notify.Info("Sign in", "Please sign in first.")
				a.notice = &n
				a.noticeSeq++
				a.view = viewAccount
				return a, expireNotice(a.noticeSeq)
			}
			if key == "2" {
				a.view = viewCart
				return a, a.cart.fetch()
			}
			a.view = viewOrders
			return a, a.orders.loadOrders()
		case "4":
			a.view = viewAccount
			return a, nil
		}
	}
	return a.routeToView(msg)
}

func (a App) routeToView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.view {
	case viewCatalog:
		a.catalog, cmd = a.catalog.Update(msg)
	case viewCart:
		a.cart, cmd = a.cart.Update(msg)
	case viewOrders:
		a.orders, cmd = a.orders.Update(msg)
	case viewAccount:
		a.account, cmd = a.account.Update(msg)
	}
	return a, cmd
}

// isEditing returns true when the active view is capturing text input.
func (a App) isEditing() bool {
	switch a.view {
	case viewCatalog:
		return a.catalog.searching
	case viewAccount:
		return a.account.isEditing()
	}
	return false
}

func (a App) View() string {
	logo := renderShimmerLogo(a.frame)

	statsLine := ""
	if a.user != nil {
		parts := []string{"signed in as " + a.user.DisplayName()}
		if t := a.cart.view.Totals; t.ItemCount > 0 {
			parts = append(parts, fmt.Sprintf("%d in cart", t.ItemCount), formatMoney(t.Subtotal))
		}
		statsLine = metaStyle.Render(strings.Join(parts, " . "))
	}

	logoPad := max((a.width-lipgloss.Width(logo))/2, 0)
	header := strings.Repeat(" ", logoPad) + logo
	if statsLine != "" {
		statsPad := max((a.width-lipgloss.Width(statsLine))/2, 0)
		header += "\n" + strings.Repeat(" ", statsPad) + statsLine
	} else {
		header += "\n"
	}

	type tabEntry struct {
		key  string
		name string
		v    view
	}
	tabs := []tabEntry{
		{"1", "Catalog", viewCatalog},
		{"2", "Cart", viewCart},
		{"3", "Orders", viewOrders},
		{"4", "Account", viewAccount},
	}
	colWidth := a.width / len(tabs)
	var tabBar strings.Builder
	for _, t := range tabs {
		var label string
		if t.v == a.view {
			label = accentStyle.Render(t.key) + " " + selectedStyle.Underline(true).Render(t.name)
		} else {
			label = metaStyle.Render(t.key) + " " + dimStyle.Render(t.name)
		}
		if t.v == viewCart && a.cart.view.Totals.ItemCount > 0 {
			label += " " + priceStyle.Render(fmt.Sprintf("%d", a.cart.view.Totals.ItemCount))
		}
		labelWidth := lipgloss.Width(label)
		leftPad := max((colWidth-labelWidth)/2, 0)
		rightPad := max(colWidth-labelWidth-leftPad, 0)
		tabBar.WriteString(strings.Repeat(" ", leftPad) + label + strings.Repeat(" ", rightPad))
	}

	var body, help string
	switch {
	case !a.hydrated:
		body = "\n " + dimStyle.Render("restoring session...")
		help = " " + helpEntry("q", "quit")
	case a.helpOpen:
		body = helpView()
		help = " " + helpEntry("esc", "close")
	default:
		switch a.view {
		case viewCatalog:
			body = a.catalog.View()
			help = " " + helpEntry("1-4", "tabs") + "  " + a.catalog.helpKeys()
		case viewCart:
			body = a.cart.View()
			help = " " + helpEntry("1-4", "tabs") + "  " + a.cart.helpKeys()
		case viewOrders:
			body = a.orders.View()
			help = " " + helpEntry("1-4", "tabs") + "  " + a.orders.helpKeys()
		case viewAccount:
			body = a.account.View()
			help = " " + a.account.helpKeys()
		}
	}

	noticeBar := ""
	if a.notice != nil {
		noticeBar = " " + renderNotice(*a.notice)
	}

	chrome := 5
	body = strings.TrimRight(truncateToHeight(body, a.height-chrome), "\n")

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s", header, tabBar.String(), body, noticeBar, help)
}

func renderNotice(n notify.Notification) string {
	style := accentStyle
	switch n.Level {
	case notify.LevelSuccess:
		style = successStyle
	case notify.LevelError:
		style = errorStyle
	}
	out := style.Bold(true).Render(n.Title)
	if n.Description != "" {
		out += dimStyle.Render(" . " + n.Description)
	}
	return out
}
