package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/shopdrop/internal/app"
	"github.com/naveenspark/shopdrop/internal/cart"
	"github.com/naveenspark/shopdrop/internal/notify"
)

// -- messages --

// cartSyncedMsg carries the synchronizer view after a fetch or a write.
type cartSyncedMsg struct {
	view cart.View
	err  error
}

// cartChangedMsg is published by the synchronizer whenever the displayed
// cart changes, including optimistic updates while a write is in flight.
type cartChangedMsg struct {
	view cart.View
}

type checkoutDoneMsg struct {
	url string
	err error
}

type copyResultMsg struct {
	what string
	err  error
}

// -- model --

type cartModel struct {
	shop         *app.App
	view         cart.View
	cursor       int
	confirmClear bool
	checkingOut  bool
	checkoutURL  string
	status       string
	width        int
	height       int
}

func newCartModel(shop *app.App) cartModel {
	return cartModel{shop: shop}
}

func (m cartModel) Init() tea.Cmd {
	return m.fetch()
}

func (m cartModel) fetch() tea.Cmd {
	if m.shop == nil {
		return nil
	}
	sync := m.shop.Cart
	return func() tea.Msg {
		_, err := sync.Fetch(context.Background())
		return cartSyncedMsg{view: sync.View(), err: err}
	}
}

// write runs one cart mutation. Toasts for the outcome arrive through the
// notice channel, so only the resulting view is reported here.
func (m cartModel) write(fn func(ctx context.Context, s *cart.Synchronizer) error) tea.Cmd {
	if m.shop == nil {
		return nil
	}
	sync := m.shop.Cart
	return func() tea.Msg {
		err := fn(context.Background(), sync)
		return cartSyncedMsg{view: sync.View(), err: err}
	}
}

func (m cartModel) startCheckout() tea.Cmd {
	if m.shop == nil {
		return nil
	}
	co := m.shop.Checkout
	return func() tea.Msg {
		url, err := co.Start(context.Background())
		return checkoutDoneMsg{url: url, err: err}
	}
}

func (m cartModel) Update(msg tea.Msg) (cartModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case cartSyncedMsg:
		m.setView(msg.view)

	case cartChangedMsg:
		m.setView(msg.view)

	case checkoutDoneMsg:
		m.checkingOut = false
		m.checkoutURL = msg.url
		switch {
		case msg.err == nil:
			m.status = "payment page opened in your browser"
		case msg.url != "":
			m.status = "open the payment page: " + msg.url
		default:
			m.status = notify.Describe(msg.err)
		}

	case copyResultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("copy failed: %v", msg.err)
		} else {
			m.status = msg.what + " copied!"
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *cartModel) setView(v cart.View) {
	m.view = v
	n := 0
	if v.Cart != nil {
		n = len(v.Cart.Items)
	}
	if m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
}

// busy reports whether writes must be refused: a cart write or a checkout
// is already running.
func (m cartModel) busy() bool {
	return m.view.Mutating || m.checkingOut
}

func (m cartModel) handleKey(msg tea.KeyMsg) (cartModel, tea.Cmd) {
	key := msg.String()

	if m.confirmClear {
		m.confirmClear = false
		if key == "y" && !m.busy() {
			return m, m.write(func(ctx context.Context, s *cart.Synchronizer) error {
				_, err := s.Clear(ctx)
				return err
			})
		}
		return m, nil
	}

	c := m.view.Cart
	switch key {
	case "j", "down":
		if c != nil && m.cursor < len(c.Items)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "r":
		return m, m.fetch()
	case "+", "=", "-":
		if m.busy() || c.Empty() {
			return m, nil
		}
		item := c.Items[m.cursor]
		qty := item.Quantity + 1
		if key == "-" {
			qty = item.Quantity - 1
		}
		if qty < 1 {
			m.status = "press x to remove the item"
			return m, nil
		}
		m.status = ""
		return m, m.write(func(ctx context.Context, s *cart.Synchronizer) error {
			_, err := s.Update(ctx, item.Product.ID, qty, item.Size, item.Color)
			return err
		})
	case "x", "d":
		if m.busy() || c.Empty() {
			return m, nil
		}
		id := c.Items[m.cursor].Product.ID
		m.status = ""
		return m, m.write(func(ctx context.Context, s *cart.Synchronizer) error {
			_, err := s.Remove(ctx, id)
			return err
		})
	case "C":
		if m.busy() || c.Empty() {
			return m, nil
		}
		m.confirmClear = true
	case "o", "enter":
		if m.busy() || c.Empty() {
			return m, nil
		}
		m.checkingOut = true
		m.checkoutURL = ""
		m.status = ""
		return m, m.startCheckout()
	case "c":
		if m.checkoutURL != "" {
			url := m.checkoutURL
			return m, func() tea.Msg {
				return copyResultMsg{what: "link", err: clipboard.WriteAll(url)}
			}
		}
	}
	return m, nil
}

func (m cartModel) View() string {
	var b strings.Builder
	v := m.view

	if v.Cart == nil {
		switch {
		case v.State == cart.StateFetching:
			b.WriteString(" " + dimStyle.Render("loading cart...") + "\n")
		case v.Err != nil:
			b.WriteString(" " + errorStyle.Render("error: "+notify.Describe(v.Err)) + "\n")
		default:
			b.WriteString(" " + dimStyle.Render("no cart loaded (r to refresh)") + "\n")
		}
		return b.String()
	}
	if v.Cart.Empty() {
		b.WriteString("\n " + dimStyle.Render("your cart is empty. browse the catalog with 1") + "\n")
		if m.status != "" {
			b.WriteString("\n " + accentStyle.Render(m.status) + "\n")
		}
		return b.String()
	}

	for i, item := range v.Cart.Items {
		cursor := " "
		title := normalStyle.Render(fmt.Sprintf("%-28s", truncStr(item.Product.Title, 28)))
		if i == m.cursor {
			cursor = accentStyle.Render("▸")
			title = selectedStyle.Render(fmt.Sprintf("%-28s", truncStr(item.Product.Title, 28)))
		}
		variant := metaStyle.Render(fmt.Sprintf("%-12s", variantLabel(item.Size, item.Color)))
		qty := normalStyle.Render(fmt.Sprintf("x%-3d", item.Quantity))
		total := priceStyle.Render(fmt.Sprintf("%9s", formatMoney(item.LineTotal())))
		b.WriteString(fmt.Sprintf(" %s %s %s %s %s\n", cursor, title, variant, qty, total))
	}

	t := v.Totals
	items := "items"
	if t.ItemCount == 1 {
		items = "item"
	}
	b.WriteString("\n " + dimStyle.Render(fmt.Sprintf("%d %s", t.ItemCount, items)) + dimStyle.Render(" · subtotal ") + priceStyle.Render(formatMoney(t.Subtotal)) + "\n")

	switch {
	case m.confirmClear:
		b.WriteString("\n " + errorStyle.Render("clear the whole cart? (y/n)") + "\n")
	case m.checkingOut:
		b.WriteString("\n " + dimStyle.Render("starting checkout...") + "\n")
	case v.Mutating:
		b.WriteString("\n " + dimStyle.Render("saving...") + "\n")
	case m.status != "":
		b.WriteString("\n " + accentStyle.Render(m.status) + "\n")
	}
	return b.String()
}

func (m cartModel) helpKeys() string {
	if m.checkoutURL != "" {
		return helpEntry("c", "copy link") + "  " + helpEntry("r", "refresh") + "  " + helpEntry("q", "quit")
	}
	return helpEntry("j/k", "nav") + "  " + helpEntry("+/-", "qty") + "  " + helpEntry("x", "remove") + "  " + helpEntry("C", "clear") + "  " + helpEntry("o", "checkout") + "  " + helpEntry("r", "refresh") + "  " + helpEntry("q", "quit")
}
