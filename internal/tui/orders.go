package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/shopdrop/internal/app"
	"github.com/naveenspark/shopdrop/internal/notify"
	"github.com/naveenspark/shopdrop/pkg/domain"
)

// -- messages --

type ordersLoadedMsg struct {
	orders []domain.Order
	err    error
}

type orderLoadedMsg struct {
	order *domain.Order
	err   error
}

// -- model --

type ordersModel struct {
	shop    *app.App
	orders  []domain.Order
	cursor  int
	detail  *domain.Order
	loading bool
	err     string
	status  string
	width   int
	height  int
}

func newOrdersModel(shop *app.App) ordersModel {
	return ordersModel{shop: shop}
}

func (m ordersModel) Init() tea.Cmd {
	return m.loadOrders()
}

func (m ordersModel) loadOrders() tea.Cmd {
	if m.shop == nil {
		return nil
	}
	c := m.shop.Client
	return func() tea.Msg {
		orders, err := c.ListOrders(context.Background())
		return ordersLoadedMsg{orders: orders, err: err}
	}
}

func (m ordersModel) loadOrder(id string) tea.Cmd {
	if m.shop == nil {
		return nil
	}
	c := m.shop.Client
	return func() tea.Msg {
		o, err := c.GetOrder(context.Background(), id)
		return orderLoadedMsg{order: o, err: err}
	}
}

func (m ordersModel) Update(msg tea.Msg) (ordersModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case ordersLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = notify.Describe(msg.err)
			return m, nil
		}
		m.err = ""
		m.orders = msg.orders
		if m.cursor >= len(m.orders) {
			m.cursor = 0
		}

	case orderLoadedMsg:
		if m.detail == nil {
			return m, nil
		}
		if msg.err != nil {
			m.status = notify.Describe(msg.err)
			return m, nil
		}
		if msg.order != nil && msg.order.ID == m.detail.ID {
			m.detail = msg.order
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

func (m ordersModel) handleKey(msg tea.KeyMsg) (ordersModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.detail = nil
		m.status = ""
	case "j", "down":
		if m.detail == nil && m.cursor < len(m.orders)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.detail == nil && m.cursor > 0 {
			m.cursor--
		}
	case "enter":
		if m.detail == nil && m.cursor < len(m.orders) {
			o := m.orders[m.cursor]
			m.detail = &o
			m.status = ""
			return m, m.loadOrder(o.ID)
		}
	case "c":
		if o := m.selected(); o != nil {
			id := o.ID
			return m, func() tea.Msg {
				return copyResultMsg{what: "order id", err: clipboard.WriteAll(id)}
			}
		}
	case "r":
		m.loading = true
		return m, m.loadOrders()
	}
	return m, nil
}

func (m ordersModel) selected() *domain.Order {
	if m.detail != nil {
		return m.detail
	}
	if m.cursor < len(m.orders) {
		return &m.orders[m.cursor]
	}
	return nil
}

func (m ordersModel) View() string {
	if m.detail != nil {
		return m.detailView()
	}
	var b strings.Builder

	if m.loading && len(m.orders) == 0 {
		b.WriteString(" " + dimStyle.Render("loading...") + "\n")
		return b.String()
	}
	if m.err != "" {
		b.WriteString(" " + errorStyle.Render("error: "+m.err) + "\n")
		return b.String()
	}
	if len(m.orders) == 0 {
		b.WriteString("\n " + dimStyle.Render("no orders yet") + "\n")
		return b.String()
	}

	for i, o := range m.orders {
		cursor := " "
		id := normalStyle.Render("#" + shortID(o.ID))
		if i == m.cursor {
			cursor = accentStyle.Render("▸")
			id = selectedStyle.Render("#" + shortID(o.ID))
		}
		status := StatusStyle(o.Status).Render(fmt.Sprintf("%-10s", o.Status))
		items := metaStyle.Render(fmt.Sprintf("%2d items", o.ItemCount()))
		total := priceStyle.Render(fmt.Sprintf("%9s", formatMoney(o.TotalAmount)))
		when := dimStyle.Render(formatTime(o.CreatedAt))
		b.WriteString(fmt.Sprintf(" %s %s  %s  %s  %s  %s\n", cursor, id, status, items, total, when))
	}
	if m.status != "" {
		b.WriteString("\n " + accentStyle.Render(m.status) + "\n")
	}
	return b.String()
}

func (m ordersModel) detailView() string {
	o := m.detail
	var b strings.Builder

	b.WriteString(" " + selectedStyle.Render("Order #"+shortID(o.ID)) + "  " + StatusStyle(o.Status).Render(string(o.Status)) + "\n")
	if when := formatTime(o.CreatedAt); when != "" {
		b.WriteString(" " + dimStyle.Render("placed "+when) + "\n")
	}
	b.WriteString("\n")
	for _, item := range o.Items {
		title := normalStyle.Render(fmt.Sprintf("%-28s", truncStr(item.Product.Title, 28)))
		b.WriteString(fmt.Sprintf("   %s x%-3d %s\n", title, item.Quantity, priceStyle.Render(fmt.Sprintf("%9s", formatMoney(item.Price)))))
	}
	b.WriteString("\n " + dimStyle.Render("total ") + priceStyle.Render(formatMoney(o.TotalAmount)) + "\n")
	if p := o.PaymentInfo; p != nil {
		line := "payment " + p.Method
		if p.Status != "" {
			line += " (" + string(p.Status) + ")"
		}
		b.WriteString(" " + dimStyle.Render(line) + "\n")
	}
	if o.IsDigital {
		b.WriteString(" " + accentStyle.Render("digital delivery") + "\n")
	}
	if m.status != "" {
		b.WriteString("\n " + accentStyle.Render(m.status) + "\n")
	}
	return b.String()
}

func (m ordersModel) helpKeys() string {
	if m.detail != nil {
		return helpEntry("c", "copy id") + "  " + helpEntry("esc", "back") + "  " + helpEntry("q", "quit")
	}
	return helpEntry("j/k", "nav") + "  " + helpEntry("enter", "open") + "  " + helpEntry("c", "copy id") + "  " + helpEntry("r", "refresh") + "  " + helpEntry("q", "quit")
}
