package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/shopdrop/internal/app"
	"github.com/naveenspark/shopdrop/internal/notify"
	"github.com/naveenspark/shopdrop/pkg/domain"
)

// -- messages --

type productsLoadedMsg struct {
	query    string
	products []domain.Product
	err      error
}

type productLoadedMsg struct {
	product *domain.Product
	err     error
}

type addedToCartMsg struct {
	err error
}

// -- model --

type catalogModel struct {
	shop      *app.App
	products  []domain.Product
	cursor    int
	query     string // submitted search
	input     string // search being typed
	searching bool
	loading   bool
	err       string
	signedIn  bool

	// detail
	detail   *domain.Product
	sizeIdx  int
	colorIdx int
	qty      int
	adding   bool
	status   string

	width  int
	height int
}

func newCatalogModel(shop *app.App) catalogModel {
	return catalogModel{shop: shop}
}

func (m catalogModel) Init() tea.Cmd {
	return m.loadProducts()
}

func (m catalogModel) loadProducts() tea.Cmd {
	if m.shop == nil {
		return nil
	}
	c := m.shop.Client
	q := m.query
	return func() tea.Msg {
		products, err := c.ListProducts(context.Background(), q)
		return productsLoadedMsg{query: q, products: products, err: err}
	}
}

func (m catalogModel) loadProduct(id string) tea.Cmd {
	if m.shop == nil {
		return nil
	}
	c := m.shop.Client
	return func() tea.Msg {
		p, err := c.GetProduct(context.Background(), id)
		return productLoadedMsg{product: p, err: err}
	}
}

func (m catalogModel) Update(msg tea.Msg) (catalogModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case productsLoadedMsg:
		if msg.query != m.query {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.err = notify.Describe(msg.err)
			return m, nil
		}
		m.err = ""
		m.products = msg.products
		if m.cursor >= len(m.products) {
			m.cursor = 0
		}

	case productLoadedMsg:
		// The list row is shown at once; the fetched copy only refreshes it.
		if m.detail == nil {
			return m, nil
		}
		if msg.err != nil {
			m.status = notify.Describe(msg.err)
			return m, nil
		}
		if msg.product != nil && msg.product.ID == m.detail.ID {
			m.detail = msg.product
		}

	case addedToCartMsg:
		m.adding = false
		if msg.err != nil {
			m.status = notify.Describe(msg.err)
		} else {
			m.status = "added to cart"
		}

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		if m.detail != nil {
			return m.updateDetail(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m *catalogModel) openDetail(p *domain.Product) {
	if p == nil {
		return
	}
	m.detail = p
	m.sizeIdx = 0
	m.colorIdx = 0
	m.qty = 1
	m.status = ""
}

func (m catalogModel) updateSearch(msg tea.KeyMsg) (catalogModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.input = m.query
	case "enter":
		m.searching = false
		m.query = strings.TrimSpace(m.input)
		m.cursor = 0
		m.loading = true
		return m, m.loadProducts()
	default:
		m.input = editKey(m.input, msg)
	}
	return m, nil
}

func (m catalogModel) updateList(msg tea.KeyMsg) (catalogModel, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if m.cursor < len(m.products)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "/":
		m.searching = true
		m.input = m.query
	case "enter":
		if m.cursor < len(m.products) {
			p := m.products[m.cursor]
			m.openDetail(&p)
			return m, m.loadProduct(p.ID)
		}
	case "r":
		m.loading = true
		return m, m.loadProducts()
	}
	return m, nil
}

func (m catalogModel) updateDetail(msg tea.KeyMsg) (catalogModel, tea.Cmd) {
	p := m.detail
	switch msg.String() {
	case "esc":
		m.detail = nil
		m.status = ""
	case "s":
		if len(p.Sizes) > 0 {
			m.sizeIdx = (m.sizeIdx + 1) % len(p.Sizes)
		}
	case "c":
		if len(p.Colors) > 0 {
			m.colorIdx = (m.colorIdx + 1) % len(p.Colors)
		}
	case "+", "=":
		m.qty++
	case "-":
		if m.qty > 1 {
			m.qty--
		}
	case "a":
		if !m.signedIn {
			m.status = "sign in to add items (press 4)"
			return m, nil
		}
		if m.adding {
			return m, nil
		}
		if !p.InStock() {
			m.status = "sold out"
			return m, nil
		}
		m.adding = true
		m.status = ""
		return m, m.addToCart()
	}
	return m, nil
}

func (m catalogModel) choice() (size, color string) {
	p := m.detail
	if len(p.Sizes) > 0 {
		size = p.Sizes[m.sizeIdx%len(p.Sizes)]
	}
	if len(p.Colors) > 0 {
		color = p.Colors[m.colorIdx%len(p.Colors)]
	}
	return size, color
}

func (m catalogModel) addToCart() tea.Cmd {
	if m.shop == nil {
		return nil
	}
	sync := m.shop.Cart
	id := m.detail.ID
	qty := m.qty
	size, color := m.choice()
	return func() tea.Msg {
		_, err := sync.Add(context.Background(), id, qty, size, color)
		return addedToCartMsg{err: err}
	}
}

func (m catalogModel) View() string {
	if m.detail != nil {
		return m.detailView()
	}
	var b strings.Builder

	switch {
	case m.searching:
		b.WriteString(" " + searchStyle.Render("/") + " " + renderInput("", m.input, "search products", true, false, 0) + "\n")
	case m.query != "":
		b.WriteString(" " + dimStyle.Render("search: ") + normalStyle.Render(m.query) + "\n")
	}

	if m.loading && len(m.products) == 0 {
		b.WriteString(" " + dimStyle.Render("loading...") + "\n")
		return b.String()
	}
	if m.err != "" {
		b.WriteString(" " + errorStyle.Render("error: "+m.err) + "\n")
		return b.String()
	}
	if len(m.products) == 0 {
		if m.query != "" {
			b.WriteString("\n " + dimStyle.Render("no products match "+fmt.Sprintf("%q", m.query)) + "\n")
		} else {
			b.WriteString("\n " + dimStyle.Render("the catalog is empty") + "\n")
		}
		return b.String()
	}

	for i, p := range m.products {
		cursor := " "
		title := normalStyle.Render(fmt.Sprintf("%-32s", truncStr(p.Title, 32)))
		if i == m.cursor {
			cursor = accentStyle.Render("▸")
			title = selectedStyle.Render(fmt.Sprintf("%-32s", truncStr(p.Title, 32)))
		}
		row := fmt.Sprintf(" %s %s  %s", cursor, title, priceStyle.Render(fmt.Sprintf("%9s", formatMoney(p.Price))))
		if s := stockLabel(p); s != "" {
			row += "  " + s
		}
		b.WriteString(row + "\n")
	}
	return b.String()
}

func (m catalogModel) detailView() string {
	p := m.detail
	var b strings.Builder

	b.WriteString(" " + selectedStyle.Render(p.Title) + "  " + priceStyle.Render(formatMoney(p.Price)) + "\n")
	if s := stockLabel(*p); s != "" {
		b.WriteString(" " + s + "\n")
	}
	if p.Description != "" {
		b.WriteString("\n " + normalStyle.Render(p.Description) + "\n")
	}
	b.WriteString("\n")

	size, color := m.choice()
	if len(p.Sizes) > 0 {
		b.WriteString(" " + sectionHeaderStyle.Render("size  ") + optionRow(p.Sizes, size) + "\n")
	}
	if len(p.Colors) > 0 {
		b.WriteString(" " + sectionHeaderStyle.Render("color ") + optionRow(p.Colors, color) + "\n")
	}
	b.WriteString(" " + sectionHeaderStyle.Render("qty   ") + selectedStyle.Render(fmt.Sprintf("%d", m.qty)) + "\n")

	switch {
	case m.adding:
		b.WriteString("\n " + dimStyle.Render("adding...") + "\n")
	case m.status != "":
		b.WriteString("\n " + accentStyle.Render(m.status) + "\n")
	}
	return b.String()
}

func optionRow(options []string, chosen string) string {
	parts := make([]string, len(options))
	for i, o := range options {
		if o == chosen {
			parts[i] = selectedRowBg.Render(selectedStyle.Render(" " + o + " "))
		} else {
			parts[i] = dimStyle.Render(" " + o + " ")
		}
	}
	return strings.Join(parts, " ")
}

func (m catalogModel) helpKeys() string {
	if m.searching {
		return helpEntry("enter", "search") + "  " + helpEntry("esc", "cancel")
	}
	if m.detail != nil {
		return helpEntry("s", "size") + "  " + helpEntry("c", "color") + "  " + helpEntry("+/-", "qty") + "  " + helpEntry("a", "add") + "  " + helpEntry("esc", "back")
	}
	return helpEntry("j/k", "nav") + "  " + helpEntry("/", "search") + "  " + helpEntry("enter", "open") + "  " + helpEntry("r", "refresh") + "  " + helpEntry("h", "help") + "  " + helpEntry("q", "quit")
}
