package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/naveenspark/shopdrop/pkg/domain"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#2dd4bf")).Bold(true)
	promptStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	priceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#D4A017"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ade80"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#f87171"))
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#818cf8"))
)

const banner = `
  ___ _              ___
 / __| |_  ___ _ __ |   \ _ _ ___ _ __
 \__ \ ' \/ _ \ '_ \| |) | '_/ _ \ '_ \
 |___/_||_\___/ .__/|___/|_| \___/ .__/
              |_|                |_|
`

func printBanner(w io.Writer, version string) {
	fmt.Fprint(w, titleStyle.Render(banner))
	fmt.Fprintln(w)
	fmt.Fprintln(w, dimStyle.Render("  terminal storefront · "+version))
	fmt.Fprintln(w)
}

func money(d decimal.Decimal) string {
	return priceStyle.Render("$" + d.StringFixed(2))
}

func variant(size, color string) string {
	parts := make([]string, 0, 2)
	if size != "" {
		parts = append(parts, size)
	}
	if color != "" {
		parts = append(parts, color)
	}
	return strings.Join(parts, " / ")
}

func stock(p domain.Product) string {
	switch {
	case p.Type == domain.ProductDigital:
		return "digital"
	case p.Stock == nil:
		return ""
	case *p.Stock <= 0:
		return warnStyle.Render("sold out")
	default:
		return fmt.Sprintf("%d in stock", *p.Stock)
	}
}

func printUser(w io.Writer, u *domain.User) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render(u.Username), dimStyle.Render("<"+u.Email+">"))
	fmt.Fprintf(w, "  role     %s\n", u.Role)
	if u.Address != "" {
		fmt.Fprintf(w, "  address  %s\n", u.Address)
	}
	if u.ProfilePicture != "" {
		fmt.Fprintf(w, "  picture  %s\n", u.ProfilePicture)
	}
}

func printProducts(w io.Writer, products []domain.Product, search string) {
	if len(products) == 0 {
		if search != "" {
			fmt.Fprintf(w, "No products match %q.\n", search)
		} else {
			fmt.Fprintln(w, "No products yet.")
		}
		return
	}
	for _, p := range products {
		fmt.Fprintf(w, "%s  %-32s %s  %s\n", idStyle.Render(p.ID), p.Title, money(p.Price), dimStyle.Render(stock(p)))
	}
}

func printProduct(w io.Writer, p *domain.Product) {
	fmt.Fprintf(w, "%s  %s\n", titleStyle.Render(p.Title), money(p.Price))
	fmt.Fprintf(w, "  id       %s\n", p.ID)
	fmt.Fprintf(w, "  type     %s\n", p.Type)
	if s := stock(*p); s != "" {
		fmt.Fprintf(w, "  stock    %s\n", s)
	}
	if len(p.Sizes) > 0 {
		fmt.Fprintf(w, "  sizes    %s\n", strings.Join(p.Sizes, ", "))
	}
	if len(p.Colors) > 0 {
		fmt.Fprintf(w, "  colors   %s\n", strings.Join(p.Colors, ", "))
	}
	if p.Description != "" {
		fmt.Fprintf(w, "\n%s\n", p.Description)
	}
}

func printCart(w io.Writer, c *domain.Cart) {
	if c.Empty() {
		fmt.Fprintln(w, "Your cart is empty.")
		return
	}
	for _, it := range c.Items {
		label := it.Product.Title
		if v := variant(it.Size, it.Color); v != "" {
			label += " (" + v + ")"
		}
		fmt.Fprintf(w, "%s  %-36s x%-3d %s\n", idStyle.Render(it.Product.ID), label, it.Quantity, money(it.LineTotal()))
	}
	t := c.Totals()
	fmt.Fprintf(w, "\n%d items · subtotal %s\n", t.ItemCount, money(t.Subtotal))
}

func printOrders(w io.Writer, orders []domain.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "No orders yet.")
		return
	}
	for _, o := range orders {
		fmt.Fprintf(w, "%s  %-10s %s  %s\n", idStyle.Render(o.ID), o.Status, money(o.TotalAmount), dimStyle.Render(o.CreatedAt.Format("2006-01-02 15:04")))
	}
}

func printOrder(w io.Writer, o *domain.Order) {
	fmt.Fprintf(w, "%s  %s\n", titleStyle.Render("Order "+o.ID), o.Status)
	for _, it := range o.Items {
		fmt.Fprintf(w, "  %-36s x%-3d %s\n", it.Product.Title, it.Quantity, money(it.Price))
	}
	fmt.Fprintf(w, "  total %s\n", money(o.TotalAmount))
	if pi := o.PaymentInfo; pi != nil {
		if pi.Status != "" {
			fmt.Fprintf(w, "  payment %s (%s)\n", pi.Method, pi.Status)
		} else {
			fmt.Fprintf(w, "  payment %s\n", pi.Method)
		}
	}
	if o.IsDigital {
		fmt.Fprintln(w, "  digital delivery")
	}
	if !o.CreatedAt.IsZero() {
		fmt.Fprintf(w, "  placed %s\n", o.CreatedAt.Format("2006-01-02 15:04"))
	}
}
