package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/naveenspark/shopdrop/internal/app"
)

func newProductsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "products [search]",
		Short: "List the catalog, optionally filtered by a search term",
		RunE: e.withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			search := strings.Join(args, " ")
			products, err := a.Client.ListProducts(cmd.Context(), search)
			if err != nil {
				return err
			}
			printProducts(cmd.OutOrStdout(), products, search)
			return nil
		}),
	}
}

func newProductCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "product <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: e.withApp(func(cmd *cobra.Command, a *app.App, args []string) error {
			p, err := a.Client.GetProduct(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printProduct(cmd.OutOrStdout(), p)
			return nil
		}),
	}
}

func newCartCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show your cart",
		Args:  cobra.NoArgs,
		RunE: e.signedIn(func(cmd *cobra.Command, a *app.App, _ []string) error {
			c, err := a.Cart.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			printCart(cmd.OutOrStdout(), c)
			return nil
		}),
	}
	cmd.AddCommand(
		newCartAddCmd(e),
		newCartUpdateCmd(e),
		newCartRemoveCmd(e),
		newCartClearCmd(e),
	)
	return cmd
}

func newCartAddCmd(e *env) *cobra.Command {
	var quantity int
	var size, color string
	cmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: e.signedIn(func(cmd *cobra.Command, a *app.App, args []string) error {
			c, err := a.Cart.Add(cmd.Context(), args[0], quantity, size, color)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Added to cart."))
			printCart(cmd.OutOrStdout(), c)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&quantity, "qty", "q", 1, "Quantity to add")
	cmd.Flags().StringVar(&size, "size", "", "Size option")
	cmd.Flags().StringVar(&color, "color", "", "Color option")
	return cmd
}

func newCartUpdateCmd(e *env) *cobra.Command {
	var size, color string
	cmd := &cobra.Command{
		Use:   "update <product-id> <quantity>",
		Short: "Set the quantity of a cart line",
		Args:  cobra.ExactArgs(2),
		RunE: e.signedIn(func(cmd *cobra.Command, a *app.App, args []string) error {
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity %q is not a number", args[1])
			}
			c, err := a.Cart.Update(cmd.Context(), args[0], quantity, size, color)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Cart updated."))
			printCart(cmd.OutOrStdout(), c)
			return nil
		}),
	}
	cmd.Flags().StringVar(&size, "size", "", "Size of the line to change")
	cmd.Flags().StringVar(&color, "color", "", "Color of the line to change")
	return cmd
}

func newCartRemoveCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove every line of a product",
		Args:  cobra.ExactArgs(1),
		RunE: e.signedIn(func(cmd *cobra.Command, a *app.App, args []string) error {
			c, err := a.Cart.Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Removed from cart."))
			printCart(cmd.OutOrStdout(), c)
			return nil
		}),
	}
}

func newCartClearCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: e.signedIn(func(cmd *cobra.Command, a *app.App, _ []string) error {
			if _, err := a.Cart.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Cart cleared."))
			return nil
		}),
	}
}

func newCheckoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Pay for the cart on the hosted checkout page",
		Args:  cobra.NoArgs,
		RunE: e.signedIn(func(cmd *cobra.Command, a *app.App, _ []string) error {
			out := cmd.OutOrStdout()
			url, err := a.Checkout.Start(cmd.Context())
			switch {
			case err == nil:
				fmt.Fprintln(out, okStyle.Render("Payment page opened in your browser."))
				return nil
			case url == "":
				return err
			}
			// The session exists but no browser could be opened.
			fmt.Fprintln(out, "Open the payment page:")
			fmt.Fprintln(out, "  "+url)
			if clipboard.WriteAll(url) == nil {
				fmt.Fprintln(out, dimStyle.Render("(link copied to clipboard)"))
			}
			return nil
		}),
	}
}

func newOrdersCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List your orders",
		Args:  cobra.NoArgs,
		RunE: e.signedIn(func(cmd *cobra.Command, a *app.App, _ []string) error {
			orders, err := a.Client.ListOrders(cmd.Context())
			if err != nil {
				return err
			}
			printOrders(cmd.OutOrStdout(), orders)
			return nil
		}),
	}
}

func newOrderCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "order <id>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: e.signedIn(func(cmd *cobra.Command, a *app.App, args []string) error {
			o, err := a.Client.GetOrder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printOrder(cmd.OutOrStdout(), o)
			return nil
		}),
	}
}
