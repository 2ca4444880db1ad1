package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/wichananm65/ebook-storefront/internal/client"
	"github.com/wichananm65/ebook-storefront/internal/feed"
	"github.com/wichananm65/ebook-storefront/internal/order"
	"github.com/wichananm65/ebook-storefront/internal/payment"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func currentSession(cmd *cobra.Command) (string, error) {
	p := sessionProvider()
	id, err := p.GetOrCreate(cmd.Context())
	if err != nil {
		return "", err
	}
	if d := p.Degraded(); d != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v; using a temporary session\n", d)
	}
	return id, nil
}

// explain turns API failures into a short line for the terminal.
func explain(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		msg := "invalid input:"
		for field, reason := range apiErr.Fields {
			msg += fmt.Sprintf("\n  %s: %s", field, reason)
		}
		return errors.New(msg)
	}
	if errors.Is(err, client.ErrNetwork) {
		return fmt.Errorf("storefront unreachable: %w", err)
	}
	return err
}

func sessionCmd() *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Print the session id used for cart and checkout",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := sessionProvider()
			var (
				id  string
				err error
			)
			if reset {
				id, err = p.Reset(cmd.Context())
			} else {
				id, err = p.GetOrCreate(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "start a new session")
	return cmd
}

func cartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change the session cart",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := currentSession(cmd)
			if err != nil {
				return err
			}
			c, err := apiClient().GetCart(cmd.Context(), sid)
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), c)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <product-id> [quantity]",
		Short: "Add a product",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty := 1
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("quantity must be a number: %w", err)
				}
				qty = n
			}
			sid, err := currentSession(cmd)
			if err != nil {
				return err
			}
			c, err := apiClient().AddItem(cmd.Context(), sid, args[0], qty)
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), c)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "update <product-id> <quantity>",
		Short: "Set a line quantity; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity must be a number: %w", err)
			}
			sid, err := currentSession(cmd)
			if err != nil {
				return err
			}
			c, err := apiClient().UpdateItem(cmd.Context(), sid, args[0], qty)
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), c)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := currentSession(cmd)
			if err != nil {
				return err
			}
			c, err := apiClient().RemoveItem(cmd.Context(), sid, args[0])
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), c)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := currentSession(cmd)
			if err != nil {
				return err
			}
			c, err := apiClient().ClearCart(cmd.Context(), sid)
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), c)
		},
	})

	return cmd
}

func checkoutCmd() *cobra.Command {
	var b order.Billing
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Turn the cart into an order and request payment",
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := currentSession(cmd)
			if err != nil {
				return err
			}
			pending, err := apiClient().NewCheckout(sid, nil).Start(cmd.Context(), b)
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), pending)
		},
	}
	cmd.Flags().StringVar(&b.Name, "name", "", "buyer name")
	cmd.Flags().StringVar(&b.Email, "email", "", "buyer email")
	cmd.Flags().StringVar(&b.Phone, "phone", "", "10 digit phone number")
	cmd.Flags().StringVar(&b.City, "city", "", "city")
	cmd.Flags().StringVar(&b.Address, "address", "", "billing address")
	cmd.Flags().StringVar(&b.State, "state", "", "state")
	cmd.Flags().StringVar(&b.Pincode, "pincode", "", "6 digit pincode")

	cmd.AddCommand(verifyCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "cancel <order-number>",
		Short: "Record that the payment window was closed without paying",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := currentSession(cmd)
			if err != nil {
				return err
			}
			o, err := apiClient().NewCheckout(sid, nil).Dismiss(cmd.Context(), args[0])
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), o)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "retry <order-number>",
		Short: "Request the gateway order again for an unpaid order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := currentSession(cmd)
			if err != nil {
				return err
			}
			intent, err := apiClient().NewCheckout(sid, nil).Resume(cmd.Context(), args[0])
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), intent)
		},
	})
	return cmd
}

func verifyCmd() *cobra.Command {
	var (
		v          payment.Verification
		testSecret string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Submit the gateway's payment callback",
		Example: `  storectl checkout verify --order ORD-20250101-AB12CD --gateway-order order_X --payment-id pay_Y --signature <hex>
  storectl checkout verify --order ORD-20250101-AB12CD --gateway-order order_X --payment-id pay_Y --test-secret $RAZORPAY_KEY_SECRET`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v.Signature == "" && testSecret != "" {
				v.Signature = payment.Sign(testSecret, v.GatewayOrderID, v.GatewayPaymentID)
			}
			sid, err := currentSession(cmd)
			if err != nil {
				return err
			}
			o, err := apiClient().NewCheckout(sid, nil).Complete(cmd.Context(), v)
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), o)
		},
	}
	cmd.Flags().StringVar(&v.OrderNumber, "order", "", "order number")
	cmd.Flags().StringVar(&v.GatewayOrderID, "gateway-order", "", "gateway order id")
	cmd.Flags().StringVar(&v.GatewayPaymentID, "payment-id", "", "gateway payment id")
	cmd.Flags().StringVar(&v.Signature, "signature", "", "callback signature")
	cmd.Flags().StringVar(&testSecret, "test-secret", "", "sign the callback locally with a sandbox key secret")
	_ = cmd.MarkFlagRequired("gateway-order")
	_ = cmd.MarkFlagRequired("payment-id")
	return cmd
}

func orderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Look up orders",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <order-number>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := apiClient().GetOrder(cmd.Context(), args[0])
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), o)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "by-email <email>",
		Short: "List a buyer's orders (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orders, err := apiClient().OrdersByEmail(cmd.Context(), args[0])
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), orders)
		},
	})
	return cmd
}

func feedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Recent purchase notifications",
	}

	var (
		every time.Duration
		limit int
	)
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Print recent purchases one at a time until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			out := cmd.OutOrStdout()
			err := apiClient().WatchFeed(ctx, every, limit, func(p feed.Purchase) {
				fmt.Fprintf(out, "%s bought %s %s\n", p.CustomerDisplayName, p.ProductName, p.RelativeTime)
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	watch.Flags().DurationVar(&every, "every", 5*time.Second, "time between notifications")
	watch.Flags().IntVar(&limit, "limit", feed.DefaultLimit, "purchases fetched per refresh")
	cmd.AddCommand(watch)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the current feed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := apiClient().RecentPurchases(cmd.Context(), feed.DefaultLimit)
			if err != nil {
				return explain(err)
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	})
	return cmd
}
