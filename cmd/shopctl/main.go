// Command shopctl is a terminal storefront and admin console for the
// cotizador API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/muebleria/cotizador-backend/internal/apiclient"
	"github.com/muebleria/cotizador-backend/internal/session"
	"github.com/muebleria/cotizador-backend/pkg/config"
	"github.com/muebleria/cotizador-backend/pkg/enums"
	"github.com/muebleria/cotizador-backend/pkg/logger"
)

const usage = `usage: shopctl [-base-url URL] <command> [args]

commands:
  items                          list the catalog
  modifiers                      list modifiers
  quote <line>...                price a cart without buying
  checkout <line>...             settle a cart
  add-item -name N -price P ...  create an item
  add-modifier -name N -kind K -value V
  activate <itemID>
  deactivate <itemID>

a line is itemID:qty[:modID,modID]
`

func main() {
	_ = godotenv.Load()

	settlement, err := config.LoadSettlement()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	global := flag.NewFlagSet("shopctl", flag.ExitOnError)
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	baseURL := global.String("base-url", settlement.BaseURL, "settlement API base URL")
	timeout := global.Duration("timeout", settlement.ClientTimeout, "per request timeout")
	verbose := global.Bool("v", false, "debug logging")
	_ = global.Parse(os.Args[1:])

	if global.NArg() == 0 {
		global.Usage()
		os.Exit(2)
	}

	level := logger.ParseLevel("warn")
	if *verbose {
		level = logger.ParseLevel("debug")
	}
	logg := logger.New(logger.Options{ServiceName: "shopctl", Level: level, Output: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Stdout, logg, *baseURL, *timeout, global.Args()); err != nil {
		var rejected *session.SettlementRejectedError
		if errors.As(err, &rejected) {
			fmt.Fprintln(os.Stderr, "sale rejected:", rejected.Reason)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, logg *logger.Logger, baseURL string, timeout time.Duration, args []string) error {
	client, err := apiclient.New(baseURL, timeout)
	if err != nil {
		return err
	}
	sess, err := session.New(client, session.Options{SettleTimeout: timeout, Logger: logg})
	if err != nil {
		return err
	}
	if err := sess.Reload(ctx); err != nil {
		return err
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "items":
		return printItems(out, sess)
	case "modifiers":
		return printModifiers(out, sess)
	case "quote":
		if err := fillCart(sess, rest); err != nil {
			return err
		}
		return printQuote(out, sess)
	case "checkout":
		if err := fillCart(sess, rest); err != nil {
			return err
		}
		if err := printQuote(out, sess); err != nil {
			return err
		}
		result, err := sess.Checkout(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: paid %s (sale %s)\n", result.Message, result.TotalPaid.StringFixed(2), result.SaleID)
		return nil
	case "add-item":
		return addItem(ctx, out, sess, rest)
	case "add-modifier":
		return addModifier(ctx, out, sess, rest)
	case "activate", "deactivate":
		if len(rest) != 1 {
			return fmt.Errorf("%s takes exactly one item id", cmd)
		}
		id, err := uuid.Parse(rest[0])
		if err != nil {
			return fmt.Errorf("invalid item id: %w", err)
		}
		status := enums.ItemStatusActive
		if cmd == "deactivate" {
			status = enums.ItemStatusInactive
		}
		item, err := sess.SetItemStatus(ctx, id, status)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s is now %s\n", item.Name, item.Status)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func fillCart(sess *session.Session, raw []string) error {
	args, err := parseCartArgs(raw)
	if err != nil {
		return err
	}
	for _, arg := range args {
		if err := sess.Add(arg.ItemID, arg.Quantity, arg.ModifierIDs...); err != nil {
			return err
		}
	}
	return nil
}

func printItems(out io.Writer, sess *session.Session) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK\tSTATUS")
	for _, item := range sess.Items() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", item.ID, item.Name, item.BasePrice.StringFixed(2), item.Stock, item.Status)
	}
	return tw.Flush()
}

func printModifiers(out io.Writer, sess *session.Session) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tVALUE")
	for _, mod := range sess.Modifiers() {
		value := mod.Value.StringFixed(2)
		if mod.Kind == enums.ModifierKindPercentage {
			value = mod.Value.Mul(decimal.NewFromInt(100)).String() + "%"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mod.ID, mod.Name, mod.Kind, value)
	}
	return tw.Flush()
}

func printQuote(out io.Writer, sess *session.Session) error {
	quote, err := sess.Quote()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tQTY\tUNIT\tTOTAL")
	for _, line := range quote.Lines {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", line.Line.ItemID, line.Line.Quantity, line.UnitPrice.StringFixed(2), line.LineTotal.StringFixed(2))
	}
	fmt.Fprintf(tw, "\t\t\t%s\n", quote.Total.StringFixed(2))
	return tw.Flush()
}

func addItem(ctx context.Context, out io.Writer, sess *session.Session, args []string) error {
	fs := flag.NewFlagSet("add-item", flag.ContinueOnError)
	name := fs.String("name", "", "item name")
	kind := fs.String("kind", "", "furniture kind, e.g. table")
	material := fs.String("material", "", "material")
	size := fs.String("size", "", "LARGE, MEDIUM or SMALL")
	price := fs.String("price", "", "base price")
	stock := fs.Int("stock", 0, "units on hand")
	if err := fs.Parse(args); err != nil {
		return err
	}

	basePrice, err := decimal.NewFromString(*price)
	if err != nil {
		return fmt.Errorf("invalid -price: %w", err)
	}
	var itemSize enums.ItemSize
	if *size != "" {
		if itemSize, err = enums.ParseItemSize(strings.ToUpper(*size)); err != nil {
			return err
		}
	}
	item, err := sess.CreateItem(ctx, apiclient.CreateItemRequest{
		Name:      *name,
		Kind:      *kind,
		Material:  *material,
		Size:      itemSize,
		BasePrice: basePrice,
		Stock:     *stock,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created item %s (%s)\n", item.Name, item.ID)
	return nil
}

func addModifier(ctx context.Context, out io.Writer, sess *session.Session, args []string) error {
	fs := flag.NewFlagSet("add-modifier", flag.ContinueOnError)
	name := fs.String("name", "", "modifier name")
	kind := fs.String("kind", string(enums.ModifierKindFixedAdd), "FIXED_ADD or PERCENTAGE")
	value := fs.String("value", "", "amount, or percent points for PERCENTAGE")
	if err := fs.Parse(args); err != nil {
		return err
	}

	amount, err := decimal.NewFromString(*value)
	if err != nil {
		return fmt.Errorf("invalid -value: %w", err)
	}
	modKind, err := enums.ParseModifierKind(strings.ToUpper(*kind))
	if err != nil {
		return err
	}
	mod, err := sess.CreateModifier(ctx, apiclient.CreateModifierRequest{
		Name:  *name,
		Kind:  modKind,
		Value: amount,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created modifier %s (%s)\n", mod.Name, mod.ID)
	return nil
}
