package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/razvan-soare/gemstone-tracker-sub000/internal/domain"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/engine"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/engine/auth"
	"github.com/razvan-soare/gemstone-tracker-sub000/internal/repo"
)

func stoneCmd() *cobra.Command {
	stone := &cobra.Command{Use: "stone", Short: "Manage stones"}
	stone.AddCommand(stoneAddCmd())
	stone.AddCommand(stoneListCmd())
	stone.AddCommand(stoneGetCmd())
	stone.AddCommand(stoneUpdateCmd())
	stone.AddCommand(stoneSellCmd())
	stone.AddCommand(stoneUnsellCmd())
	stone.AddCommand(stoneDeleteCmd())
	return stone
}

// stoneFlag maps a CLI flag to a stone attribute.
type stoneFlag struct {
	name  string
	usage string
	in    func(*engine.StoneInput) *string
	patch func(*engine.StonePatch) **string
}

var stoneFlags = []stoneFlag{
	{"name", "stone name", func(i *engine.StoneInput) *string { return &i.Name }, func(p *engine.StonePatch) **string { return &p.Name }},
	{"shape", "shape", func(i *engine.StoneInput) *string { return &i.Shape }, func(p *engine.StonePatch) **string { return &p.Shape }},
	{"color", "color", func(i *engine.StoneInput) *string { return &i.Color }, func(p *engine.StonePatch) **string { return &p.Color }},
	{"cut", "cut", func(i *engine.StoneInput) *string { return &i.Cut }, func(p *engine.StonePatch) **string { return &p.Cut }},
	{"weight", "weight in carats", func(i *engine.StoneInput) *string { return &i.Weight }, func(p *engine.StonePatch) **string { return &p.Weight }},
	{"buy-price", "purchase price", func(i *engine.StoneInput) *string { return &i.BuyPrice }, func(p *engine.StonePatch) **string { return &p.BuyPrice }},
	{"buy-currency", "purchase currency", func(i *engine.StoneInput) *string { return &i.BuyCurrency }, func(p *engine.StonePatch) **string { return &p.BuyCurrency }},
	{"sell-price", "sale price", func(i *engine.StoneInput) *string { return &i.SellPrice }, func(p *engine.StonePatch) **string { return &p.SellPrice }},
	{"sell-currency", "sale currency", func(i *engine.StoneInput) *string { return &i.SellCurrency }, func(p *engine.StonePatch) **string { return &p.SellCurrency }},
	{"owner", "owner", func(i *engine.StoneInput) *string { return &i.Owner }, func(p *engine.StonePatch) **string { return &p.Owner }},
	{"date", "record date (YYYY-MM-DD)", func(i *engine.StoneInput) *string { return &i.Date }, func(p *engine.StonePatch) **string { return &p.Date }},
	{"purchase-date", "purchase date (YYYY-MM-DD)", func(i *engine.StoneInput) *string { return &i.PurchaseDate }, func(p *engine.StonePatch) **string { return &p.PurchaseDate }},
	{"comment", "comment", func(i *engine.StoneInput) *string { return &i.Comment }, func(p *engine.StonePatch) **string { return &p.Comment }},
	{"identification", "lab identification", func(i *engine.StoneInput) *string { return &i.Identification }, func(p *engine.StonePatch) **string { return &p.Identification }},
	{"bill-number", "bill number", func(i *engine.StoneInput) *string { return &i.BillNumber }, func(p *engine.StonePatch) **string { return &p.BillNumber }},
	{"buyer", "buyer", func(i *engine.StoneInput) *string { return &i.Buyer }, func(p *engine.StonePatch) **string { return &p.Buyer }},
	{"buyer-address", "buyer address", func(i *engine.StoneInput) *string { return &i.BuyerAddress }, func(p *engine.StonePatch) **string { return &p.BuyerAddress }},
}

func addStoneFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	for _, f := range stoneFlags {
		flags.String(f.name, "", f.usage)
	}
	flags.StringSlice("image", nil, "image URL (repeatable)")
}

func stoneAddCmd() *cobra.Command {
	var id, soldAt string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a stone",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := engine.StoneInput{ID: id, SoldAt: soldAt}
			for _, f := range stoneFlags {
				v, _ := cmd.Flags().GetString(f.name)
				*f.in(&in) = v
			}
			in.Images, _ = cmd.Flags().GetStringSlice("image")
			return withOrg(cmd.Context(), auth.PermStoneWrite, func(ctx context.Context, e engine.Engine, orgID string) error {
				s, err := e.CreateStone(ctx, orgID, actorID(), in)
				if err != nil {
					return err
				}
				return printStone(s)
			})
		},
	}
	addStoneFlags(cmd)
	cmd.Flags().StringVar(&id, "id", "", "stone id (generated when empty)")
	cmd.Flags().StringVar(&soldAt, "sold-at", "", "sale timestamp for stones already sold")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func stoneListCmd() *cobra.Command {
	var owner, status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stones, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(cmd.Context(), auth.PermStoneRead, func(ctx context.Context, e engine.Engine, orgID string) error {
				f := repo.StoneFilters{OrgID: orgID, Owner: owner, Limit: limit}
				switch status {
				case "", "all":
				case "sold", "unsold":
					sold := status == "sold"
					f.Sold = &sold
				default:
					return fmt.Errorf("invalid --status %q (want all, sold or unsold)", status)
				}
				stones, err := e.ListStones(ctx, f)
				if err != nil {
					return err
				}
				return printStones(stones)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner filter")
	cmd.Flags().StringVar(&status, "status", "all", "all, sold or unsold")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of stones")
	return cmd
}

func stoneGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a stone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(cmd.Context(), auth.PermStoneRead, func(ctx context.Context, e engine.Engine, orgID string) error {
				s, err := e.GetStone(ctx, orgID, args[0])
				if err != nil {
					return err
				}
				return printStone(s)
			})
		},
	}
}

func stoneUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update stone attributes; an empty value clears optional fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p engine.StonePatch
			changed := false
			for _, f := range stoneFlags {
				if !cmd.Flags().Changed(f.name) {
					continue
				}
				v, _ := cmd.Flags().GetString(f.name)
				*f.patch(&p) = &v
				changed = true
			}
			if cmd.Flags().Changed("image") {
				imgs, _ := cmd.Flags().GetStringSlice("image")
				p.Images = &imgs
				changed = true
			}
			if !changed {
				return fmt.Errorf("nothing to update")
			}
			return withOrg(cmd.Context(), auth.PermStoneWrite, func(ctx context.Context, e engine.Engine, orgID string) error {
				s, err := e.UpdateStone(ctx, orgID, actorID(), args[0], p)
				if err != nil {
					return err
				}
				return printStone(s)
			})
		},
	}
	addStoneFlags(cmd)
	return cmd
}

func stoneSellCmd() *cobra.Command {
	var sale engine.Sale
	cmd := &cobra.Command{
		Use:   "sell <id>",
		Short: "Mark a stone as sold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(cmd.Context(), auth.PermStoneWrite, func(ctx context.Context, e engine.Engine, orgID string) error {
				s, err := e.MarkSold(ctx, orgID, actorID(), args[0], sale)
				if err != nil {
					return err
				}
				return printStone(s)
			})
		},
	}
	cmd.Flags().StringVar(&sale.SoldAt, "sold-at", "", "sale timestamp (default now)")
	cmd.Flags().StringVar(&sale.SellPrice, "price", "", "sale price")
	cmd.Flags().StringVar(&sale.SellCurrency, "currency", "", "sale currency")
	cmd.Flags().StringVar(&sale.Buyer, "buyer", "", "buyer")
	cmd.Flags().StringVar(&sale.BuyerAddress, "buyer-address", "", "buyer address")
	cmd.Flags().StringVar(&sale.BillNumber, "bill-number", "", "bill number")
	return cmd
}

func stoneUnsellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unsell <id>",
		Short: "Revert a sale",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(cmd.Context(), auth.PermStoneWrite, func(ctx context.Context, e engine.Engine, orgID string) error {
				s, err := e.MarkUnsold(ctx, orgID, actorID(), args[0])
				if err != nil {
					return err
				}
				return printStone(s)
			})
		},
	}
}

func stoneDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrg(cmd.Context(), auth.PermStoneWrite, func(ctx context.Context, e engine.Engine, orgID string) error {
				if err := e.DeleteStone(ctx, orgID, actorID(), args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func printStone(s domain.Stone) error {
	if viper.GetBool("json") {
		return printJSON(s)
	}
	tw := newTable()
	tw.SetTitle(s.Name)
	rows := []table.Row{
		{"ID", s.ID},
		{"Shape", s.Shape},
		{"Color", s.Color},
		{"Cut", s.Cut},
		{"Weight", dec(s.Weight)},
		{"Buy", price(s.BuyCurrency, dec(s.BuyPrice))},
		{"Sell", price(s.SellCurrency, dec(s.SellPrice))},
		{"Owner", domain.Deref(s.Owner)},
		{"Date", domain.Deref(s.Date)},
		{"Purchased", domain.Deref(s.PurchaseDate)},
		{"Sold at", domain.Deref(s.SoldAt)},
		{"Buyer", domain.Deref(s.Buyer)},
		{"Bill", domain.Deref(s.BillNumber)},
		{"Identification", domain.Deref(s.Identification)},
		{"Comment", domain.Deref(s.Comment)},
	}
	for _, r := range rows {
		if r[1] != "" {
			tw.AppendRow(r)
		}
	}
	for i, img := range s.Images {
		tw.AppendRow(table.Row{fmt.Sprintf("Image %d", i+1), img.URL})
	}
	tw.Render()
	return nil
}

func printStones(stones []domain.Stone) error {
	if viper.GetBool("json") {
		return printJSON(stones)
	}
	tw := newTable()
	appendStoneRows(tw, stones)
	tw.AppendFooter(table.Row{"", "", "", "", "", "", fmt.Sprintf("%d stones", len(stones))})
	tw.Render()
	return nil
}

func appendStoneRows(tw table.Writer, stones []domain.Stone) {
	tw.AppendHeader(table.Row{"ID", "Name", "Color", "Weight", "Owner", "Date", "Sold"})
	for _, s := range stones {
		sold := ""
		if s.Sold() {
			sold = domain.Deref(s.SoldAt)
		}
		tw.AppendRow(table.Row{s.ID, s.Name, s.Color, dec(s.Weight), domain.Deref(s.Owner), domain.Deref(s.Date), sold})
	}
}

func price(currency *string, amount string) string {
	if amount == "" {
		return ""
	}
	if c := domain.Deref(currency); c != "" {
		return c + " " + amount
	}
	return amount
}
