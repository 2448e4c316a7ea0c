package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rl1809/order-console/internal/core/domain"
	"github.com/rl1809/order-console/internal/core/service"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func renderItems(w io.Writer, items []domain.Item) {
	tw := newTable(w)
	fmt.Fprintln(tw, "UPC\tNAME\tPRICE\tAVAILABLE")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", it.UPC, it.Name, it.UnitPrice.StringFixed(2), it.AvailableUnits)
	}
	tw.Flush()
}

func renderOrders(w io.Writer, orders []domain.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "no orders")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSTATUS\tITEMS\tTOTAL\tCREATED")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", o.ID, o.Status, o.TotalQuantity(), o.TotalAmount.StringFixed(2), o.CreatedAt.Format(time.RFC3339))
	}
	tw.Flush()
}

func renderAccount(w io.Writer, a *domain.Account) {
	fmt.Fprintf(w, "account %d\n  email:    %s\n  username: %s\n", a.ID, a.Email, a.Username)
	if a.ShippingAddress != nil {
		fmt.Fprintf(w, "  shipping: %s\n", formatAddress(*a.ShippingAddress))
	}
	if a.BillingAddress != nil {
		fmt.Fprintf(w, "  billing:  %s\n", formatAddress(*a.BillingAddress))
	}
}

func formatAddress(a domain.Address) string {
	var parts []string
	for _, p := range []string{a.Line1, a.Line2, a.City, a.State, a.Zip, a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func renderView(w io.Writer, v service.View) {
	if v.Order == nil {
		fmt.Fprintf(w, "order %s: %s\n", v.OrderID, v.State)
		if v.Failure != "" {
			fmt.Fprintf(w, "  ! %s\n", v.Failure)
		}
		return
	}
	o := v.Order
	fmt.Fprintf(w, "order %s  [%s]  (%s)\n", o.ID, o.Status, v.State)

	tw := newTable(w)
	fmt.Fprintln(tw, "  UPC\tNAME\tPRICE\tQTY\tSUBTOTAL")
	lines := o.Items
	if v.Draft != nil {
		lines = v.Draft
	}
	for _, it := range lines {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%d\t%s\n", it.UPC, it.Name, it.UnitPrice.StringFixed(2), it.Quantity, it.Subtotal().StringFixed(2))
	}
	tw.Flush()
	fmt.Fprintf(w, "  total: %d items, %s\n", v.TotalQuantity(), v.DisplayTotal().StringFixed(2))

	switch {
	case v.Payment != nil:
		fmt.Fprintf(w, "  payment %s: %s %s\n", v.Payment.ID, v.Payment.Status, v.Payment.Amount.StringFixed(2))
	case v.PaymentUnknown:
		fmt.Fprintln(w, "  payment unknown")
	default:
		fmt.Fprintln(w, "  no payment")
	}
	if v.Failure != "" {
		fmt.Fprintf(w, "  ! %s\n", v.Failure)
	}

	var actions []string
	if v.CanEdit {
		actions = append(actions, "edit")
	}
	if v.CanPay {
		actions = append(actions, "pay")
	}
	if v.CanCancel {
		actions = append(actions, "cancel")
	}
	if len(actions) > 0 {
		fmt.Fprintf(w, "  available: %s\n", strings.Join(actions, ", "))
	}
}

func renderJournal(w io.Writer, entries []domain.JournalEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no journal entries")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "AT\tCOMMAND\tOUTCOME\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.Command, e.Outcome, e.Message)
	}
	tw.Flush()
}
