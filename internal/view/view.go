// Package view renders transaction lists for display. Rendering always
// replaces the whole list; datasets are personal-finance sized, so
// correctness of the visible order matters more than render cost.
package view

import (
	"fmt"
	"html/template"
	"io"
	"sort"

	"github.com/ebisaa944/ExpenseTracker/internal/core"
	appweb "github.com/ebisaa944/ExpenseTracker/web"
)

// Row is one display line. Each row carries the ID its delete affordance
// is bound to.
type Row struct {
	ID       int64
	Title    string
	Amount   string
	Type     core.TransactionType
	Category string
	Date     string
}

// Rows produces display rows in list order: date descending, ties keeping
// input order. The sort must be stable so two same-day transactions never
// swap between re-renders.
func Rows(txs []core.Transaction) []Row {
	sorted := append([]core.Transaction(nil), txs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date.Time)
	})

	rows := make([]Row, len(sorted))
	for i, tx := range sorted {
		rows[i] = Row{
			ID:       tx.ID,
			Title:    tx.Title,
			Amount:   tx.Amount.String(),
			Type:     tx.Type,
			Category: tx.Category,
			Date:     tx.Date.String(),
		}
	}
	return rows
}

// ListData is the payload the transactions partial renders: the ordered
// rows plus the running totals shown above them.
type ListData struct {
	Rows    []Row
	Summary core.Summary
}

// NewListData prepares template data for a set of transactions.
func NewListData(txs []core.Transaction) ListData {
	return ListData{
		Rows:    Rows(txs),
		Summary: core.Summarize(txs),
	}
}

// Renderer writes the transaction list partial from the embedded template.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(appweb.TemplatesFS, "templates/transactions.html")
	if err != nil {
		return nil, fmt.Errorf("parse transactions template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render replaces the list content on w. Empty input renders the
// "no transactions" placeholder rather than an empty container.
func (r *Renderer) Render(w io.Writer, txs []core.Transaction) error {
	if err := r.tmpl.ExecuteTemplate(w, "transactions.html", NewListData(txs)); err != nil {
		return fmt.Errorf("render transactions: %w", err)
	}
	return nil
}
