package core

import "github.com/shopspring/decimal"

// Summary is the derived aggregate over a transaction set. It is never
// persisted; recompute it after every list load, create, or delete.
type Summary struct {
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	NetBalance   decimal.Decimal `json:"net_balance"`
}

// Summarize computes income and expense totals and the net balance. Pure:
// no I/O, no mutation of the input. Transactions with an unknown type are
// skipped silently; invalid amounts contribute zero. NetBalance equals
// TotalIncome minus TotalExpense by construction.
func Summarize(txs []Transaction) Summary {
	income := decimal.Zero
	expense := decimal.Zero
	for _, tx := range txs {
		switch tx.Type {
		case Income:
			income = income.Add(tx.Amount.Decimal())
		case Expense:
			expense = expense.Add(tx.Amount.Decimal())
		}
	}
	return Summary{
		TotalIncome:  income,
		TotalExpense: expense,
		NetBalance:   income.Sub(expense),
	}
}
