package ledger

import (
	"sort"

	"wallet/internal/models"
)

type CategoryTotal struct {
	Category   string
	Total      int64
	Count      int
	Percentage float64
}

type Reconciliation struct {
	StoredBalance int64
	LedgerSum     int64
	Difference    int64
}

func (r Reconciliation) Balanced() bool {
	return r.Difference == 0
}

func SumEffects(transactions []models.Transaction) int64 {
	var sum int64
	for _, tx := range transactions {
		sum += tx.Effect()
	}
	return sum
}

// Reconcile compares the stored balance with the signed sum of the log.
func (l *Ledger) Reconcile() Reconciliation {
	sum := SumEffects(l.account.Transactions)
	return Reconciliation{
		StoredBalance: l.account.Balance,
		LedgerSum:     sum,
		Difference:    l.account.Balance - sum,
	}
}

// SpendingByCategory groups spend transactions by category, largest first.
func (l *Ledger) SpendingByCategory() []CategoryTotal {
	index := map[string]int{}
	var totals []CategoryTotal
	var grand int64
	for _, tx := range l.account.Transactions {
		if tx.Kind != models.KindSpend {
			continue
		}
		category := tx.Category
		if category == "" {
			category = models.DefaultCategory
		}
		i, ok := index[category]
		if !ok {
			i = len(totals)
			index[category] = i
			totals = append(totals, CategoryTotal{Category: category})
		}
		totals[i].Total += tx.Amount
		totals[i].Count++
		grand += tx.Amount
	}
	for i := range totals {
		if grand > 0 {
			totals[i].Percentage = float64(totals[i].Total) / float64(grand) * 100
		}
	}
	sort.SliceStable(totals, func(a, b int) bool {
		if totals[a].Total != totals[b].Total {
			return totals[a].Total > totals[b].Total
		}
		return totals[a].Category < totals[b].Category
	})
	return totals
}
