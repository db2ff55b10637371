package service

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/cocsc-web/api/internal/database"
)

// FormatOrderNumber renders a 1-based creation rank as a customer-facing number.
func FormatOrderNumber(rank int64) string {
	return fmt.Sprintf("%04d", rank)
}

// sortByCreation orders rows oldest first. seq breaks created_at ties so two
// orders inserted in the same instant still number deterministically.
func sortByCreation(rows []database.Order) {
	slices.SortStableFunc(rows, func(a, b database.Order) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
}
