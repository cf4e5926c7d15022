package fee

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dueDay = 10

var (
	NowFunc        = time.Now // mockable
	numberSuffixFn = func() int { return 1000 + rand.Intn(9000) } // mockable
	newIDFunc      = uuid.NewString                                  // mockable
)

// ChallanNumber formats a display number: year, 2-digit month index and a random 4-digit suffix, eg. 2024031234.
// The suffix is not checked for collisions; a challan is identified by (student, month, year).
func ChallanNumber(month Month, year int) string {
	return fmt.Sprintf("%d%02d%04d", year, month.Index(), numberSuffixFn())
}

// DueDate returns the 10th of the billed month, UTC.
func DueDate(month Month, year int) time.Time {
	return time.Date(year, month.Time(), dueDay, 0, 0, 0, 0, time.UTC)
}

// buildChallan computes the challan of one student for a billing period.
// Items come first from the student's fee structure then from the selected fee heads,
// skipping a selected head whose name is already billed. Unknown fee heads are ignored.
func buildChallan(
	std Student,
	heads map[string]FeeHead,
	selected []SelectedFeeHead,
	month Month,
	year int,
	now time.Time,
) Challan {
	items := make([]FeeItem, 0, len(std.FeeStructure)+len(selected))
	billed := make(map[string]bool, cap(items))
	total := decimal.Zero

	for _, entry := range std.FeeStructure {
		head, ok := heads[entry.FeeHeadID]
		if !ok {
			continue
		}
		items = append(items, FeeItem{Description: head.Name, Amount: entry.Amount})
		billed[head.Name] = true
		total = total.Add(entry.Amount)
	}

	for _, sel := range selected {
		head, ok := heads[sel.FeeHeadID]
		if !ok || billed[head.Name] {
			continue
		}
		amount := head.DefaultAmount
		if sel.Amount != nil {
			amount = *sel.Amount
		}
		items = append(items, FeeItem{Description: head.Name, Amount: amount})
		billed[head.Name] = true
		total = total.Add(amount)
	}

	previousBalance := decimal.Zero
	if std.OpeningBalance.IsPositive() {
		previousBalance = std.OpeningBalance
		total = total.Add(previousBalance)
	}

	return Challan{
		ID:              newIDFunc(),
		Number:          ChallanNumber(month, year),
		SchoolID:        std.SchoolID,
		StudentID:       std.ID,
		ClassID:         std.ClassID,
		Month:           month,
		Year:            year,
		FeeItems:        items,
		PreviousBalance: previousBalance,
		TotalAmount:     total,
		PaidAmount:      decimal.Zero,
		Discount:        decimal.Zero,
		Status:          StatusUnpaid,
		DueDate:         DueDate(month, year),
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// dateOnly truncates t to midnight UTC of its calendar day.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
