package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
)

type challanRepository struct {
	db *challanTable
}

var _ fee.ChallanRepository = (*challanRepository)(nil) // interface compliance check

func NewChallanRepository(db *DB) fee.ChallanRepository {
	return &challanRepository{db: db.challan}
}

func copyChallan(chl fee.Challan) fee.Challan {
	chl.FeeItems = append([]fee.FeeItem{}, chl.FeeItems...)
	if chl.PaidDate != nil {
		pd := *chl.PaidDate
		chl.PaidDate = &pd
	}
	return chl
}

func keyOf(chl fee.Challan) periodKey {
	return periodKey{studentID: chl.StudentID, month: chl.Month, year: chl.Year}
}

func (repo *challanRepository) CreateChallans(_ context.Context, challans []fee.Challan) ([]fee.Challan, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	created := make([]fee.Challan, 0, len(challans))
	for _, chl := range challans {
		key := keyOf(chl)
		if _, exists := repo.db.byPeriod[key]; exists {
			continue
		}
		stored := copyChallan(chl)
		repo.db.table[stored.ID] = &stored
		repo.db.byPeriod[key] = stored.ID
		created = append(created, copyChallan(stored))
	}
	return created, nil
}

func (repo *challanRepository) QueryChallans(_ context.Context, filter fee.ChallanFilter, ordering []core.DBOrdering) ([]fee.Challan, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	challans := make([]fee.Challan, 0)
	for _, chl := range repo.db.table {
		if matches(*chl, filter) {
			challans = append(challans, copyChallan(*chl))
		}
	}
	sortChallans(challans, ordering)
	return challans, nil
}

func matches(chl fee.Challan, filter fee.ChallanFilter) bool {
	return chl.SchoolID == filter.SchoolID &&
		(filter.Month == "" || chl.Month == filter.Month) &&
		(filter.Year == 0 || chl.Year == filter.Year) &&
		(filter.Status == "" || chl.Status == filter.Status) &&
		(filter.StudentID == "" || chl.StudentID == filter.StudentID) &&
		(filter.ClassID == "" || chl.ClassID == filter.ClassID)
}

// compare returns -1, 0 or 1 comparing a and b on the given column.
func compare(a, b fee.Challan, column string) int {
	switch column {
	case "number":
		return strings.Compare(a.Number, b.Number)
	case "year":
		return a.Year - b.Year
	case "due_date":
		return compareTimes(a.DueDate.Unix(), b.DueDate.Unix())
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "total_amount":
		return a.TotalAmount.Cmp(b.TotalAmount)
	case "paid_amount":
		return a.PaidAmount.Cmp(b.PaidAmount)
	case "created_at":
		return compareTimes(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	}
	return 0
}

func compareTimes(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// sortChallans orders by the given columns, then by period (latest first) and number.
func sortChallans(challans []fee.Challan, ordering []core.DBOrdering) {
	ordering = append(ordering,
		core.DBOrdering{Field: "due_date"},
		core.DBOrdering{Field: "number", Ascending: true},
	)
	sort.SliceStable(challans, func(i, j int) bool {
		for _, ord := range ordering {
			c := compare(challans[i], challans[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func (repo *challanRepository) GetChallan(_ context.Context, schoolID, id string) (fee.Challan, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if chl, ok := repo.db.table[id]; ok && chl.SchoolID == schoolID {
		return copyChallan(*chl), nil
	}
	return fee.Challan{}, fee.ErrNotFound
}

func (repo *challanRepository) UpdateChallanPayment(_ context.Context, chl fee.Challan) (fee.Challan, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[chl.ID]
	if !ok || orig.SchoolID != chl.SchoolID {
		return fee.Challan{}, fee.ErrNotFound
	}
	if orig.Version != chl.Version {
		return fee.Challan{}, fee.ErrConflict
	}
	// only the payment fields are saved
	updated := copyChallan(*orig)
	updated.PaidAmount = chl.PaidAmount
	updated.Discount = chl.Discount
	updated.Status = chl.Status
	updated.PaidDate = chl.PaidDate
	updated.UpdatedAt = chl.UpdatedAt
	updated.Version++
	updated = copyChallan(updated)

	repo.db.table[chl.ID] = &updated
	return copyChallan(updated), nil
}
