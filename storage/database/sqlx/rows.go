package sqlxrepos

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
)

const (
	studentColumns = "id, school_id, class_id, name, status, opening_balance, fee_structure, guardian_email, created_at, updated_at"
	feeHeadColumns = "id, school_id, name, default_amount, created_at, updated_at"
	challanColumns = "id, number, school_id, student_id, class_id, month, year, fee_items, previous_balance, " +
		"total_amount, paid_amount, discount, status, due_date, paid_date, version, created_at, updated_at"
)

type (
	studentRow struct {
		ID             string          `db:"id"`
		SchoolID       string          `db:"school_id"`
		ClassID        string          `db:"class_id"`
		Name           string          `db:"name"`
		Status         string          `db:"status"`
		OpeningBalance decimal.Decimal `db:"opening_balance"`
		FeeStructure   types.JSONText  `db:"fee_structure"`
		GuardianEmail  null.String     `db:"guardian_email"`
		CreatedAt      time.Time       `db:"created_at"`
		UpdatedAt      time.Time       `db:"updated_at"`
	}

	feeHeadRow struct {
		ID            string          `db:"id"`
		SchoolID      string          `db:"school_id"`
		Name          string          `db:"name"`
		DefaultAmount decimal.Decimal `db:"default_amount"`
		CreatedAt     time.Time       `db:"created_at"`
		UpdatedAt     time.Time       `db:"updated_at"`
	}

	challanRow struct {
		ID              string          `db:"id"`
		Number          string          `db:"number"`
		SchoolID        string          `db:"school_id"`
		StudentID       string          `db:"student_id"`
		ClassID         string          `db:"class_id"`
		Month           string          `db:"month"`
		Year            int             `db:"year"`
		FeeItems        types.JSONText  `db:"fee_items"`
		PreviousBalance decimal.Decimal `db:"previous_balance"`
		TotalAmount     decimal.Decimal `db:"total_amount"`
		PaidAmount      decimal.Decimal `db:"paid_amount"`
		Discount        decimal.Decimal `db:"discount"`
		Status          string          `db:"status"`
		DueDate         time.Time       `db:"due_date"`
		PaidDate        null.Time       `db:"paid_date"`
		Version         int             `db:"version"`
		CreatedAt       time.Time       `db:"created_at"`
		UpdatedAt       time.Time       `db:"updated_at"`
	}
)

func toStudentRow(std fee.Student) (studentRow, error) {
	structure := std.FeeStructure
	if structure == nil {
		structure = []fee.FeeStructureEntry{}
	}
	js, err := json.Marshal(structure)
	if err != nil {
		return studentRow{}, errors.Wrap(err, "encoding fee structure")
	}
	return studentRow{
		ID:             std.ID,
		SchoolID:       std.SchoolID,
		ClassID:        std.ClassID,
		Name:           std.Name,
		Status:         string(std.Status),
		OpeningBalance: std.OpeningBalance,
		FeeStructure:   js,
		GuardianEmail:  null.NewString(std.GuardianEmail, std.GuardianEmail != ""),
		CreatedAt:      std.CreatedAt,
		UpdatedAt:      std.UpdatedAt,
	}, nil
}

func (r studentRow) toStudent() (fee.Student, error) {
	std := fee.Student{
		ID:             r.ID,
		SchoolID:       r.SchoolID,
		ClassID:        r.ClassID,
		Name:           r.Name,
		Status:         fee.StudentStatus(r.Status),
		OpeningBalance: r.OpeningBalance,
		FeeStructure:   []fee.FeeStructureEntry{},
		GuardianEmail:  r.GuardianEmail.String,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if len(r.FeeStructure) > 0 {
		if err := r.FeeStructure.Unmarshal(&std.FeeStructure); err != nil {
			return fee.Student{}, errors.Wrap(err, "decoding fee structure")
		}
	}
	return std, nil
}

func (r feeHeadRow) toFeeHead() fee.FeeHead {
	return fee.FeeHead{
		ID:            r.ID,
		SchoolID:      r.SchoolID,
		Name:          r.Name,
		DefaultAmount: r.DefaultAmount,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func toFeeHeadRow(head fee.FeeHead) feeHeadRow {
	return feeHeadRow{
		ID:            head.ID,
		SchoolID:      head.SchoolID,
		Name:          head.Name,
		DefaultAmount: head.DefaultAmount,
		CreatedAt:     head.CreatedAt,
		UpdatedAt:     head.UpdatedAt,
	}
}

func toChallanRow(chl fee.Challan) (challanRow, error) {
	items := chl.FeeItems
	if items == nil {
		items = []fee.FeeItem{}
	}
	js, err := json.Marshal(items)
	if err != nil {
		return challanRow{}, errors.Wrap(err, "encoding fee items")
	}
	var paidDate null.Time
	if chl.PaidDate != nil {
		paidDate = null.TimeFrom(*chl.PaidDate)
	}
	return challanRow{
		ID:              chl.ID,
		Number:          chl.Number,
		SchoolID:        chl.SchoolID,
		StudentID:       chl.StudentID,
		ClassID:         chl.ClassID,
		Month:           string(chl.Month),
		Year:            chl.Year,
		FeeItems:        js,
		PreviousBalance: chl.PreviousBalance,
		TotalAmount:     chl.TotalAmount,
		PaidAmount:      chl.PaidAmount,
		Discount:        chl.Discount,
		Status:          string(chl.Status),
		DueDate:         chl.DueDate,
		PaidDate:        paidDate,
		Version:         chl.Version,
		CreatedAt:       chl.CreatedAt,
		UpdatedAt:       chl.UpdatedAt,
	}, nil
}

func (r challanRow) toChallan() (fee.Challan, error) {
	chl := fee.Challan{
		ID:              r.ID,
		Number:          r.Number,
		SchoolID:        r.SchoolID,
		StudentID:       r.StudentID,
		ClassID:         r.ClassID,
		Month:           fee.Month(r.Month),
		Year:            r.Year,
		FeeItems:        []fee.FeeItem{},
		PreviousBalance: r.PreviousBalance,
		TotalAmount:     r.TotalAmount,
		PaidAmount:      r.PaidAmount,
		Discount:        r.Discount,
		Status:          fee.ChallanStatus(r.Status),
		DueDate:         r.DueDate.UTC(),
		Version:         r.Version,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
	if r.PaidDate.Valid {
		pd := r.PaidDate.Time.UTC()
		chl.PaidDate = &pd
	}
	if len(r.FeeItems) > 0 {
		if err := r.FeeItems.Unmarshal(&chl.FeeItems); err != nil {
			return fee.Challan{}, errors.Wrap(err, "decoding fee items")
		}
	}
	return chl, nil
}

// orderBy renders an ORDER BY clause; the orderings must hold column names only.
func orderBy(ordering []core.DBOrdering, fallback string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + fallback
	}
	terms := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		terms = append(terms, ord.String())
	}
	terms = append(terms, fallback)
	return " ORDER BY " + strings.Join(terms, ", ")
}
