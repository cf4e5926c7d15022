package fee

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/masomo-fees/core"
)

type (
	Month         string
	StudentStatus string
	ChallanStatus string
	Outcome       string
)

// Months, in calendar order
const (
	January   Month = "January"
	February  Month = "February"
	March     Month = "March"
	April     Month = "April"
	May       Month = "May"
	June      Month = "June"
	July      Month = "July"
	August    Month = "August"
	September Month = "September"
	October   Month = "October"
	November  Month = "November"
	December  Month = "December"
)

// Student statuses
const (
	StudentActive   StudentStatus = "Active"
	StudentInactive StudentStatus = "Inactive"
	StudentLeft     StudentStatus = "Left"
)

// Challan statuses
const (
	StatusUnpaid  ChallanStatus = "Unpaid"
	StatusPartial ChallanStatus = "Partial"
	StatusPaid    ChallanStatus = "Paid"
)

// Generation outcomes
const (
	OutcomeGenerated        Outcome = "generated"
	OutcomeNoActiveStudents Outcome = "no_active_students"
	OutcomeAlreadyBilled    Outcome = "already_billed"
)

var (
	Months = []Month{
		January, February, March, April, May, June,
		July, August, September, October, November, December,
	}

	StudentStatuses = []StudentStatus{StudentActive, StudentInactive, StudentLeft}
	ChallanStatuses = []ChallanStatus{StatusUnpaid, StatusPartial, StatusPaid}
)

// Index returns the 1-based calendar index of the month, or 0 if m is not one of Months.
// Names are matched exactly: "march" is not March.
func (m Month) Index() int {
	for i, month := range Months {
		if m == month {
			return i + 1
		}
	}
	return 0
}

func (m Month) IsValid() bool { return m.Index() > 0 }

func (m Month) Time() time.Month { return time.Month(m.Index()) }

// MonthOf returns the Month of t.
func MonthOf(t time.Time) Month { return Months[t.Month()-1] }

func (s StudentStatus) IsValid() bool {
	for _, status := range StudentStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s ChallanStatus) IsValid() bool {
	for _, status := range ChallanStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type FeeHead struct {
	ID            string          `json:"id"`
	SchoolID      string          `json:"school_id"`
	Name          string          `json:"name"`
	DefaultAmount decimal.Decimal `json:"default_amount"`
	CreatedAt     time.Time       `json:"created_at"` // UTC
	UpdatedAt     time.Time       `json:"updated_at"` // UTC
}

// FeeStructureEntry overrides the amount billed to one student for one fee head.
type FeeStructureEntry struct {
	FeeHeadID string          `json:"fee_head_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"gte=0,money"`
}

type Student struct {
	ID             string              `json:"id"`
	SchoolID       string              `json:"school_id"`
	ClassID        string              `json:"class_id"`
	Name           string              `json:"name"`
	Status         StudentStatus       `json:"status"`
	OpeningBalance decimal.Decimal     `json:"opening_balance"`
	FeeStructure   []FeeStructureEntry `json:"fee_structure"`
	GuardianEmail  string              `json:"guardian_email,omitempty"`
	CreatedAt      time.Time           `json:"created_at"` // UTC
	UpdatedAt      time.Time           `json:"updated_at"` // UTC
}

// FeeItem is a line of a Challan, copied by value from the fee head at generation time.
type FeeItem struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type Challan struct {
	ID              string          `json:"id"`
	Number          string          `json:"number"`
	SchoolID        string          `json:"school_id"`
	StudentID       string          `json:"student_id"`
	ClassID         string          `json:"class_id"`
	Month           Month           `json:"month"`
	Year            int             `json:"year"`
	FeeItems        []FeeItem       `json:"fee_items"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	Discount        decimal.Decimal `json:"discount"`
	Status          ChallanStatus   `json:"status"`
	DueDate         time.Time       `json:"due_date"`
	PaidDate        *time.Time      `json:"paid_date"`
	Version         int             `json:"version"`
	CreatedAt       time.Time       `json:"created_at"` // UTC
	UpdatedAt       time.Time       `json:"updated_at"` // UTC
}

// Settled returns paid amount + discount.
func (c Challan) Settled() decimal.Decimal { return c.PaidAmount.Add(c.Discount) }

func (c Challan) Outstanding() decimal.Decimal { return c.TotalAmount.Sub(c.Settled()) }

// ItemsTotal returns the sum of the fee items, without the previous balance.
func (c Challan) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.FeeItems {
		total = total.Add(item.Amount)
	}
	return total
}

// statusFor derives the status from the settled amount:
// Unpaid while nothing is settled, Paid once the total is covered, Partial in between.
func statusFor(paid, discount, total decimal.Decimal) ChallanStatus {
	settled := paid.Add(discount)
	switch {
	case settled.IsZero():
		return StatusUnpaid
	case settled.GreaterThanOrEqual(total):
		return StatusPaid
	default:
		return StatusPartial
	}
}

// SelectedFeeHead is a fee head applied to every student of a billing run.
// A nil Amount bills the fee head's default amount.
type SelectedFeeHead struct {
	FeeHeadID string           `json:"fee_head_id" validate:"required"`
	Amount    *decimal.Decimal `json:"amount" validate:"omitempty,gte=0,money"`
}

// GenerationResult reports a billing run. Zero Created is a successful outcome, not an error.
type GenerationResult struct {
	Created  int       `json:"created"`
	Skipped  int       `json:"skipped"`
	Outcome  Outcome   `json:"outcome"`
	Message  string    `json:"message"`
	Challans []Challan `json:"-"`
}

type CollectionSummary struct {
	SchoolID    string          `json:"school_id"`
	Month       Month           `json:"month"`
	Year        int             `json:"year"`
	Challans    int             `json:"challans"`
	Unpaid      int             `json:"unpaid"`
	Partial     int             `json:"partial"`
	Paid        int             `json:"paid"`
	Billed      decimal.Decimal `json:"billed"`
	Collected   decimal.Decimal `json:"collected"`
	Discounts   decimal.Decimal `json:"discounts"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// NewFeeHead contains information needed to create a new FeeHead.
type NewFeeHead struct {
	Name          string          `json:"name" validate:"required,max=100"`
	DefaultAmount decimal.Decimal `json:"default_amount" validate:"gte=0,money"`
}

func (nf *NewFeeHead) Clean() {
	nf.Name = core.CleanString(nf.Name)
}

// UpdateFeeHead defines what information may be provided to modify an existing FeeHead.
type UpdateFeeHead struct {
	Name          string           `json:"name" validate:"omitempty,max=100"`
	DefaultAmount *decimal.Decimal `json:"default_amount" validate:"omitempty,gte=0,money"`
}

func (uf *UpdateFeeHead) Clean() {
	uf.Name = core.CleanString(uf.Name)
}

// NewStudent contains the fields the student directory is fed with.
type NewStudent struct {
	ID             string              `json:"id"`
	SchoolID       string              `json:"school_id" validate:"required"`
	ClassID        string              `json:"class_id"`
	Name           string              `json:"name" validate:"required,max=150"`
	Status         StudentStatus       `json:"status" validate:"omitempty,studentstatus"`
	OpeningBalance decimal.Decimal     `json:"opening_balance" validate:"money"`
	FeeStructure   []FeeStructureEntry `json:"fee_structure" validate:"dive"`
	GuardianEmail  string              `json:"guardian_email" validate:"omitempty,email"`
}

func (ns *NewStudent) Clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.ClassID = core.CleanString(ns.ClassID)
	ns.GuardianEmail = core.CleanEmail(ns.GuardianEmail)
	if ns.Status == "" {
		ns.Status = StudentActive
	}
}

type GenerateChallans struct {
	SchoolID         string            `json:"-" validate:"required"`
	Month            Month             `json:"month" validate:"required,month"`
	Year             int               `json:"year" validate:"required,gte=2000,lte=2100"`
	SelectedFeeHeads []SelectedFeeHead `json:"selected_fee_heads" validate:"dive"`
}

// RecordPayment applies a payment and replaces the discount in one call.
// Discount is the new total discount of the challan, not an increment.
type RecordPayment struct {
	Amount   decimal.Decimal `json:"amount" validate:"gte=0,money"`
	Discount decimal.Decimal `json:"discount" validate:"gte=0,money"`
	PaidDate time.Time       `json:"paid_date"`
}

type ApplyPayment struct {
	Amount   decimal.Decimal `json:"amount" validate:"gt=0,money"`
	PaidDate time.Time       `json:"paid_date"`
}

type SetDiscount struct {
	Discount decimal.Decimal `json:"discount" validate:"gte=0,money"`
}

type ChallanFilter struct {
	SchoolID  string        `json:"-"`
	Month     Month         `json:"month" query:"month" validate:"omitempty,month"`
	Year      int           `json:"year" query:"year" validate:"omitempty,gte=2000,lte=2100"`
	Status    ChallanStatus `json:"status" query:"status" validate:"omitempty,challanstatus"`
	StudentID string        `json:"student_id" query:"student_id"`
	ClassID   string        `json:"class_id" query:"class_id"`
}

func (cf *ChallanFilter) Clean() {
	cf.Month = Month(core.CleanString(string(cf.Month)))
	cf.StudentID = core.CleanString(cf.StudentID)
	cf.ClassID = core.CleanString(cf.ClassID)
}
