package fee

import (
	"context"
	"fmt"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomo-fees/core"
)

// ChallanOrderingFields maps the sortable challan fields to their column names.
var ChallanOrderingFields = map[string]string{
	"number":       "number",
	"year":         "year",
	"due_date":     "due_date",
	"status":       "status",
	"total_amount": "total_amount",
	"paid_amount":  "paid_amount",
	"created_at":   "created_at",
}

var (
	// errors
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("the record was modified concurrently, reload and retry")
	ErrFeeHeadExists = errors.New("a fee head with this name already exists")
)

type (
	// StudentRepository is the student directory.
	StudentRepository interface {
		QueryActiveStudents(ctx context.Context, schoolID string) ([]Student, error)
		QuerySchoolIDs(ctx context.Context) ([]string, error)
		GetStudent(ctx context.Context, schoolID, id string) (Student, error)
		// SaveStudent inserts std or replaces the student with the same ID.
		SaveStudent(ctx context.Context, std Student) (Student, error)
	}

	// FeeHeadRepository is the fee head catalog.
	// CreateFeeHead and UpdateFeeHead return ErrFeeHeadExists when the name (case-insensitive) is taken in the school.
	FeeHeadRepository interface {
		CreateFeeHead(ctx context.Context, head FeeHead) (FeeHead, error)
		QueryFeeHeads(ctx context.Context, schoolID string) ([]FeeHead, error)
		GetFeeHead(ctx context.Context, schoolID, id string) (FeeHead, error)
		UpdateFeeHead(ctx context.Context, head FeeHead) (FeeHead, error)
		DeleteFeeHead(ctx context.Context, schoolID, id string) error
	}

	// ChallanRepository is the challan store.
	ChallanRepository interface {
		// CreateChallans inserts the batch atomically. Rows colliding with an existing challan
		// of the same (student, month, year) are skipped; only the inserted rows are returned.
		CreateChallans(ctx context.Context, challans []Challan) ([]Challan, error)
		// QueryChallans applies AND operation on the non-zero ChallanFilter fields.
		QueryChallans(ctx context.Context, filter ChallanFilter, ordering []core.DBOrdering) ([]Challan, error)
		GetChallan(ctx context.Context, schoolID, id string) (Challan, error)
		// UpdateChallanPayment saves the payment fields of chl if its Version is still the stored one,
		// and returns it with the incremented Version. ErrConflict is returned otherwise.
		UpdateChallanPayment(ctx context.Context, chl Challan) (Challan, error)
	}

	Service interface {
		GenerateChallansForMonth(ctx context.Context, schoolID string, month Month, year int, selected []SelectedFeeHead) (GenerationResult, error)
		RecordFeePayment(ctx context.Context, schoolID, challanID string, rp RecordPayment) (Challan, error)
		ApplyPayment(ctx context.Context, schoolID, challanID string, ap ApplyPayment) (Challan, error)
		SetDiscount(ctx context.Context, schoolID, challanID string, sd SetDiscount) (Challan, error)
		GetChallan(ctx context.Context, schoolID, id string) (Challan, error)
		QueryChallans(ctx context.Context, filter ChallanFilter, ordering []core.DBOrdering) ([]Challan, error)
		CollectionSummary(ctx context.Context, schoolID string, month Month, year int) (CollectionSummary, error)
		ChallanQRCode(ctx context.Context, schoolID, id string, size int) ([]byte, error)

		CreateFeeHead(ctx context.Context, schoolID string, nf NewFeeHead) (FeeHead, error)
		QueryFeeHeads(ctx context.Context, schoolID string) ([]FeeHead, error)
		GetFeeHead(ctx context.Context, schoolID, id string) (FeeHead, error)
		UpdateFeeHead(ctx context.Context, schoolID, id string, uf UpdateFeeHead) (FeeHead, error)
		DeleteFeeHead(ctx context.Context, schoolID, id string) error

		SaveStudent(ctx context.Context, ns NewStudent) (Student, error)
		GetStudent(ctx context.Context, schoolID, id string) (Student, error)
		QuerySchoolIDs(ctx context.Context) ([]string, error)
	}

	service struct {
		students   StudentRepository
		feeHeads   FeeHeadRepository
		challans   ChallanRepository
		mailSvc    core.EmailService
		conf       *core.Config
		logger     core.Logger
		validate   *validator.Validate
		translator ut.Translator
	}
)

var _ Service = (*service)(nil)

func NewService(
	students StudentRepository,
	feeHeads FeeHeadRepository,
	challans ChallanRepository,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
) Service {
	return &service{
		students:   students,
		feeHeads:   feeHeads,
		challans:   challans,
		mailSvc:    mailSvc,
		conf:       conf,
		logger:     logger,
		validate:   validate,
		translator: translator,
	}
}

func (svc *service) validateStruct(s interface{}) error {
	if err := svc.validate.Struct(s); err != nil {
		return core.ValidationErrorFromValidator(err, svc.translator)
	}
	return nil
}

// storeErr keeps ErrNotFound recognizable and reports anything else as a persistence failure.
func storeErr(err error, msg string) error {
	if errors.Cause(err) == ErrNotFound {
		return errors.Wrap(err, msg)
	}
	return core.NewPersistenceError(err, msg)
}

// GenerateChallansForMonth bills every active student of the school who has no challan for (month, year) yet.
// Running it again for the same period creates nothing.
func (svc *service) GenerateChallansForMonth(
	ctx context.Context,
	schoolID string,
	month Month,
	year int,
	selected []SelectedFeeHead,
) (GenerationResult, error) {
	input := GenerateChallans{SchoolID: schoolID, Month: month, Year: year, SelectedFeeHeads: selected}
	if err := svc.validateStruct(input); err != nil {
		return GenerationResult{}, err
	}

	students, err := svc.students.QueryActiveStudents(ctx, schoolID)
	if err != nil {
		return GenerationResult{}, core.NewPersistenceError(err, "querying active students")
	}
	if len(students) == 0 {
		return GenerationResult{
			Outcome: OutcomeNoActiveStudents,
			Message: "No active students found; no challans were generated.",
		}, nil
	}

	heads, err := svc.feeHeads.QueryFeeHeads(ctx, schoolID)
	if err != nil {
		return GenerationResult{}, core.NewPersistenceError(err, "querying fee heads")
	}
	headsByID := make(map[string]FeeHead, len(heads))
	for _, head := range heads {
		headsByID[head.ID] = head
	}

	existing, err := svc.challans.QueryChallans(ctx, ChallanFilter{SchoolID: schoolID, Month: month, Year: year}, nil)
	if err != nil {
		return GenerationResult{}, core.NewPersistenceError(err, "querying existing challans")
	}
	billed := make(map[string]bool, len(existing))
	for _, chl := range existing {
		billed[chl.StudentID] = true
	}

	now := NowFunc().UTC()
	var skipped int
	batch := make([]Challan, 0, len(students))
	for _, std := range students {
		if billed[std.ID] {
			skipped++
			continue
		}
		batch = append(batch, buildChallan(std, headsByID, selected, month, year, now))
	}

	var created []Challan
	if len(batch) > 0 {
		created, err = svc.challans.CreateChallans(ctx, batch)
		if err != nil {
			return GenerationResult{}, core.NewPersistenceError(err, "creating challans")
		}
		// rows inserted by a concurrent run between the read and the insert
		skipped += len(batch) - len(created)
	}

	if len(created) == 0 {
		return GenerationResult{
			Skipped: skipped,
			Outcome: OutcomeAlreadyBilled,
			Message: fmt.Sprintf("All active students already have a challan for %s %d.", month, year),
		}, nil
	}

	svc.logger.Info(fmt.Sprintf("school %s: %d challans generated for %s %d (%d skipped)", schoolID, len(created), month, year, skipped))
	svc.notifyChallansIssued(students, created)

	return GenerationResult{
		Created:  len(created),
		Skipped:  skipped,
		Outcome:  OutcomeGenerated,
		Message:  fmt.Sprintf("%d challans generated for %s %d.", len(created), month, year),
		Challans: created,
	}, nil
}

// RecordFeePayment adds rp.Amount to the paid amount, replaces the discount with rp.Discount and stamps rp.PaidDate.
func (svc *service) RecordFeePayment(ctx context.Context, schoolID, challanID string, rp RecordPayment) (Challan, error) {
	if err := svc.validateStruct(rp); err != nil {
		return Challan{}, err
	}
	return svc.updatePayment(ctx, schoolID, challanID, true, func(chl Challan) (Challan, error) {
		return recordPayment(chl, rp.Amount, rp.Discount, svc.paidDate(rp.PaidDate))
	})
}

func (svc *service) ApplyPayment(ctx context.Context, schoolID, challanID string, ap ApplyPayment) (Challan, error) {
	if err := svc.validateStruct(ap); err != nil {
		return Challan{}, err
	}
	return svc.updatePayment(ctx, schoolID, challanID, true, func(chl Challan) (Challan, error) {
		return applyPayment(chl, ap.Amount, svc.paidDate(ap.PaidDate))
	})
}

func (svc *service) SetDiscount(ctx context.Context, schoolID, challanID string, sd SetDiscount) (Challan, error) {
	if err := svc.validateStruct(sd); err != nil {
		return Challan{}, err
	}
	return svc.updatePayment(ctx, schoolID, challanID, false, func(chl Challan) (Challan, error) {
		return setDiscount(chl, sd.Discount)
	})
}

func (svc *service) paidDate(d time.Time) time.Time {
	if d.IsZero() {
		return NowFunc()
	}
	return d
}

func (svc *service) updatePayment(
	ctx context.Context,
	schoolID, challanID string,
	sendReceipt bool,
	mutate func(Challan) (Challan, error),
) (Challan, error) {
	chl, err := svc.GetChallan(ctx, schoolID, challanID)
	if err != nil {
		return Challan{}, err
	}

	chl, err = mutate(chl)
	if err != nil {
		return Challan{}, err
	}
	chl.UpdatedAt = NowFunc().UTC()

	chl, err = svc.challans.UpdateChallanPayment(ctx, chl)
	if err != nil {
		return Challan{}, storeErr(err, "updating challan payment")
	}

	if sendReceipt {
		svc.notifyPaymentReceived(ctx, chl)
	}
	return chl, nil
}

func (svc *service) GetChallan(ctx context.Context, schoolID, id string) (Challan, error) {
	chl, err := svc.challans.GetChallan(ctx, schoolID, id)
	if err != nil {
		return Challan{}, storeErr(err, "getting challan")
	}
	return chl, nil
}

func (svc *service) QueryChallans(ctx context.Context, filter ChallanFilter, ordering []core.DBOrdering) ([]Challan, error) {
	filter.Clean()
	if err := svc.validateStruct(filter); err != nil {
		return nil, err
	}
	challans, err := svc.challans.QueryChallans(ctx, filter, core.MapOrderings(ordering, ChallanOrderingFields))
	if err != nil {
		return nil, core.NewPersistenceError(err, "querying challans")
	}
	return challans, nil
}

// CollectionSummary aggregates the challans of a billing period.
func (svc *service) CollectionSummary(ctx context.Context, schoolID string, month Month, year int) (CollectionSummary, error) {
	filter := ChallanFilter{SchoolID: schoolID, Month: month, Year: year}
	if err := svc.validateStruct(GenerateChallans{SchoolID: schoolID, Month: month, Year: year}); err != nil {
		return CollectionSummary{}, err
	}
	challans, err := svc.challans.QueryChallans(ctx, filter, nil)
	if err != nil {
		return CollectionSummary{}, core.NewPersistenceError(err, "querying challans")
	}

	sum := CollectionSummary{
		SchoolID:    schoolID,
		Month:       month,
		Year:        year,
		Challans:    len(challans),
		Billed:      decimal.Zero,
		Collected:   decimal.Zero,
		Discounts:   decimal.Zero,
		Outstanding: decimal.Zero,
	}
	for _, chl := range challans {
		switch chl.Status {
		case StatusPaid:
			sum.Paid++
		case StatusPartial:
			sum.Partial++
		default:
			sum.Unpaid++
		}
		sum.Billed = sum.Billed.Add(chl.TotalAmount)
		sum.Collected = sum.Collected.Add(chl.PaidAmount)
		sum.Discounts = sum.Discounts.Add(chl.Discount)
		sum.Outstanding = sum.Outstanding.Add(chl.Outstanding())
	}
	return sum, nil
}

func (svc *service) CreateFeeHead(ctx context.Context, schoolID string, nf NewFeeHead) (FeeHead, error) {
	nf.Clean()
	if err := svc.validateStruct(nf); err != nil {
		return FeeHead{}, err
	}

	now := NowFunc().UTC()
	head, err := svc.feeHeads.CreateFeeHead(ctx, FeeHead{
		ID:            newIDFunc(),
		SchoolID:      schoolID,
		Name:          nf.Name,
		DefaultAmount: nf.DefaultAmount,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return FeeHead{}, feeHeadErr(err, "creating fee head")
	}
	return head, nil
}

func (svc *service) QueryFeeHeads(ctx context.Context, schoolID string) ([]FeeHead, error) {
	heads, err := svc.feeHeads.QueryFeeHeads(ctx, schoolID)
	if err != nil {
		return nil, core.NewPersistenceError(err, "querying fee heads")
	}
	return heads, nil
}

func (svc *service) GetFeeHead(ctx context.Context, schoolID, id string) (FeeHead, error) {
	head, err := svc.feeHeads.GetFeeHead(ctx, schoolID, id)
	if err != nil {
		return FeeHead{}, storeErr(err, "getting fee head")
	}
	return head, nil
}

// UpdateFeeHead renames or re-prices a fee head. Challans already generated keep their items.
func (svc *service) UpdateFeeHead(ctx context.Context, schoolID, id string, uf UpdateFeeHead) (FeeHead, error) {
	uf.Clean()
	if err := svc.validateStruct(uf); err != nil {
		return FeeHead{}, err
	}

	head, err := svc.GetFeeHead(ctx, schoolID, id)
	if err != nil {
		return FeeHead{}, err
	}
	if uf.Name != "" {
		head.Name = uf.Name
	}
	if uf.DefaultAmount != nil {
		head.DefaultAmount = *uf.DefaultAmount
	}
	head.UpdatedAt = NowFunc().UTC()

	head, err = svc.feeHeads.UpdateFeeHead(ctx, head)
	if err != nil {
		return FeeHead{}, feeHeadErr(err, "updating fee head")
	}
	return head, nil
}

func (svc *service) DeleteFeeHead(ctx context.Context, schoolID, id string) error {
	if err := svc.feeHeads.DeleteFeeHead(ctx, schoolID, id); err != nil {
		return storeErr(err, "deleting fee head")
	}
	return nil
}

func feeHeadErr(err error, msg string) error {
	if errors.Cause(err) == ErrFeeHeadExists {
		return core.NewValidationError(err, core.FieldError{Field: "name", Error: ErrFeeHeadExists.Error()})
	}
	return storeErr(err, msg)
}

// SaveStudent feeds the student directory. A new ID is assigned when ns.ID is empty.
func (svc *service) SaveStudent(ctx context.Context, ns NewStudent) (Student, error) {
	ns.Clean()
	if err := svc.validateStruct(ns); err != nil {
		return Student{}, err
	}

	now := NowFunc().UTC()
	std := Student{
		ID:             strings.TrimSpace(ns.ID),
		SchoolID:       ns.SchoolID,
		ClassID:        ns.ClassID,
		Name:           ns.Name,
		Status:         ns.Status,
		OpeningBalance: ns.OpeningBalance,
		FeeStructure:   ns.FeeStructure,
		GuardianEmail:  ns.GuardianEmail,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if std.ID == "" {
		std.ID = newIDFunc()
	}
	if std.FeeStructure == nil {
		std.FeeStructure = []FeeStructureEntry{}
	}

	std, err := svc.students.SaveStudent(ctx, std)
	if err != nil {
		return Student{}, core.NewPersistenceError(err, "saving student")
	}
	return std, nil
}

func (svc *service) GetStudent(ctx context.Context, schoolID, id string) (Student, error) {
	std, err := svc.students.GetStudent(ctx, schoolID, id)
	if err != nil {
		return Student{}, storeErr(err, "getting student")
	}
	return std, nil
}

func (svc *service) QuerySchoolIDs(ctx context.Context) ([]string, error) {
	ids, err := svc.students.QuerySchoolIDs(ctx)
	if err != nil {
		return nil, core.NewPersistenceError(err, "querying schools")
	}
	return ids, nil
}
