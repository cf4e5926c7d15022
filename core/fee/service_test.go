package fee_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
	emailsvc "github.com/trezcool/masomo-fees/services/email"
	dummydb "github.com/trezcool/masomo-fees/storage/database/dummy"
	testutil "github.com/trezcool/masomo-fees/tests"
)

const school = "school-1"

var ctx = context.Background()

type testEnv struct {
	svc      fee.Service
	students fee.StudentRepository
	feeHeads fee.FeeHeadRepository
	challans fee.ChallanRepository
}

func setup(t *testing.T, notify bool) testEnv {
	t.Helper()

	conf := testutil.Config()
	conf.Billing.NotifyGuardians = notify
	logger := testutil.Logger(conf)
	validate, translator := testutil.Validator()
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ResetSentMessages()

	db, err := dummydb.Open()
	require.NoError(t, err)
	env := testEnv{
		students: dummydb.NewStudentRepository(db),
		feeHeads: dummydb.NewFeeHeadRepository(db),
		challans: dummydb.NewChallanRepository(db),
	}
	env.svc = fee.NewService(env.students, env.feeHeads, env.challans,
		emailsvc.NewConsoleServiceMock(conf, logger), conf, logger, validate, translator)
	return env
}

// seed creates the school catalog and three students:
// std-1 billed tuition + transport with 1000 carried over, std-2 with no fee structure, std-3 who left.
func (env testEnv) seed(t *testing.T) {
	t.Helper()
	testutil.CreateFeeHead(t, env.feeHeads, "tuition", school, "Tuition", "5000")
	testutil.CreateFeeHead(t, env.feeHeads, "transport", school, "Transport", "500")
	testutil.CreateFeeHead(t, env.feeHeads, "exam", school, "Exam", "300")
	testutil.CreateStudent(t, env.students, "std-1", school, "amina", fee.StudentActive, "1000",
		fee.FeeStructureEntry{FeeHeadID: "tuition", Amount: testutil.Amount("5000")},
		fee.FeeStructureEntry{FeeHeadID: "transport", Amount: testutil.Amount("500")},
	)
	testutil.CreateStudent(t, env.students, "std-2", school, "baraka", fee.StudentActive, "0")
	testutil.CreateStudent(t, env.students, "std-3", school, "chausiku", fee.StudentLeft, "200",
		fee.FeeStructureEntry{FeeHeadID: "tuition", Amount: testutil.Amount("5000")},
	)
}

func amountPtr(s string) *decimal.Decimal {
	d := testutil.Amount(s)
	return &d
}

func (env testEnv) challanOf(t *testing.T, studentID string, month fee.Month, year int) fee.Challan {
	t.Helper()
	challans, err := env.svc.QueryChallans(ctx, fee.ChallanFilter{SchoolID: school, StudentID: studentID, Month: month, Year: year}, nil)
	require.NoError(t, err)
	require.Len(t, challans, 1)
	return challans[0]
}

func TestService_GenerateChallansForMonth(t *testing.T) {
	env := setup(t, false)

	t.Run("no active students", func(t *testing.T) {
		res, err := env.svc.GenerateChallansForMonth(ctx, school, fee.March, 2024, nil)
		require.NoError(t, err)
		assert.Equal(t, fee.OutcomeNoActiveStudents, res.Outcome)
		assert.Zero(t, res.Created)
		assert.Zero(t, res.Skipped)
	})

	env.seed(t)

	t.Run("generated", func(t *testing.T) {
		res, err := env.svc.GenerateChallansForMonth(ctx, school, fee.March, 2024, nil)
		require.NoError(t, err)
		assert.Equal(t, fee.OutcomeGenerated, res.Outcome)
		assert.Equal(t, 2, res.Created)
		assert.Zero(t, res.Skipped)
		assert.Len(t, res.Challans, 2)

		chl := env.challanOf(t, "std-1", fee.March, 2024)
		assert.True(t, chl.TotalAmount.Equal(testutil.Amount("6500")), chl.TotalAmount.String())
		assert.True(t, chl.PreviousBalance.Equal(testutil.Amount("1000")))
		assert.Equal(t, []fee.FeeItem{
			{Description: "Tuition", Amount: testutil.Amount("5000")},
			{Description: "Transport", Amount: testutil.Amount("500")},
		}, chl.FeeItems)
		assert.Equal(t, fee.StatusUnpaid, chl.Status)
		assert.Equal(t, fee.DueDate(fee.March, 2024), chl.DueDate)

		// nothing to bill is still billed
		empty := env.challanOf(t, "std-2", fee.March, 2024)
		assert.True(t, empty.TotalAmount.IsZero())
		assert.Empty(t, empty.FeeItems)
	})

	t.Run("idempotent", func(t *testing.T) {
		res, err := env.svc.GenerateChallansForMonth(ctx, school, fee.March, 2024, []fee.SelectedFeeHead{{FeeHeadID: "exam"}})
		require.NoError(t, err)
		assert.Equal(t, fee.OutcomeAlreadyBilled, res.Outcome)
		assert.Zero(t, res.Created)
		assert.Equal(t, 2, res.Skipped)

		challans, err := env.svc.QueryChallans(ctx, fee.ChallanFilter{SchoolID: school, Month: fee.March, Year: 2024}, nil)
		require.NoError(t, err)
		assert.Len(t, challans, 2)
		// existing challans are not touched
		assert.Len(t, env.challanOf(t, "std-1", fee.March, 2024).FeeItems, 2)
	})

	t.Run("next month with selected fee heads", func(t *testing.T) {
		res, err := env.svc.GenerateChallansForMonth(ctx, school, fee.April, 2024, []fee.SelectedFeeHead{
			{FeeHeadID: "exam", Amount: amountPtr("250")},
			{FeeHeadID: "tuition"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Created)

		chl := env.challanOf(t, "std-1", fee.April, 2024)
		assert.True(t, chl.TotalAmount.Equal(testutil.Amount("6750")), chl.TotalAmount.String())

		chl = env.challanOf(t, "std-2", fee.April, 2024)
		assert.Equal(t, []fee.FeeItem{
			{Description: "Exam", Amount: testutil.Amount("250")},
			{Description: "Tuition", Amount: testutil.Amount("5000")},
		}, chl.FeeItems)
	})

	t.Run("other school is isolated", func(t *testing.T) {
		res, err := env.svc.GenerateChallansForMonth(ctx, "school-2", fee.March, 2024, nil)
		require.NoError(t, err)
		assert.Equal(t, fee.OutcomeNoActiveStudents, res.Outcome)
	})

	invalid := []struct {
		name     string
		month    fee.Month
		year     int
		selected []fee.SelectedFeeHead
	}{
		{name: "lower-case month", month: "march", year: 2024},
		{name: "no month", year: 2024},
		{name: "year too old", month: fee.March, year: 1999},
		{name: "negative selected amount", month: fee.May, year: 2024, selected: []fee.SelectedFeeHead{{FeeHeadID: "exam", Amount: amountPtr("-1")}}},
		{name: "selected fee head without ID", month: fee.May, year: 2024, selected: []fee.SelectedFeeHead{{}}},
		{name: "selected amount below cents", month: fee.May, year: 2024, selected: []fee.SelectedFeeHead{{FeeHeadID: "exam", Amount: amountPtr("250.001")}}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.GenerateChallansForMonth(ctx, school, tt.month, tt.year, tt.selected)
			assert.True(t, core.IsValidation(err), "%v", err)
		})
	}
}

func TestService_GenerateChallansForMonth_concurrent(t *testing.T) {
	env := setup(t, false)
	env.seed(t)

	var wg sync.WaitGroup
	results := make([]fee.GenerationResult, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.svc.GenerateChallansForMonth(ctx, school, fee.June, 2024, nil)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	var created int
	for _, res := range results {
		created += res.Created
		assert.Equal(t, 2, res.Created+res.Skipped)
	}
	assert.Equal(t, 2, created)
}

func TestService_payments(t *testing.T) {
	env := setup(t, false)
	env.seed(t)
	_, err := env.svc.GenerateChallansForMonth(ctx, school, fee.March, 2024, nil)
	require.NoError(t, err)
	chl := env.challanOf(t, "std-1", fee.March, 2024)

	t.Run("full payment", func(t *testing.T) {
		paid, err := env.svc.RecordFeePayment(ctx, school, chl.ID, fee.RecordPayment{
			Amount:   testutil.Amount("6500"),
			PaidDate: time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.Equal(t, fee.StatusPaid, paid.Status)
		assert.True(t, paid.Outstanding().IsZero())
		assert.Equal(t, chl.Version+1, paid.Version)
		require.NotNil(t, paid.PaidDate)
		assert.Equal(t, time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC), *paid.PaidDate)
	})

	t.Run("overpayment rejected", func(t *testing.T) {
		_, err := env.svc.RecordFeePayment(ctx, school, chl.ID, fee.RecordPayment{Amount: testutil.Amount("100")})
		require.True(t, core.IsValidation(err), "%v", err)

		got, err := env.svc.GetChallan(ctx, school, chl.ID)
		require.NoError(t, err)
		assert.True(t, got.PaidAmount.Equal(testutil.Amount("6500")), "unchanged")
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		_, err := env.svc.RecordFeePayment(ctx, school, chl.ID, fee.RecordPayment{Amount: testutil.Amount("-5")})
		assert.True(t, core.IsValidation(err), "%v", err)
	})

	t.Run("fractions of a cent rejected", func(t *testing.T) {
		open := env.challanOf(t, "std-1", fee.March, 2024)
		_, err := env.svc.RecordFeePayment(ctx, school, open.ID, fee.RecordPayment{
			Amount:   testutil.Amount("99.995"),
			Discount: testutil.Amount("0.005"),
		})
		require.True(t, core.IsValidation(err), "%v", err)
		assert.Len(t, err.(*core.ValidationError).Fields, 2)

		got, err := env.svc.GetChallan(ctx, school, open.ID)
		require.NoError(t, err)
		assert.Equal(t, open.Version, got.Version, "unchanged")
	})

	t.Run("zero-total challan accepts no payment", func(t *testing.T) {
		empty := env.challanOf(t, "std-2", fee.March, 2024)
		_, err := env.svc.ApplyPayment(ctx, school, empty.ID, fee.ApplyPayment{Amount: testutil.Amount("1")})
		assert.True(t, core.IsValidation(err), "%v", err)
	})

	t.Run("unknown challan", func(t *testing.T) {
		_, err := env.svc.ApplyPayment(ctx, school, "nope", fee.ApplyPayment{Amount: testutil.Amount("1")})
		assert.True(t, errors.Is(err, fee.ErrNotFound), "%v", err)
	})

	t.Run("other school", func(t *testing.T) {
		_, err := env.svc.GetChallan(ctx, "school-2", chl.ID)
		assert.True(t, errors.Is(err, fee.ErrNotFound), "%v", err)
	})
}

func TestService_paymentSteps(t *testing.T) {
	env := setup(t, false)
	env.seed(t)
	_, err := env.svc.GenerateChallansForMonth(ctx, school, fee.March, 2024, nil)
	require.NoError(t, err)
	id := env.challanOf(t, "std-1", fee.March, 2024).ID

	today := time.Now()
	chl, err := env.svc.ApplyPayment(ctx, school, id, fee.ApplyPayment{Amount: testutil.Amount("2000")})
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPartial, chl.Status)
	require.NotNil(t, chl.PaidDate)
	assert.Equal(t, today.Format("2006-01-02"), chl.PaidDate.Format("2006-01-02"), "defaults to today")

	chl, err = env.svc.SetDiscount(ctx, school, id, fee.SetDiscount{Discount: testutil.Amount("500")})
	require.NoError(t, err)
	assert.True(t, chl.Outstanding().Equal(testutil.Amount("4000")), chl.Outstanding().String())

	_, err = env.svc.SetDiscount(ctx, school, id, fee.SetDiscount{Discount: testutil.Amount("5000")})
	assert.True(t, core.IsValidation(err), "%v", err)

	chl, err = env.svc.RecordFeePayment(ctx, school, id, fee.RecordPayment{Amount: testutil.Amount("4000"), Discount: testutil.Amount("500")})
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPaid, chl.Status)
	assert.Equal(t, 4, chl.Version)

	sum, err := env.svc.CollectionSummary(ctx, school, fee.March, 2024)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Challans)
	assert.Equal(t, 1, sum.Paid)
	assert.Equal(t, 1, sum.Unpaid)
	assert.True(t, sum.Billed.Equal(testutil.Amount("6500")))
	assert.True(t, sum.Collected.Equal(testutil.Amount("6000")))
	assert.True(t, sum.Discounts.Equal(testutil.Amount("500")))
	assert.True(t, sum.Outstanding.IsZero())
}

// failingChallans is a challan store rejecting batch inserts and payment updates with storeErr.
type failingChallans struct {
	fee.ChallanRepository
	storeErr error
}

func (repo failingChallans) CreateChallans(context.Context, []fee.Challan) ([]fee.Challan, error) {
	return nil, repo.storeErr
}

func (repo failingChallans) UpdateChallanPayment(context.Context, fee.Challan) (fee.Challan, error) {
	return fee.Challan{}, repo.storeErr
}

func TestService_storeFailures(t *testing.T) {
	env := setup(t, true)
	env.seed(t)

	conf := testutil.Config()
	conf.Billing.NotifyGuardians = true
	logger := testutil.Logger(conf)
	validate, translator := testutil.Validator()
	failing := fee.NewService(env.students, env.feeHeads,
		failingChallans{ChallanRepository: env.challans, storeErr: errors.New("connection refused")},
		emailsvc.NewConsoleServiceMock(conf, logger), conf, logger, validate, translator)

	t.Run("generation aborts the whole batch", func(t *testing.T) {
		res, err := failing.GenerateChallansForMonth(ctx, school, fee.March, 2024, nil)
		require.Error(t, err)
		assert.True(t, core.IsPersistence(err), "%v", err)
		assert.Equal(t, fee.GenerationResult{}, res)

		challans, err := env.svc.QueryChallans(ctx, fee.ChallanFilter{SchoolID: school}, nil)
		require.NoError(t, err)
		assert.Empty(t, challans)
		assert.Empty(t, emailsvc.GetSentMessages(), "no challan notices")
	})

	_, err := env.svc.GenerateChallansForMonth(ctx, school, fee.March, 2024, nil)
	require.NoError(t, err)
	chl := env.challanOf(t, "std-1", fee.March, 2024)
	emailsvc.ResetSentMessages()

	t.Run("payment leaves the stored challan as it was", func(t *testing.T) {
		_, err := failing.RecordFeePayment(ctx, school, chl.ID, fee.RecordPayment{Amount: testutil.Amount("2000"), Discount: testutil.Amount("100")})
		require.Error(t, err)
		assert.True(t, core.IsPersistence(err), "%v", err)

		_, err = failing.SetDiscount(ctx, school, chl.ID, fee.SetDiscount{Discount: testutil.Amount("100")})
		assert.True(t, core.IsPersistence(err), "%v", err)

		got, err := env.svc.GetChallan(ctx, school, chl.ID)
		require.NoError(t, err)
		assert.Equal(t, chl, got)
		assert.Empty(t, emailsvc.GetSentMessages(), "no receipt")
	})
}

func TestService_stalePaymentConflicts(t *testing.T) {
	env := setup(t, false)
	env.seed(t)
	_, err := env.svc.GenerateChallansForMonth(ctx, school, fee.March, 2024, nil)
	require.NoError(t, err)
	stale := env.challanOf(t, "std-1", fee.March, 2024)

	_, err = env.svc.ApplyPayment(ctx, school, stale.ID, fee.ApplyPayment{Amount: testutil.Amount("100")})
	require.NoError(t, err)

	stale.PaidAmount = testutil.Amount("50")
	_, err = env.challans.UpdateChallanPayment(ctx, stale)
	assert.Equal(t, fee.ErrConflict, errors.Cause(err))
}

func TestService_notifications(t *testing.T) {
	env := setup(t, true)
	env.seed(t)

	_, err := env.svc.GenerateChallansForMonth(ctx, school, fee.March, 2024, nil)
	require.NoError(t, err)

	sent := emailsvc.GetSentMessages()
	require.Len(t, sent, 2)
	var issued *core.EmailMessage
	for i := range sent {
		if sent[i].To[0].Address == "amina@guardian.test" {
			issued = &sent[i]
		}
	}
	require.NotNil(t, issued)
	chl := env.challanOf(t, "std-1", fee.March, 2024)
	assert.Contains(t, issued.Subject, chl.Number)
	assert.Contains(t, issued.TextContent, "Previous balance: Rs. 1000.00")
	assert.Contains(t, issued.TextContent, "Total: Rs. 6500.00")
	assert.Contains(t, issued.HTMLContent, chl.Number)

	emailsvc.ResetSentMessages()
	_, err = env.svc.ApplyPayment(ctx, school, chl.ID, fee.ApplyPayment{Amount: testutil.Amount("1500")})
	require.NoError(t, err)

	sent = emailsvc.GetSentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "Outstanding: Rs. 5000.00")
	assert.Contains(t, sent[0].TextContent, "Status: Partial")
	require.Len(t, sent[0].Attachments, 1)
	assert.Equal(t, "challan-"+chl.Number+".png", sent[0].Attachments[0].Filename)

	// discounts do not send receipts
	emailsvc.ResetSentMessages()
	_, err = env.svc.SetDiscount(ctx, school, chl.ID, fee.SetDiscount{Discount: testutil.Amount("100")})
	require.NoError(t, err)
	assert.Empty(t, emailsvc.GetSentMessages())
}

func TestService_feeHeads(t *testing.T) {
	env := setup(t, false)

	head, err := env.svc.CreateFeeHead(ctx, school, fee.NewFeeHead{Name: " Library ", DefaultAmount: testutil.Amount("150")})
	require.NoError(t, err)
	assert.Equal(t, "Library", head.Name)
	assert.NotEmpty(t, head.ID)

	_, err = env.svc.CreateFeeHead(ctx, school, fee.NewFeeHead{Name: "library", DefaultAmount: testutil.Amount("1")})
	require.True(t, core.IsValidation(err), "%v", err)
	assert.Equal(t, "name", errors.Cause(err).(*core.ValidationError).Fields[0].Field)

	// same name in another school
	_, err = env.svc.CreateFeeHead(ctx, "school-2", fee.NewFeeHead{Name: "Library", DefaultAmount: testutil.Amount("1")})
	require.NoError(t, err)

	head, err = env.svc.UpdateFeeHead(ctx, school, head.ID, fee.UpdateFeeHead{DefaultAmount: amountPtr("175")})
	require.NoError(t, err)
	assert.Equal(t, "Library", head.Name)
	assert.True(t, head.DefaultAmount.Equal(testutil.Amount("175")))

	heads, err := env.svc.QueryFeeHeads(ctx, school)
	require.NoError(t, err)
	assert.Len(t, heads, 1)

	require.NoError(t, env.svc.DeleteFeeHead(ctx, school, head.ID))
	_, err = env.svc.GetFeeHead(ctx, school, head.ID)
	assert.True(t, errors.Is(err, fee.ErrNotFound), "%v", err)
	assert.True(t, errors.Is(env.svc.DeleteFeeHead(ctx, school, head.ID), fee.ErrNotFound))
}

func TestService_QueryChallans(t *testing.T) {
	env := setup(t, false)
	env.seed(t)
	for _, month := range []fee.Month{fee.January, fee.February, fee.March} {
		_, err := env.svc.GenerateChallansForMonth(ctx, school, month, 2024, nil)
		require.NoError(t, err)
	}

	tests := []struct {
		name     string
		filter   fee.ChallanFilter
		ordering []core.DBOrdering
		wantLen  int
		check    func(t *testing.T, got []fee.Challan)
	}{
		{
			name: "default ordering is latest due first", filter: fee.ChallanFilter{SchoolID: school}, wantLen: 6,
			check: func(t *testing.T, got []fee.Challan) { assert.Equal(t, fee.March, got[0].Month) },
		},
		{
			name: "ordering by due date ascending", filter: fee.ChallanFilter{SchoolID: school},
			ordering: []core.DBOrdering{{Field: "due_date", Ascending: true}}, wantLen: 6,
			check: func(t *testing.T, got []fee.Challan) { assert.Equal(t, fee.January, got[0].Month) },
		},
		{
			name: "unknown ordering fields ignored", filter: fee.ChallanFilter{SchoolID: school},
			ordering: []core.DBOrdering{{Field: "school_id; DROP TABLE challans"}}, wantLen: 6,
		},
		{name: "by student", filter: fee.ChallanFilter{SchoolID: school, StudentID: "std-2"}, wantLen: 3},
		{name: "by status", filter: fee.ChallanFilter{SchoolID: school, Status: fee.StatusPaid}, wantLen: 0},
		{name: "by period", filter: fee.ChallanFilter{SchoolID: school, Month: fee.February, Year: 2024}, wantLen: 2},
		{name: "other school", filter: fee.ChallanFilter{SchoolID: "school-2"}, wantLen: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.svc.QueryChallans(ctx, tt.filter, tt.ordering)
			require.NoError(t, err)
			require.Len(t, got, tt.wantLen)
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}

	_, err := env.svc.QueryChallans(ctx, fee.ChallanFilter{SchoolID: school, Status: "Late"}, nil)
	assert.True(t, core.IsValidation(err), "%v", err)
}

func TestService_ChallanQRCode(t *testing.T) {
	env := setup(t, false)
	env.seed(t)
	_, err := env.svc.GenerateChallansForMonth(ctx, school, fee.March, 2024, nil)
	require.NoError(t, err)
	chl := env.challanOf(t, "std-1", fee.March, 2024)

	png, err := env.svc.ChallanQRCode(ctx, school, chl.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	for _, size := range []int{10, 5000} {
		_, err = env.svc.ChallanQRCode(ctx, school, chl.ID, size)
		assert.True(t, core.IsValidation(err), "size %d: %v", size, err)
	}

	assert.Equal(t, chl.Number+"|std-1|March-2024|6500.00|6500.00", fee.QRPayload(chl))
}

func TestService_SaveStudent(t *testing.T) {
	env := setup(t, false)

	std, err := env.svc.SaveStudent(ctx, fee.NewStudent{SchoolID: school, Name: " Zawadi ", GuardianEmail: "Z@Test.cd"})
	require.NoError(t, err)
	assert.NotEmpty(t, std.ID)
	assert.Equal(t, fee.StudentActive, std.Status)
	assert.Equal(t, "z@test.cd", std.GuardianEmail)

	_, err = env.svc.SaveStudent(ctx, fee.NewStudent{SchoolID: school, Name: "Zawadi", GuardianEmail: "nope"})
	assert.True(t, core.IsValidation(err), "%v", err)

	ids, err := env.svc.QuerySchoolIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{school}, ids)
}
