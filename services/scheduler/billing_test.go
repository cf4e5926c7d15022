package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-fees/core/fee"
	emailsvc "github.com/trezcool/masomo-fees/services/email"
	dummydb "github.com/trezcool/masomo-fees/storage/database/dummy"
	testutil "github.com/trezcool/masomo-fees/tests"
)

func newBilling(t *testing.T) (*Billing, fee.ChallanRepository) {
	t.Helper()

	conf := testutil.Config()
	conf.Billing.NotifyGuardians = false
	logger := testutil.Logger(conf)
	validate, translator := testutil.Validator()

	db, err := dummydb.Open()
	require.NoError(t, err)
	students := dummydb.NewStudentRepository(db)
	feeHeads := dummydb.NewFeeHeadRepository(db)
	challans := dummydb.NewChallanRepository(db)

	for _, school := range []string{"school-1", "school-2"} {
		testutil.CreateFeeHead(t, feeHeads, school+"-tuition", school, "Tuition", "5000")
		testutil.CreateStudent(t, students, school+"-std", school, "amina", fee.StudentActive, "0",
			fee.FeeStructureEntry{FeeHeadID: school + "-tuition", Amount: testutil.Amount("5000")})
	}

	svc := fee.NewService(students, feeHeads, challans, emailsvc.NewConsoleServiceMock(conf, logger), conf, logger, validate, translator)
	return NewBilling(conf, svc, logger), challans
}

func TestBilling_RunOnce(t *testing.T) {
	billing, challans := newBilling(t)
	ctx := context.Background()
	now := time.Date(2024, time.March, 1, 6, 0, 0, 0, time.UTC)

	results, err := billing.RunOnce(ctx, now)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, school := range []string{"school-1", "school-2"} {
		assert.Equal(t, fee.OutcomeGenerated, results[school].Outcome, school)
		assert.Equal(t, 1, results[school].Created, school)

		got, err := challans.QueryChallans(ctx, fee.ChallanFilter{SchoolID: school, Month: fee.March, Year: 2024}, nil)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	}

	results, err = billing.RunOnce(ctx, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, fee.OutcomeAlreadyBilled, results["school-1"].Outcome)
	assert.Equal(t, 1, results["school-1"].Skipped)
}

type failingService struct {
	fee.Service
	failSchool string
	generated  []string
}

func (svc *failingService) QuerySchoolIDs(context.Context) ([]string, error) {
	return []string{"school-1", "school-2", "school-3"}, nil
}

func (svc *failingService) GenerateChallansForMonth(_ context.Context, schoolID string, _ fee.Month, _ int, _ []fee.SelectedFeeHead) (fee.GenerationResult, error) {
	if schoolID == svc.failSchool {
		return fee.GenerationResult{}, errors.New("connection refused")
	}
	svc.generated = append(svc.generated, schoolID)
	return fee.GenerationResult{Outcome: fee.OutcomeGenerated, Created: 1}, nil
}

func TestBilling_RunOnce_failingSchool(t *testing.T) {
	billing, _ := newBilling(t)
	svc := &failingService{failSchool: "school-2"}
	billing.svc = svc

	results, err := billing.RunOnce(context.Background(), time.Now())
	require.Error(t, err)
	assert.Equal(t, "school school-2: connection refused", err.Error())
	assert.Equal(t, []string{"school-1", "school-3"}, svc.generated)
	assert.Len(t, results, 2)
}

func TestBilling_Start(t *testing.T) {
	billing, _ := newBilling(t)
	billing.schedule = "every tuesday"
	assert.Error(t, billing.Start())

	billing, _ = newBilling(t)
	require.NoError(t, billing.Start())
	select {
	case <-billing.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
