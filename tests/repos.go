package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
)

// Challan returns an unpaid challan of std for (month, year) billing a single 5000 tuition item.
func Challan(std fee.Student, month fee.Month, year int) fee.Challan {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return fee.Challan{
		ID:              uuid.NewString(),
		Number:          fee.ChallanNumber(month, year),
		SchoolID:        std.SchoolID,
		StudentID:       std.ID,
		ClassID:         std.ClassID,
		Month:           month,
		Year:            year,
		FeeItems:        []fee.FeeItem{{Description: "Tuition", Amount: Amount("5000")}},
		PreviousBalance: Amount("0"),
		TotalAmount:     Amount("5000"),
		PaidAmount:      Amount("0"),
		Discount:        Amount("0"),
		Status:          fee.StatusUnpaid,
		DueDate:         fee.DueDate(month, year),
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// RepositoryContract checks the behaviour every fee store must share.
// The stores must be empty.
func RepositoryContract(t *testing.T, students fee.StudentRepository, feeHeads fee.FeeHeadRepository, challans fee.ChallanRepository) {
	ctx := context.Background()

	t.Run("students", func(t *testing.T) {
		amina := CreateStudent(t, students, uuid.NewString(), "school-1", "amina", fee.StudentActive, "1000",
			fee.FeeStructureEntry{FeeHeadID: "tuition", Amount: Amount("5000")})
		baraka := CreateStudent(t, students, uuid.NewString(), "school-1", "baraka", fee.StudentActive, "0")
		CreateStudent(t, students, uuid.NewString(), "school-1", "chausiku", fee.StudentLeft, "0")
		CreateStudent(t, students, uuid.NewString(), "school-2", "dalila", fee.StudentActive, "0")

		got, err := students.GetStudent(ctx, "school-1", amina.ID)
		require.NoError(t, err)
		assert.Equal(t, "amina", got.Name)
		assert.Equal(t, "amina@guardian.test", got.GuardianEmail)
		assert.True(t, got.OpeningBalance.Equal(Amount("1000")), got.OpeningBalance.String())
		require.Len(t, got.FeeStructure, 1)
		assert.True(t, got.FeeStructure[0].Amount.Equal(Amount("5000")))

		_, err = students.GetStudent(ctx, "school-2", amina.ID)
		assert.Equal(t, fee.ErrNotFound, errors.Cause(err))

		active, err := students.QueryActiveStudents(ctx, "school-1")
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.ElementsMatch(t, []string{amina.ID, baraka.ID}, []string{active[0].ID, active[1].ID})

		baraka.Status = fee.StudentInactive
		_, err = students.SaveStudent(ctx, baraka)
		require.NoError(t, err)
		active, err = students.QueryActiveStudents(ctx, "school-1")
		require.NoError(t, err)
		assert.Len(t, active, 1)

		ids, err := students.QuerySchoolIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"school-1", "school-2"}, ids)
	})

	t.Run("fee heads", func(t *testing.T) {
		tuition := CreateFeeHead(t, feeHeads, uuid.NewString(), "school-1", "Tuition", "5000")
		exam := CreateFeeHead(t, feeHeads, uuid.NewString(), "school-1", "Exam", "300")
		CreateFeeHead(t, feeHeads, uuid.NewString(), "school-2", "Tuition", "4000")

		dup := tuition
		dup.ID = uuid.NewString()
		dup.Name = "TUITION"
		_, err := feeHeads.CreateFeeHead(ctx, dup)
		assert.Equal(t, fee.ErrFeeHeadExists, errors.Cause(err))

		heads, err := feeHeads.QueryFeeHeads(ctx, "school-1")
		require.NoError(t, err)
		require.Len(t, heads, 2)
		assert.Equal(t, "Exam", heads[0].Name)
		assert.Equal(t, "Tuition", heads[1].Name)

		exam.Name = "tuition"
		_, err = feeHeads.UpdateFeeHead(ctx, exam)
		assert.Equal(t, fee.ErrFeeHeadExists, errors.Cause(err))

		exam.Name = "Exams"
		exam.DefaultAmount = Amount("350")
		_, err = feeHeads.UpdateFeeHead(ctx, exam)
		require.NoError(t, err)
		got, err := feeHeads.GetFeeHead(ctx, "school-1", exam.ID)
		require.NoError(t, err)
		assert.Equal(t, "Exams", got.Name)
		assert.True(t, got.DefaultAmount.Equal(Amount("350")))

		_, err = feeHeads.GetFeeHead(ctx, "school-2", exam.ID)
		assert.Equal(t, fee.ErrNotFound, errors.Cause(err))

		require.NoError(t, feeHeads.DeleteFeeHead(ctx, "school-1", exam.ID))
		assert.Equal(t, fee.ErrNotFound, errors.Cause(feeHeads.DeleteFeeHead(ctx, "school-1", exam.ID)))
		assert.Equal(t, fee.ErrNotFound, errors.Cause(feeHeads.DeleteFeeHead(ctx, "school-2", tuition.ID)))
	})

	t.Run("challans", func(t *testing.T) {
		std1 := CreateStudent(t, students, uuid.NewString(), "school-3", "eshe", fee.StudentActive, "0")
		std2 := CreateStudent(t, students, uuid.NewString(), "school-3", "fumo", fee.StudentActive, "0")

		batch := []fee.Challan{
			Challan(std1, fee.March, 2024),
			Challan(std2, fee.March, 2024),
			Challan(std1, fee.April, 2024),
		}
		created, err := challans.CreateChallans(ctx, batch)
		require.NoError(t, err)
		assert.Len(t, created, 3)

		// every row of a batch is stored under its own ID
		for _, want := range batch {
			got, err := challans.GetChallan(ctx, "school-3", want.ID)
			require.NoError(t, err)
			assert.Equal(t, want.ID, got.ID)
			assert.Equal(t, want.StudentID, got.StudentID)
			assert.Equal(t, want.Month, got.Month)
		}

		// same periods, new IDs
		created, err = challans.CreateChallans(ctx, []fee.Challan{
			Challan(std1, fee.March, 2024),
			Challan(std2, fee.April, 2024),
		})
		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Equal(t, std2.ID, created[0].StudentID)

		all, err := challans.QueryChallans(ctx, fee.ChallanFilter{SchoolID: "school-3"}, nil)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, fee.April, all[0].Month, "latest due first")

		march, err := challans.QueryChallans(ctx, fee.ChallanFilter{SchoolID: "school-3", Month: fee.March, Year: 2024}, nil)
		require.NoError(t, err)
		assert.Len(t, march, 2)

		byStudent, err := challans.QueryChallans(ctx, fee.ChallanFilter{SchoolID: "school-3", StudentID: std1.ID},
			[]core.DBOrdering{{Field: "due_date", Ascending: true}})
		require.NoError(t, err)
		require.Len(t, byStudent, 2)
		assert.Equal(t, fee.March, byStudent[0].Month)

		chl, err := challans.GetChallan(ctx, "school-3", byStudent[0].ID)
		require.NoError(t, err)
		assert.Equal(t, []fee.FeeItem{{Description: "Tuition", Amount: Amount("5000")}}, normalizeItems(chl.FeeItems))
		assert.Nil(t, chl.PaidDate)

		_, err = challans.GetChallan(ctx, "school-1", chl.ID)
		assert.Equal(t, fee.ErrNotFound, errors.Cause(err))

		stale := chl
		paidDate := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
		chl.PaidAmount = Amount("2000")
		chl.Status = fee.StatusPartial
		chl.PaidDate = &paidDate
		updated, err := challans.UpdateChallanPayment(ctx, chl)
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Version)

		got, err := challans.GetChallan(ctx, "school-3", chl.ID)
		require.NoError(t, err)
		assert.True(t, got.PaidAmount.Equal(Amount("2000")))
		assert.Equal(t, fee.StatusPartial, got.Status)
		assert.Equal(t, 2, got.Version)
		require.NotNil(t, got.PaidDate)
		assert.Equal(t, "2024-03-05", got.PaidDate.Format("2006-01-02"))

		stale.Discount = Amount("100")
		_, err = challans.UpdateChallanPayment(ctx, stale)
		assert.Equal(t, fee.ErrConflict, errors.Cause(err))

		unknown := Challan(std1, fee.May, 2024)
		_, err = challans.UpdateChallanPayment(ctx, unknown)
		assert.Equal(t, fee.ErrNotFound, errors.Cause(err))

		paid, err := challans.QueryChallans(ctx, fee.ChallanFilter{SchoolID: "school-3", Status: fee.StatusPartial}, nil)
		require.NoError(t, err)
		assert.Len(t, paid, 1)
	})
}

// normalizeItems drops the scale SQL stores add to amounts, eg. 5000.00.
func normalizeItems(items []fee.FeeItem) []fee.FeeItem {
	out := make([]fee.FeeItem, len(items))
	for i, item := range items {
		out[i] = fee.FeeItem{Description: item.Description, Amount: Amount(item.Amount.String())}
	}
	return out
}
