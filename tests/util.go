package testutil

import (
	"context"
	"database/sql"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	ut "github.com/go-playground/universal-translator"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
	"github.com/trezcool/masomo-fees/services/logger"
	"github.com/trezcool/masomo-fees/storage/database"
)

const dbURLEnv = "TEST_DATABASE_URL"

// Config returns the configuration used by tests: test mode on, guardians notified.
func Config() *core.Config {
	return &core.Config{
		Env:             "TEST",
		Build:           "test",
		AppName:         "Masomo",
		Debug:           false,
		TestMode:        true,
		SecretKey:       "test-secret",
		FrontendBaseURL: "http://localhost:8080",
		Database:        core.DatabaseConfig{Driver: "memory", Engine: "postgres"},
		Billing: core.BillingConfig{
			Schedule:        "0 6 1 * *",
			NotifyGuardians: true,
			Currency:        "Rs.",
		},
	}
}

// Logger returns a silent logger, not reporting to rollbar.
func Logger(conf *core.Config) core.Logger {
	l := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	l.Enable(false)
	return l
}

func Validator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)
	return validate, translator
}

// PrepareDB opens and migrates the database at $TEST_DATABASE_URL, then empties its tables.
// The test is skipped when the variable is not set.
func PrepareDB(t *testing.T) *sql.DB {
	t.Helper()

	url := os.Getenv(dbURLEnv)
	if url == "" {
		t.Skipf("%s not set", dbURLEnv)
	}
	db, err := sql.Open("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db))
	ResetDB(t, db)
	return db
}

func ResetDB(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec("TRUNCATE challans, fee_heads, students")
	require.NoError(t, err)
}

func Amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func CreateStudent(
	t *testing.T,
	repo fee.StudentRepository,
	id, schoolID, name string,
	status fee.StudentStatus,
	openingBalance string,
	structure ...fee.FeeStructureEntry,
) fee.Student {
	t.Helper()
	if structure == nil {
		structure = []fee.FeeStructureEntry{}
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	std, err := repo.SaveStudent(context.Background(), fee.Student{
		ID:             id,
		SchoolID:       schoolID,
		ClassID:        "class-1",
		Name:           name,
		Status:         status,
		OpeningBalance: Amount(openingBalance),
		FeeStructure:   structure,
		GuardianEmail:  name + "@guardian.test",
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	require.NoError(t, err)
	return std
}

func CreateFeeHead(t *testing.T, repo fee.FeeHeadRepository, id, schoolID, name, amount string) fee.FeeHead {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	head, err := repo.CreateFeeHead(context.Background(), fee.FeeHead{
		ID:            id,
		SchoolID:      schoolID,
		Name:          name,
		DefaultAmount: Amount(amount),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	require.NoError(t, err)
	return head
}
