package sqlxrepos_test

import (
	"testing"

	"github.com/jmoiron/sqlx"

	sqlxrepos "github.com/trezcool/masomo-fees/storage/database/sqlx"
	testutil "github.com/trezcool/masomo-fees/tests"
)

func TestRepositories(t *testing.T) {
	db := sqlx.NewDb(testutil.PrepareDB(t), "postgres")
	testutil.RepositoryContract(t, sqlxrepos.NewStudentRepository(db), sqlxrepos.NewFeeHeadRepository(db), sqlxrepos.NewChallanRepository(db))
}
