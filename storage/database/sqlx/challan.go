package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
)

const defaultChallanOrdering = "due_date DESC, number ASC"

type challanRepository struct {
	db *sqlx.DB
}

var _ fee.ChallanRepository = (*challanRepository)(nil) // interface compliance check

func NewChallanRepository(db *sqlx.DB) fee.ChallanRepository {
	return &challanRepository{db: db}
}

// CreateChallans inserts the batch in one transaction; rows hitting the (student_id, month, year)
// unique constraint are skipped by ON CONFLICT DO NOTHING.
func (repo *challanRepository) CreateChallans(ctx context.Context, challans []fee.Challan) (created []fee.Challan, err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	q := `INSERT INTO challans (` + challanColumns + `)
		VALUES (:id, :number, :school_id, :student_id, :class_id, :month, :year, :fee_items, :previous_balance,
			:total_amount, :paid_amount, :discount, :status, :due_date, :paid_date, :version, :created_at, :updated_at)
		ON CONFLICT (student_id, month, year) DO NOTHING`
	stmt, err := tx.PrepareNamedContext(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "preparing challan insert")
	}
	defer func() { _ = stmt.Close() }()

	created = make([]fee.Challan, 0, len(challans))
	for _, chl := range challans {
		row, err := toChallanRow(chl)
		if err != nil {
			return nil, err
		}
		res, err := stmt.ExecContext(ctx, row)
		if err != nil {
			return nil, errors.Wrap(err, "inserting challan")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, errors.Wrap(err, "inserting challan")
		}
		if n == 1 {
			created = append(created, chl)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing challans")
	}
	return created, nil
}

func (repo *challanRepository) QueryChallans(ctx context.Context, filter fee.ChallanFilter, ordering []core.DBOrdering) ([]fee.Challan, error) {
	q := "SELECT " + challanColumns + " FROM challans WHERE school_id = ?"
	args := []interface{}{filter.SchoolID}
	if filter.Month != "" {
		q += " AND month = ?"
		args = append(args, string(filter.Month))
	}
	if filter.Year != 0 {
		q += " AND year = ?"
		args = append(args, filter.Year)
	}
	if filter.Status != "" {
		q += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.StudentID != "" {
		q += " AND student_id = ?"
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		q += " AND class_id = ?"
		args = append(args, filter.ClassID)
	}
	q += orderBy(ordering, defaultChallanOrdering)

	var rows []challanRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting challans")
	}

	challans := make([]fee.Challan, 0, len(rows))
	for _, r := range rows {
		chl, err := r.toChallan()
		if err != nil {
			return nil, err
		}
		challans = append(challans, chl)
	}
	return challans, nil
}

func (repo *challanRepository) GetChallan(ctx context.Context, schoolID, id string) (fee.Challan, error) {
	var row challanRow
	q := "SELECT " + challanColumns + " FROM challans WHERE id = ? AND school_id = ?"
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(q), id, schoolID); err != nil {
		if err == sql.ErrNoRows {
			return fee.Challan{}, fee.ErrNotFound
		}
		return fee.Challan{}, errors.Wrap(err, "selecting challan")
	}
	return row.toChallan()
}

func (repo *challanRepository) UpdateChallanPayment(ctx context.Context, chl fee.Challan) (fee.Challan, error) {
	row, err := toChallanRow(chl)
	if err != nil {
		return fee.Challan{}, err
	}

	q := `UPDATE challans SET
			paid_amount = :paid_amount,
			discount = :discount,
			status = :status,
			paid_date = :paid_date,
			updated_at = :updated_at,
			version = version + 1
		WHERE id = :id AND school_id = :school_id AND version = :version`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return fee.Challan{}, errors.Wrap(err, "updating challan payment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fee.Challan{}, errors.Wrap(err, "updating challan payment")
	}
	if n == 0 {
		if _, err = repo.GetChallan(ctx, chl.SchoolID, chl.ID); err != nil {
			return fee.Challan{}, err
		}
		return fee.Challan{}, fee.ErrConflict
	}

	chl.Version++
	return chl, nil
}
