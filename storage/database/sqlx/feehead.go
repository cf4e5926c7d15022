package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core/fee"
	"github.com/trezcool/masomo-fees/storage/database"
)

type feeHeadRepository struct {
	db *sqlx.DB
}

var _ fee.FeeHeadRepository = (*feeHeadRepository)(nil) // interface compliance check

func NewFeeHeadRepository(db *sqlx.DB) fee.FeeHeadRepository {
	return &feeHeadRepository{db: db}
}

func (repo *feeHeadRepository) CreateFeeHead(ctx context.Context, head fee.FeeHead) (fee.FeeHead, error) {
	q := `INSERT INTO fee_heads (` + feeHeadColumns + `)
		VALUES (:id, :school_id, :name, :default_amount, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toFeeHeadRow(head)); err != nil {
		if database.IsUniqueViolation(err) {
			return fee.FeeHead{}, fee.ErrFeeHeadExists
		}
		return fee.FeeHead{}, errors.Wrap(err, "inserting fee head")
	}
	return head, nil
}

func (repo *feeHeadRepository) QueryFeeHeads(ctx context.Context, schoolID string) ([]fee.FeeHead, error) {
	var rows []feeHeadRow
	q := "SELECT " + feeHeadColumns + " FROM fee_heads WHERE school_id = ? ORDER BY name"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), schoolID); err != nil {
		return nil, errors.Wrap(err, "selecting fee heads")
	}

	heads := make([]fee.FeeHead, 0, len(rows))
	for _, r := range rows {
		heads = append(heads, r.toFeeHead())
	}
	return heads, nil
}

func (repo *feeHeadRepository) GetFeeHead(ctx context.Context, schoolID, id string) (fee.FeeHead, error) {
	var row feeHeadRow
	q := "SELECT " + feeHeadColumns + " FROM fee_heads WHERE id = ? AND school_id = ?"
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(q), id, schoolID); err != nil {
		if err == sql.ErrNoRows {
			return fee.FeeHead{}, fee.ErrNotFound
		}
		return fee.FeeHead{}, errors.Wrap(err, "selecting fee head")
	}
	return row.toFeeHead(), nil
}

func (repo *feeHeadRepository) UpdateFeeHead(ctx context.Context, head fee.FeeHead) (fee.FeeHead, error) {
	q := `UPDATE fee_heads SET name = :name, default_amount = :default_amount, updated_at = :updated_at
		WHERE id = :id AND school_id = :school_id`
	res, err := repo.db.NamedExecContext(ctx, q, toFeeHeadRow(head))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fee.FeeHead{}, fee.ErrFeeHeadExists
		}
		return fee.FeeHead{}, errors.Wrap(err, "updating fee head")
	}
	if n, err := res.RowsAffected(); err != nil {
		return fee.FeeHead{}, errors.Wrap(err, "updating fee head")
	} else if n == 0 {
		return fee.FeeHead{}, fee.ErrNotFound
	}
	return head, nil
}

func (repo *feeHeadRepository) DeleteFeeHead(ctx context.Context, schoolID, id string) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM fee_heads WHERE id = ? AND school_id = ?"), id, schoolID)
	if err != nil {
		return errors.Wrap(err, "deleting fee head")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "deleting fee head")
	} else if n == 0 {
		return fee.ErrNotFound
	}
	return nil
}
