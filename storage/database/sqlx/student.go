package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core/fee"
)

type studentRepository struct {
	db *sqlx.DB
}

var _ fee.StudentRepository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) fee.StudentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) QueryActiveStudents(ctx context.Context, schoolID string) ([]fee.Student, error) {
	var rows []studentRow
	q := "SELECT " + studentColumns + " FROM students WHERE school_id = ? AND status = ? ORDER BY name, id"
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), schoolID, string(fee.StudentActive)); err != nil {
		return nil, errors.Wrap(err, "selecting active students")
	}

	students := make([]fee.Student, 0, len(rows))
	for _, r := range rows {
		std, err := r.toStudent()
		if err != nil {
			return nil, err
		}
		students = append(students, std)
	}
	return students, nil
}

func (repo *studentRepository) QuerySchoolIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	if err := repo.db.SelectContext(ctx, &ids, "SELECT DISTINCT school_id FROM students ORDER BY school_id"); err != nil {
		return nil, errors.Wrap(err, "selecting school IDs")
	}
	return ids, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, schoolID, id string) (fee.Student, error) {
	var row studentRow
	q := "SELECT " + studentColumns + " FROM students WHERE id = ? AND school_id = ?"
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(q), id, schoolID); err != nil {
		if err == sql.ErrNoRows {
			return fee.Student{}, fee.ErrNotFound
		}
		return fee.Student{}, errors.Wrap(err, "selecting student")
	}
	return row.toStudent()
}

func (repo *studentRepository) SaveStudent(ctx context.Context, std fee.Student) (fee.Student, error) {
	row, err := toStudentRow(std)
	if err != nil {
		return fee.Student{}, err
	}

	q := `INSERT INTO students (` + studentColumns + `)
		VALUES (:id, :school_id, :class_id, :name, :status, :opening_balance, :fee_structure, :guardian_email, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			school_id = EXCLUDED.school_id,
			class_id = EXCLUDED.class_id,
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			opening_balance = EXCLUDED.opening_balance,
			fee_structure = EXCLUDED.fee_structure,
			guardian_email = EXCLUDED.guardian_email,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + studentColumns

	stmt, err := repo.db.PrepareNamedContext(ctx, q)
	if err != nil {
		return fee.Student{}, errors.Wrap(err, "preparing student upsert")
	}
	defer func() { _ = stmt.Close() }()

	var saved studentRow
	if err = stmt.GetContext(ctx, &saved, row); err != nil {
		return fee.Student{}, errors.Wrap(err, "upserting student")
	}
	return saved.toStudent()
}
