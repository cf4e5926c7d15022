package gormrepos

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/masomo-fees/core/fee"
)

type studentRepository struct {
	db *gorm.DB
}

var _ fee.StudentRepository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *gorm.DB) fee.StudentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) QueryActiveStudents(ctx context.Context, schoolID string) ([]fee.Student, error) {
	var models []studentModel
	err := repo.db.WithContext(ctx).
		Where("school_id = ? AND status = ?", schoolID, string(fee.StudentActive)).
		Order("name").Order("id").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "selecting active students")
	}

	students := make([]fee.Student, 0, len(models))
	for _, m := range models {
		students = append(students, m.toStudent())
	}
	return students, nil
}

func (repo *studentRepository) QuerySchoolIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	err := repo.db.WithContext(ctx).Model(&studentModel{}).
		Distinct("school_id").Order("school_id").
		Pluck("school_id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "selecting school IDs")
	}
	return ids, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, schoolID, id string) (fee.Student, error) {
	var m studentModel
	if err := repo.db.WithContext(ctx).Where("id = ? AND school_id = ?", id, schoolID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fee.Student{}, fee.ErrNotFound
		}
		return fee.Student{}, errors.Wrap(err, "selecting student")
	}
	return m.toStudent(), nil
}

func (repo *studentRepository) SaveStudent(ctx context.Context, std fee.Student) (fee.Student, error) {
	m := toStudentModel(std)
	err := repo.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"school_id", "class_id", "name", "status", "opening_balance", "fee_structure", "guardian_email", "updated_at",
		}),
	}).Create(&m).Error
	if err != nil {
		return fee.Student{}, errors.Wrap(err, "upserting student")
	}
	return repo.GetStudent(ctx, std.SchoolID, std.ID)
}
