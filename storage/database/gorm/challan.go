package gormrepos

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
)

type challanRepository struct {
	db *gorm.DB
}

var _ fee.ChallanRepository = (*challanRepository)(nil) // interface compliance check

func NewChallanRepository(db *gorm.DB) fee.ChallanRepository {
	return &challanRepository{db: db}
}

var periodConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "student_id"}, {Name: "month"}, {Name: "year"}},
	DoNothing: true,
}

func (repo *challanRepository) CreateChallans(ctx context.Context, challans []fee.Challan) ([]fee.Challan, error) {
	created := make([]fee.Challan, 0, len(challans))
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, chl := range challans {
			m := toChallanModel(chl)
			res := tx.Clauses(periodConflict).Create(&m)
			if res.Error != nil {
				return errors.Wrap(res.Error, "inserting challan")
			}
			if res.RowsAffected == 1 {
				created = append(created, chl)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (repo *challanRepository) QueryChallans(ctx context.Context, filter fee.ChallanFilter, ordering []core.DBOrdering) ([]fee.Challan, error) {
	tx := repo.db.WithContext(ctx).Where("school_id = ?", filter.SchoolID)
	if filter.Month != "" {
		tx = tx.Where("month = ?", string(filter.Month))
	}
	if filter.Year != 0 {
		tx = tx.Where("year = ?", filter.Year)
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	if filter.StudentID != "" {
		tx = tx.Where("student_id = ?", filter.StudentID)
	}
	if filter.ClassID != "" {
		tx = tx.Where("class_id = ?", filter.ClassID)
	}
	for _, ord := range ordering {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: ord.Field}, Desc: !ord.Ascending})
	}
	tx = tx.Order("due_date DESC").Order("number ASC")

	var models []challanModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "selecting challans")
	}

	challans := make([]fee.Challan, 0, len(models))
	for _, m := range models {
		challans = append(challans, m.toChallan())
	}
	return challans, nil
}

func (repo *challanRepository) GetChallan(ctx context.Context, schoolID, id string) (fee.Challan, error) {
	var m challanModel
	if err := repo.db.WithContext(ctx).Where("id = ? AND school_id = ?", id, schoolID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fee.Challan{}, fee.ErrNotFound
		}
		return fee.Challan{}, errors.Wrap(err, "selecting challan")
	}
	return m.toChallan(), nil
}

func (repo *challanRepository) UpdateChallanPayment(ctx context.Context, chl fee.Challan) (fee.Challan, error) {
	var paidDate *datatypes.Date
	if chl.PaidDate != nil {
		pd := datatypes.Date(*chl.PaidDate)
		paidDate = &pd
	}

	res := repo.db.WithContext(ctx).Model(&challanModel{}).
		Where("id = ? AND school_id = ? AND version = ?", chl.ID, chl.SchoolID, chl.Version).
		Updates(map[string]interface{}{
			"paid_amount": chl.PaidAmount,
			"discount":    chl.Discount,
			"status":      string(chl.Status),
			"paid_date":   paidDate,
			"updated_at":  chl.UpdatedAt,
			"version":     gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return fee.Challan{}, errors.Wrap(res.Error, "updating challan payment")
	}
	if res.RowsAffected == 0 {
		if _, err := repo.GetChallan(ctx, chl.SchoolID, chl.ID); err != nil {
			return fee.Challan{}, err
		}
		return fee.Challan{}, fee.ErrConflict
	}

	chl.Version++
	return chl, nil
}
