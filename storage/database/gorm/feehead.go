package gormrepos

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/trezcool/masomo-fees/core/fee"
)

type feeHeadRepository struct {
	db *gorm.DB
}

var _ fee.FeeHeadRepository = (*feeHeadRepository)(nil) // interface compliance check

func NewFeeHeadRepository(db *gorm.DB) fee.FeeHeadRepository {
	return &feeHeadRepository{db: db}
}

func (repo *feeHeadRepository) CreateFeeHead(ctx context.Context, head fee.FeeHead) (fee.FeeHead, error) {
	m := toFeeHeadModel(head)
	if err := repo.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fee.FeeHead{}, fee.ErrFeeHeadExists
		}
		return fee.FeeHead{}, errors.Wrap(err, "inserting fee head")
	}
	return m.toFeeHead(), nil
}

func (repo *feeHeadRepository) QueryFeeHeads(ctx context.Context, schoolID string) ([]fee.FeeHead, error) {
	var models []feeHeadModel
	if err := repo.db.WithContext(ctx).Where("school_id = ?", schoolID).Order("name").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "selecting fee heads")
	}

	heads := make([]fee.FeeHead, 0, len(models))
	for _, m := range models {
		heads = append(heads, m.toFeeHead())
	}
	return heads, nil
}

func (repo *feeHeadRepository) GetFeeHead(ctx context.Context, schoolID, id string) (fee.FeeHead, error) {
	var m feeHeadModel
	if err := repo.db.WithContext(ctx).Where("id = ? AND school_id = ?", id, schoolID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fee.FeeHead{}, fee.ErrNotFound
		}
		return fee.FeeHead{}, errors.Wrap(err, "selecting fee head")
	}
	return m.toFeeHead(), nil
}

func (repo *feeHeadRepository) UpdateFeeHead(ctx context.Context, head fee.FeeHead) (fee.FeeHead, error) {
	res := repo.db.WithContext(ctx).Model(&feeHeadModel{}).
		Where("id = ? AND school_id = ?", head.ID, head.SchoolID).
		Updates(map[string]interface{}{
			"name":           head.Name,
			"default_amount": head.DefaultAmount,
			"updated_at":     head.UpdatedAt,
		})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return fee.FeeHead{}, fee.ErrFeeHeadExists
		}
		return fee.FeeHead{}, errors.Wrap(res.Error, "updating fee head")
	}
	if res.RowsAffected == 0 {
		return fee.FeeHead{}, fee.ErrNotFound
	}
	return head, nil
}

func (repo *feeHeadRepository) DeleteFeeHead(ctx context.Context, schoolID, id string) error {
	res := repo.db.WithContext(ctx).Where("id = ? AND school_id = ?", id, schoolID).Delete(&feeHeadModel{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting fee head")
	}
	if res.RowsAffected == 0 {
		return fee.ErrNotFound
	}
	return nil
}
