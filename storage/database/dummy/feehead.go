package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/masomo-fees/core/fee"
)

type feeHeadRepository struct {
	db *feeHeadTable
}

var _ fee.FeeHeadRepository = (*feeHeadRepository)(nil) // interface compliance check

func NewFeeHeadRepository(db *DB) fee.FeeHeadRepository {
	return &feeHeadRepository{db: db.feeHead}
}

// nameTaken must be called with the lock held.
func (repo *feeHeadRepository) nameTaken(head fee.FeeHead) bool {
	for _, h := range repo.db.table {
		if h.SchoolID == head.SchoolID && h.ID != head.ID && strings.EqualFold(h.Name, head.Name) {
			return true
		}
	}
	return false
}

func (repo *feeHeadRepository) CreateFeeHead(_ context.Context, head fee.FeeHead) (fee.FeeHead, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.nameTaken(head) {
		return fee.FeeHead{}, fee.ErrFeeHeadExists
	}
	repo.db.table[head.ID] = &head
	return head, nil
}

func (repo *feeHeadRepository) QueryFeeHeads(_ context.Context, schoolID string) ([]fee.FeeHead, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	heads := make([]fee.FeeHead, 0)
	for _, h := range repo.db.table {
		if h.SchoolID == schoolID {
			heads = append(heads, *h)
		}
	}
	sort.Slice(heads, func(i, j int) bool { return heads[i].Name < heads[j].Name })
	return heads, nil
}

func (repo *feeHeadRepository) GetFeeHead(_ context.Context, schoolID, id string) (fee.FeeHead, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if h, ok := repo.db.table[id]; ok && h.SchoolID == schoolID {
		return *h, nil
	}
	return fee.FeeHead{}, fee.ErrNotFound
}

func (repo *feeHeadRepository) UpdateFeeHead(_ context.Context, head fee.FeeHead) (fee.FeeHead, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[head.ID]
	if !ok || orig.SchoolID != head.SchoolID {
		return fee.FeeHead{}, fee.ErrNotFound
	}
	if repo.nameTaken(head) {
		return fee.FeeHead{}, fee.ErrFeeHeadExists
	}
	orig.Name = head.Name
	orig.DefaultAmount = head.DefaultAmount
	orig.UpdatedAt = head.UpdatedAt
	return *orig, nil
}

func (repo *feeHeadRepository) DeleteFeeHead(_ context.Context, schoolID, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if h, ok := repo.db.table[id]; !ok || h.SchoolID != schoolID {
		return fee.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
