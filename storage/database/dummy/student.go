package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/masomo-fees/core/fee"
)

type studentRepository struct {
	db *studentTable
}

var _ fee.StudentRepository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) fee.StudentRepository {
	return &studentRepository{db: db.student}
}

func copyStudent(std fee.Student) fee.Student {
	std.FeeStructure = append([]fee.FeeStructureEntry{}, std.FeeStructure...)
	return std
}

func (repo *studentRepository) QueryActiveStudents(_ context.Context, schoolID string) ([]fee.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]fee.Student, 0)
	for _, std := range repo.db.table {
		if std.SchoolID == schoolID && std.Status == fee.StudentActive {
			students = append(students, copyStudent(*std))
		}
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].Name == students[j].Name {
			return students[i].ID < students[j].ID
		}
		return students[i].Name < students[j].Name
	})
	return students, nil
}

func (repo *studentRepository) QuerySchoolIDs(_ context.Context) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, std := range repo.db.table {
		if !seen[std.SchoolID] {
			seen[std.SchoolID] = true
			ids = append(ids, std.SchoolID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, schoolID, id string) (fee.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if std, ok := repo.db.table[id]; ok && std.SchoolID == schoolID {
		return copyStudent(*std), nil
	}
	return fee.Student{}, fee.ErrNotFound
}

func (repo *studentRepository) SaveStudent(_ context.Context, std fee.Student) (fee.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if orig, ok := repo.db.table[std.ID]; ok {
		std.CreatedAt = orig.CreatedAt
	}
	std = copyStudent(std)
	repo.db.table[std.ID] = &std
	return copyStudent(std), nil
}
