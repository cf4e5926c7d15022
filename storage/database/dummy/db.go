package dummydb

import (
	"sync"

	"github.com/trezcool/masomo-fees/core/fee"
)

type (
	// DB is an in-memory database; its tables are safe for concurrent use.
	DB struct {
		student *studentTable
		feeHead *feeHeadTable
		challan *challanTable
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*fee.Student
	}

	feeHeadTable struct {
		sync.RWMutex
		table map[string]*fee.FeeHead
	}

	challanTable struct {
		sync.RWMutex
		table    map[string]*fee.Challan
		byPeriod map[periodKey]string // {(student, month, year): challan ID}
	}

	periodKey struct {
		studentID string
		month     fee.Month
		year      int
	}
)

func Open() (*DB, error) {
	db := &DB{
		student: &studentTable{table: make(map[string]*fee.Student)},
		feeHead: &feeHeadTable{table: make(map[string]*fee.FeeHead)},
		challan: &challanTable{
			table:    make(map[string]*fee.Challan),
			byPeriod: make(map[periodKey]string),
		},
	}
	return db, nil
}

// Reset empties all tables.
func (db *DB) Reset() {
	db.challan.Lock()
	db.challan.table = make(map[string]*fee.Challan)
	db.challan.byPeriod = make(map[periodKey]string)
	db.challan.Unlock()

	db.feeHead.Lock()
	db.feeHead.table = make(map[string]*fee.FeeHead)
	db.feeHead.Unlock()

	db.student.Lock()
	db.student.table = make(map[string]*fee.Student)
	db.student.Unlock()
}
