package gormrepos

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/trezcool/masomo-fees/core/fee"
)

type (
	studentModel struct {
		ID             string          `gorm:"primaryKey;size:36"`
		SchoolID       string          `gorm:"size:64;not null"`
		ClassID        string          `gorm:"size:64;not null"`
		Name           string          `gorm:"size:150;not null"`
		Status         string          `gorm:"size:16;not null"`
		OpeningBalance decimal.Decimal `gorm:"type:numeric(14,2);not null"`
		FeeStructure   datatypes.JSONSlice[fee.FeeStructureEntry]
		GuardianEmail  *string `gorm:"size:254"`
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	feeHeadModel struct {
		ID            string          `gorm:"primaryKey;size:36"`
		SchoolID      string          `gorm:"size:64;not null"`
		Name          string          `gorm:"size:100;not null"`
		DefaultAmount decimal.Decimal `gorm:"type:numeric(14,2);not null"`
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	challanModel struct {
		ID              string `gorm:"primaryKey;size:36"`
		Number          string `gorm:"size:16;not null"`
		SchoolID        string `gorm:"size:64;not null"`
		StudentID       string `gorm:"size:36;not null"`
		ClassID         string `gorm:"size:64;not null"`
		Month           string `gorm:"size:9;not null"`
		Year            int    `gorm:"not null"`
		FeeItems        datatypes.JSONSlice[fee.FeeItem]
		PreviousBalance decimal.Decimal `gorm:"type:numeric(14,2);not null"`
		TotalAmount     decimal.Decimal `gorm:"type:numeric(14,2);not null"`
		PaidAmount      decimal.Decimal `gorm:"type:numeric(14,2);not null"`
		Discount        decimal.Decimal `gorm:"type:numeric(14,2);not null"`
		Status          string          `gorm:"size:8;not null"`
		DueDate         datatypes.Date  `gorm:"not null"`
		PaidDate        *datatypes.Date
		Version         int `gorm:"not null"`
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}
)

func (studentModel) TableName() string { return "students" }
func (feeHeadModel) TableName() string { return "fee_heads" }
func (challanModel) TableName() string { return "challans" }

func toStudentModel(std fee.Student) studentModel {
	m := studentModel{
		ID:             std.ID,
		SchoolID:       std.SchoolID,
		ClassID:        std.ClassID,
		Name:           std.Name,
		Status:         string(std.Status),
		OpeningBalance: std.OpeningBalance,
		FeeStructure:   datatypes.JSONSlice[fee.FeeStructureEntry](std.FeeStructure),
		CreatedAt:      std.CreatedAt,
		UpdatedAt:      std.UpdatedAt,
	}
	if m.FeeStructure == nil {
		m.FeeStructure = datatypes.JSONSlice[fee.FeeStructureEntry]{}
	}
	if std.GuardianEmail != "" {
		email := std.GuardianEmail
		m.GuardianEmail = &email
	}
	return m
}

func (m studentModel) toStudent() fee.Student {
	std := fee.Student{
		ID:             m.ID,
		SchoolID:       m.SchoolID,
		ClassID:        m.ClassID,
		Name:           m.Name,
		Status:         fee.StudentStatus(m.Status),
		OpeningBalance: m.OpeningBalance,
		FeeStructure:   append([]fee.FeeStructureEntry{}, m.FeeStructure...),
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
	if m.GuardianEmail != nil {
		std.GuardianEmail = *m.GuardianEmail
	}
	return std
}

func toFeeHeadModel(head fee.FeeHead) feeHeadModel {
	return feeHeadModel{
		ID:            head.ID,
		SchoolID:      head.SchoolID,
		Name:          head.Name,
		DefaultAmount: head.DefaultAmount,
		CreatedAt:     head.CreatedAt,
		UpdatedAt:     head.UpdatedAt,
	}
}

func (m feeHeadModel) toFeeHead() fee.FeeHead {
	return fee.FeeHead{
		ID:            m.ID,
		SchoolID:      m.SchoolID,
		Name:          m.Name,
		DefaultAmount: m.DefaultAmount,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

func toChallanModel(chl fee.Challan) challanModel {
	m := challanModel{
		ID:              chl.ID,
		Number:          chl.Number,
		SchoolID:        chl.SchoolID,
		StudentID:       chl.StudentID,
		ClassID:         chl.ClassID,
		Month:           string(chl.Month),
		Year:            chl.Year,
		FeeItems:        datatypes.JSONSlice[fee.FeeItem](chl.FeeItems),
		PreviousBalance: chl.PreviousBalance,
		TotalAmount:     chl.TotalAmount,
		PaidAmount:      chl.PaidAmount,
		Discount:        chl.Discount,
		Status:          string(chl.Status),
		DueDate:         datatypes.Date(chl.DueDate),
		Version:         chl.Version,
		CreatedAt:       chl.CreatedAt,
		UpdatedAt:       chl.UpdatedAt,
	}
	if m.FeeItems == nil {
		m.FeeItems = datatypes.JSONSlice[fee.FeeItem]{}
	}
	if chl.PaidDate != nil {
		pd := datatypes.Date(*chl.PaidDate)
		m.PaidDate = &pd
	}
	return m
}

func (m challanModel) toChallan() fee.Challan {
	chl := fee.Challan{
		ID:              m.ID,
		Number:          m.Number,
		SchoolID:        m.SchoolID,
		StudentID:       m.StudentID,
		ClassID:         m.ClassID,
		Month:           fee.Month(m.Month),
		Year:            m.Year,
		FeeItems:        append([]fee.FeeItem{}, m.FeeItems...),
		PreviousBalance: m.PreviousBalance,
		TotalAmount:     m.TotalAmount,
		PaidAmount:      m.PaidAmount,
		Discount:        m.Discount,
		Status:          fee.ChallanStatus(m.Status),
		DueDate:         time.Time(m.DueDate).UTC(),
		Version:         m.Version,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
	if m.PaidDate != nil {
		pd := time.Time(*m.PaidDate).UTC()
		chl.PaidDate = &pd
	}
	return chl
}
