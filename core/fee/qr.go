package fee

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"

	"github.com/trezcool/masomo-fees/core"
)

const (
	defaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024
)

// QRPayload is the reference encoded in a challan QR code: number|student|month-year|total|outstanding.
func QRPayload(chl Challan) string {
	return fmt.Sprintf("%s|%s|%s-%d|%s|%s",
		chl.Number, chl.StudentID, chl.Month, chl.Year, money(chl.TotalAmount), money(chl.Outstanding()))
}

func encodeQRCode(chl Challan, size int) ([]byte, error) {
	return qrcode.Encode(QRPayload(chl), qrcode.Medium, size)
}

// ChallanQRCode returns a PNG QR code of the challan reference, size x size pixels.
// A zero size defaults to 256.
func (svc *service) ChallanQRCode(ctx context.Context, schoolID, id string, size int) ([]byte, error) {
	if size == 0 {
		size = defaultQRSize
	}
	if size < minQRSize || size > maxQRSize {
		msg := fmt.Sprintf("must be between %d and %d", minQRSize, maxQRSize)
		return nil, core.NewValidationError(errors.New(msg), core.FieldError{Field: "size", Error: msg})
	}

	chl, err := svc.GetChallan(ctx, schoolID, id)
	if err != nil {
		return nil, err
	}

	png, err := encodeQRCode(chl, size)
	if err != nil {
		return nil, errors.Wrap(err, "encoding QR code")
	}
	return png, nil
}
