package fee

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"

	"github.com/shopspring/decimal"

	"github.com/trezcool/masomo-fees/core"
)

const (
	challanIssuedTemplate  = "challan_issued"
	paymentReceiptTemplate = "payment_receipt"
	dateLayout             = "02 Jan 2006"
)

type (
	challanIssuedData struct {
		StudentName        string
		Number             string
		Month              Month
		Year               int
		Items              []FeeItem
		HasPreviousBalance bool
		PreviousBalance    string
		Total              string
		DueDate            string
		Currency           string
	}

	paymentReceiptData struct {
		StudentName string
		Number      string
		Month       Month
		Year        int
		Paid        string
		Discount    string
		Outstanding string
		Status      ChallanStatus
		Currency    string
	}
)

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func (svc *service) notifyEnabled() bool {
	return svc.mailSvc != nil && svc.conf != nil && svc.conf.Billing.NotifyGuardians
}

// notifyChallansIssued mails a notice to the guardian of every student with a new challan.
// Sending happens in the background; failures never affect the billing run.
func (svc *service) notifyChallansIssued(students []Student, created []Challan) {
	if !svc.notifyEnabled() {
		return
	}
	byID := make(map[string]Student, len(students))
	for _, std := range students {
		byID[std.ID] = std
	}

	messages := make([]*core.EmailMessage, 0, len(created))
	for _, chl := range created {
		std, ok := byID[chl.StudentID]
		if !ok || std.GuardianEmail == "" {
			continue
		}
		items := make([]FeeItem, len(chl.FeeItems))
		for i, item := range chl.FeeItems {
			items[i] = FeeItem{Description: item.Description, Amount: item.Amount.Round(2)}
		}
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: std.Name, Address: std.GuardianEmail}},
			Subject:      fmt.Sprintf("Fee challan %s - %s %d", chl.Number, chl.Month, chl.Year),
			TemplateName: challanIssuedTemplate,
			TemplateData: challanIssuedData{
				StudentName:        std.Name,
				Number:             chl.Number,
				Month:              chl.Month,
				Year:               chl.Year,
				Items:              items,
				HasPreviousBalance: chl.PreviousBalance.IsPositive(),
				PreviousBalance:    money(chl.PreviousBalance),
				Total:              money(chl.TotalAmount),
				DueDate:            chl.DueDate.Format(dateLayout),
				Currency:           svc.conf.Billing.Currency,
			},
		})
	}
	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
}

// notifyPaymentReceived mails a receipt, with the challan QR reference attached, to the student's guardian.
func (svc *service) notifyPaymentReceived(ctx context.Context, chl Challan) {
	if !svc.notifyEnabled() {
		return
	}
	std, err := svc.students.GetStudent(ctx, chl.SchoolID, chl.StudentID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("payment receipt for challan %s not sent: %v", chl.ID, err), err)
		return
	}
	if std.GuardianEmail == "" {
		return
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: std.Name, Address: std.GuardianEmail}},
		Subject:      fmt.Sprintf("Payment received - challan %s", chl.Number),
		TemplateName: paymentReceiptTemplate,
		TemplateData: paymentReceiptData{
			StudentName: std.Name,
			Number:      chl.Number,
			Month:       chl.Month,
			Year:        chl.Year,
			Paid:        money(chl.PaidAmount),
			Discount:    money(chl.Discount),
			Outstanding: money(chl.Outstanding()),
			Status:      chl.Status,
			Currency:    svc.conf.Billing.Currency,
		},
	}
	if png, err := encodeQRCode(chl, defaultQRSize); err == nil {
		if err = msg.Attach(bytes.NewReader(png), "challan-"+chl.Number+".png", "image/png"); err != nil {
			svc.logger.Warn(fmt.Sprintf("attaching QR code to receipt of challan %s: %v", chl.ID, err), err)
		}
	}
	svc.mailSvc.SendMessages(msg)
}
