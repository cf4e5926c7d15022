package core_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-fees/core"
	testutil "github.com/trezcool/masomo-fees/tests"
)

type receipt struct {
	StudentName, Number, Paid, Discount, Outstanding, Currency string
	Month                                                      string
	Year                                                       int
	Status                                                     string
}

func TestEmailMessage_Render(t *testing.T) {
	conf := testutil.Config()
	core.ParseEmailTemplates(conf, testutil.Logger(conf))

	t.Run("templated", func(t *testing.T) {
		msg := core.EmailMessage{TemplateName: "payment_receipt", TemplateData: receipt{
			StudentName: "Amina", Number: "2024031234", Month: "March", Year: 2024,
			Paid: "2000.00", Discount: "0.00", Outstanding: "4500.00", Status: "Partial", Currency: "Rs.",
		}}
		require.NoError(t, msg.Render(conf))
		assert.Contains(t, msg.TextContent, "challan 2024031234 of Amina (March 2024)")
		assert.Contains(t, msg.TextContent, "Outstanding: Rs. 4500.00")
		assert.Contains(t, msg.HTMLContent, "2024031234")
		assert.True(t, msg.HasContent())
	})
	t.Run("missing key", func(t *testing.T) {
		msg := core.EmailMessage{TemplateName: "payment_receipt", TemplateData: map[string]string{"Number": "1"}}
		assert.Error(t, msg.Render(conf))
	})
	t.Run("unknown template", func(t *testing.T) {
		msg := core.EmailMessage{TemplateName: "lol"}
		assert.EqualError(t, msg.Render(conf), `email template "lol" not found`)
	})
	t.Run("plain body", func(t *testing.T) {
		msg := core.EmailMessage{BodyStr: "hello"}
		require.NoError(t, msg.Render(conf))
		assert.Equal(t, "hello", msg.TextContent)
		assert.Empty(t, msg.HTMLContent)
	})
}

func TestEmailMessage_Attach(t *testing.T) {
	var msg core.EmailMessage
	require.NoError(t, msg.Attach(strings.NewReader("\x89PNG\r\n\x1a\n"), "qr.png"))
	require.NoError(t, msg.Attach(strings.NewReader("a,b"), "challans.csv", "text/csv"))

	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, "image/png", msg.Attachments[0].ContentType)
	assert.Equal(t, "iVBORw0KGgo=", msg.Attachments[0].Content.String())
	assert.Equal(t, "text/csv", msg.Attachments[1].ContentType)
	assert.True(t, msg.HasAttachments())
	assert.False(t, msg.HasRecipients())
}
