package emailsvc

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core"
)

// outbox records the messages delivered by the console services, for tests and development.
var outbox struct {
	sync.Mutex
	messages []core.EmailMessage
}

// ResetSentMessages empties the outbox.
func ResetSentMessages() {
	outbox.Lock()
	outbox.messages = nil
	outbox.Unlock()
}

// GetSentMessages returns a copy of the messages delivered so far.
func GetSentMessages() []core.EmailMessage {
	outbox.Lock()
	defer outbox.Unlock()
	return append([]core.EmailMessage{}, outbox.messages...)
}

type consoleService struct {
	conf       *core.Config
	logger     core.Logger
	std        *log.Logger
	from       mail.Address
	subjPrefix string
	silent     bool
}

var _ core.EmailService = (*consoleService)(nil)

// NewConsoleService returns an EmailService printing the messages as MIME to stdout. Meant for development.
func NewConsoleService(conf *core.Config, logger core.Logger) core.EmailService {
	return newConsoleService(conf, logger, false)
}

func newConsoleService(conf *core.Config, logger core.Logger, silent bool) *consoleService {
	return &consoleService{
		conf:       conf,
		logger:     logger,
		std:        log.New(os.Stdout, "EMAIL : ", log.LstdFlags),
		from:       conf.DefaultFromEmail(),
		subjPrefix: "[" + conf.AppName + "] ",
		silent:     silent,
	}
}

func (svc *consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.deliver(msg)
	}
}

func (svc *consoleService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(svc.conf); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering email %q: %v", msg.Subject, err), err)
		return
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return
	}
	if err := svc.send(*msg); err != nil {
		svc.logger.Error(fmt.Sprintf("emailing %q: %v", msg.Subject, err), err)
		return
	}

	outbox.Lock()
	outbox.messages = append(outbox.messages, *msg)
	outbox.Unlock()
}

func (svc *consoleService) send(msg core.EmailMessage) error {
	raw, err := svc.compose(msg)
	if err != nil {
		return err
	}
	if !svc.silent {
		svc.std.Println(raw)
	}
	return nil
}

// compose writes msg as a multipart/mixed MIME message: the text (and html) alternatives, then the attachments.
func (svc *consoleService) compose(msg core.EmailMessage) (string, error) {
	var buf bytes.Buffer
	mixed := multipart.NewWriter(&buf)

	headers := [][2]string{
		{"From", svc.from.String()},
		{"To", joinAddresses(msg.To)},
		{"Cc", joinAddresses(msg.Cc)},
		{"Bcc", joinAddresses(msg.Bcc)},
		{"Subject", mime.QEncoding.Encode("utf-8", svc.subjPrefix+msg.Subject)},
		{"Date", time.Now().Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "multipart/mixed; boundary=" + mixed.Boundary()},
	}
	var head strings.Builder
	for _, h := range headers {
		if h[1] != "" {
			fmt.Fprintf(&head, "%s: %s\r\n", h[0], h[1])
		}
	}
	head.WriteString("\r\n")

	var alt bytes.Buffer
	altWriter := multipart.NewWriter(&alt)
	if err := writePart(altWriter, "text/plain; charset=utf-8", "", msg.TextContent); err != nil {
		return "", err
	}
	if msg.HTMLContent != "" {
		if err := writePart(altWriter, "text/html; charset=utf-8", "", msg.HTMLContent); err != nil {
			return "", err
		}
	}
	if err := altWriter.Close(); err != nil {
		return "", errors.Wrap(err, "closing alternative part")
	}
	if err := writePart(mixed, "multipart/alternative; boundary="+altWriter.Boundary(), "", alt.String()); err != nil {
		return "", err
	}

	for _, at := range msg.Attachments {
		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": at.Filename})
		if err := writePart(mixed, at.ContentType, disposition, at.Content.String()); err != nil {
			return "", err
		}
	}
	if err := mixed.Close(); err != nil {
		return "", errors.Wrap(err, "closing message")
	}
	return head.String() + buf.String(), nil
}

// writePart adds a part to w; attachments (with a disposition) hold base64 content.
func writePart(w *multipart.Writer, contentType, disposition, content string) error {
	h := textproto.MIMEHeader{"Content-Type": {contentType}}
	if disposition != "" {
		h.Set("Content-Disposition", disposition)
		h.Set("Content-Transfer-Encoding", "base64")
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return errors.Wrapf(err, "creating %s part", contentType)
	}
	_, err = io.WriteString(part, content+"\r\n")
	return errors.Wrapf(err, "writing %s part", contentType)
}

func joinAddresses(addrs []mail.Address) string {
	strs := make([]string, len(addrs))
	for i, a := range addrs {
		strs[i] = a.String()
	}
	return strings.Join(strs, ", ")
}

// consoleServiceMock is a silent console service delivering synchronously.
type consoleServiceMock struct {
	*consoleService
}

func NewConsoleServiceMock(conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleServiceMock{consoleService: newConsoleService(conf, logger, true)}
}

func (svc *consoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		svc.deliver(msg)
	}
}
