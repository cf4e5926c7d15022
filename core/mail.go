package core

import (
	"bytes"
	"encoding/base64"
	"fmt"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/fs"
)

const emailTemplatesDir = "templates/email"

var (
	emailTemplates   = map[string]*emailTemplate{}
	emailTemplatesMu sync.RWMutex
	strictTemplates  bool
)

type (
	// emailTemplate holds the .txt and .gohtml variants of one email; either may be missing.
	emailTemplate struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}

	Attachment struct {
		Content     *bytes.Buffer // base64 encoded
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // plain text, used instead of the text template
		Attachments []Attachment

		TemplateName string // file name under fs/templates/email, without extension
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// ContextData is the root of every email template; the message data is under .Data
	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// lookupEmailTemplate also reports whether unknown templates are errors.
func lookupEmailTemplate(name string) (tmpl *emailTemplate, ok, strict bool) {
	emailTemplatesMu.RLock()
	defer emailTemplatesMu.RUnlock()
	tmpl, ok = emailTemplates[name]
	return tmpl, ok, strictTemplates
}

// Render fills TextContent and HTMLContent from the parsed templates (see ParseEmailTemplates).
// An unknown template is an error in debug and test mode; otherwise the message is left as is.
func (m *EmailMessage) Render(conf *Config) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	tmpl, ok, strict := lookupEmailTemplate(m.TemplateName)
	if !ok {
		if strict {
			return errors.Errorf("email template %q not found", m.TemplateName)
		}
		return nil
	}

	data := ContextData{AppName: conf.AppName, FrontendBaseURL: conf.FrontendBaseURL, Data: m.TemplateData}
	var buf bytes.Buffer
	if tmpl.text != nil && m.BodyStr == "" {
		if err := tmpl.text.Execute(&buf, data); err != nil {
			return errors.Wrapf(err, "executing %s.txt", m.TemplateName)
		}
		m.TextContent = buf.String()
	}
	if tmpl.html != nil {
		buf.Reset()
		if err := tmpl.html.Execute(&buf, data); err != nil {
			return errors.Wrapf(err, "executing %s.gohtml", m.TemplateName)
		}
		m.HTMLContent = buf.String()
	}
	return nil
}

// Attach base64 encodes the content of r and adds it to the message attachments.
// The content type is sniffed when not given.
func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading attachment")
	}

	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}
	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	_, _ = encoder.Write(content) // writes to a bytes.Buffer never fail
	_ = encoder.Close()

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// ParseEmailTemplates parses the embedded email templates, each one layered on the `_base` template of its kind.
// Templates failing to parse are logged and skipped. In debug and test mode, templates fail on missing keys.
func ParseEmailTemplates(conf *Config, logger Logger) {
	strict := conf.Debug || conf.TestMode

	entries, err := fs.ReadDir(appfs.FS, emailTemplatesDir)
	if err != nil {
		logger.Error(fmt.Sprintf("reading email templates: %v", err), err)
		return
	}

	parsed := make(map[string]*emailTemplate)
	for _, de := range entries {
		fname := de.Name()
		if de.IsDir() || strings.HasPrefix(fname, "_") {
			continue
		}
		ext := path.Ext(fname)
		name := strings.TrimSuffix(fname, ext)
		files := []string{path.Join(emailTemplatesDir, "_base"+ext), path.Join(emailTemplatesDir, fname)}

		tmpl, ok := parsed[name]
		if !ok {
			tmpl = new(emailTemplate)
		}
		switch ext {
		case ".txt":
			tmpl.text, err = texttmpl.ParseFS(appfs.FS, files...)
			if err == nil && strict {
				tmpl.text.Option("missingkey=error")
			}
		case ".gohtml":
			tmpl.html, err = htmltmpl.ParseFS(appfs.FS, files...)
			if err == nil && strict {
				tmpl.html.Option("missingkey=error")
			}
		default:
			continue
		}
		if err != nil {
			logger.Error(fmt.Sprintf("parsing email template %s: %v", fname, err), err)
			continue
		}
		parsed[name] = tmpl
	}

	emailTemplatesMu.Lock()
	emailTemplates = parsed
	strictTemplates = strict
	emailTemplatesMu.Unlock()
}
