package core

import (
	"bytes"
	"encoding/base64"
	"fmt"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"log"
	"net/http"
	"net/mail"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	"github.com/unistock/stockroom/assets"
)

var (
	templates tmplCache
	tmplInit  sync.Once
)

type (
	tmplCacheEntry map[string]interface{}    // {ext: *Template}
	tmplCache      map[string]tmplCacheEntry // {name: {tmplCacheEntry}}

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
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) getTemplate(ext string) (interface{}, bool) {
	cache, ok := templates[m.TemplateName]
	if !ok {
		return nil, ok
	}
	tmplEntry, ok := cache[ext]
	return tmplEntry, ok
}

func (m *EmailMessage) renderText(data ContextData) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(".txt")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*texttmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, data); err != nil {
		return err
	}
	m.TextContent = buff.String()
	return nil
}

func (m *EmailMessage) renderHTML(data ContextData) error {
	if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(".gohtml")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*htmltmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.Execute(&buff, data); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

// Render renders the message's templates, if any, into TextContent and HTMLContent.
func (m *EmailMessage) Render(frontendBaseURL string) error {
	if m.TemplateName != "" {
		ParseEmailTemplates(nil) // no-op once parsed
	}
	data := ContextData{FrontendBaseURL: frontendBaseURL, Data: m.TemplateData}
	if err := m.renderText(data); err != nil {
		return errors.Wrap(err, "rendering text/plain")
	}
	return errors.Wrap(m.renderHTML(data), "rendering text/html")
}

func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	at := Attachment{Filename: filename, Content: new(bytes.Buffer)}

	encoder := base64.NewEncoder(base64.StdEncoding, at.Content)
	if _, err := encoder.Write(content); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) AttachFile(path string, contentType ...string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.Attach(f, filepath.Base(path), contentType...)
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// ParseEmailTemplates parses the embedded email templates once.
// Each template is parsed along with its "base" layout.
func ParseEmailTemplates(logger Logger) {
	tmplInit.Do(func() {
		logErr := func(err error) {
			if logger != nil {
				logger.Error(fmt.Sprintf("parsing email templates: %v", err), err)
			} else {
				log.Print(errors.Wrap(err, "core.ParseEmailTemplates"))
			}
		}

		templates = make(tmplCache)
		root := assets.EmailTemplatesDir
		fps, err := fs.Glob(assets.FS, path.Join(root, "*"))
		if err != nil {
			logErr(err)
			return
		}

		for _, fp := range fps {
			fname := path.Base(fp)
			ext := path.Ext(fname)
			name := strings.TrimSuffix(fname, ext)
			if name == "base" || !(ext == ".txt" || ext == ".gohtml") {
				continue
			}
			entry, ok := templates[name]
			if !ok {
				entry = make(tmplCacheEntry)
				templates[name] = entry
			}
			if ext == ".txt" {
				tmpl, err := texttmpl.ParseFS(assets.FS, path.Join(root, "base.txt"), fp)
				if err != nil {
					logErr(err)
					continue
				}
				entry[ext] = tmpl.Option("missingkey=error")
			} else {
				tmpl, err := htmltmpl.ParseFS(assets.FS, path.Join(root, "base.gohtml"), fp)
				if err != nil {
					logErr(err)
					continue
				}
				entry[ext] = tmpl.Option("missingkey=error")
			}
		}
	})
}
