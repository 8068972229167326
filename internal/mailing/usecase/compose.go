package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html"
	"html/template"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/jaytaylor/html2text"
	"github.com/samber/lo"
	"github.com/shandysiswandi/jbcast/internal/mailing/entity"
	"github.com/shandysiswandi/jbcast/internal/pkg/mail"
)

const (
	fallbackSubject     = "No Subject"
	fallbackContentType = "application/octet-stream"
)

//go:embed templates/default_email.html
var defaultEmailTemplate string

type ComposerConfig struct {
	// TemplatePath overrides the embedded HTML wrapper when set.
	TemplatePath   string
	FromName       string
	InlineImageDir string
	InlineImages   []string
}

// Composer turns a recipient into a transport-ready message.
// The template and inline images are loaded once.
type Composer struct {
	tpl      *template.Template
	fromName string
	inlines  []mail.Part
}

type emailView struct {
	Subject string
	Name    string
	Body    template.HTML
	Inlines []inlineView
}

type inlineView struct {
	Src  template.URL
	Name string
}

func NewComposer(ctx context.Context, cfg ComposerConfig) (*Composer, error) {
	src := defaultEmailTemplate
	if cfg.TemplatePath != "" {
		raw, err := os.ReadFile(cfg.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("read email template: %w", err)
		}
		src = string(raw)
	}

	tpl, err := template.New("email").Option("missingkey=zero").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse email template: %w", err)
	}

	return &Composer{
		tpl:      tpl,
		fromName: cfg.FromName,
		inlines:  loadInlineImages(ctx, cfg.InlineImageDir, cfg.InlineImages),
	}, nil
}

func loadInlineImages(ctx context.Context, dir string, names []string) []mail.Part {
	parts := make([]mail.Part, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		content, err := os.ReadFile(p)
		if err != nil {
			slog.WarnContext(ctx, "inline image not loaded, skipping", "path", p, "error", err)
			continue
		}
		parts = append(parts, mail.Part{
			Filename:    name,
			ContentType: contentTypeOf(name),
			ContentID:   name,
			Content:     content,
		})
	}
	return parts
}

// Compose builds the message for rec sent from acc. Attachment files that cannot
// be read are skipped and reported in notes; composition itself never fails.
func (c *Composer) Compose(ctx context.Context, rec *entity.Recipient, acc *entity.OutboundAccount, items []entity.AttachmentMeta) (mail.Message, []string) {
	subject := strings.TrimSpace(rec.Subject)
	if subject == "" {
		subject = fallbackSubject
	}

	htmlBody := c.render(ctx, subject, rec)

	textBody, err := html2text.FromString(htmlBody, html2text.Options{OmitLinks: true})
	if err != nil {
		slog.WarnContext(ctx, "failed to derive plain text part", "recipient_id", rec.ID, "error", err)
		textBody = rec.Body.Content
	}

	msg := mail.Message{
		FromName: c.fromName,
		From:     acc.Username,
		To:       []string{rec.Email},
		Cc:       splitAddresses(rec.Cc),
		Bcc:      splitAddresses(rec.Bcc),
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
		Inlines:  c.inlines,
	}

	var notes []string
	for _, item := range items {
		content, err := os.ReadFile(item.Path)
		if err != nil {
			notes = append(notes, fmt.Sprintf("%s: read attachment: %v", item.URL, err))
			continue
		}
		msg.Attachments = append(msg.Attachments, mail.Part{
			Filename:    item.Filename,
			ContentType: item.ContentType,
			Content:     content,
		})
	}

	return msg, notes
}

func (c *Composer) render(ctx context.Context, subject string, rec *entity.Recipient) string {
	view := emailView{
		Subject: subject,
		Name:    rec.Name,
		Body:    bodyHTML(rec.Body),
		Inlines: lo.Map(c.inlines, func(p mail.Part, _ int) inlineView {
			return inlineView{Src: template.URL("cid:" + p.ContentID), Name: p.Filename}
		}),
	}

	var buf bytes.Buffer
	if err := c.tpl.Execute(&buf, view); err != nil {
		slog.WarnContext(ctx, "failed to render email template, sending bare body", "recipient_id", rec.ID, "error", err)
		return string(view.Body)
	}
	return buf.String()
}

// bodyHTML trusts markup bodies as authored and escapes plain ones.
func bodyHTML(b entity.Body) template.HTML {
	if b.Kind == entity.BodyKindMarkup {
		return template.HTML(b.Content)
	}
	escaped := html.EscapeString(strings.ReplaceAll(b.Content, "\r\n", "\n"))
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}

func splitAddresses(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return lo.FilterMap(strings.Split(raw, ","), func(s string, _ int) (string, bool) {
		s = strings.TrimSpace(s)
		return s, s != ""
	})
}

func contentTypeOf(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return fallbackContentType
}
