package usecase

import (
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/shandysiswandi/jbcast/internal/mailing/entity"
	"github.com/shandysiswandi/jbcast/internal/pkg/attachurl"
	"github.com/shandysiswandi/jbcast/internal/pkg/spreadsheet"
)

const (
	colName        = "Name"
	colEmail       = "Email"
	colSubject     = "Subject"
	colBody        = "Body"
	colAttachments = "Attachments"
)

const lineSeparator = "\u2028"

var markupTag = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(\s[^<>]*)?/?>`)

// ParseRows reads a batch source into raw rows.
//
// Subject and body of the first data row are returned as defaults and the
// caller applies them to every recipient, whatever later rows say. Rows are
// returned even when their email is empty.
func ParseRows(r io.Reader, ext string) (rows []entity.RawRow, defaultSubject string, defaultBody entity.Body, err error) {
	table, err := spreadsheet.Read(r, ext, colBody)
	if err != nil {
		return nil, "", entity.Body{}, err
	}

	name, email := table.Index(colName), table.Index(colEmail)
	subject, body := table.Index(colSubject), table.Index(colBody)
	attach := table.Index(colAttachments)

	rows = make([]entity.RawRow, 0, len(table.Rows))
	for i := range table.Rows {
		rows = append(rows, entity.RawRow{
			Name:        strings.TrimSpace(table.Value(i, name).Text),
			Email:       strings.TrimSpace(table.Value(i, email).Text),
			Subject:     strings.TrimSpace(table.Value(i, subject).Text),
			Body:        convertBody(table.Value(i, body)),
			Attachments: attachurl.Normalize(table.Value(i, attach).Text),
		})
	}

	if len(rows) == 0 {
		return rows, "", entity.PlainBody(""), nil
	}

	return rows, rows[0].Subject, rows[0].Body, nil
}

// convertBody decides the body kind once. Existing markup wins over rich-text
// runs, and anything else is plain text.
func convertBody(cell spreadsheet.Cell) entity.Body {
	text := strings.TrimSpace(cell.Text)
	if markupTag.MatchString(text) {
		return entity.MarkupBody(text)
	}

	if len(cell.Runs) > 0 {
		return entity.MarkupBody(strings.TrimSpace(runsToMarkup(cell.Runs)))
	}

	return entity.PlainBody(strings.ReplaceAll(text, lineSeparator, "\n"))
}

func runsToMarkup(runs []spreadsheet.Run) string {
	return strings.Join(lo.Map(runs, func(run spreadsheet.Run, _ int) string {
		s := html.EscapeString(strings.ReplaceAll(run.Text, lineSeparator, "\n"))
		s = strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", "<br>")
		if run.Underline {
			s = "<u>" + s + "</u>"
		}
		if run.Italic {
			s = "<i>" + s + "</i>"
		}
		if run.Bold {
			s = "<b>" + s + "</b>"
		}
		return s
	}), "")
}
