package attachments

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"

	"github.com/dealflow/mailsync/interfaces"
	"github.com/dealflow/mailsync/internal/utils"
)

type documentParser struct {
	sanitizer *bluemonday.Policy
}

func NewDocumentParser() interfaces.DocumentParser {
	return &documentParser{
		sanitizer: bluemonday.UGCPolicy(),
	}
}

func (p *documentParser) ExtractPDF(data []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, errors.Wrap(err, "failed to open pdf")
	}

	pages := reader.NumPage()
	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}

	text := normalizeText(sb.String())
	if text == "" {
		return "", pages, errors.New("pdf contained no extractable text")
	}
	return text, pages, nil
}

// docx body XML: paragraphs hold runs, runs hold text nodes
type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Texts []string `xml:"t"`
	} `xml:"r"`
}

func (p *documentParser) ExtractDOCX(data []byte) (string, string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", "", errors.Wrap(err, "failed to open docx archive")
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, openErr := f.Open()
		if openErr != nil {
			return "", "", errors.Wrap(openErr, "failed to open document.xml")
		}
		docXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", "", errors.Wrap(err, "failed to read document.xml")
		}
		break
	}
	if docXML == nil {
		return "", "", errors.New("docx archive has no word/document.xml")
	}

	var doc docxDocument
	if err := xml.Unmarshal(docXML, &doc); err != nil {
		return "", "", errors.Wrap(err, "failed to parse document.xml")
	}

	var textSb, htmlSb strings.Builder
	for _, para := range doc.Body.Paragraphs {
		var paraSb strings.Builder
		for _, run := range para.Runs {
			for _, t := range run.Texts {
				paraSb.WriteString(t)
			}
		}
		line := strings.TrimSpace(paraSb.String())
		if line == "" {
			continue
		}
		textSb.WriteString(line)
		textSb.WriteString("\n")
		htmlSb.WriteString("<p>")
		htmlSb.WriteString(line)
		htmlSb.WriteString("</p>")
	}

	text := normalizeText(textSb.String())
	if text == "" {
		return "", "", errors.New("docx contained no extractable text")
	}
	return text, p.sanitizer.Sanitize(htmlSb.String()), nil
}

func normalizeText(s string) string {
	s = utils.StripNulls(s)
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
