package attachments

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docxBytes(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Invoice 2041</w:t></w:r></w:p>
    <w:p><w:r><w:t>Total due: </w:t></w:r><w:r><w:t>4,500 EUR</w:t></w:r></w:p>
    <w:p></w:p>
  </w:body>
</w:document>`

func TestExtractDOCX(t *testing.T) {
	parser := NewDocumentParser()

	text, html, err := parser.ExtractDOCX(docxBytes(t, sampleDocumentXML))
	require.NoError(t, err)

	assert.Equal(t, "Invoice 2041\nTotal due: 4,500 EUR", text)
	assert.Contains(t, html, "<p>Invoice 2041</p>")
	assert.Contains(t, html, "<p>Total due: 4,500 EUR</p>")
}

func TestExtractDOCX_NotAnArchive(t *testing.T) {
	parser := NewDocumentParser()

	_, _, err := parser.ExtractDOCX([]byte("plain text"))
	assert.Error(t, err)
}

func TestExtractDOCX_MissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/other.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	parser := NewDocumentParser()
	_, _, err = parser.ExtractDOCX(buf.Bytes())
	assert.Error(t, err)
}

func TestExtractDOCX_EmptyBody(t *testing.T) {
	empty := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body><w:p></w:p></w:body>
</w:document>`

	parser := NewDocumentParser()
	_, _, err := parser.ExtractDOCX(docxBytes(t, empty))
	assert.Error(t, err)
}

func TestExtractPDF_InvalidPayload(t *testing.T) {
	parser := NewDocumentParser()

	_, _, err := parser.ExtractPDF([]byte("definitely not a pdf"))
	assert.Error(t, err)
}

func TestNormalizeText(t *testing.T) {
	in := "  line one  \n\n\x00line two\x00\n   \n"
	assert.Equal(t, "line one\nline two", normalizeText(in))
}
