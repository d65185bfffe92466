package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfprag/internal/domain"
)

func makeDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestPlainText(t *testing.T) {
	r := NewRegistry()
	text, err := r.Extract(context.Background(), []byte("\xEF\xBB\xBFline one\r\nline two"), "text/plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", text)

	_, err = r.Extract(context.Background(), []byte{0xff, 0xfe, 0xfd}, "text/plain")
	assert.ErrorIs(t, err, domain.ErrExtractionFailure)
}

func TestHTML(t *testing.T) {
	page := `<html><head><style>p{color:red}</style><script>var x = 1;</script></head>
<body><h1>Request for Proposal</h1><p>Submit by <b>March 1</b>.</p><ul><li>Scope</li><li>Budget</li></ul></body></html>`

	text, err := NewRegistry().Extract(context.Background(), []byte(page), "text/html")
	require.NoError(t, err)
	assert.Equal(t, "Request for Proposal\n\nSubmit by March 1 .\n\nScope\n\nBudget", text)
	assert.NotContains(t, text, "var x")
}

func TestDOCX(t *testing.T) {
	blob := makeDOCX(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Executive</w:t></w:r><w:r><w:t xml:space="preserve"> summary</w:t></w:r></w:p>
<w:p><w:r><w:t>Deliver in</w:t><w:tab/><w:t>Q3</w:t></w:r></w:p>
</w:body></w:document>`)

	text, err := NewRegistry().Extract(context.Background(), blob, DOCXType)
	require.NoError(t, err)
	assert.Equal(t, "Executive summary\n\nDeliver in\tQ3", text)
}

func TestDOCXCorrupt(t *testing.T) {
	_, err := NewRegistry().Extract(context.Background(), []byte("not a zip"), DOCXType)
	assert.ErrorIs(t, err, domain.ErrExtractionFailure)
}

func TestUnsupportedType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Extract(context.Background(), []byte("\x89PNG"), "image/png")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	assert.False(t, r.Supports("image/png"))
	assert.True(t, r.Supports(PDFType))
	assert.True(t, r.Supports("TEXT/MARKDOWN"))
}
