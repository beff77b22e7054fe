package client

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// Form is a multipart payload for UploadBinary.
type Form struct {
	parts []formPart
}

type formPart struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func (f *Form) AddField(name, value string) {
	f.parts = append(f.parts, formPart{field: name, data: []byte(value)})
}

func (f *Form) AddFile(field, filename, contentType string, data []byte) {
	f.parts = append(f.parts, formPart{
		field:       field,
		filename:    filename,
		contentType: contentType,
		data:        data,
	})
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encode renders the parts once so the same bytes can be replayed.
func (f *Form) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, p := range f.parts {
		if p.filename == "" {
			if err := w.WriteField(p.field, string(p.data)); err != nil {
				return nil, "", fmt.Errorf("write field %s: %w", p.field, err)
			}
			continue
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(p.field), quoteEscaper.Replace(p.filename)))
		ct := p.contentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)

		pw, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", p.field, err)
		}
		if _, err := pw.Write(p.data); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", p.field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
