package apiclient

import (
	"bytes"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

type formField struct {
	name, value string
}

type formFile struct {
	field    string
	filename string
	reader   io.Reader
	path     string
}

// Multipart is a form body with text fields and files. Pass it as the body
// of a multipart call; it is encoded once so a retry sends identical bytes.
type Multipart struct {
	fields []formField
	files  []formFile
}

func NewMultipart() *Multipart {
	return &Multipart{}
}

func (m *Multipart) Field(name, value string) *Multipart {
	m.fields = append(m.fields, formField{name: name, value: value})
	return m
}

// File adds a file part read from r.
func (m *Multipart) File(field, filename string, r io.Reader) *Multipart {
	m.files = append(m.files, formFile{field: field, filename: filename, reader: r})
	return m
}

// FilePath adds a file part read from disk when the body is encoded.
func (m *Multipart) FilePath(field, path string) *Multipart {
	m.files = append(m.files, formFile{field: field, filename: filepath.Base(path), path: path})
	return m
}

func (m *Multipart) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range m.fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", errors.Wrapf(err, "[Multipart.encode] field %s", f.name)
		}
	}
	for _, f := range m.files {
		if err := writeFile(w, f); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "[Multipart.encode] close")
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, f formFile) error {
	r := f.reader
	if f.path != "" {
		file, err := os.Open(f.path)
		if err != nil {
			return errors.Wrapf(err, "[Multipart.encode] open %s", f.path)
		}
		defer file.Close()
		r = file
	}
	if r == nil {
		return errors.Errorf("[Multipart.encode] file %s has no content", f.field)
	}
	part, err := w.CreateFormFile(f.field, f.filename)
	if err != nil {
		return errors.Wrapf(err, "[Multipart.encode] part %s", f.field)
	}
	if _, err := io.Copy(part, r); err != nil {
		return errors.Wrapf(err, "[Multipart.encode] copy %s", f.field)
	}
	return nil
}
