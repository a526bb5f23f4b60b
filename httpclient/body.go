package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"
)

// Payload is a request body encoded once. Byte payloads are replayed as is on
// every attempt; a Reader payload is consumed by the first attempt.
type Payload struct {
	Data        []byte
	Reader      io.Reader
	ContentType string
}

// Replayable reports whether the payload can be sent more than once.
func (p *Payload) Replayable() bool {
	return p == nil || p.Reader == nil
}

func (p *Payload) reader() io.Reader {
	if p.Reader != nil {
		return p.Reader
	}
	return bytes.NewReader(p.Data)
}

// MultipartBody is a multipart/form-data request body.
type MultipartBody struct {
	Fields map[string]string
	Files  []FileField
}

// FileField is one file part of a MultipartBody.
type FileField struct {
	FieldName string
	FileName  string
	// ContentType defaults to application/octet-stream.
	ContentType string
	Data        []byte
	// Reader is used when Data is nil.
	Reader io.Reader
}

// Encode converts a body value into a Payload. Supported kinds:
//
//   - nil: no body
//   - *Payload: passed through
//   - []byte: sent verbatim
//   - io.Reader: streamed, not replayable
//   - string: text/plain
//   - url.Values: application/x-www-form-urlencoded
//   - *MultipartBody: multipart/form-data
//   - anything else: application/json
func Encode(body any) (*Payload, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case *Payload:
		return v, nil
	case []byte:
		return &Payload{Data: v}, nil
	case string:
		return &Payload{Data: []byte(v), ContentType: "text/plain; charset=utf-8"}, nil
	case url.Values:
		return &Payload{Data: []byte(v.Encode()), ContentType: "application/x-www-form-urlencoded"}, nil
	case *MultipartBody:
		return v.encode()
	case io.Reader:
		return &Payload{Reader: v}, nil
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("encode json body: %w", err)
		}
		return &Payload{Data: bytes.TrimSuffix(buf.Bytes(), []byte("\n")), ContentType: "application/json"}, nil
	}
}

func (m *MultipartBody) encode() (*Payload, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range m.Fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}

	for _, f := range m.Files {
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			`form-data; name="`+escapeQuotes(f.FieldName)+`"; filename="`+escapeQuotes(f.FileName)+`"`)
		header.Set("Content-Type", ct)
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, err
		}
		src := f.Reader
		if f.Data != nil || src == nil {
			src = bytes.NewReader(f.Data)
		}
		if _, err := io.Copy(part, src); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return &Payload{Data: buf.Bytes(), ContentType: w.FormDataContentType()}, nil
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
