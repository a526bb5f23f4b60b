package httpclient

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantData   string
		wantCT     string
		replayable bool
	}{
		{"bytes", []byte{0x00, 0xff, 0x10}, "\x00\xff\x10", "", true},
		{"text", "hello", "hello", "text/plain; charset=utf-8", true},
		{"form", url.Values{"a": {"1"}, "b": {"x y"}}, "a=1&b=x+y", "application/x-www-form-urlencoded", true},
		{"structured", map[string]int{"id": 1}, `{"id":1}`, "application/json", true},
		{"struct", struct {
			Name string `json:"name"`
		}{"n"}, `{"name":"n"}`, "application/json", true},
		{"markup kept verbatim", map[string]string{"q": "a<b && c>d"}, `{"q":"a<b && c>d"}`, "application/json", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Encode(tt.body)
			if err != nil {
				t.Fatalf("Encode() error: %v", err)
			}
			if string(p.Data) != tt.wantData {
				t.Errorf("data = %q, want %q", p.Data, tt.wantData)
			}
			if p.ContentType != tt.wantCT {
				t.Errorf("content type = %q, want %q", p.ContentType, tt.wantCT)
			}
			if p.Replayable() != tt.replayable {
				t.Errorf("replayable = %v, want %v", p.Replayable(), tt.replayable)
			}
		})
	}
}

func TestEncode_NilAndPassthrough(t *testing.T) {
	p, err := Encode(nil)
	if err != nil || p != nil {
		t.Fatalf("Encode(nil) = %v, %v", p, err)
	}
	orig := &Payload{Data: []byte("x"), ContentType: "application/x"}
	p, _ = Encode(orig)
	if p != orig {
		t.Error("expected payload passthrough")
	}
}

func TestEncode_ReaderNotReplayable(t *testing.T) {
	p, err := Encode(strings.NewReader("stream"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Replayable() {
		t.Error("reader payload should not be replayable")
	}
	data, _ := io.ReadAll(p.reader())
	if string(data) != "stream" {
		t.Errorf("data = %q", data)
	}
}

func TestEncode_Unencodable(t *testing.T) {
	if _, err := Encode(map[string]any{"ch": make(chan int)}); err == nil {
		t.Error("expected error for unencodable body")
	}
}

func TestEncode_Multipart(t *testing.T) {
	p, err := Encode(&MultipartBody{
		Fields: map[string]string{"language": "en"},
		Files: []FileField{
			{FieldName: "file", FileName: `a"b.wav`, ContentType: "audio/wav", Data: []byte("audio")},
			{FieldName: "doc", FileName: "doc.txt", Reader: bytes.NewReader([]byte("text"))},
		},
	})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	mediaType, params, err := mime.ParseMediaType(p.ContentType)
	if err != nil || mediaType != "multipart/form-data" {
		t.Fatalf("content type = %q (%v)", p.ContentType, err)
	}

	mr := multipart.NewReader(bytes.NewReader(p.Data), params["boundary"])
	parts := map[string]string{}
	types := map[string]string{}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart error: %v", err)
		}
		data, _ := io.ReadAll(part)
		parts[part.FormName()] = string(data)
		types[part.FormName()] = part.Header.Get("Content-Type")
	}
	if parts["language"] != "en" || parts["file"] != "audio" || parts["doc"] != "text" {
		t.Errorf("unexpected parts: %v", parts)
	}
	if types["file"] != "audio/wav" || types["doc"] != "application/octet-stream" {
		t.Errorf("unexpected part types: %v", types)
	}
}
