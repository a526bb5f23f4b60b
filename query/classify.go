package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kbukum/querykit/httpclient"
	"github.com/kbukum/querykit/problem"
)

// Outcome is how a response body is interpreted.
type Outcome int

const (
	// OutcomeValue decodes the body as JSON into T.
	OutcomeValue Outcome = iota
	// OutcomeText returns the body as text.
	OutcomeText
	// OutcomeBinary returns the raw body with its disposition filename.
	OutcomeBinary
	// OutcomePlainText wraps a non-JSON success body as PlainText.
	OutcomePlainText
	// OutcomeProblem decodes a non-success body as problem details.
	OutcomeProblem
	// OutcomeRequestFailed synthesizes a problem from a non-success body.
	OutcomeRequestFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeValue:
		return "value"
	case OutcomeText:
		return "text"
	case OutcomeBinary:
		return "binary"
	case OutcomePlainText:
		return "plain_text"
	case OutcomeProblem:
		return "problem"
	case OutcomeRequestFailed:
		return "request_failed"
	default:
		return "unknown"
	}
}

// PlainText is the shape a non-JSON success body takes when no ResponseKind
// was requested.
type PlainText struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// BinaryData is a binary success body.
type BinaryData struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Classify picks the Outcome for a response from its status, media type and
// the requested ResponseKind.
func Classify(status int, mediaType string, kind ResponseKind) Outcome {
	if status >= 200 && status < 300 {
		switch {
		case kind == Binary:
			return OutcomeBinary
		case kind == Text:
			return OutcomeText
		case kind == JSON || httpclient.IsJSONMediaType(mediaType):
			return OutcomeValue
		default:
			return OutcomePlainText
		}
	}
	if httpclient.IsJSONMediaType(mediaType) {
		return OutcomeProblem
	}
	return OutcomeRequestFailed
}

// ProblemOf builds the problem for a non-success response. A JSON body that
// does not parse as a problem document falls back to "Request failed". A
// document without a status inherits the response status.
func ProblemOf(resp *httpclient.Response) *problem.Details {
	if Classify(resp.StatusCode, resp.MediaType(), Auto) == OutcomeProblem {
		var d problem.Details
		if err := resp.JSON(&d); err == nil {
			if d.Status == 0 {
				d.Status = resp.StatusCode
			}
			if d.Title == "" {
				d.Title = http.StatusText(resp.StatusCode)
			}
			return &d
		}
	}
	return problem.RequestFailed(resp.StatusCode, resp.Text())
}

// Decode converts a success response into T according to kind.
func Decode[T any](resp *httpclient.Response, kind ResponseKind) (*T, error) {
	var v T
	var err error
	switch outcome := Classify(resp.StatusCode, resp.MediaType(), kind); outcome {
	case OutcomeBinary:
		err = decodeBinary(&v, resp)
	case OutcomeText:
		err = decodeText(&v, resp)
	case OutcomeValue:
		err = decodeValue(&v, resp)
	case OutcomePlainText:
		err = decodePlainText(&v, resp)
	default:
		err = fmt.Errorf("cannot decode %s outcome", outcome)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeBinary(dst any, resp *httpclient.Response) error {
	switch d := dst.(type) {
	case *BinaryData:
		*d = BinaryData{
			Data:        resp.Body,
			Filename:    resp.Filename(),
			ContentType: resp.Header.Get("Content-Type"),
		}
	case *[]byte:
		*d = resp.Body
	default:
		return fmt.Errorf("binary response cannot be decoded into %T", dst)
	}
	return nil
}

func decodeText(dst any, resp *httpclient.Response) error {
	switch d := dst.(type) {
	case *string:
		*d = resp.Text()
	case *[]byte:
		*d = resp.Body
	case *PlainText:
		*d = PlainText{Status: resp.StatusCode, Message: resp.Text()}
	default:
		return fmt.Errorf("text response cannot be decoded into %T", dst)
	}
	return nil
}

func decodeValue(dst any, resp *httpclient.Response) error {
	if d, ok := dst.(*[]byte); ok {
		*d = resp.Body
		return nil
	}
	// 204 and friends decode to the zero value.
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Body, dst)
}

func decodePlainText(dst any, resp *httpclient.Response) error {
	pt := PlainText{Status: resp.StatusCode, Message: resp.Text()}
	switch d := dst.(type) {
	case *PlainText:
		*d = pt
	case *string:
		*d = pt.Message
	case *[]byte:
		*d = resp.Body
	default:
		data, err := json.Marshal(pt)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, dst)
	}
	return nil
}
