package platform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// maxPages bounds pagination on every paged platform
const maxPages = 20

// checkResponse maps transport failures and status codes onto the error
// taxonomy. Rate limiting and server errors are transient; any other non-2xx
// status means the request itself no longer fits the platform.
func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	code := resp.StatusCode()
	switch {
	case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s returned status %d", ErrNetwork, resp.Request.URL, code)
	case code < 200 || code >= 300:
		return fmt.Errorf("%w: %s returned status %d", ErrParse, resp.Request.URL, code)
	}
	return nil
}

func decodeJSON(resp *resty.Response, v any) error {
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrParse, resp.Request.URL, err)
	}
	return nil
}

func parseHTML(resp *resty.Response) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing HTML from %s: %v", ErrParse, resp.Request.URL, err)
	}
	return doc, nil
}

// jsonRows decodes a JSON array one element at a time. An element that does
// not decode into T is kept as T's zero value, which keepRow then drops, so a
// single malformed row neither fails the response nor shortens the page count.
type jsonRows[T any] []T

func (r *jsonRows[T]) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rows := make([]T, len(raw))
	for i, msg := range raw {
		if err := json.Unmarshal(msg, &rows[i]); err != nil {
			var zero T
			rows[i] = zero
		}
	}
	*r = rows
	return nil
}

// flexString accepts JSON strings, numbers and null. Platforms disagree on
// whether bibs, ids and places are numbers or strings.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		if _, err := strconv.ParseFloat(string(data), 64); err != nil {
			return fmt.Errorf("flexString: unsupported value %s", data)
		}
		*f = flexString(data)
	}
	return nil
}

func (f flexString) String() string {
	return string(f)
}
