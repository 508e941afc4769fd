package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	moerrors "github.com/jrsteele09/go-moment-client/internal/errors"
)

const maxErrorBody = 512

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Part is one file in a multipart upload.
type Part struct {
	Field       string
	FileName    string
	ContentType string
	Content     io.Reader
}

// DoJSON sends in (when non-nil) as JSON and decodes a 2xx body into out
// (when non-nil). Failures map onto the error taxonomy: *TransportError,
// *HTTPStatusError, *DecodeError (wrapping ErrEmptyBody for an empty body).
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.NewRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.exchangeJSON(req, out)
}

// DoMultipart uploads parts as multipart/form-data and decodes the reply as DoJSON does.
func (c *Client) DoMultipart(ctx context.Context, method, path string, parts []Part, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(p.Field), quoteEscaper.Replace(p.FileName)))
		contentType := p.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		w, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("create part %s: %w", p.Field, err)
		}
		if _, err := io.Copy(w, p.Content); err != nil {
			return fmt.Errorf("write part %s: %w", p.Field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}

	req, err := c.NewRequest(ctx, method, path, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return c.exchangeJSON(req, out)
}

// DoRaw returns the body and content type of a 2xx response, for downloads.
func (c *Client) DoRaw(ctx context.Context, method, path string) ([]byte, string, error) {
	req, err := c.NewRequest(ctx, method, path, nil)
	if err != nil {
		return nil, "", err
	}
	res, err := c.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer res.Body.Close()

	if err := checkStatus(res); err != nil {
		return nil, "", err
	}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", &moerrors.TransportError{Op: method, URL: req.URL.Redacted(), Err: err}
	}
	return data, res.Header.Get("Content-Type"), nil
}

func (c *Client) exchangeJSON(req *http.Request, out any) error {
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if err := checkStatus(res); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return &moerrors.TransportError{Op: req.Method, URL: req.URL.Redacted(), Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &moerrors.DecodeError{Err: moerrors.ErrEmptyBody}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &moerrors.DecodeError{Err: err}
	}
	return nil
}

func checkStatus(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode <= 299 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	return &moerrors.HTTPStatusError{Code: res.StatusCode, Status: res.Status, Body: string(snippet)}
}
