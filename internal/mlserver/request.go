package mlserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/hirescope/hirescope/internal/evaluator"
)

type filePart struct {
	field       string
	handle      evaluator.Handle
	defaultType string
}

// postMultipart uploads the given file parts and text fields and returns the
// parsed 2xx response body. Every failure mode comes back as a typed error:
// *Error for transport and protocol problems, an evaluator.ErrFileResolution
// wrap when a handle cannot produce its bytes.
func (c *Client) postMultipart(ctx context.Context, path string, files []filePart, fields map[string]string) (map[string]any, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, part := range files {
		if err := writeFilePart(w, part); err != nil {
			return nil, err
		}
	}

	for key, val := range fields {
		field, err := w.CreateFormField(key)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(field, strings.NewReader(val)); err != nil {
			return nil, err
		}
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.setHeaders(req)

	c.logger.Debug("make request",
		zap.String("url", req.URL.String()),
		zap.Int("payload_bytes", buf.Len()),
	)

	return c.do(req)
}

// post issues a bodyless POST, used for the reset acknowledgment endpoint.
func (c *Client) post(ctx context.Context, path string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	c.logger.Debug("make request", zap.String("url", req.URL.String()))

	return c.do(req)
}

func (c *Client) do(req *http.Request) (map[string]any, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, c.classifyTransport(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classifyTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:   KindServerError,
			Status: resp.StatusCode,
			Body:   errorMessage(data),
		}
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, &Error{Kind: KindMalformedResponse, cause: err}
	}

	// Some server builds report failures inside a 2xx envelope.
	if msg, ok := body["error"].(string); ok && msg != "" {
		return nil, &Error{Kind: KindServerError, Status: resp.StatusCode, Body: msg}
	}

	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	req.Header.Set("Accept", "application/json")
}

// classifyTransport maps a transport failure onto the error taxonomy. Connect
// refusals, and any other non-timeout failure to reach the server, latch the
// availability flag so later submissions skip the remote path entirely.
func (c *Client) classifyTransport(err error) error {
	if isTimeout(err) {
		kind := KindReadTimeout
		if isDialFailure(err) {
			kind = KindConnectTimeout
		}

		return &Error{Kind: kind, cause: err}
	}

	if c.probe != nil {
		c.probe.MarkUnavailable()
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		c.logger.Warn("scoring server refused connection, marking unavailable")
	} else {
		c.logger.Warn("scoring server unreachable, marking unavailable", zap.Error(err))
	}

	return &Error{Kind: KindConnectionRefused, cause: err}
}

func writeFilePart(w *multipart.Writer, part filePart) error {
	content, err := part.handle.Open()
	if err != nil {
		if errors.Is(err, evaluator.ErrFileResolution) {
			return err
		}

		return fmt.Errorf("%w: %s", evaluator.ErrFileResolution, err)
	}
	defer content.Close()

	contentType := part.handle.ContentType()
	if contentType == "" {
		contentType = part.defaultType
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, part.field, part.handle.Name()))
	header.Set("Content-Type", contentType)

	field, err := w.CreatePart(header)
	if err != nil {
		return err
	}

	if _, err := io.Copy(field, content); err != nil {
		return fmt.Errorf("%w: reading %s: %s", evaluator.ErrFileResolution, part.handle.Name(), err)
	}

	return nil
}

// errorMessage extracts the optional {"error": ...} envelope from a failure
// body, tolerating a missing or malformed one.
func errorMessage(data []byte) string {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}

	return strings.TrimSpace(string(data))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isDialFailure(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
