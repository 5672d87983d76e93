package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"audiogen/internal/api"
	"audiogen/internal/logging"
)

const (
	fieldName       = "melody"
	maxResponseSize = 64 << 10
)

// ErrUnsupported marks files that are not audio.
var ErrUnsupported = fmt.Errorf("%w: unsupported file type", api.ErrUpload)

// Result describes a stored melody.
type Result struct {
	// Path is the server-relative path, e.g. static/temp/tune.wav.
	Path     string
	MIME     string
	Size     int64
	Duration time.Duration
}

// Client posts melody files to the server's upload route.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient builds a client posting to uploadPath on baseURL.
func NewClient(baseURL, uploadPath string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, api.Wrap(api.ErrConfiguration, "upload", "new client", fmt.Sprintf("invalid server url %q", baseURL), err)
	}
	endpoint := base.ResolveReference(&url.URL{Path: uploadPath})
	return &Client{
		endpoint: endpoint.String(),
		http:     &http.Client{Timeout: timeout},
		logger:   logging.NewComponentLogger(logger, "upload"),
	}, nil
}

// DetectAudio sniffs path and returns its MIME type, or ErrUnsupported when
// the content is not audio.
func DetectAudio(path string) (string, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", api.Wrap(api.ErrUpload, "upload", "detect", path, err)
	}
	if !isAudio(mt) {
		return mt.String(), fmt.Errorf("%w: %s is %s", ErrUnsupported, filepath.Base(path), mt.String())
	}
	return mt.String(), nil
}

func isAudio(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") {
			return true
		}
	}
	return false
}

// Upload sends the file at path. The server keeps only the latest melody.
func (c *Client) Upload(ctx context.Context, path string) (Result, error) {
	started := time.Now()
	mime, err := DetectAudio(path)
	if err != nil {
		return Result{MIME: mime}, err
	}

	body, contentType, size, err := encodeForm(path, mime)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return Result{}, api.Wrap(api.ErrUpload, "upload", "request", "", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, api.Wrap(api.ErrUpload, "upload", "post", c.endpoint, err)
	}
	defer resp.Body.Close()

	stored, err := decodeResponse(resp)
	if err != nil {
		return Result{}, err
	}

	result := Result{Path: stored, MIME: mime, Size: size, Duration: time.Since(started)}
	c.logger.Info("melody uploaded",
		logging.String("file", filepath.Base(path)),
		logging.String("path", result.Path),
		logging.String("mime", mime),
		logging.Int64("size_bytes", size),
		logging.Duration("elapsed", result.Duration),
	)
	return result, nil
}

func encodeForm(path, mime string) (io.Reader, string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", 0, api.Wrap(api.ErrUpload, "upload", "open", path, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldName, filepath.Base(path)))
	header.Set("Content-Type", mime)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", 0, api.Wrap(api.ErrUpload, "upload", "encode", "", err)
	}
	size, err := io.Copy(part, file)
	if err != nil {
		return nil, "", 0, api.Wrap(api.ErrUpload, "upload", "encode", path, err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", 0, api.Wrap(api.ErrUpload, "upload", "encode", "", err)
	}
	return &buf, writer.FormDataContentType(), size, nil
}

// decodeResponse accepts only a 200 carrying a non-empty filePath.
func decodeResponse(resp *http.Response) (string, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", api.Wrap(api.ErrUpload, "upload", "read response", "", err)
	}
	var payload api.UploadResponse
	decodeErr := json.Unmarshal(data, &payload)

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("server returned status %d", resp.StatusCode)
		if decodeErr == nil && payload.Error != "" {
			msg += ": " + payload.Error
		}
		return "", api.Wrap(api.ErrUpload, "upload", "response", msg, nil)
	}
	if decodeErr != nil {
		return "", api.Wrap(api.ErrUpload, "upload", "response", "malformed response", decodeErr)
	}
	stored := StripOrigin(payload.FilePath)
	if stored == "" {
		return "", api.Wrap(api.ErrUpload, "upload", "response", "response has no filePath", errors.New(strings.TrimSpace(string(data))))
	}
	return stored, nil
}

// StripOrigin reduces an absolute URL to its path without the leading
// slash, and normalizes Windows separators. Relative paths pass through.
func StripOrigin(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if parsed, err := url.Parse(ref); err == nil && parsed.Scheme != "" && parsed.Host != "" {
		ref = parsed.Path
	}
	ref = strings.ReplaceAll(ref, "\\", "/")
	return strings.TrimLeft(ref, "/")
}
