// Package control is the HTTP client for the prismd control API, used by
// the prism CLI.
package control

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"github.com/petitstrawberry/prism/internal/models"
)

// DefaultPort is the control API port prismd binds unless told otherwise.
const DefaultPort = 8528

// DefaultAddr is where prismd listens unless told otherwise.
var DefaultAddr = "localhost:" + strconv.Itoa(DefaultPort)

// Client talks to a running prismd.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the daemon at addr ("host:port" or a full URL).
func New(addr string) *Client {
	if addr == "" {
		addr = DefaultAddr
	}
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return &Client{
		baseURL: strings.TrimRight(addr, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Clients returns the current client directory.
func (c *Client) Clients(ctx context.Context) (models.Directory, error) {
	var dir models.Directory
	err := c.getJSON(ctx, "/api/clients", &dir)
	return dir, err
}

// Info returns daemon info and bus geometry.
func (c *Client) Info(ctx context.Context) (models.Info, error) {
	var info models.Info
	err := c.getJSON(ctx, "/api/info", &info)
	return info, err
}

// SetRouting applies a routing update and returns how many clients changed.
func (c *Client) SetRouting(ctx context.Context, req models.RoutingUpdate) (models.RoutingResult, error) {
	var res models.RoutingResult

	body, err := sonnet.Marshal(req)
	if err != nil {
		return res, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/routing", bytes.NewReader(body))
	if err != nil {
		return res, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return res, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return res, readError(resp)
	}
	return res, decodeBody(resp, &res)
}

// CaptureFormat describes the raw stream returned by Capture.
type CaptureFormat struct {
	SampleRate float64
	Channels   int
}

// Capture opens the raw f32le capture stream for the channel pair at offset.
// The caller owns the returned ReadCloser. The stream has no timeout; it
// runs until closed or the daemon stops.
func (c *Client) Capture(ctx context.Context, offset int) (io.ReadCloser, CaptureFormat, error) {
	var format CaptureFormat

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/capture?offset="+strconv.Itoa(offset), nil)
	if err != nil {
		return nil, format, err
	}
	// A plain Transport here: the shared client's timeout would kill the
	// stream mid-playback.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return nil, format, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, format, readError(resp)
	}

	format.SampleRate, _ = strconv.ParseFloat(resp.Header.Get("X-Prism-Sample-Rate"), 64)
	format.Channels, _ = strconv.Atoi(resp.Header.Get("X-Prism-Channels"))
	if format.SampleRate == 0 {
		format.SampleRate = 48000
	}
	if format.Channels == 0 {
		format.Channels = 2
	}
	return resp.Body, format, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readError(resp)
	}
	return decodeBody(resp, v)
}

func decodeBody(resp *http.Response, v interface{}) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return sonnet.Unmarshal(data, v)
}

// readError turns a non-200 response into an error, preferring the daemon's
// own error message when the body is a structured error.
func readError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	var appErr models.AppError
	if err := sonnet.Unmarshal(data, &appErr); err == nil && appErr.Message != "" {
		return fmt.Errorf("%s: %s", strings.ToLower(appErr.Code), appErr.Message)
	}
	return fmt.Errorf("daemon returned HTTP %d", resp.StatusCode)
}
