// Package segment calls the word-segmentation service that splits a report
// title into stock-related words for tag lookup.
package segment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrBadStatus reports a non-200 HTTP response from the service.
	ErrBadStatus = errors.New("segmentation service returned bad status")
	// ErrBadPayload reports a response body outside the expected shape.
	ErrBadPayload = errors.New("segmentation service returned bad payload")
)

// statusOK is the in-band success flag of the service's response body.
const statusOK = 1

type response struct {
	Status int      `json:"status"`
	Data   []string `json:"data"`
}

// Client queries the segmentation endpoint over HTTP.
type Client struct {
	baseURL   string
	indexName string
	http      *http.Client
}

// NewClient creates a segmentation client. The timeout bounds a single
// lookup; the pipeline treats any failure as an empty word list.
func NewClient(baseURL, indexName string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		indexName: indexName,
		http:      &http.Client{Timeout: timeout},
	}
}

// Segment splits text into words. Callers degrade to an empty list on any
// error: a missing word match downstream is never fatal to a run.
func (c *Client) Segment(ctx context.Context, text string) ([]string, error) {
	q := url.Values{}
	q.Set("indexName", c.indexName)
	q.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build segmentation request: %w", err)
	}

	logrus.Infof("calling segmentation service for title %q", text)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call segmentation service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read segmentation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d %s", ErrBadStatus, resp.StatusCode, string(body))
	}

	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if parsed.Status != statusOK {
		return nil, fmt.Errorf("%w: status=%d", ErrBadPayload, parsed.Status)
	}
	return parsed.Data, nil
}
