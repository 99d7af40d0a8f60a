package segment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "reports", r.URL.Query().Get("indexName"))
		assert.Equal(t, "腾讯控股 Q1", r.URL.Query().Get("text"))
		w.Write([]byte(`{"status":1,"data":["腾讯控股","Q1"]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "reports", time.Second)
	words, err := c.Segment(context.Background(), "腾讯控股 Q1")
	require.NoError(t, err)
	assert.Equal(t, []string{"腾讯控股", "Q1"}, words)
}

func TestSegmentBadStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "reports", time.Second)
	_, err := c.Segment(context.Background(), "x")
	assert.ErrorIs(t, err, ErrBadStatus)
}

func TestSegmentBadPayload(t *testing.T) {
	for _, body := range []string{`not json`, `{"status":0,"data":[]}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		c := NewClient(srv.URL, "reports", time.Second)
		_, err := c.Segment(context.Background(), "x")
		assert.ErrorIs(t, err, ErrBadPayload, body)
		srv.Close()
	}
}

func TestSegmentTransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "reports", 200*time.Millisecond)
	words, err := c.Segment(context.Background(), "x")
	assert.Error(t, err)
	assert.Empty(t, words)
}
