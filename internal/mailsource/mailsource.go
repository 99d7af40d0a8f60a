// Package mailsource wraps the IMAP session the ingestion run reads from:
// SSL login, server-side SINCE search over INBOX, raw RFC822 fetch, logout.
package mailsource

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
)

// Config holds the mailbox endpoint and credentials.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// Login is retried this many times with a fixed backoff before the
	// run aborts.
	LoginRetries int
	LoginBackoff time.Duration
}

// Client is a single IMAP session. Not safe for concurrent use; the fetch
// loop is sequential by design.
type Client struct {
	cfg Config
	c   *client.Client
}

// NewClient creates an unconnected mail client.
func NewClient(cfg Config) *Client {
	if cfg.LoginRetries <= 0 {
		cfg.LoginRetries = 3
	}
	if cfg.LoginBackoff <= 0 {
		cfg.LoginBackoff = 2 * time.Second
	}
	return &Client{cfg: cfg}
}

// Login dials the server over TLS and authenticates, retrying transient
// failures a bounded number of times with a fixed backoff.
func (m *Client) Login() error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var lastErr error
	for attempt := 1; attempt <= m.cfg.LoginRetries; attempt++ {
		c, err := client.DialTLS(addr, nil)
		if err == nil {
			if err = c.Login(m.cfg.Username, m.cfg.Password); err == nil {
				m.c = c
				logrus.Infof("logged in to %s as %s", addr, m.cfg.Username)
				return nil
			}
			c.Logout()
		}
		lastErr = err
		logrus.Warnf("imap login attempt %d/%d failed: %v", attempt, m.cfg.LoginRetries, err)
		if attempt < m.cfg.LoginRetries {
			time.Sleep(m.cfg.LoginBackoff)
		}
	}
	return fmt.Errorf("imap login failed after %d attempts: %w", m.cfg.LoginRetries, lastErr)
}

// SelectInbox opens INBOX for the session.
func (m *Client) SelectInbox() error {
	if _, err := m.c.Select("INBOX", false); err != nil {
		return fmt.Errorf("select INBOX: %w", err)
	}
	return nil
}

// SearchSince returns the ids of messages the server dates on or after
// since. SINCE has date precision, so the freshness gate re-checks the
// exact send time per message.
func (m *Client) SearchSince(since time.Time) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Since = since

	ids, err := m.c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("search since %s: %w", since.Format("02-Jan-2006"), err)
	}
	logrus.Infof("[%s]--[%s] candidate messages: %d",
		since.Format("2006-01-02"), time.Now().Format("2006-01-02"), len(ids))
	return ids, nil
}

// FetchRaw downloads the full RFC822 bytes of one message.
func (m *Client) FetchRaw(id uint32) ([]byte, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(id)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- m.c.Fetch(seqset, items, messages)
	}()

	msg := <-messages
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch message %d: %w", id, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("fetch message %d: no data returned", id)
	}

	r := msg.GetBody(section)
	if r == nil {
		return nil, fmt.Errorf("fetch message %d: empty body section", id)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read message %d: %w", id, err)
	}
	return raw, nil
}

// Logout closes the session.
func (m *Client) Logout() error {
	if m.c == nil {
		return nil
	}
	err := m.c.Logout()
	m.c = nil
	logrus.Infof("logged out %s", m.cfg.Username)
	return err
}
