package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"report-mail-ingest/internal/charsetx"
	"report-mail-ingest/internal/metrics"
	"report-mail-ingest/internal/repository"
	"report-mail-ingest/internal/textutil"
)

// MailSource is the mailbox session the fetch loop reads from.
type MailSource interface {
	Login() error
	SelectInbox() error
	SearchSince(since time.Time) ([]uint32, error)
	FetchRaw(id uint32) ([]byte, error)
	Logout() error
}

// Fetcher drives one ingestion run: login, scan candidate ids since the
// high-water mark, and push each message through the gates, the builder,
// and the persistence coordinator. Messages are processed sequentially;
// a bad message is skipped and logged, never fatal to the run.
type Fetcher struct {
	mail    MailSource
	repo    *repository.Repository
	builder *Builder
	dec     *charsetx.Decoder
	metrics *metrics.Metrics
}

// NewFetcher creates a fetch loop. metrics may be nil.
func NewFetcher(mail MailSource, repo *repository.Repository, builder *Builder, dec *charsetx.Decoder, m *metrics.Metrics) *Fetcher {
	return &Fetcher{mail: mail, repo: repo, builder: builder, dec: dec, metrics: m}
}

// Run executes a single ingestion run. Only transport failures at
// login/session level abort it.
func (f *Fetcher) Run(ctx context.Context) error {
	start := time.Now()
	if f.metrics != nil {
		f.metrics.RunCount.Inc()
	}

	if err := f.mail.Login(); err != nil {
		return fmt.Errorf("mail login: %w", err)
	}
	defer func() {
		if err := f.mail.Logout(); err != nil {
			logrus.Errorf("mail logout: %v", err)
		}
	}()

	if err := f.mail.SelectInbox(); err != nil {
		return err
	}

	highWater, err := f.repo.LatestReportSendTime()
	if err != nil {
		return err
	}
	ids, err := f.mail.SearchSince(highWater)
	if err != nil {
		return err
	}

	for _, id := range ids {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		saved, err := f.processMessage(ctx, id, highWater)
		switch {
		case err != nil:
			logrus.Errorf("message %d failed: %v", id, err)
			if f.metrics != nil {
				f.metrics.FailedCount.Inc()
			}
		case saved:
			if f.metrics != nil {
				f.metrics.SavedCount.Inc()
			}
		default:
			if f.metrics != nil {
				f.metrics.SkippedCount.Inc()
			}
		}
	}

	elapsed := time.Since(start)
	if f.metrics != nil {
		f.metrics.RunDuration.Observe(elapsed.Seconds())
	}
	logrus.Infof("ingestion run finished: %d candidates in %v", len(ids), elapsed)
	return nil
}

// processMessage handles one candidate id. It returns whether a report was
// persisted; an error means the message failed, not the run.
func (f *Fetcher) processMessage(ctx context.Context, id uint32, highWater time.Time) (bool, error) {
	raw, err := f.mail.FetchRaw(id)
	if err != nil {
		return false, err
	}
	cand, err := ParseCandidate(raw, f.dec)
	if err != nil {
		return false, err
	}

	// Freshness gate: only messages strictly later than the high-water
	// mark pass.
	if !cand.SentAt.After(highWater) {
		logrus.Infof("message sent %s not after high-water mark %s, skipping",
			cand.SendTime, highWater.Format(timeLayout))
		return false, nil
	}

	// Allow-list gate: the sender's domain suffix must map to a known
	// organization. A failed lookup counts as not allow-listed.
	suffix := textutil.DomainSuffix(cand.Sender)
	org, err := f.repo.OrgBySuffix(suffix)
	if err != nil {
		logrus.Errorf("allow-list lookup failed for %q, treating as unlisted: %v", suffix, err)
		return false, nil
	}
	if org == nil {
		logrus.Infof("sender %s not in the organization allow-list, skipping", cand.Sender)
		return false, nil
	}

	// Uniqueness gate, checked again just before the commit.
	dup, err := f.repo.TitleExists(cand.Subject)
	if err != nil {
		return false, err
	}
	if dup {
		logrus.Infof("report title %q already saved, skipping", cand.Subject)
		return false, nil
	}

	built, err := f.builder.Build(ctx, cand, org.Author)
	if err != nil {
		return false, fmt.Errorf("build report %q: %w", cand.Subject, err)
	}

	if _, err := f.repo.SaveReport(built.Report, built.Body, built.Attachments); err != nil {
		if errors.Is(err, repository.ErrDuplicateTitle) {
			return false, nil
		}
		return false, fmt.Errorf("save report %q: %w", cand.Subject, err)
	}
	logrus.Infof("report %q saved", cand.Subject)
	return true, nil
}

const timeLayout = "2006-01-02 15:04:05"
