package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"report-mail-ingest/internal/attachment"
	"report-mail-ingest/internal/charsetx"
	"report-mail-ingest/internal/model"
	"report-mail-ingest/internal/repository"
	"report-mail-ingest/internal/segment"
)

type fakeMail struct {
	msgs     map[uint32][]byte
	order    []uint32
	loginErr error
	loggedIn bool
}

func (f *fakeMail) Login() error {
	if f.loginErr != nil {
		return f.loginErr
	}
	f.loggedIn = true
	return nil
}
func (f *fakeMail) SelectInbox() error { return nil }
func (f *fakeMail) SearchSince(time.Time) ([]uint32, error) {
	return f.order, nil
}
func (f *fakeMail) FetchRaw(id uint32) ([]byte, error) {
	raw, ok := f.msgs[id]
	if !ok {
		return nil, fmt.Errorf("no message %d", id)
	}
	return raw, nil
}
func (f *fakeMail) Logout() error {
	f.loggedIn = false
	return nil
}

type countingStore struct{ uploads []string }

func (s *countingStore) Upload(_ context.Context, key, localPath string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	s.uploads = append(s.uploads, key)
	return "etag", nil
}

type stubExtractor struct {
	pages int
	text  string
}

func (e *stubExtractor) PDF(string) (int, string, error)   { return e.pages, e.text, nil }
func (e *stubExtractor) Spreadsheet(string) (string, error) { return e.text, nil }

type pipeline struct {
	fetcher *Fetcher
	db      *gorm.DB
	store   *countingStore
	segText *string
}

func newPipeline(t *testing.T, mail *fakeMail, ext *stubExtractor) *pipeline {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Report{}, &model.ReportContent{}, &model.Attachment{},
		&model.Tag{}, &model.ReportOrg{},
	))
	require.NoError(t, db.Create(&model.ReportOrg{
		Author: "Example Securities", Suffix: "@broker.example",
	}).Error)

	repo := repository.New(db)
	repo.SetDedupJitter(0, 0)

	var lastSegText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastSegText = r.URL.Query().Get("text")
		w.Write([]byte(`{"status":1,"data":[]}`))
	}))
	t.Cleanup(srv.Close)

	store := &countingStore{}
	proc := attachment.NewProcessor(t.TempDir(), store, ext)
	builder := NewBuilder(repo, segment.NewClient(srv.URL, "reports", time.Second), proc)

	return &pipeline{
		fetcher: NewFetcher(mail, repo, builder, charsetx.NewDecoder(), nil),
		db:      db,
		store:   store,
		segText: &lastSegText,
	}
}

func plainMessage(subject, sender, date, body string) []byte {
	return crlf(fmt.Sprintf(`
From: <%s>
Date: %s
Subject: %s
Content-Type: text/plain; charset=utf-8

%s`, sender, date, subject, body))
}

func TestRunPlainTextScenario(t *testing.T) {
	mail := &fakeMail{
		msgs: map[uint32][]byte{
			1: plainMessage("Q1 Earnings Call", "desk@broker.example",
				"Sat, 8 May 2021 10:23:44 +0800", "<p>Hello</p>"),
		},
		order: []uint32{1},
	}
	p := newPipeline(t, mail, &stubExtractor{})

	require.NoError(t, p.fetcher.Run(context.Background()))
	assert.False(t, mail.loggedIn)

	var report model.Report
	require.NoError(t, p.db.Where("name = ?", "Q1 Earnings Call").First(&report).Error)
	assert.Equal(t, "Hello", report.Description)
	assert.Equal(t, "", report.AttachmentList)
	assert.Zero(t, report.AttachmentPage)
	assert.Equal(t, model.ReportTypeExternal, report.Type)
	assert.Equal(t, model.ReportStatusPublished, report.Status)
	assert.Equal(t, "Example Securities", report.Author)
	assert.Equal(t, "desk@broker.example", report.FromEmail)

	var content model.ReportContent
	require.NoError(t, p.db.First(&content, report.ContentID).Error)
	assert.Equal(t, "<p>Hello</p>", content.Content)
	assert.Equal(t, report.ID, content.ReportID)
}

func TestRunDuplicateSubjectSameRun(t *testing.T) {
	mail := &fakeMail{
		msgs: map[uint32][]byte{
			1: plainMessage("Same Title", "desk@broker.example",
				"Sat, 8 May 2021 10:00:00 +0800", "first"),
			2: plainMessage("Same Title", "desk@broker.example",
				"Sat, 8 May 2021 11:00:00 +0800", "second"),
		},
		order: []uint32{1, 2},
	}
	p := newPipeline(t, mail, &stubExtractor{})

	require.NoError(t, p.fetcher.Run(context.Background()))

	var count int64
	p.db.Model(&model.Report{}).Where("name = ?", "Same Title").Count(&count)
	assert.EqualValues(t, 1, count)
	p.db.Model(&model.ReportContent{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestRunFreshnessBoundaryIsExclusive(t *testing.T) {
	mail := &fakeMail{
		msgs: map[uint32][]byte{
			// Exactly at the high-water mark: must be rejected.
			1: plainMessage("At Boundary", "desk@broker.example",
				"Sat, 8 May 2021 10:23:44 +0800", "x"),
			2: plainMessage("After Boundary", "desk@broker.example",
				"Sat, 8 May 2021 10:23:45 +0800", "y"),
		},
		order: []uint32{1, 2},
	}
	p := newPipeline(t, mail, &stubExtractor{})

	mark := time.Date(2021, 5, 8, 10, 23, 44, 0, time.Local)
	require.NoError(t, p.db.Create(&model.Report{
		UUID: "hw", Name: "existing", Status: model.ReportStatusPublished,
		SendTime: mark, ReportTime: mark,
		CreateTime: mark, UpdateTime: mark,
	}).Error)

	require.NoError(t, p.fetcher.Run(context.Background()))

	var count int64
	p.db.Model(&model.Report{}).Where("name = ?", "At Boundary").Count(&count)
	assert.Zero(t, count)
	p.db.Model(&model.Report{}).Where("name = ?", "After Boundary").Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestRunUnlistedSenderSkipped(t *testing.T) {
	mail := &fakeMail{
		msgs: map[uint32][]byte{
			1: plainMessage("Outsider", "noreply@spam.example",
				"Sat, 8 May 2021 10:23:44 +0800", "x"),
		},
		order: []uint32{1},
	}
	p := newPipeline(t, mail, &stubExtractor{})

	require.NoError(t, p.fetcher.Run(context.Background()))

	var count int64
	p.db.Model(&model.Report{}).Count(&count)
	assert.Zero(t, count)
}

func TestRunPDFAttachmentScenario(t *testing.T) {
	raw := crlf(`
From: <desk@broker.example>
Date: Sun, 9 May 2021 11:00:00 +0800
Subject: Deep Dive
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="BOUNDARY"

--BOUNDARY
Content-Type: text/plain; charset=utf-8

Summary body
--BOUNDARY
Content-Type: application/pdf; name="deck.pdf"
Content-Transfer-Encoding: base64

JVBERi1mYWtl
--BOUNDARY--`)

	mail := &fakeMail{msgs: map[uint32][]byte{1: raw}, order: []uint32{1}}
	p := newPipeline(t, mail, &stubExtractor{pages: 3, text: "extracted pdf text"})

	require.NoError(t, p.fetcher.Run(context.Background()))

	var report model.Report
	require.NoError(t, p.db.Where("name = ?", "Deep Dive").First(&report).Error)
	assert.Equal(t, 3, report.AttachmentPage)
	assert.Equal(t, "extracted pdf text", report.AttachmentText)

	var atts []model.Attachment
	require.NoError(t, p.db.Find(&atts).Error)
	require.Len(t, atts, 1)
	assert.Equal(t, "deck.pdf", atts[0].Name)
	assert.Equal(t, atts[0].UUID, report.AttachmentList)

	// Exactly one remote object.
	require.Len(t, p.store.uploads, 1)
	assert.Equal(t, atts[0].UUID, p.store.uploads[0])
}

func TestRunAttachmentIdempotence(t *testing.T) {
	msg := func(subject, date string) []byte {
		return crlf(fmt.Sprintf(`
From: <desk@broker.example>
Date: %s
Subject: %s
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="BB"

--BB
Content-Type: text/plain; charset=utf-8

body
--BB
Content-Type: application/pdf; name="shared.pdf"
Content-Transfer-Encoding: base64

JVBERi1mYWtl
--BB--`, date, subject))
	}
	mail := &fakeMail{
		msgs: map[uint32][]byte{
			1: msg("First Report", "Sat, 8 May 2021 10:00:00 +0800"),
			2: msg("Second Report", "Sat, 8 May 2021 11:00:00 +0800"),
		},
		order: []uint32{1, 2},
	}
	p := newPipeline(t, mail, &stubExtractor{pages: 1, text: "t"})

	require.NoError(t, p.fetcher.Run(context.Background()))

	// Same attachment identity twice: one stored row, one remote object.
	var count int64
	p.db.Model(&model.Attachment{}).Count(&count)
	assert.EqualValues(t, 1, count)
	assert.Len(t, p.store.uploads, 1)

	p.db.Model(&model.Report{}).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestRunStripsOrgNameBeforeSegmentation(t *testing.T) {
	mail := &fakeMail{
		msgs: map[uint32][]byte{
			1: plainMessage("Example Securities: Macro Outlook", "desk@broker.example",
				"Sat, 8 May 2021 10:23:44 +0800", "x"),
		},
		order: []uint32{1},
	}
	p := newPipeline(t, mail, &stubExtractor{})

	require.NoError(t, p.fetcher.Run(context.Background()))
	assert.NotContains(t, *p.segText, "Example Securities")
	assert.Contains(t, *p.segText, "Macro Outlook")
}

func TestRunLoginFailureAbortsRun(t *testing.T) {
	mail := &fakeMail{loginErr: errors.New("connection refused")}
	p := newPipeline(t, mail, &stubExtractor{})

	err := p.fetcher.Run(context.Background())
	assert.Error(t, err)
}

func TestRunBadMessageDoesNotAbortRun(t *testing.T) {
	mail := &fakeMail{
		msgs: map[uint32][]byte{
			1: crlf(`
From: <desk@broker.example>
Date: not a date
Subject: broken

x`),
			2: plainMessage("Good One", "desk@broker.example",
				"Sat, 8 May 2021 10:23:44 +0800", "ok"),
		},
		order: []uint32{1, 2},
	}
	p := newPipeline(t, mail, &stubExtractor{})

	require.NoError(t, p.fetcher.Run(context.Background()))

	var count int64
	p.db.Model(&model.Report{}).Where("name = ?", "Good One").Count(&count)
	assert.EqualValues(t, 1, count)
}
