package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"report-mail-ingest/internal/attachment"
	"report-mail-ingest/internal/model"
	"report-mail-ingest/internal/repository"
	"report-mail-ingest/internal/segment"
	"report-mail-ingest/internal/textutil"
)

// BuiltReport is the assembled insert payload handed to the persistence
// coordinator.
type BuiltReport struct {
	Report      *model.Report
	Body        string
	Attachments []model.Attachment
}

// Builder turns an eligible candidate into the normalized report record:
// processes attachments, resolves tags, and fills the fixed defaults for
// fields not derivable from the message.
type Builder struct {
	repo *repository.Repository
	seg  *segment.Client
	proc *attachment.Processor
}

// NewBuilder creates a record builder.
func NewBuilder(repo *repository.Repository, seg *segment.Client, proc *attachment.Processor) *Builder {
	return &Builder{repo: repo, seg: seg, proc: proc}
}

// Build assembles the report for a candidate from the named organization.
func (b *Builder) Build(ctx context.Context, cand *Candidate, orgName string) (*BuiltReport, error) {
	var (
		records []model.Attachment
		pages   int
		text    strings.Builder
	)
	for _, part := range cand.Attachments {
		// An attachment identity already persisted is reused untouched:
		// no second upload, no repeated extraction.
		existing, err := b.repo.AttachmentByName(part.Name)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			logrus.Infof("attachment %q already stored as %s, reusing", part.Name, existing.UUID)
			records = append(records, *existing)
			continue
		}

		res, err := b.proc.Process(ctx, part.Name, part.Data)
		if err != nil {
			return nil, err
		}
		records = append(records, res.Record)
		pages += res.Pages
		text.WriteString(res.Text)
	}

	tagIDs := b.lookupTags(ctx, cand.Subject, orgName)

	now := time.Now()
	report := &model.Report{
		UUID:           strings.ReplaceAll(uuid.NewString(), "-", ""),
		Name:           cand.Subject,
		Type:           model.ReportTypeExternal,
		Status:         model.ReportStatusPublished,
		TagIDList:      repository.JoinTagIDs(tagIDs),
		Description:    textutil.Excerpt(cand.Body),
		Summary:        "",
		Author:         orgName,
		AttachmentText: text.String(),
		AttachmentPage: pages,
		ReportTime:     cand.SentAt,
		SendTime:       cand.SentAt,
		CreateTime:     now,
		UpdateTime:     now,
		FromEmail:      cand.Sender,
	}
	return &BuiltReport{Report: report, Body: cand.Body, Attachments: records}, nil
}

// lookupTags segments the subject (with the sending organization's own
// name stripped out first) and maps the words to tag ids. A lookup-service
// failure degrades to an empty tag list; it never fails the message.
func (b *Builder) lookupTags(ctx context.Context, subject, orgName string) []uint {
	stripped := strings.TrimSpace(strings.ReplaceAll(subject, orgName, ""))

	words, err := b.seg.Segment(ctx, stripped)
	if err != nil {
		logrus.Errorf("segmentation unavailable for %q, continuing without tags: %v", subject, err)
		return nil
	}
	ids, err := b.repo.TagIDsForWords(words)
	if err != nil {
		logrus.Errorf("tag lookup failed for %q, continuing without tags: %v", subject, err)
		return nil
	}
	return ids
}
