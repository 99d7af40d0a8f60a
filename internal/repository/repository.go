// Package repository is the persistence side of the ingestion pipeline:
// reference-data lookups, the uniqueness and high-water-mark queries, and
// the all-or-nothing report commit.
package repository

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"report-mail-ingest/internal/model"
)

// ErrDuplicateTitle reports that a non-deleted report with the same title
// already exists. Callers treat it as an informational skip, not a failure.
var ErrDuplicateTitle = errors.New("duplicate report title")

// Repository wraps the relational store.
type Repository struct {
	db *gorm.DB

	// Randomized delay before the pre-commit uniqueness re-check, to
	// desynchronize overlapping runs. Tests set both to zero.
	jitterMin time.Duration
	jitterMax time.Duration
}

// New creates a repository with the default 1-4s dedup jitter.
func New(db *gorm.DB) *Repository {
	return &Repository{
		db:        db,
		jitterMin: time.Second,
		jitterMax: 4 * time.Second,
	}
}

// SetDedupJitter overrides the delay range before the pre-commit
// uniqueness check.
func (r *Repository) SetDedupJitter(min, max time.Duration) {
	r.jitterMin, r.jitterMax = min, max
}

// LatestReportSendTime returns the send time of the most recently inserted
// report: the high-water mark for the next scan. An empty table yields the
// zero time so every candidate passes the freshness gate.
func (r *Repository) LatestReportSendTime() (time.Time, error) {
	var report model.Report
	err := r.db.Order("id DESC").First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.Info("report table is empty, high-water mark is zero")
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query latest report: %w", err)
	}
	logrus.Infof("latest persisted report send time: %s", report.SendTime.Format("2006-01-02 15:04:05"))
	return report.SendTime, nil
}

// TitleExists reports whether a non-deleted report already carries title.
func (r *Repository) TitleExists(title string) (bool, error) {
	var count int64
	err := r.db.Model(&model.Report{}).
		Where("name = ? AND is_delete = 0", title).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count reports titled %q: %w", title, err)
	}
	return count > 0, nil
}

// OrgBySuffix resolves a sender domain suffix against the allow-list.
// Returns nil when the suffix is unknown.
func (r *Repository) OrgBySuffix(suffix string) (*model.ReportOrg, error) {
	var org model.ReportOrg
	err := r.db.Where("suffix = ?", suffix).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup org for suffix %q: %w", suffix, err)
	}
	return &org, nil
}

// TagIDsForWords maps segmented words to tag ids by stock name. Words with
// no matching tag are silently omitted.
func (r *Repository) TagIDsForWords(words []string) ([]uint, error) {
	ids := make([]uint, 0, len(words))
	for _, word := range words {
		var tag model.Tag
		err := r.db.Where("stock_name = ?", word).First(&tag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lookup tag for %q: %w", word, err)
		}
		ids = append(ids, tag.ID)
	}
	return ids, nil
}

// AttachmentByName returns an existing attachment row with the given
// display name, or nil. A known attachment identity is immutable once
// stored and is never re-uploaded.
func (r *Repository) AttachmentByName(name string) (*model.Attachment, error) {
	var att model.Attachment
	err := r.db.Where("name = ?", name).First(&att).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup attachment %q: %w", name, err)
	}
	return &att, nil
}

// SaveReport commits one report as a single transaction: re-check title
// uniqueness, insert the content row, insert-or-reuse each attachment row,
// insert the report row referencing the content id, then back-fill the
// content row with the report id. Any failure rolls everything back.
func (r *Repository) SaveReport(report *model.Report, body string, attachments []model.Attachment) (uint, error) {
	r.sleepJitter()

	dup, err := r.TitleExists(report.Name)
	if err != nil {
		return 0, err
	}
	if dup {
		logrus.Infof("report title %q already saved, skipping", report.Name)
		return 0, ErrDuplicateTitle
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		content := model.ReportContent{
			Content:    body,
			CreateTime: time.Now(),
		}
		if err := tx.Create(&content).Error; err != nil {
			return fmt.Errorf("insert report content: %w", err)
		}
		logrus.Infof("report content saved, content_id: %d", content.ID)

		uuids := make([]string, 0, len(attachments))
		for i := range attachments {
			att := attachments[i]
			var existing model.Attachment
			err := tx.Where("uuid = ?", att.UUID).First(&existing).Error
			if err == nil {
				uuids = append(uuids, existing.UUID)
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("lookup attachment %s: %w", att.UUID, err)
			}
			if err := tx.Create(&att).Error; err != nil {
				return fmt.Errorf("insert attachment %s: %w", att.UUID, err)
			}
			uuids = append(uuids, att.UUID)
		}

		report.ContentID = content.ID
		report.AttachmentList = strings.Join(uuids, ",")
		if err := tx.Create(report).Error; err != nil {
			return fmt.Errorf("insert report: %w", err)
		}

		err := tx.Model(&model.ReportContent{}).
			Where("id = ?", content.ID).
			Update("report_id", report.ID).Error
		if err != nil {
			return fmt.Errorf("back-fill report id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logrus.Infof("report saved, report_id: %d", report.ID)
	return report.ID, nil
}

// RecentReports returns the newest report rows, for the ops listing.
func (r *Repository) RecentReports(limit int) ([]model.Report, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var reports []model.Report
	err := r.db.Where("is_delete = 0").Order("id DESC").Limit(limit).Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("list recent reports: %w", err)
	}
	return reports, nil
}

func (r *Repository) sleepJitter() {
	if r.jitterMax <= 0 {
		return
	}
	span := r.jitterMax - r.jitterMin
	d := r.jitterMin
	if span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	time.Sleep(d)
}

// JoinTagIDs renders a tag-id list the way t_report stores it.
func JoinTagIDs(ids []uint) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatUint(uint64(id), 10))
	}
	return strings.Join(parts, ",")
}
