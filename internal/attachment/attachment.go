// Package attachment stages an attachment's bytes locally, offloads them
// to remote object storage under a storage-safe name, extracts text for
// recognized document types, and removes the staged copy.
package attachment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"report-mail-ingest/internal/model"
)

// Uploader is the remote object store the processor offloads bytes to.
type Uploader interface {
	Upload(ctx context.Context, key, localPath string) (string, error)
}

// Extractor reads document text out of staged files.
type Extractor interface {
	PDF(path string) (pages int, text string, err error)
	Spreadsheet(path string) (text string, err error)
}

// Result is one processed attachment: the durable record plus the text
// contribution for the owning report.
type Result struct {
	Record model.Attachment
	Pages  int
	Text   string
}

// Processor implements the staging/upload/extract sequence.
type Processor struct {
	stagingDir string
	store      Uploader
	extractor  Extractor

	// newToken is swappable in tests to force the fallback naming path.
	newToken func() string
}

// NewProcessor creates a processor staging files under stagingDir. The
// directory must be empty at rest between runs; a leftover file indicates
// a crashed run.
func NewProcessor(stagingDir string, store Uploader, extractor Extractor) *Processor {
	return &Processor{
		stagingDir: stagingDir,
		store:      store,
		extractor:  extractor,
		newToken:   freshToken,
	}
}

func freshToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Process stages raw bytes, uploads them, extracts text where the type is
// recognized, deletes the staged copy, and returns the attachment record.
// Upload failure is logged but does not fail the attachment: the metadata
// row is still written with the generated token, an accepted inconsistency
// window between metadata and remote presence.
func (p *Processor) Process(ctx context.Context, declaredName string, raw []byte) (Result, error) {
	ext := ""
	if i := strings.LastIndex(declaredName, "."); i >= 0 {
		ext = declaredName[i:]
	}

	safeName := p.newToken() + ext
	path := filepath.Join(p.stagingDir, safeName)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		// Retry once under a timestamp-derived name.
		logrus.Warnf("staging write for %q failed (%v), retrying with timestamp name", declaredName, err)
		safeName = fmt.Sprintf("%d%s", time.Now().Unix(), ext)
		path = filepath.Join(p.stagingDir, safeName)
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return Result{}, fmt.Errorf("stage attachment %q: %w", declaredName, err)
		}
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			logrus.Errorf("remove staged attachment %s: %v", path, err)
		} else {
			logrus.Infof("removed staged attachment %s", safeName)
		}
	}()

	if _, err := p.store.Upload(ctx, safeName, path); err != nil {
		logrus.Errorf("upload attachment %s failed: %v", safeName, err)
	}

	res := Result{}
	switch ext {
	case ".pdf":
		pages, text, err := p.extractor.PDF(path)
		if err != nil {
			logrus.Errorf("extract pdf %s: %v", safeName, err)
		} else {
			res.Pages = pages
			res.Text = text
		}
	case ".xlsx":
		text, err := p.extractor.Spreadsheet(path)
		if err != nil {
			logrus.Errorf("extract spreadsheet %s: %v", safeName, err)
		} else {
			res.Pages = 1
			res.Text = text
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("stat staged attachment %s: %w", path, err)
	}

	res.Record = model.Attachment{
		UUID: safeName,
		Name: declaredName,
		Size: info.Size(),
	}
	logrus.Infof("processed attachment %q as %s (%d bytes)", declaredName, safeName, info.Size())
	return res, nil
}
