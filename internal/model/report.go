package model

import "time"

// Report status values in t_report.
const (
	ReportStatusDraft     = 1
	ReportStatusPublished = 2
)

// ReportTypeExternal marks reports ingested from outside organizations;
// every other value means an internally authored report.
const ReportTypeExternal = 5

// Report maps the t_report header row. Name is the deduplication key:
// unique among rows with IsDelete = 0.
type Report struct {
	ID             uint      `gorm:"primaryKey;autoIncrement;column:id"`
	UUID           string    `gorm:"column:uuid;type:varchar(64);uniqueIndex;not null"`
	Name           string    `gorm:"column:name;type:varchar(512);not null"`
	Type           int       `gorm:"column:type;default:5"`
	Status         int       `gorm:"column:status"`
	StockID        int       `gorm:"column:stock_id;default:0"`
	AssociatedID   int       `gorm:"column:associated_id;default:0"`
	IsDelete       int       `gorm:"column:is_delete;default:0"`
	CategoryID     int       `gorm:"column:category_id;default:0"`
	TagIDList      string    `gorm:"column:tag_id_list;type:varchar(255)"`
	Description    string    `gorm:"column:description;type:varchar(512)"`
	Summary        string    `gorm:"column:summary;type:varchar(255)"`
	ContentID      uint      `gorm:"column:content_id"`
	Author         string    `gorm:"column:author;type:varchar(64)"`
	AuthorID       int       `gorm:"column:author_id;default:0"`
	AttachmentList string    `gorm:"column:attachment_list;type:text"`
	AttachmentText string    `gorm:"column:attachment_text;type:text"`
	AttachmentPage int       `gorm:"column:attachment_page"`
	ReportTime     time.Time `gorm:"column:report_time"`
	CreateTime     time.Time `gorm:"column:create_time"`
	UpdateTime     time.Time `gorm:"column:update_time"`
	SendTime       time.Time `gorm:"column:send_time"`
	FromEmail      string    `gorm:"column:from_email;type:varchar(32)"`
}

// TableName specifies the table name for Report
func (Report) TableName() string {
	return "t_report"
}
