package model

import "time"

// ReportContent maps the t_report_content body row. ReportID stays zero
// until the owning report's id is back-filled in the same transaction:
// the two rows reference each other and ids are assigned at insertion.
type ReportContent struct {
	ID         uint      `gorm:"primaryKey;autoIncrement;column:id"`
	ReportID   uint      `gorm:"column:report_id;index"`
	Content    string    `gorm:"column:content;type:longtext"`
	CreateTime time.Time `gorm:"column:create_time"`
}

// TableName specifies the table name for ReportContent
func (ReportContent) TableName() string {
	return "t_report_content"
}
