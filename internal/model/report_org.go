package model

// ReportOrg maps the t_report_other_user reference row: the sender
// allow-list. Suffix is the mail domain from the last '@' to the end of
// the address; senders whose suffix matches no row are ignored.
type ReportOrg struct {
	ID          uint   `gorm:"primaryKey;autoIncrement;column:id"`
	Author      string `gorm:"column:author;type:varchar(64)"`
	Suffix      string `gorm:"column:suffix;type:varchar(32);index"`
	ReportCount int64  `gorm:"column:report_count"`
}

// TableName specifies the table name for ReportOrg
func (ReportOrg) TableName() string {
	return "t_report_other_user"
}
