package model

// Attachment maps the t_attachment row. UUID is the storage-safe name the
// attachment was uploaded under and is unique across the store; a row known
// by its UUID is never re-inserted or re-uploaded.
type Attachment struct {
	ID   uint   `gorm:"primaryKey;autoIncrement;column:id"`
	UUID string `gorm:"column:uuid;type:varchar(64);uniqueIndex;not null"`
	Name string `gorm:"column:name;type:varchar(256)"`
	Size int64  `gorm:"column:size"`
}

// TableName specifies the table name for Attachment
func (Attachment) TableName() string {
	return "t_attachment"
}
