package model

// Stock-type ids used by t_tag.
const (
	StockTypeAShare = 4
	StockTypeHK     = 5
	StockTypeUS     = 6
)

// Tag maps the t_tag reference row. The pipeline only reads this table:
// a stock name produced by word segmentation resolves to a tag id.
type Tag struct {
	ID        uint   `gorm:"primaryKey;autoIncrement;column:id"`
	TypeID    int    `gorm:"column:type_id"`
	Name      string `gorm:"column:name;type:varchar(32)"`
	StockName string `gorm:"column:stock_name;type:varchar(64);index"`
}

// TableName specifies the table name for Tag
func (Tag) TableName() string {
	return "t_tag"
}
