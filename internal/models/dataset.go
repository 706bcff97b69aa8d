package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DatasetStatusProcessing = "processing"
	DatasetStatusReady      = "ready"
	DatasetStatusError      = "error"
)

// ColumnTypeString is the only type the schema inference assigns.
const ColumnTypeString = "string"

type Dataset struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string         `gorm:"type:text;not null" json:"name"`
	Description *string        `gorm:"type:text" json:"description"`
	FileType    string         `gorm:"type:varchar(32);not null" json:"file_type"`
	FileSize    *int64         `json:"file_size"`
	FileURL     *string        `gorm:"type:text" json:"file_url"`
	StorageKey  *string        `gorm:"type:text" json:"-"`
	RowCount    *int           `json:"row_count"`
	ColumnsInfo datatypes.JSON `gorm:"type:jsonb" json:"columns_info"`
	Status      string         `gorm:"type:varchar(32);not null;index" json:"status"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (d *Dataset) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = DatasetStatusProcessing
	}
	return nil
}

// IsReady reports whether the ingestion pipeline has written schema metadata.
func (d *Dataset) IsReady() bool {
	return d.Status == DatasetStatusReady
}

// ColumnsInfoFor builds the column descriptor persisted on a dataset:
// every column maps to the opaque string type.
func ColumnsInfoFor(columns []string) (datatypes.JSON, error) {
	info := make(map[string]string, len(columns))
	for _, col := range columns {
		info[col] = ColumnTypeString
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
