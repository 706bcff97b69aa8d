package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	InsightTypeSummary         = "summary"
	InsightTypeTrends          = "trends"
	InsightTypeAnomalies       = "anomalies"
	InsightTypeRecommendations = "recommendations"
)

// InsightCategory is one of the fixed categories a generated analysis is filed under.
type InsightCategory struct {
	Type  string
	Title string
}

// InsightCategories lists the categories in the order they are written.
var InsightCategories = []InsightCategory{
	{Type: InsightTypeSummary, Title: "Data Summary"},
	{Type: InsightTypeTrends, Title: "Key Trends"},
	{Type: InsightTypeAnomalies, Title: "Anomalies Detected"},
	{Type: InsightTypeRecommendations, Title: "Recommendations"},
}

type Insight struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DatasetID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"dataset_id"`
	Dataset     *Dataset       `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE" json:"-"`
	UserID      *uuid.UUID     `gorm:"type:uuid;index" json:"user_id"`
	InsightType string         `gorm:"type:varchar(32);not null" json:"insight_type"`
	Title       string         `gorm:"type:text;not null" json:"title"`
	Content     string         `gorm:"type:text;not null" json:"content"`
	Metadata    datatypes.JSON `gorm:"type:jsonb" json:"metadata"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (i *Insight) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// InsightMetadata is stored in Insight.Metadata.
type InsightMetadata struct {
	Columns     []string  `json:"columns"`
	RowCount    int       `json:"rowCount"`
	GeneratedAt time.Time `json:"generatedAt"`
}
