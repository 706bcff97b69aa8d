package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"datalens/internal/apierr"
	"datalens/internal/clients"
	"datalens/internal/ingest"
	"datalens/internal/models"
	"datalens/internal/repository"
	"datalens/pkg/logger"
	"datalens/pkg/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
)

// SystemInstruction frames every analysis request.
const SystemInstruction = "You are a data analyst AI that provides clear, actionable insights from datasets."

type ProcessRequest struct {
	DatasetID string `json:"datasetId"`
	FileURL   string `json:"fileUrl"`
	FileType  string `json:"fileType"`
}

// Caller identifies who triggered a pipeline run. Service callers may process any
// dataset; user callers only their own.
type Caller struct {
	UserID  *uuid.UUID
	Service bool
}

type ProcessResult struct {
	DatasetID uuid.UUID
	Columns   []string
	RowCount  int
	Dropped   int
	Insights  []models.Insight
}

type IngestService interface {
	Process(ctx context.Context, req ProcessRequest, caller Caller) (*ProcessResult, error)
}

type IngestConfig struct {
	Parse      ingest.Options
	SampleRows int
	MaxTokens  int
}

type ingestService struct {
	datasets repository.DatasetRepository
	insights repository.InsightRepository
	cache    repository.CacheRepository
	files    clients.FileClient
	llm      clients.LLMClient
	config   IngestConfig
	log      *logger.Logger
	now      func() time.Time
}

func NewIngestService(
	datasets repository.DatasetRepository,
	insights repository.InsightRepository,
	cache repository.CacheRepository,
	files clients.FileClient,
	llm clients.LLMClient,
	config IngestConfig,
	log *logger.Logger,
) IngestService {
	if config.SampleRows <= 0 {
		config.SampleRows = 10
	}
	return &ingestService{
		datasets: datasets,
		insights: insights,
		cache:    cache,
		files:    files,
		llm:      llm,
		config:   config,
		log:      log.With("service", "IngestService"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ValidateProcessRequest checks the trigger payload and returns the parsed dataset id
// and normalised file type.
func ValidateProcessRequest(req ProcessRequest) (uuid.UUID, string, error) {
	var problems []string
	id, err := uuid.Parse(strings.TrimSpace(req.DatasetID))
	switch {
	case strings.TrimSpace(req.DatasetID) == "":
		problems = append(problems, "datasetId is required")
	case err != nil:
		problems = append(problems, "datasetId must be a UUID")
	}

	rawURL := strings.TrimSpace(req.FileURL)
	if rawURL == "" {
		problems = append(problems, "fileUrl is required")
	} else if u, err := url.Parse(rawURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, "fileUrl must be an absolute http(s) URL")
	}

	fileType := ingest.NormalizeFileType(req.FileType)
	if fileType == "" {
		problems = append(problems, "fileType is required")
	} else if !ingest.IsSupported(fileType) {
		problems = append(problems, fmt.Sprintf("fileType must be one of %s", strings.Join(ingest.SupportedTypes(), ", ")))
	}

	if len(problems) > 0 {
		return uuid.Nil, "", apierr.Validation(errors.New(strings.Join(problems, "; ")))
	}
	return id, fileType, nil
}

func (s *ingestService) Process(ctx context.Context, req ProcessRequest, caller Caller) (result *ProcessResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ingest.process", attribute.String("dataset.id", req.DatasetID))
	defer func() { telemetry.EndSpan(span, err) }()

	datasetID, fileType, err := ValidateProcessRequest(req)
	if err != nil {
		return nil, err
	}
	log := s.log.With("dataset_id", datasetID, "file_type", fileType)
	log.Info("processing dataset")

	dataset, err := s.datasets.GetByID(ctx, datasetID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("dataset not found")
		return nil, apierr.NotFound(fmt.Errorf("dataset %s not found", datasetID))
	}
	if err != nil {
		log.Error("load dataset failed", "error", err)
		return nil, apierr.Persistence(fmt.Errorf("load dataset: %w", err))
	}
	if !caller.Service && (caller.UserID == nil || *caller.UserID != dataset.UserID) {
		log.Warn("caller does not own dataset")
		return nil, apierr.Forbidden(errors.New("dataset belongs to another user"))
	}

	raw, err := s.fetch(ctx, strings.TrimSpace(req.FileURL))
	if err != nil {
		log.Error("file retrieval failed", "error", err)
		return nil, apierr.Retrieval(fmt.Errorf("retrieve file: %w", err))
	}

	table, err := s.parse(ctx, raw, fileType)
	if err != nil {
		log.Error("parse failed", "error", err)
		return nil, apierr.Parse(fmt.Errorf("parse %s: %w", fileType, err))
	}
	log.Info("parsed dataset",
		"columns", len(table.Columns),
		"rows", table.RowCount(),
		"dropped", table.Dropped,
		"normalized", table.Normalized,
	)

	columnsInfo, err := models.ColumnsInfoFor(table.Columns)
	if err != nil {
		return nil, apierr.Persistence(fmt.Errorf("encode columns: %w", err))
	}
	if err := s.markReady(ctx, datasetID, columnsInfo, table.RowCount()); err != nil {
		log.Error("metadata update failed", "error", err)
		return nil, apierr.Persistence(fmt.Errorf("update dataset metadata: %w", err))
	}

	prompt, err := BuildPrompt(table, fileType, s.config.SampleRows)
	if err != nil {
		return nil, apierr.Parse(fmt.Errorf("build prompt: %w", err))
	}
	text, err := s.complete(ctx, prompt)
	if err != nil {
		log.Error("model call failed", "model", s.llm.Name(), "error", err)
		return nil, apierr.Model(fmt.Errorf("generate insights: %w", err))
	}

	insights, err := FanOut(text, datasetID, caller.UserID, table.Columns, table.RowCount(), s.now())
	if err != nil {
		return nil, apierr.Persistence(fmt.Errorf("build insights: %w", err))
	}

	result = &ProcessResult{
		DatasetID: datasetID,
		Columns:   table.Columns,
		RowCount:  table.RowCount(),
		Dropped:   table.Dropped,
	}
	defer s.invalidateInsights(ctx, datasetID)
	for i := range insights {
		if err := s.insights.Create(ctx, &insights[i]); err != nil {
			log.Error("insight insert failed",
				"insight_type", insights[i].InsightType,
				"written", len(result.Insights),
				"error", err,
			)
			return nil, apierr.Persistence(fmt.Errorf("store %s insight: %w", insights[i].InsightType, err))
		}
		result.Insights = append(result.Insights, insights[i])
	}

	log.Info("dataset processed", "insights", len(result.Insights))
	return result, nil
}

func (s *ingestService) fetch(ctx context.Context, fileURL string) (raw []byte, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ingest.fetch")
	defer func() { telemetry.EndSpan(span, err) }()

	raw, err = s.files.Fetch(ctx, fileURL)
	span.SetAttributes(attribute.Int("file.bytes", len(raw)))
	return raw, err
}

func (s *ingestService) parse(ctx context.Context, raw []byte, fileType string) (table *ingest.Table, err error) {
	_, span := telemetry.StartSpan(ctx, "ingest.parse", attribute.String("file.type", fileType))
	defer func() { telemetry.EndSpan(span, err) }()

	return ingest.Parse(raw, fileType, s.config.Parse)
}

func (s *ingestService) markReady(ctx context.Context, id uuid.UUID, columnsInfo datatypes.JSON, rowCount int) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "ingest.mark_ready")
	defer func() { telemetry.EndSpan(span, err) }()

	return s.datasets.MarkReady(ctx, id, columnsInfo, rowCount)
}

func (s *ingestService) complete(ctx context.Context, prompt string) (text string, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ingest.complete", attribute.String("llm.client", s.llm.Name()))
	defer func() { telemetry.EndSpan(span, err) }()

	return s.llm.Complete(ctx, clients.CompletionRequest{
		System:    SystemInstruction,
		Prompt:    prompt,
		MaxTokens: s.config.MaxTokens,
	})
}

func (s *ingestService) invalidateInsights(ctx context.Context, datasetID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, repository.InsightsKey(datasetID)); err != nil {
		s.log.Warn("insight cache invalidation failed", "dataset_id", datasetID, "error", err)
	}
}

// BuildPrompt renders the analysis request: dataset shape, a leading sample of rows
// as indented JSON and the four categories the answer should cover.
func BuildPrompt(table *ingest.Table, fileType string, sampleRows int) (string, error) {
	sample, err := table.SampleJSON(sampleRows)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Analyze this dataset and provide comprehensive insights:\n\n")
	b.WriteString("Dataset Info:\n")
	fmt.Fprintf(&b, "- Columns: %s\n", strings.Join(table.Columns, ", "))
	fmt.Fprintf(&b, "- Total Rows: %d\n", table.RowCount())
	fmt.Fprintf(&b, "- File Type: %s\n\n", fileType)
	b.WriteString("Sample Data:\n")
	b.WriteString(sample)
	b.WriteString("\n\nPlease provide insights in the following categories:\n")
	b.WriteString("1. Summary: Key statistics and overview\n")
	b.WriteString("2. Trends: Notable patterns or trends in the data\n")
	b.WriteString("3. Anomalies: Any unusual or outlier data points\n")
	b.WriteString("4. Recommendations: Actionable insights and suggestions\n\n")
	b.WriteString("Format your response as clear, actionable insights.")
	return b.String(), nil
}

// FanOut files the model's answer under every insight category. All records share
// the same content and metadata; only type and title differ.
func FanOut(text string, datasetID uuid.UUID, userID *uuid.UUID, columns []string, rowCount int, now time.Time) ([]models.Insight, error) {
	if columns == nil {
		columns = []string{}
	}
	metadata, err := json.Marshal(models.InsightMetadata{
		Columns:     columns,
		RowCount:    rowCount,
		GeneratedAt: now.UTC(),
	})
	if err != nil {
		return nil, err
	}

	insights := make([]models.Insight, 0, len(models.InsightCategories))
	for _, category := range models.InsightCategories {
		insights = append(insights, models.Insight{
			DatasetID:   datasetID,
			UserID:      userID,
			InsightType: category.Type,
			Title:       category.Title,
			Content:     text,
			Metadata:    datatypes.JSON(metadata),
		})
	}
	return insights, nil
}
