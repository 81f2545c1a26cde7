package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"servicecrm/internal/models"
	"servicecrm/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	xlsxContentType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportURLExpiry    = 15 * time.Minute
	exportTimestampFmt = "20060102T150405Z"
)

// ExportResult points at an uploaded order export.
type ExportResult struct {
	Key   string `json:"key"`
	URL   string `json:"url,omitempty"`
	Count int    `json:"count"`
}

type ExportService interface {
	// Export writes every order matching filter (paging ignored) to an XLSX
	// workbook and uploads it to object storage.
	Export(ctx context.Context, actorID, centerID uuid.UUID, filter models.OrderSearchFilter) (*ExportResult, error)
}

type exportService struct {
	orders  repositories.OrderRepository
	access  *AccessChecker
	storage ObjectStorage
	bucket  string
	actions ActionLogger
	log     *zap.Logger
	now     func() time.Time
}

func NewExportService(
	orders repositories.OrderRepository,
	access *AccessChecker,
	storage ObjectStorage,
	bucket string,
	actions ActionLogger,
	log *zap.Logger,
) ExportService {
	return &exportService{
		orders:  orders,
		access:  access,
		storage: storage,
		bucket:  bucket,
		actions: actions,
		log:     log,
		now:     time.Now,
	}
}

// ExportObjectKey names the export object of a service center.
func ExportObjectKey(centerID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%s/orders-%s.xlsx", centerID, at.UTC().Format(exportTimestampFmt))
}

func (s *exportService) Export(ctx context.Context, actorID, centerID uuid.UUID, filter models.OrderSearchFilter) (*ExportResult, error) {
	if _, err := s.access.RequireAccess(ctx, actorID, centerID); err != nil {
		return nil, err
	}

	filter.Page, filter.PageSize = 0, 0
	orders, _, err := s.orders.Search(ctx, centerID, &filter)
	if err != nil {
		return nil, err
	}

	data, err := buildOrderWorkbook(orders)
	if err != nil {
		return nil, err
	}

	if err := s.storage.EnsureBucketExists(ctx, s.bucket); err != nil {
		return nil, fmt.Errorf("ensure export bucket: %w", err)
	}
	key := ExportObjectKey(centerID, s.now())
	if err := s.storage.Upload(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), xlsxContentType); err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}

	result := &ExportResult{Key: key, Count: len(orders)}
	url, err := s.storage.GetPresignedURL(ctx, s.bucket, key, exportURLExpiry)
	if err != nil {
		s.log.Warn("Failed to presign export URL", zap.String("key", key), zap.Error(err))
	} else {
		result.URL = url
	}

	s.actions.LogAction(ctx, models.ActionEvent{
		Action:          models.ActionOrdersExported,
		ServiceCenterID: centerID,
		ActorID:         actorID,
		Details:         map[string]any{"key": key, "count": len(orders)},
	})
	return result, nil
}
