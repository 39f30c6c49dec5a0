package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/malteschaefer1/procafocia/internal/pcf/entity"
	"github.com/malteschaefer1/procafocia/internal/pcf/repository"
	"github.com/minio/minio-go/v7"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ExportService turns a completed run into an xlsx workbook and archives it
// to MinIO when a client is configured.
type ExportService struct {
	runRepo     *repository.RunRepository
	productRepo *repository.ProductRepository
	minioClient *minio.Client
	bucket      string
	logger      *zap.Logger
}

func NewExportService(runRepo *repository.RunRepository, productRepo *repository.ProductRepository, minioClient *minio.Client, bucket string, logger *zap.Logger) *ExportService {
	return &ExportService{
		runRepo:     runRepo,
		productRepo: productRepo,
		minioClient: minioClient,
		bucket:      bucket,
		logger:      logger,
	}
}

// ExportRun builds the workbook for a run and returns it with a file name.
func (s *ExportService) ExportRun(ctx context.Context, runID string) (*excelize.File, string, error) {
	run, err := s.runRepo.GetByID(ctx, runID)
	if err != nil {
		return nil, "", err
	}
	product, err := s.productRepo.GetByID(ctx, run.ProductID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheet := "Summary"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})

	summary := [][]interface{}{
		{"Run ID", run.RunID},
		{"Product", fmt.Sprintf("%s (%s)", product.Name, product.ID)},
		{"Version", run.Version},
		{"Functional unit", product.FunctionalUnit},
		{"Kind", run.Kind},
		{"Status", run.Status},
		{"Created", run.CreatedAt.Format("2006-01-02 15:04:05")},
	}
	if run.MethodID != nil {
		summary = append(summary, []interface{}{"Method", *run.MethodID})
	}
	if run.Kind == entity.RunKindPCF {
		summary = append(summary, []interface{}{"Total kg CO2e", run.Result["total_kg_co2e"]})
	} else {
		summary = append(summary, []interface{}{"Circularity score", run.Result["score"]})
	}
	if run.Error != "" {
		summary = append(summary, []interface{}{"Error", run.Error})
	}
	for i, row := range summary {
		keyCell := fmt.Sprintf("A%d", i+1)
		f.SetCellValue(sheet, keyCell, row[0])
		f.SetCellStyle(sheet, keyCell, keyCell, boldStyle)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", i+1), row[1])
	}

	s.writeBreakdownSheet(f, run, boldStyle)

	fileName := fmt.Sprintf("%s-%s-%s.xlsx", run.Kind, run.ProductID, run.RunID[:8])
	s.archive(ctx, f, fileName)
	return f, fileName, nil
}

// writeBreakdownSheet adds the per-line detail when the run carries one.
func (s *ExportService) writeBreakdownSheet(f *excelize.File, run *entity.CalculationRun, headerStyle int) {
	var rows []interface{}
	var headers []string
	var cols []string
	switch run.Kind {
	case entity.RunKindPCF:
		raw, ok := run.Result["breakdown"].([]interface{})
		if !ok {
			if typed, okTyped := run.Result["breakdown"].([]map[string]interface{}); okTyped {
				for _, r := range typed {
					raw = append(raw, r)
				}
				ok = true
			}
		}
		if !ok {
			return
		}
		rows = raw
		headers = []string{"Line", "Name", "Factor", "Source", "Stage", "kg CO2e"}
		cols = []string{"line_no", "name", "factor_id", "factor_source", "stage", "kg_co2e"}
	case entity.RunKindCircularity:
		raw, ok := run.Result["contributions"].([]interface{})
		if !ok {
			if typed, okTyped := run.Result["contributions"].([]map[string]interface{}); okTyped {
				for _, r := range typed {
					raw = append(raw, r)
				}
				ok = true
			}
		}
		if !ok {
			return
		}
		rows = raw
		headers = []string{"Line", "Name", "Weight", "Weight share", "Recycled content", "Recyclability"}
		cols = []string{"line_no", "name", "weight", "weight_share", "recycled_content", "recyclability"}
	default:
		return
	}

	sheet := "Breakdown"
	f.NewSheet(sheet)
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}
	for rowIdx, row := range rows {
		fields, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		for colIdx, key := range cols {
			col, _ := excelize.ColumnNumberToName(colIdx + 1)
			f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, rowIdx+2), fields[key])
		}
	}
}

// archive uploads the workbook to MinIO. Best effort; export still succeeds
// when the object store is down.
func (s *ExportService) archive(ctx context.Context, f *excelize.File, fileName string) {
	if s.minioClient == nil || s.bucket == "" {
		return
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		s.logger.Warn("Export buffer write failed", zap.Error(err))
		return
	}
	_, err := s.minioClient.PutObject(ctx, s.bucket, "exports/"+fileName, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	})
	if err != nil {
		s.logger.Warn("Export archive upload failed", zap.String("object", fileName), zap.Error(err))
		return
	}
	s.logger.Info("Run export archived", zap.String("bucket", s.bucket), zap.String("object", fileName))
}
