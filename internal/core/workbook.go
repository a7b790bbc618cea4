package core

// workbook.go builds the xlsx files the pipeline hands out: the import
// template and the receipt of a committed import.

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/inventory/internal/logging"
	"github.com/xuri/excelize/v2"
)

// TemplateFileName is the download name of the import template.
const TemplateFileName = "plantilla_items_inventario.xlsx"

// XLSXContentType is the MIME type of xlsx workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	instructionsSheet = "Instrucciones"
	receiptSheet      = "Items creados"
	summarySheet      = "Resumen"

	// templateRows is how many rows carry drop-down validation.
	templateRows = DefaultMaxRows + 1
)

// Header fill colours by column group.
var groupFill = map[ColumnGroup]string{
	GroupRequired:  "C8102E",
	GroupOptional:  "4A4A4A",
	GroupTechnical: "1F4E78",
}

var groupLabel = map[ColumnGroup]string{
	GroupRequired:  "Obligatorio",
	GroupOptional:  "Opcional",
	GroupTechnical: "Técnico (solo sistemas)",
}

// BuildTemplate renders the import template: a styled header row, two
// example rows, drop-downs for fixed-list columns and an instructions sheet.
func BuildTemplate() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TemplateSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	styles := make(map[ColumnGroup]int, len(groupFill))
	for group, color := range groupFill {
		id, err := f.NewStyle(&excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		})
		if err != nil {
			return nil, fmt.Errorf("create header style: %w", err)
		}
		styles[group] = id
	}

	for i, col := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(TemplateSheet, cell, col.Name); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(TemplateSheet, cell, cell, styles[col.Group]); err != nil {
			return nil, err
		}

		colName, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(TemplateSheet, colName, colName, col.Width); err != nil {
			return nil, err
		}

		for ex := 0; ex < len(col.Examples); ex++ {
			if col.Examples[ex] == "" {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(i+1, ex+2)
			if err := f.SetCellStr(TemplateSheet, cell, col.Examples[ex]); err != nil {
				return nil, err
			}
		}

		if list := dropList(col.Name); list != nil {
			dv := excelize.NewDataValidation(true)
			dv.Sqref = fmt.Sprintf("%s2:%s%d", colName, colName, templateRows)
			if err := dv.SetDropList(list); err != nil {
				return nil, err
			}
			if err := f.AddDataValidation(TemplateSheet, dv); err != nil {
				return nil, err
			}
		}
	}

	if err := f.SetPanes(TemplateSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	if err := writeInstructions(f); err != nil {
		return nil, err
	}

	idx, _ := f.GetSheetIndex(TemplateSheet)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write template: %w", err)
	}
	return buf.Bytes(), nil
}

// dropList returns the allowed values for fixed-list columns.
func dropList(column string) []string {
	switch column {
	case ColCategory:
		return CategoryCodes()
	case ColStatus:
		return ItemStatuses
	case ColLeasing:
		return []string{"SI", "NO"}
	case ColRAMType:
		return ramTypes
	case ColStorageType:
		return storageTypes
	default:
		return nil
	}
}

func writeInstructions(f *excelize.File) error {
	if _, err := f.NewSheet(instructionsSheet); err != nil {
		return fmt.Errorf("create instructions sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	rows := [][]any{
		{"Columna", "Grupo", "Tipo", "Descripción"},
	}
	for _, col := range Columns {
		rows = append(rows, []any{col.Name, groupLabel[col.Group], fieldTypeName(col.Type), col.Help})
	}
	rows = append(rows,
		[]any{},
		[]any{"Notas"},
		[]any{fmt.Sprintf("Máximo %d filas de datos por archivo.", DefaultMaxRows)},
		[]any{"La primera fila debe contener los encabezados tal como aparecen en la plantilla."},
		[]any{"codigo_utp vacío o PENDIENTE se registra como PENDING."},
	)

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(instructionsSheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(instructionsSheet, "A1", "D1", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(instructionsSheet, "A", "A", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(instructionsSheet, "B", "C", 22); err != nil {
		return err
	}
	return f.SetColWidth(instructionsSheet, "D", "D", 60)
}

// ReceiptKey is the archive key of a commit receipt.
func ReceiptKey(year int, token string) string {
	return fmt.Sprintf("receipts/%d/%s.xlsx", year, token)
}

// ReceiptInfo describes the import a receipt documents.
type ReceiptInfo struct {
	FileName    string
	Requester   Requester
	CommittedAt time.Time
}

// BuildReceipt renders the list of items created by a commit.
func BuildReceipt(result *CommitResult, info ReceiptInfo) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", receiptSheet); err != nil {
		return nil, err
	}

	sw, err := f.NewStreamWriter(receiptSheet)
	if err != nil {
		return nil, fmt.Errorf("open receipt writer: %w", err)
	}

	header := []any{"fila", "codigo", "serie", "codigo_utp", "nombre", "area"}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, err
	}
	for i, item := range result.Items {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{item.RowNumber, item.Code, item.Serial, item.Tag, item.Name, item.Category}
		if err := sw.SetRow(cell, row); err != nil {
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush receipt: %w", err)
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	summary := [][]any{
		{"Archivo", info.FileName},
		{"Registrado por", info.Requester.Name},
		{"Usuario", info.Requester.ID},
		{"Fecha", info.CommittedAt.Format(time.RFC3339)},
		{"Lote", result.BatchCode},
		{"Items creados", result.CreatedCount},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write receipt: %w", err)
	}
	return buf.Bytes(), nil
}

// archiveReceipt stores the receipt of a successful commit. Failures are
// logged and never undo the commit.
func (s *Service) archiveReceipt(ctx context.Context, req Requester, src commitSource, result *CommitResult) {
	if s.archive == nil {
		return
	}
	log := logging.FromContext(ctx)

	now := s.now()
	data, err := BuildReceipt(result, ReceiptInfo{
		FileName:    src.fileName,
		Requester:   req,
		CommittedAt: now,
	})
	if err != nil {
		log.Error("failed to build import receipt", "token", src.token, "error", err)
		return
	}

	key := ReceiptKey(now.Year(), src.token)
	if err := s.archive.Put(ctx, key, data, XLSXContentType); err != nil {
		log.Error("failed to archive import receipt", "key", key, "error", err)
		return
	}
	result.ReceiptKey = key
}
