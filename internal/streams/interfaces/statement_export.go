package interfaces

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	streamsapp "paystream-cloud/internal/streams/application"
	streams "paystream-cloud/internal/streams/domain"
)

// BuildStatementCSV renders a stream statement as CSV: a summary block
// followed by the transition history.
func BuildStatementCSV(view *streamsapp.StreamView, events []streams.StreamEvent) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	summary := [][]string{
		{"stream_id", view.ID},
		{"tenant_id", view.TenantID},
		{"sender_account_id", view.SenderAccountID},
		{"receiver_account_id", view.ReceiverAccountID},
		{"status", view.Status},
		{"flow_rate_per_month", formatAmount(view.FlowRatePerMonth)},
		{"funded_amount", formatAmount(view.FundedAmount)},
		{"buffer_amount", formatAmount(view.BufferAmount)},
		{"total_streamed", formatAmount(view.TotalStreamed)},
		{"total_withdrawn", formatAmount(view.TotalWithdrawn)},
		{"available", formatAmount(view.Available)},
		{"runway_seconds", strconv.FormatInt(view.RunwaySeconds, 10)},
		{"health", view.Health},
		{"started_at", view.StartedAt.Format(time.RFC3339)},
	}
	for _, row := range summary {
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}

	if err := writer.Write([]string{}); err != nil {
		return nil, err
	}
	if err := writer.Write([]string{"event_id", "type", "actor", "created_at"}); err != nil {
		return nil, err
	}
	for _, event := range events {
		if err := writer.Write([]string{event.ID, event.Type, event.Actor, event.CreatedAt.Format(time.RFC3339)}); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStatementPDF renders a minimal PDF statement for a stream.
func BuildStatementPDF(view *streamsapp.StreamView, events []streams.StreamEvent) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Stream Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Stream: %s", view.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", view.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Sender: %s", view.SenderAccountID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Receiver: %s", view.ReceiverAccountID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Started: %s", view.StartedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	if view.CancelledAt != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Cancelled: %s", view.CancelledAt.Format(time.RFC3339)))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("Flow Rate (monthly): %s", formatAmount(view.FlowRatePerMonth)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Funded: %s", formatAmount(view.FundedAmount)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Streamed: %s", formatAmount(view.TotalStreamed)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Withdrawn: %s", formatAmount(view.TotalWithdrawn)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Available: %s", formatAmount(view.Available)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Runway: %ds (%s)", view.RunwaySeconds, view.Health))
	pdf.Ln(8)

	// Transition history
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Transition", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Actor", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "At", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, event := range events {
		pdf.CellFormat(40, 6, event.Type, "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, event.Actor, "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, event.CreatedAt.Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStatementXLSX renders a minimal XLSX statement for a stream.
func BuildStatementXLSX(view *streamsapp.StreamView, events []streams.StreamEvent) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	eventsSheet := "events"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(eventsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Stream Statement")
	_ = f.SetCellValue(summarySheet, "A3", "Stream")
	_ = f.SetCellValue(summarySheet, "B3", view.ID)
	_ = f.SetCellValue(summarySheet, "A4", "Status")
	_ = f.SetCellValue(summarySheet, "B4", view.Status)
	_ = f.SetCellValue(summarySheet, "A5", "Sender")
	_ = f.SetCellValue(summarySheet, "B5", view.SenderAccountID)
	_ = f.SetCellValue(summarySheet, "A6", "Receiver")
	_ = f.SetCellValue(summarySheet, "B6", view.ReceiverAccountID)
	_ = f.SetCellValue(summarySheet, "A7", "Flow Rate (monthly)")
	_ = f.SetCellValue(summarySheet, "B7", view.FlowRatePerMonth)
	_ = f.SetCellValue(summarySheet, "A8", "Funded")
	_ = f.SetCellValue(summarySheet, "B8", view.FundedAmount)
	_ = f.SetCellValue(summarySheet, "A9", "Streamed")
	_ = f.SetCellValue(summarySheet, "B9", view.TotalStreamed)
	_ = f.SetCellValue(summarySheet, "A10", "Withdrawn")
	_ = f.SetCellValue(summarySheet, "B10", view.TotalWithdrawn)
	_ = f.SetCellValue(summarySheet, "A11", "Available")
	_ = f.SetCellValue(summarySheet, "B11", view.Available)
	_ = f.SetCellValue(summarySheet, "A12", "Runway (s)")
	_ = f.SetCellValue(summarySheet, "B12", view.RunwaySeconds)
	_ = f.SetCellValue(summarySheet, "A13", "Health")
	_ = f.SetCellValue(summarySheet, "B13", view.Health)

	_ = f.SetCellValue(eventsSheet, "A1", "Transition")
	_ = f.SetCellValue(eventsSheet, "B1", "Actor")
	_ = f.SetCellValue(eventsSheet, "C1", "At")
	for i, event := range events {
		row := i + 2
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("A%d", row), event.Type)
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("B%d", row), event.Actor)
		_ = f.SetCellValue(eventsSheet, fmt.Sprintf("C%d", row), event.CreatedAt.Format(time.RFC3339))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatAmount(value float64) string {
	return strconv.FormatFloat(value, 'f', 6, 64)
}
