package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/ginjaninja78/warranty-orders/internal/types"
)

// ProcessedColumns is the header of the processed CSV. The names match the
// service_orders table columns.
var ProcessedColumns = []string{
	"source_row",
	"order_number",
	"order_date",
	"order_status",
	"engine_manufacturer",
	"engine_description",
	"vehicle_model",
	"raw_defect_description",
	"responsible_mechanic",
	"parts_total",
	"labor_total",
	"grand_total",
	"original_parts_value",
	"calculation_verified",
}

// WriteProcessedCSV writes the normalized records, one line per record in
// input order. Absent optional text is written as an empty cell.
func WriteProcessedCSV(path string, records []types.NormalizedRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create processed file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(ProcessedColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, rec := range records {
		if err := w.Write(processedRow(rec)); err != nil {
			return fmt.Errorf("failed to write record %s: %w", rec.OrderNumber, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush processed file: %w", err)
	}
	return file.Close()
}

func processedRow(rec types.NormalizedRecord) []string {
	return []string{
		strconv.Itoa(rec.SourceRow),
		rec.OrderNumber,
		rec.DateString(),
		rec.Status,
		types.StringOrEmpty(rec.EngineManufacturer),
		types.StringOrEmpty(rec.EngineDescription),
		types.StringOrEmpty(rec.VehicleModel),
		types.StringOrEmpty(rec.DefectDescription),
		types.StringOrEmpty(rec.ResponsibleMechanic),
		rec.PartsTotal.StringFixed(2),
		rec.LaborTotal.StringFixed(2),
		rec.GrandTotal.StringFixed(2),
		rec.OriginalPartsValue.StringFixed(2),
		strconv.FormatBool(rec.CalculationVerified),
	}
}
