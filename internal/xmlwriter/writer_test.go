package xmlwriter

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/warranty-orders/internal/types"
)

func sampleRecord() types.NormalizedRecord {
	manufacturer := "MWM & Cia"
	return types.NormalizedRecord{
		SourceRow:           2,
		OrderNumber:         "OS-1",
		OrderDate:           time.Date(2025, time.January, 21, 0, 0, 0, 0, time.UTC),
		Status:              "G",
		EngineManufacturer:  &manufacturer,
		PartsTotal:          decimal.NewFromInt(50),
		OriginalPartsValue:  decimal.NewFromInt(100),
		LaborTotal:          decimal.NewFromInt(50),
		GrandTotal:          decimal.NewFromInt(100),
		CalculationVerified: true,
	}
}

func TestGenerate(t *testing.T) {
	opts := DefaultGenerateOptions()
	opts.Source = "orders.xlsx"

	data, err := GenerateWithOptions([]types.NormalizedRecord{sampleRecord()}, opts)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, out, `<serviceOrders source="orders.xlsx" count="1">`)
	assert.Contains(t, out, `  <serviceOrder n="1">`)
	assert.Contains(t, out, `<orderDate>2025-01-21</orderDate>`)
	assert.Contains(t, out, `<engineManufacturer>MWM &amp; Cia</engineManufacturer>`)
	assert.Contains(t, out, `<defectDescription/>`)
	assert.Contains(t, out, `<totals verified="true">`)
	assert.Contains(t, out, `<parts>50.00</parts>`)
	assert.Contains(t, out, `<originalParts>100.00</originalParts>`)
}

func TestGenerate_WellFormed(t *testing.T) {
	data, err := Generate([]types.NormalizedRecord{sampleRecord(), sampleRecord()})
	require.NoError(t, err)

	var doc struct {
		XMLName xml.Name `xml:"serviceOrders"`
		Count   int      `xml:"count,attr"`
		Orders  []struct {
			N      int    `xml:"n,attr"`
			Number string `xml:"orderNumber"`
			Grand  string `xml:"totals>grand"`
		} `xml:"serviceOrder"`
	}
	require.NoError(t, xml.Unmarshal(data, &doc))
	assert.Equal(t, 2, doc.Count)
	require.Len(t, doc.Orders, 2)
	assert.Equal(t, 2, doc.Orders[1].N)
	assert.Equal(t, "OS-1", doc.Orders[0].Number)
	assert.Equal(t, "100.00", doc.Orders[0].Grand)
}

func TestGenerate_Empty(t *testing.T) {
	opts := DefaultGenerateOptions()
	opts.IncludeXMLDeclaration = false

	data, err := GenerateWithOptions(nil, opts)
	require.NoError(t, err)
	assert.Equal(t, "<serviceOrders count=\"0\"/>\n", string(data))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.xml")
	require.NoError(t, WriteFile(path, []types.NormalizedRecord{sampleRecord()}, DefaultGenerateOptions()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<orderNumber>OS-1</orderNumber>")
}
