// =============================================================================
// Warranty Orders - XML Export Module
// =============================================================================
//
// This module renders accepted service orders as an XML document for systems
// that import XML instead of reading the database.
//
// XML STRUCTURE:
//
//   <serviceOrders source="orders.xlsx" count="2">
//     <serviceOrder n="1">                   <!-- 1-based, input order -->
//       <orderNumber>OS-1</orderNumber>
//       <orderDate>2025-01-21</orderDate>
//       <status>G</status>
//       <engineManufacturer>MWM</engineManufacturer>
//       <defectDescription/>                 <!-- absent optional text -->
//       <totals verified="true">
//         <parts>50.00</parts>                <!-- halved -->
//         <originalParts>100.00</originalParts>
//         <labor>50.00</labor>
//         <grand>100.00</grand>
//       </totals>
//     </serviceOrder>
//   </serviceOrders>
//
// Money is written with two decimal places.
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"strconv"

	"github.com/ginjaninja78/warranty-orders/internal/types"
)

// =============================================================================
// XML GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for XML generation.
type GenerateOptions struct {
	// Indent is the string used for indentation.
	// Default: "  " (two spaces)
	Indent string

	// IncludeXMLDeclaration determines whether to include the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool

	// RootElement names the document root.
	// Default: "serviceOrders"
	RootElement string

	// OrderElement names each order element.
	// Default: "serviceOrder"
	OrderElement string

	// Source is written as the root "source" attribute when set.
	Source string
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:                "  ",
		IncludeXMLDeclaration: true,
		RootElement:           "serviceOrders",
		OrderElement:          "serviceOrder",
	}
}

// element is a node of the rendered tree.
type element struct {
	name     string
	attrs    []xml.Attr
	value    string
	children []element
}

// =============================================================================
// XML GENERATION FUNCTIONS
// =============================================================================

// Generate renders records as an XML document with default options.
func Generate(records []types.NormalizedRecord) ([]byte, error) {
	return GenerateWithOptions(records, DefaultGenerateOptions())
}

// GenerateWithOptions renders records as an XML document.
//
// PARAMETERS:
//   - records: Accepted records, in input order.
//   - options: The generation options.
//
// RETURNS:
//   - The XML document as a byte slice.
//   - An error if a value cannot be escaped.
func GenerateWithOptions(records []types.NormalizedRecord, options GenerateOptions) ([]byte, error) {
	var buffer bytes.Buffer

	if options.IncludeXMLDeclaration {
		buffer.WriteString(xml.Header)
	}

	root := element{name: options.RootElement}
	if options.Source != "" {
		root.attrs = append(root.attrs, attr("source", options.Source))
	}
	root.attrs = append(root.attrs, attr("count", strconv.Itoa(len(records))))

	for i, rec := range records {
		root.children = append(root.children, buildOrderElement(rec, i+1, options))
	}

	if err := writeElement(&buffer, root, options.Indent, 0); err != nil {
		return nil, fmt.Errorf("failed to render XML: %w", err)
	}

	return buffer.Bytes(), nil
}

// WriteFile renders records and writes the document to path.
func WriteFile(path string, records []types.NormalizedRecord, options GenerateOptions) error {
	data, err := GenerateWithOptions(records, options)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write XML file: %w", err)
	}
	return nil
}

// buildOrderElement constructs one order element.
func buildOrderElement(rec types.NormalizedRecord, index int, options GenerateOptions) element {
	return element{
		name:  options.OrderElement,
		attrs: []xml.Attr{attr("n", strconv.Itoa(index))},
		children: []element{
			simple("orderNumber", rec.OrderNumber),
			simple("orderDate", rec.DateString()),
			simple("status", rec.Status),
			simple("engineManufacturer", types.StringOrEmpty(rec.EngineManufacturer)),
			simple("engineDescription", types.StringOrEmpty(rec.EngineDescription)),
			simple("vehicleModel", types.StringOrEmpty(rec.VehicleModel)),
			simple("defectDescription", types.StringOrEmpty(rec.DefectDescription)),
			simple("responsibleMechanic", types.StringOrEmpty(rec.ResponsibleMechanic)),
			{
				name:  "totals",
				attrs: []xml.Attr{attr("verified", strconv.FormatBool(rec.CalculationVerified))},
				children: []element{
					simple("parts", rec.PartsTotal.StringFixed(2)),
					simple("originalParts", rec.OriginalPartsValue.StringFixed(2)),
					simple("labor", rec.LaborTotal.StringFixed(2)),
					simple("grand", rec.GrandTotal.StringFixed(2)),
				},
			},
		},
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func simple(name, value string) element {
	return element{name: name, value: value}
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// writeElement writes an element and its children with indentation.
// Empty leaf elements are self-closing.
func writeElement(buffer *bytes.Buffer, el element, indent string, level int) error {
	writeIndent(buffer, indent, level)

	buffer.WriteString("<")
	buffer.WriteString(el.name)
	for _, a := range el.attrs {
		buffer.WriteString(" ")
		buffer.WriteString(a.Name.Local)
		buffer.WriteString(`="`)
		if err := xml.EscapeText(buffer, []byte(a.Value)); err != nil {
			return err
		}
		buffer.WriteString(`"`)
	}

	if len(el.children) == 0 && el.value == "" {
		buffer.WriteString("/>\n")
		return nil
	}

	buffer.WriteString(">")
	if len(el.children) == 0 {
		if err := xml.EscapeText(buffer, []byte(el.value)); err != nil {
			return err
		}
	} else {
		buffer.WriteString("\n")
		for _, child := range el.children {
			if err := writeElement(buffer, child, indent, level+1); err != nil {
				return err
			}
		}
		writeIndent(buffer, indent, level)
	}

	buffer.WriteString("</")
	buffer.WriteString(el.name)
	buffer.WriteString(">\n")
	return nil
}

func writeIndent(buffer *bytes.Buffer, indent string, level int) {
	for i := 0; i < level; i++ {
		buffer.WriteString(indent)
	}
}
