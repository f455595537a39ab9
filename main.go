// =============================================================================
// Warranty Orders - Main Entry Point
// =============================================================================
//
// USAGE:
//   warranty process       - Process all files in the input directory
//   warranty validate      - Validate files without writing outputs
//   warranty migrate       - Apply the store schema
//   warranty verify        - Compare the stored order count
//   warranty serve         - Start the HTTP upload API
//   warranty version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Pipeline, reports, stores and server
//   - pkg/       : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/warranty-orders/cmd"
)

func main() {
	cmd.Execute()
}
