// =============================================================================
// Rural Credit Season Pipeline - Main Entry Point
// =============================================================================
//
// USAGE:
//   safra report    - Build the workbook, charts and logs for a season window
//   safra inspect   - Print a load summary, data quality issues and a preview
//   safra serve     - Start the HTTP API
//   safra version   - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : The pipeline (source, partition, harmonize, loader,
//                  season, filter, aggregate) and its outputs (export,
//                  render, server)
//   - pkg/       : Output file management
//
// =============================================================================

package main

import (
	"github.com/jpmelo-tech/acompanhamento-safra/cmd"
)

func main() {
	cmd.Execute()
}
