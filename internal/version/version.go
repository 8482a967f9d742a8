// ABOUTME: Version information for pcmplay
// ABOUTME: Product, manufacturer and release strings shown by the CLI
package version

const (
	// Version is the release version.
	Version = "0.3.0"

	// Product is the product name.
	Product = "pcmplay"

	// Manufacturer identifies who builds the software.
	Manufacturer = "Resonate"
)
