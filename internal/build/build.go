// Package build provides build information that is linked into the application. Other
// packages within this project can use this information in logs etc..
package build

var (
	// Version is the build version of the application.
	Version = "dev"

	// Commit is the commit hash the application was built from.
	Commit = "none"

	// Date is the date when the application was built.
	Date = "unknown"

	// ProjectName is used as the namespace for metrics and the prefix for tracers.
	ProjectName = "dxa"
)
