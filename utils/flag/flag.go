/*
flag Package set up cli flags shared across services

Usage:

	Flags listed in this package are shared across boundaries and service-agnostic
	For service dependent flags please define in their respective package, then
	call ParseFlags once from main.
*/

package flag

import (
	"flag"
)

const (
	Ingest     = "ingest"
	Normalize  = "normalize"
	Webhook    = "webhook"
	ExportAPI  = "export_server"
	DefaultApp = "postmux"
)

var (
	ServiceName *string
)

func init() {
	ServiceName = flag.String("service", DefaultApp, "'ingest', 'normalize', 'webhook' or 'export_server'")
}

// ParseFlags must be called from main only. Calling it in init would swallow
// the flags registered by `go test`.
func ParseFlags() {
	flag.Parse()
}
