package logging

import "log/slog"

// Common field names for consistent logging across the import engine.
const (
	FieldService  = "service"
	FieldSource   = "source_id"
	FieldSrcType  = "source_type"
	FieldIP       = "ip"
	FieldMethod   = "method"
	FieldPath     = "path"
	FieldStatus   = "status"
	FieldDuration = "duration_ms"
	FieldError    = "error"
	FieldImportID = "import_id"
	FieldRecords  = "records"
	FieldTable    = "table"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Source returns a slog attribute for the import source identifier.
func Source(id string) slog.Attr {
	return slog.String(FieldSource, id)
}

// SourceType returns a slog attribute for the adapter type.
func SourceType(t string) slog.Attr {
	return slog.String(FieldSrcType, t)
}

// IP returns a slog attribute for the IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// ImportID returns a slog attribute for an import run ID.
func ImportID(id string) slog.Attr {
	return slog.String(FieldImportID, id)
}

// Records returns a slog attribute for a record count.
func Records(n int) slog.Attr {
	return slog.Int(FieldRecords, n)
}

// Table returns a slog attribute for a target table name.
func Table(name string) slog.Attr {
	return slog.String(FieldTable, name)
}
