package adapters

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/caseflow-systems/caseflow-import/internal/mapping"
	"github.com/caseflow-systems/caseflow-import/internal/materializer"
)

// Partner export format constants. The partner ships a fixed CSV layout, so
// the adapter can be stricter than the generic CSV path.
const (
	partnerColID        = "ID"
	partnerColCaseID    = "Lawyer Case ID"
	partnerColFirstName = "User_First_Name"
	partnerColLastName  = "User_Last_Name"
	partnerColStatus    = "Status"
)

var partnerCaseIDRe = regexp.MustCompile(`^[A-Z]{2,4}-\d{4}-\d{3,4}$`)

// partnerStatuses is the fixed status vocabulary of the partner export.
var partnerStatuses = map[string]bool{
	"new":         true,
	"open":        true,
	"in progress": true,
	"settled":     true,
	"closed":      true,
	"rejected":    true,
}

// PartnerAdapter handles the specialized partner export format. It extends
// the CSV adapter with required-column checks, per-field format validation,
// and the client/debtor contact split.
type PartnerAdapter struct {
	csv *CSVAdapter
}

func NewPartnerAdapter(suggester *mapping.Suggester) *PartnerAdapter {
	return &PartnerAdapter{csv: NewCSVAdapter(suggester)}
}

func (a *PartnerAdapter) Type() mapping.SourceType {
	return mapping.SourcePartner
}

func (a *PartnerAdapter) DetectFields(ctx context.Context, src *Source) (*DetectionResult, error) {
	header, rows, err := parseCSV(src.CSV)
	if err != nil {
		return nil, err
	}
	if err := checkPartnerColumns(header); err != nil {
		return nil, err
	}
	result := detectFromRows(rows, header)
	result.SuggestedMappings = suggestAll(result.DetectedFields, a.Type(), a.csv.suggester)
	return result, nil
}

func (a *PartnerAdapter) ProcessImport(ctx context.Context, src *Source, mappings mapping.Set, opts Options) (*Outcome, error) {
	header, rows, err := parseCSV(src.CSV)
	if err != nil {
		return nil, err
	}
	if err := checkPartnerColumns(header); err != nil {
		return nil, err
	}

	return runImport(ctx, a.Type(), rows, mappings, opts, runHooks{
		externalID: func(_ int, row map[string]string) string {
			return strings.TrimSpace(row[partnerColID])
		},
		rowCheck: validatePartnerRow,
		decorate: decoratePartnerRecord,
	})
}

// checkPartnerColumns verifies the fixed layout before any row is touched.
// A missing column is a configuration-level failure, not a row error.
func checkPartnerColumns(header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, required := range []string{partnerColID, partnerColCaseID, partnerColFirstName, partnerColLastName} {
		if !present[required] {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: partner export is missing required column(s): %s",
			ErrMalformedPayload, strings.Join(missing, ", "))
	}
	return nil
}

// validatePartnerRow applies the partner-specific field rules. The error
// texts are distinct from the generic CSV conversion errors so operators can
// tell a malformed partner export from a bad mapping.
func validatePartnerRow(_ int, row map[string]string) []string {
	var errs []string

	caseID := strings.TrimSpace(row[partnerColCaseID])
	if caseID == "" {
		errs = append(errs, fmt.Sprintf("Field '%s': Partner case ID is required", partnerColCaseID))
	} else if !partnerCaseIDRe.MatchString(caseID) {
		errs = append(errs, fmt.Sprintf("Field '%s': Invalid partner case ID format (expected AB-1234-567)", partnerColCaseID))
	}

	if status := strings.TrimSpace(row[partnerColStatus]); status != "" {
		if !partnerStatuses[strings.ToLower(status)] {
			errs = append(errs, fmt.Sprintf("Field '%s': Unknown partner status %q", partnerColStatus, status))
		}
	}

	return errs
}

// decoratePartnerRecord gives the debtor contact its own external id so the
// client and debtor rows of one export line never collide on upsert.
func decoratePartnerRecord(_ int, row map[string]string, rec *materializer.Record) {
	externalID := strings.TrimSpace(row[partnerColID])
	for i := range rec.Contacts {
		role := rec.Contacts[i].Role
		if role == "" || role == "client" {
			rec.Contacts[i].ExternalID = externalID
			continue
		}
		rec.Contacts[i].ExternalID = externalID + "-" + role
	}
	if len(rec.Case) > 0 && rec.Case["lawyer_case_id"] == nil {
		if caseID := strings.TrimSpace(row[partnerColCaseID]); caseID != "" {
			rec.Case["lawyer_case_id"] = caseID
		}
	}
}
