package invoice

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Row is one invoice line lifted out of a billing-system CSV export, with
// dates, amount and status already normalized.
type Row struct {
	Line          int
	InvoiceNumber string
	ClientName    string
	ServiceID     string
	IssueDate     time.Time
	DueDate       time.Time
	Amount        float64
	Status        string
	RawStatus     string
	InReview      bool
}

// Parser reads tab- or comma-delimited billing exports whose column headers
// drift release-to-release. Strict controls the date policy: lenient (the
// default) falls malformed dates back to now, strict rejects the row.
type Parser struct {
	Strict bool
}

// Logical field names resolved against the header.
const (
	fieldStatus        = "status"
	fieldServiceID     = "serviceId"
	fieldInvoiceNumber = "invoiceNumber"
	fieldClientName    = "clientName"
	fieldIssueDate     = "issueDate"
	fieldDueDate       = "dueDate"
	fieldAmount        = "amount"
)

// columnRule maps one logical field to its exact header candidates and, as a
// fallback, case-insensitive substring keywords.
type columnRule struct {
	field    string
	exact    []string
	keywords []string
}

// Rule order matters: dueDate must claim "fecha vencimiento" before the
// issueDate keywords get a chance at the bare "fecha".
var columnRules = []columnRule{
	{fieldStatus, []string{"estado", "status"}, []string{"estado", "status", "situación", "situacion"}},
	{fieldServiceID, []string{"id servicio", "id de servicio", "service id", "id cliente"}, []string{"servicio", "service", "id cliente", "client id"}},
	{fieldInvoiceNumber, []string{"factura", "número", "numero", "invoice"}, []string{"factura", "invoice", "número", "numero", "folio"}},
	{fieldClientName, []string{"cliente", "nombre", "client"}, []string{"nombre", "name", "razón social", "razon social", "cliente"}},
	{fieldDueDate, []string{"vencimiento", "fecha vencimiento", "due date"}, []string{"vencimiento", "due"}},
	{fieldIssueDate, []string{"fecha", "fecha emisión", "fecha emision", "issue date"}, []string{"emisión", "emision", "issue", "fecha", "date"}},
	{fieldAmount, []string{"total", "monto", "amount"}, []string{"total", "monto", "importe", "amount"}},
}

// Status synonyms the billing systems use for a settled invoice.
var paidSynonyms = []string{"pagada", "pagado", "paid", "pago", "completado", "completed"}

// detectDelimiter picks tab when the first line contains one, comma otherwise.
func detectDelimiter(data string) rune {
	firstLine := data
	if i := strings.IndexByte(data, '\n'); i >= 0 {
		firstLine = data[:i]
	}
	if strings.ContainsRune(firstLine, '\t') {
		return '\t'
	}
	return ','
}

// resolveColumns maps logical fields to header indexes, once per file. Exact
// matches win; otherwise the first header containing one of the keywords is
// taken. Unresolved fields stay out of the map and read as empty cells.
func resolveColumns(header []string) map[string]int {
	lowered := make([]string, len(header))
	for i, h := range header {
		lowered[i] = strings.ToLower(strings.TrimSpace(h))
	}

	columns := make(map[string]int, len(columnRules))
	taken := make(map[int]bool, len(columnRules))

	for _, rule := range columnRules {
		idx := -1
		for _, candidate := range rule.exact {
			for i, h := range lowered {
				if !taken[i] && h == candidate {
					idx = i
					break
				}
			}
			if idx >= 0 {
				break
			}
		}
		if idx < 0 {
			for _, kw := range rule.keywords {
				for i, h := range lowered {
					if !taken[i] && strings.Contains(h, kw) {
						idx = i
						break
					}
				}
				if idx >= 0 {
					break
				}
			}
		}
		if idx >= 0 {
			columns[rule.field] = idx
			taken[idx] = true
		}
	}
	return columns
}

func cell(record []string, columns map[string]int, field string) string {
	idx, ok := columns[field]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// NormalizeStatus classifies free-text invoice state as PAID or PENDING. The
// "en revisión" marker is surfaced separately but still resolves to PENDING.
func NormalizeStatus(raw string) (status string, inReview bool) {
	folded := strings.ToLower(strings.TrimSpace(raw))
	for _, syn := range paidSynonyms {
		if strings.Contains(folded, syn) {
			return StatusPaid, false
		}
	}
	inReview = strings.Contains(folded, "en revisión") || strings.Contains(folded, "en revision")
	return StatusPending, inReview
}

// parseAmount strips currency symbols and thousands separators before the
// numeric conversion. Blank or unparseable amounts read as zero.
func parseAmount(raw string) float64 {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "", " ", "").Replace(raw)
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseDate expects DD/MM/YYYY, optionally followed by a time component which
// is discarded. In lenient mode malformed or empty dates fall back to now.
func (p *Parser) parseDate(raw string) (time.Time, error) {
	datePart := strings.TrimSpace(raw)
	if i := strings.IndexByte(datePart, ' '); i >= 0 {
		datePart = datePart[:i]
	}
	t, err := time.Parse("02/01/2006", datePart)
	if err != nil {
		if p.Strict {
			return time.Time{}, fmt.Errorf("invalid date %q", raw)
		}
		return time.Now(), nil
	}
	return t, nil
}

// Parse reads the whole export and returns the valid rows plus per-row error
// strings for the rejected ones. Only a missing/unreadable header is fatal.
func (p *Parser) Parse(data []byte) ([]Row, []string, error) {
	text := string(data)
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = detectDelimiter(text)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	columns := resolveColumns(header)
	if _, ok := columns[fieldServiceID]; !ok {
		return nil, nil, fmt.Errorf("could not resolve a service ID column in header %v", header)
	}

	var (
		rows    []Row
		rowErrs []string
	)
	line := 1
	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rowErrs = append(rowErrs, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if isBlankRecord(record) {
			continue
		}

		invoiceNumber := cell(record, columns, fieldInvoiceNumber)
		serviceID := cell(record, columns, fieldServiceID)
		if serviceID == "" {
			ref := invoiceNumber
			if ref == "" {
				ref = strconv.Itoa(line)
			}
			rowErrs = append(rowErrs, fmt.Sprintf("Invoice %s missing service ID", ref))
			continue
		}

		issueDate, err := p.parseDate(cell(record, columns, fieldIssueDate))
		if err != nil {
			rowErrs = append(rowErrs, fmt.Sprintf("Invoice %s: %v", invoiceNumber, err))
			continue
		}
		dueDate, err := p.parseDate(cell(record, columns, fieldDueDate))
		if err != nil {
			rowErrs = append(rowErrs, fmt.Sprintf("Invoice %s: %v", invoiceNumber, err))
			continue
		}

		rawStatus := cell(record, columns, fieldStatus)
		status, inReview := NormalizeStatus(rawStatus)

		rows = append(rows, Row{
			Line:          line,
			InvoiceNumber: invoiceNumber,
			ClientName:    cell(record, columns, fieldClientName),
			ServiceID:     serviceID,
			IssueDate:     issueDate,
			DueDate:       dueDate,
			Amount:        parseAmount(cell(record, columns, fieldAmount)),
			Status:        status,
			RawStatus:     rawStatus,
			InReview:      inReview,
		})
	}
	return rows, rowErrs, nil
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
