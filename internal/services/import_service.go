package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"gofreight/internal/models"
	"gofreight/internal/repositories/interfaces"
	"gofreight/pkg/logger"
)

// ErrUnsupportedFile is returned before parsing when the upload does not
// look like a spreadsheet export we accept.
var ErrUnsupportedFile = errors.New("unsupported file type: only .csv files are accepted")

// importDateLayouts are tried in order when coercing validity cells.
var importDateLayouts = []string{"2006-01-02", "02/01/2006", "2006/01/02"}

// columnAliases maps each logical field to the header spellings seen in
// operator spreadsheets over time. Resolution is case-insensitive and
// happens once per column, not per cell.
var columnAliases = map[string][]string{
	"freight_type":       {"freight_type", "freighttype", "freight type"},
	"origin":             {"origin", "pol", "port_of_loading", "from"},
	"destination":        {"destination", "pod", "port_of_discharge", "to"},
	"carrier":            {"carrier", "liner", "airline", "shipping_line"},
	"category":           {"category"},
	"route":              {"route", "routing"},
	"routing_type":       {"routing_type", "routingtype"},
	"transit_time":       {"transit_time", "transittime", "transit"},
	"transshipment_time": {"transshipment_time", "transshipmenttime", "tst"},
	"frequency":          {"frequency"},
	"surcharges":         {"surcharges", "surcharge"},
	"note":               {"note", "notes"},
	"remark":             {"remark", "remarks"},
	"valid_until":        {"valid_until", "validuntil", "validity", "valid until"},
	"minimum_charge":     {"minimum_charge", "min_charge", "minimum"},
	"under_45":           {"under_45", "under45", "-45"},
	"under_45_alt":       {"under_45_alt", "under45alt", "-45_alt"},
	"over_45":            {"over_45", "over45", "+45"},
	"over_100":           {"over_100", "over100", "+100"},
	"over_300":           {"over_300", "over300", "+300"},
	"over_500":           {"over_500", "over500", "+500"},
	"over_1000":          {"over_1000", "over1000", "+1000"},
	"rate_20ft":          {"rate_20ft", "rate20ft", "20ft", "20gp"},
	"rate_40ft":          {"rate_40ft", "rate40ft", "40ft", "40gp"},
	"rate_40ft_hq":       {"rate_40ft_hq", "rate40fthq", "40hq", "40hc"},
	"lcl_rate":           {"lcl_rate", "lclrate", "lcl"},
}

// templateColumns is the full, fixed column set of the reference file, in
// the order operators see it.
var templateColumns = []string{
	"freight_type", "origin", "destination", "carrier", "route",
	"routing_type", "transit_time", "transshipment_time", "frequency",
	"surcharges", "note", "remark", "valid_until",
	"minimum_charge", "under_45", "under_45_alt", "over_45", "over_100",
	"over_300", "over_500", "over_1000",
	"rate_20ft", "rate_40ft", "rate_40ft_hq", "lcl_rate",
}

// ImportResult reports a completed bulk import. The submission is a
// single call; there is no partial-commit visibility on failure.
type ImportResult struct {
	BatchID  string `json:"batch_id"`
	Category string `json:"category"`
	Rows     int    `json:"rows"`
	Created  int    `json:"created"`
}

type ImportService interface {
	Import(ctx context.Context, filename string, content []byte, category string) (*ImportResult, error)
	Template() ([]byte, error)
}

type importService struct {
	rateRepo interfaces.RateRepository
	logger   *logger.Logger
}

func NewImportService(rateRepo interfaces.RateRepository, log *logger.Logger) ImportService {
	return &importService{
		rateRepo: rateRepo,
		logger:   log,
	}
}

// Import converts an uploaded tabular file into a batch of rate records
// tagged with one carrier category and submits them in one bulk call.
// Rows are not validated individually; a store failure fails the whole
// pipeline.
func (s *importService) Import(ctx context.Context, filename string, content []byte, category string) (*ImportResult, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return nil, ErrUnsupportedFile
	}

	rows, err := s.parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse import file: %w", err)
	}

	inputs := make([]*models.RateRecordInput, 0, len(rows))
	for _, row := range rows {
		inputs = append(inputs, s.inputFromRow(row, category))
	}

	batchID := uuid.NewString()
	created, err := s.rateRepo.CreateBulk(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("bulk import failed: %w", err)
	}

	if s.logger != nil {
		s.logger.WithFields(map[string]interface{}{
			"batch_id": batchID,
			"category": category,
			"rows":     len(inputs),
		}).Info("Imported rate batch")
	}

	return &ImportResult{
		BatchID:  batchID,
		Category: category,
		Rows:     len(inputs),
		Created:  len(created),
	}, nil
}

// importRow maps canonical field names to trimmed cell values. Missing
// columns simply have no entry.
type importRow map[string]string

func (s *importService) parse(content []byte) ([]importRow, error) {
	r := csv.NewReader(bufio.NewReader(bytes.NewReader(stripBOM(content))))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, err
	}

	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	// Resolve every logical column against the alias table up front.
	columns := map[string]int{}
	for canonical, aliases := range columnAliases {
		for _, alias := range aliases {
			if i, ok := idx[alias]; ok {
				columns[canonical] = i
				break
			}
		}
	}

	var rows []importRow
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		row := importRow{}
		empty := true
		for canonical, i := range columns {
			if i >= len(rec) {
				continue
			}
			value := strings.TrimSpace(rec[i])
			if value == "" {
				continue
			}
			row[canonical] = value
			empty = false
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// inputFromRow builds the store input for one row. The operator-selected
// category always wins over whatever the sheet says, and sea rows get it
// as their carrier too. All rate columns go into the payload blob without
// variant filtering; the split happens when the record is read back.
func (s *importService) inputFromRow(row importRow, category string) *models.RateRecordInput {
	freightType := models.FreightType(row["freight_type"])

	in := &models.RateRecordInput{
		FreightType:       freightType,
		Origin:            row["origin"],
		Destination:       row["destination"],
		Carrier:           row["carrier"],
		Category:          category,
		Route:             row["route"],
		RoutingType:       models.RoutingType(strings.ToUpper(row["routing_type"])),
		TransitTime:       row["transit_time"],
		TransshipmentTime: row["transshipment_time"],
		Frequency:         row["frequency"],
		Surcharges:        row["surcharges"],
		Note:              row["note"],
		Remark:            row["remark"],
		ValidUntil:        parseImportDate(row["valid_until"]),
	}

	if freightType.IsSea() {
		in.Carrier = category
	}

	flat := models.FlatRates{
		MinimumCharge: parseImportRate(row["minimum_charge"]),
		Under45:       parseImportRate(row["under_45"]),
		Under45Alt:    parseImportRate(row["under_45_alt"]),
		Over45:        parseImportRate(row["over_45"]),
		Over100:       parseImportRate(row["over_100"]),
		Over300:       parseImportRate(row["over_300"]),
		Over500:       parseImportRate(row["over_500"]),
		Over1000:      parseImportRate(row["over_1000"]),
		Rate20ft:      parseImportRate(row["rate_20ft"]),
		Rate40ft:      parseImportRate(row["rate_40ft"]),
		Rate40ftHQ:    parseImportRate(row["rate_40ft_hq"]),
		LCLRate:       parseImportRate(row["lcl_rate"]),
	}
	if blob, err := flat.Encode(); err == nil {
		in.RawPayload = blob
	}

	return in
}

// Template produces the reference file operators download to match the
// expected headers: the full column set plus one example row per freight
// type.
func (s *importService) Template() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(templateColumns); err != nil {
		return nil, err
	}

	validUntil := time.Now().AddDate(0, 3, 0).Format("2006-01-02")
	for _, t := range models.AllFreightTypes() {
		row := map[string]string{
			"freight_type": string(t),
			"origin":       "CMB",
			"destination":  "SIN",
			"carrier":      "EXAMPLE LINE",
			"route":        "CMB-SIN",
			"routing_type": string(models.RoutingTypeDirect),
			"transit_time": "4 days",
			"frequency":    "Weekly",
			"note":         "Example row",
			"valid_until":  validUntil,
		}
		switch {
		case t.IsAir():
			row["carrier"] = "EXAMPLE AIR"
			row["remark"] = "Example remark"
			row["minimum_charge"] = "45"
			row["under_45"] = "5.10"
			row["over_45"] = "4.80"
			row["over_100"] = "4.50"
		case t.IsFCL():
			row["rate_20ft"] = "1200"
			row["rate_40ft"] = "1900"
			row["rate_40ft_hq"] = "1950"
		case t.IsLCL():
			row["lcl_rate"] = "85"
		}

		rec := make([]string, len(templateColumns))
		for i, col := range templateColumns {
			rec[i] = row[col]
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func stripBOM(b []byte) []byte {
	bom := []byte{0xEF, 0xBB, 0xBF}
	if len(b) >= 3 && bytes.Equal(b[:3], bom) {
		return b[3:]
	}
	return b
}

func parseImportRate(cell string) *float64 {
	cell = strings.ReplaceAll(strings.TrimSpace(cell), ",", "")
	if cell == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseImportDate(cell string) *time.Time {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	for _, layout := range importDateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return &t
		}
	}
	return nil
}
