package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gofreight/internal/models"
)

func TestImportRejectsUnsupportedFiles(t *testing.T) {
	s := NewImportService(newFakeRateRepo(), nil)

	for _, filename := range []string{"rates.xlsx", "rates.xls", "rates", "rates.csv.pdf"} {
		_, err := s.Import(context.Background(), filename, []byte("a,b\n"), "MAERSK")
		assert.ErrorIs(t, err, ErrUnsupportedFile, filename)
	}
}

func TestImportAcceptsUppercaseExtension(t *testing.T) {
	repo := newFakeRateRepo()
	s := NewImportService(repo, nil)

	content := []byte("freight_type,origin,destination\nsea-import-fcl,CMB,SIN\n")
	result, err := s.Import(context.Background(), "RATES.CSV", content, "MAERSK")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rows)
}

func TestImportResolvesHeaderAliases(t *testing.T) {
	repo := newFakeRateRepo()
	s := NewImportService(repo, nil)

	content := []byte("Freight_Type,POL,POD,Liner,+45,20GP,LCL,Validity,Notes\n" +
		"air-import,CMB,SIN,CX,4.80,,,2026-12-31,spot\n" +
		"sea-import-fcl,CMB,SIN,EVERGREEN,,1200,,2026-12-31,gri\n" +
		"sea-export-lcl,CMB,SIN,,,,85,31/12/2026,consol\n")

	result, err := s.Import(context.Background(), "rates.csv", content, "MAERSK")
	require.NoError(t, err)
	assert.NotEmpty(t, result.BatchID)
	assert.Equal(t, "MAERSK", result.Category)
	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, 3, result.Created)

	require.Len(t, repo.bulkInputs, 3)
	air, fcl, lcl := repo.bulkInputs[0], repo.bulkInputs[1], repo.bulkInputs[2]

	assert.Equal(t, models.FreightTypeAirImport, air.FreightType)
	assert.Equal(t, "CMB", air.Origin)
	assert.Equal(t, "SIN", air.Destination)
	assert.Equal(t, "CX", air.Carrier)
	assert.Equal(t, "spot", air.Note)
	require.NotNil(t, air.ValidUntil)
	assert.Equal(t, "2026-12-31", air.ValidUntil.Format("2006-01-02"))

	var flat models.FlatRates
	require.NoError(t, json.Unmarshal([]byte(air.RawPayload), &flat))
	require.NotNil(t, flat.Over45)
	assert.Equal(t, 4.8, *flat.Over45)

	require.NoError(t, json.Unmarshal([]byte(fcl.RawPayload), &flat))
	require.NotNil(t, flat.Rate20ft)
	assert.Equal(t, 1200.0, *flat.Rate20ft)

	require.NoError(t, json.Unmarshal([]byte(lcl.RawPayload), &flat))
	require.NotNil(t, flat.LCLRate)
	assert.Equal(t, 85.0, *flat.LCLRate)
	require.NotNil(t, lcl.ValidUntil)
	assert.Equal(t, "2026-12-31", lcl.ValidUntil.Format("2006-01-02"))
}

func TestImportCategoryOverridesSheetAndSeaCarrier(t *testing.T) {
	repo := newFakeRateRepo()
	s := NewImportService(repo, nil)

	content := []byte("freight_type,origin,destination,carrier,category\n" +
		"sea-import-fcl,CMB,SIN,SOME LINE,SHEET CATEGORY\n" +
		"air-import,CMB,SIN,CX,SHEET CATEGORY\n")

	_, err := s.Import(context.Background(), "rates.csv", content, "MAERSK")
	require.NoError(t, err)

	require.Len(t, repo.bulkInputs, 2)
	sea, air := repo.bulkInputs[0], repo.bulkInputs[1]

	// The operator's category wins over the sheet for every row, and sea
	// rows take it as their carrier too.
	assert.Equal(t, "MAERSK", sea.Category)
	assert.Equal(t, "MAERSK", sea.Carrier)
	assert.Equal(t, "MAERSK", air.Category)
	assert.Equal(t, "CX", air.Carrier)
}

func TestImportSkipsEmptyRows(t *testing.T) {
	repo := newFakeRateRepo()
	s := NewImportService(repo, nil)

	content := []byte("freight_type,origin,destination\n" +
		"sea-import-fcl,CMB,SIN\n" +
		",,\n" +
		"   ,  ,\n" +
		"sea-import-lcl,CMB,SIN\n")

	result, err := s.Import(context.Background(), "rates.csv", content, "MAERSK")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)
}

func TestImportStripsByteOrderMark(t *testing.T) {
	repo := newFakeRateRepo()
	s := NewImportService(repo, nil)

	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("origin,destination\nCMB,SIN\n")...)
	_, err := s.Import(context.Background(), "rates.csv", content, "MAERSK")
	require.NoError(t, err)

	require.Len(t, repo.bulkInputs, 1)
	assert.Equal(t, "CMB", repo.bulkInputs[0].Origin)
}

func TestImportNumericCoercion(t *testing.T) {
	repo := newFakeRateRepo()
	s := NewImportService(repo, nil)

	content := []byte("freight_type,origin,destination,rate_20ft,rate_40ft,rate_40ft_hq\n" +
		"sea-import-fcl,CMB,SIN,\"1,200\",n/a, 1950 \n")

	_, err := s.Import(context.Background(), "rates.csv", content, "MAERSK")
	require.NoError(t, err)

	require.Len(t, repo.bulkInputs, 1)
	var flat models.FlatRates
	require.NoError(t, json.Unmarshal([]byte(repo.bulkInputs[0].RawPayload), &flat))

	require.NotNil(t, flat.Rate20ft)
	assert.Equal(t, 1200.0, *flat.Rate20ft)
	assert.Nil(t, flat.Rate40ft)
	require.NotNil(t, flat.Rate40ftHQ)
	assert.Equal(t, 1950.0, *flat.Rate40ftHQ)
}

func TestImportRoutingTypeNormalized(t *testing.T) {
	repo := newFakeRateRepo()
	s := NewImportService(repo, nil)

	content := []byte("freight_type,origin,destination,routing_type\n" +
		"sea-import-fcl,CMB,SIN,transship\n")

	_, err := s.Import(context.Background(), "rates.csv", content, "MAERSK")
	require.NoError(t, err)
	require.Len(t, repo.bulkInputs, 1)
	assert.Equal(t, models.RoutingTypeTransship, repo.bulkInputs[0].RoutingType)
}

func TestImportBulkFailureFailsWholeBatch(t *testing.T) {
	repo := newFakeRateRepo()
	repo.bulkErr = errors.New("write concern error")
	s := NewImportService(repo, nil)

	content := []byte("freight_type,origin,destination\nsea-import-fcl,CMB,SIN\n")
	_, err := s.Import(context.Background(), "rates.csv", content, "MAERSK")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bulk import failed")
	assert.Empty(t, repo.records)
}

func TestTemplateShape(t *testing.T) {
	s := NewImportService(newFakeRateRepo(), nil)

	data, err := s.Template()
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1+len(models.AllFreightTypes()))

	header := records[0]
	assert.Equal(t, templateColumns, header)

	col := map[string]int{}
	for i, h := range header {
		col[h] = i
	}

	for i, ft := range models.AllFreightTypes() {
		row := records[i+1]
		assert.Equal(t, string(ft), row[col["freight_type"]])
		assert.NotEmpty(t, row[col["origin"]])
		assert.NotEmpty(t, row[col["note"]])

		switch {
		case ft.IsAir():
			assert.NotEmpty(t, row[col["remark"]])
			assert.NotEmpty(t, row[col["over_45"]])
			assert.Empty(t, row[col["rate_20ft"]])
		case ft.IsFCL():
			assert.NotEmpty(t, row[col["rate_20ft"]])
			assert.Empty(t, row[col["lcl_rate"]])
		case ft.IsLCL():
			assert.NotEmpty(t, row[col["lcl_rate"]])
			assert.Empty(t, row[col["rate_20ft"]])
		}
	}
}

func TestTemplateRoundTripsThroughImport(t *testing.T) {
	repo := newFakeRateRepo()
	s := NewImportService(repo, nil)

	data, err := s.Template()
	require.NoError(t, err)

	result, err := s.Import(context.Background(), "template.csv", data, "MAERSK")
	require.NoError(t, err)
	assert.Equal(t, len(models.AllFreightTypes()), result.Rows)
	assert.Equal(t, len(models.AllFreightTypes()), result.Created)
}
