package models

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type FreightType string

const (
	FreightTypeAirImport    FreightType = "air-import"
	FreightTypeAirExport    FreightType = "air-export"
	FreightTypeSeaImportFCL FreightType = "sea-import-fcl"
	FreightTypeSeaImportLCL FreightType = "sea-import-lcl"
	FreightTypeSeaExportFCL FreightType = "sea-export-fcl"
	FreightTypeSeaExportLCL FreightType = "sea-export-lcl"
)

var freightTypes = []FreightType{
	FreightTypeAirImport,
	FreightTypeAirExport,
	FreightTypeSeaImportFCL,
	FreightTypeSeaImportLCL,
	FreightTypeSeaExportFCL,
	FreightTypeSeaExportLCL,
}

// AllFreightTypes returns the closed set of supported freight types.
func AllFreightTypes() []FreightType {
	out := make([]FreightType, len(freightTypes))
	copy(out, freightTypes)
	return out
}

func ParseFreightType(s string) (FreightType, error) {
	for _, t := range freightTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown freight type: %s", s)
}

func (t FreightType) IsValid() bool {
	_, err := ParseFreightType(string(t))
	return err == nil
}

func (t FreightType) IsAir() bool {
	return t == FreightTypeAirImport || t == FreightTypeAirExport
}

func (t FreightType) IsSea() bool {
	return t.IsValid() && !t.IsAir()
}

func (t FreightType) IsFCL() bool {
	return t == FreightTypeSeaImportFCL || t == FreightTypeSeaExportFCL
}

func (t FreightType) IsLCL() bool {
	return t == FreightTypeSeaImportLCL || t == FreightTypeSeaExportLCL
}

type RoutingType string

const (
	RoutingTypeDirect    RoutingType = "DIRECT"
	RoutingTypeTransship RoutingType = "TRANSSHIP"
)

// AirRates holds the per-weight-break air freight tariff. All tiers are
// optional; a nil field means the tier is not quoted.
type AirRates struct {
	MinimumCharge *float64 `json:"minimum_charge,omitempty"`
	Under45       *float64 `json:"under_45,omitempty"`
	Under45Alt    *float64 `json:"under_45_alt,omitempty"`
	Over45        *float64 `json:"over_45,omitempty"`
	Over100       *float64 `json:"over_100,omitempty"`
	Over300       *float64 `json:"over_300,omitempty"`
	Over500       *float64 `json:"over_500,omitempty"`
	Over1000      *float64 `json:"over_1000,omitempty"`
}

func (a *AirRates) IsEmpty() bool {
	if a == nil {
		return true
	}
	return a.MinimumCharge == nil && a.Under45 == nil && a.Under45Alt == nil &&
		a.Over45 == nil && a.Over100 == nil && a.Over300 == nil &&
		a.Over500 == nil && a.Over1000 == nil
}

// FCLRates holds per-container sea freight rates.
type FCLRates struct {
	Rate20ft   *float64 `json:"rate_20ft,omitempty"`
	Rate40ft   *float64 `json:"rate_40ft,omitempty"`
	Rate40ftHQ *float64 `json:"rate_40ft_hq,omitempty"`
}

func (f *FCLRates) IsEmpty() bool {
	if f == nil {
		return true
	}
	return f.Rate20ft == nil && f.Rate40ft == nil && f.Rate40ftHQ == nil
}

// LCLRates holds the per-volume sea freight rate.
type LCLRates struct {
	LCLRate *float64 `json:"lcl_rate,omitempty"`
}

func (l *LCLRates) IsEmpty() bool {
	return l == nil || l.LCLRate == nil
}

// RatePayload is the variant part of a rate record. Exactly one arm is
// expected to be populated, matching the record's freight type.
type RatePayload struct {
	Air *AirRates `json:"air,omitempty"`
	FCL *FCLRates `json:"fcl,omitempty"`
	LCL *LCLRates `json:"lcl,omitempty"`
}

func (p RatePayload) IsEmpty() bool {
	return p.Air.IsEmpty() && p.FCL.IsEmpty() && p.LCL.IsEmpty()
}

// MatchesType reports whether every populated arm belongs to the given
// freight type. Cross-variant fields are meaningless on a record and are
// rejected before they reach the store.
func (p RatePayload) MatchesType(t FreightType) bool {
	if !p.Air.IsEmpty() && !t.IsAir() {
		return false
	}
	if !p.FCL.IsEmpty() && !t.IsFCL() {
		return false
	}
	if !p.LCL.IsEmpty() && !t.IsLCL() {
		return false
	}
	return true
}

// FlatRates is the wire shape of the serialized payload blob: the union of
// every rate field across all variants in one flat object. Bulk-imported
// rows are stored in this form without variant filtering; the variant
// split happens on decode.
type FlatRates struct {
	MinimumCharge *float64 `json:"minimum_charge,omitempty"`
	Under45       *float64 `json:"under_45,omitempty"`
	Under45Alt    *float64 `json:"under_45_alt,omitempty"`
	Over45        *float64 `json:"over_45,omitempty"`
	Over100       *float64 `json:"over_100,omitempty"`
	Over300       *float64 `json:"over_300,omitempty"`
	Over500       *float64 `json:"over_500,omitempty"`
	Over1000      *float64 `json:"over_1000,omitempty"`
	Rate20ft      *float64 `json:"rate_20ft,omitempty"`
	Rate40ft      *float64 `json:"rate_40ft,omitempty"`
	Rate40ftHQ    *float64 `json:"rate_40ft_hq,omitempty"`
	LCLRate       *float64 `json:"lcl_rate,omitempty"`
}

// Encode serializes the flat union to the stored blob form.
func (f FlatRates) Encode() (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("failed to encode rate payload: %w", err)
	}
	return string(data), nil
}

// Flatten converts a typed payload into the stored wire shape.
func (p RatePayload) Flatten() FlatRates {
	var f FlatRates
	if p.Air != nil {
		f.MinimumCharge = p.Air.MinimumCharge
		f.Under45 = p.Air.Under45
		f.Under45Alt = p.Air.Under45Alt
		f.Over45 = p.Air.Over45
		f.Over100 = p.Air.Over100
		f.Over300 = p.Air.Over300
		f.Over500 = p.Air.Over500
		f.Over1000 = p.Air.Over1000
	}
	if p.FCL != nil {
		f.Rate20ft = p.FCL.Rate20ft
		f.Rate40ft = p.FCL.Rate40ft
		f.Rate40ftHQ = p.FCL.Rate40ftHQ
	}
	if p.LCL != nil {
		f.LCLRate = p.LCL.LCLRate
	}
	return f
}

// EncodePayload serializes the arm matching the freight type. Arms that do
// not belong to the type are not written to the blob.
func EncodePayload(t FreightType, p RatePayload) (string, error) {
	var f FlatRates
	switch {
	case t.IsAir():
		f = RatePayload{Air: p.Air}.Flatten()
	case t.IsFCL():
		f = RatePayload{FCL: p.FCL}.Flatten()
	case t.IsLCL():
		f = RatePayload{LCL: p.LCL}.Flatten()
	}
	return f.Encode()
}

// DecodePayload parses a stored blob and keeps only the fields that belong
// to the freight type. Fields from other variants are dropped. A blob that
// is not valid JSON yields an error; the caller decides how to degrade.
func DecodePayload(t FreightType, blob string) (RatePayload, error) {
	var p RatePayload
	if blob == "" {
		return p, nil
	}

	var f FlatRates
	if err := json.Unmarshal([]byte(blob), &f); err != nil {
		return p, fmt.Errorf("failed to decode rate payload: %w", err)
	}

	switch {
	case t.IsAir():
		air := &AirRates{
			MinimumCharge: f.MinimumCharge,
			Under45:       f.Under45,
			Under45Alt:    f.Under45Alt,
			Over45:        f.Over45,
			Over100:       f.Over100,
			Over300:       f.Over300,
			Over500:       f.Over500,
			Over1000:      f.Over1000,
		}
		if !air.IsEmpty() {
			p.Air = air
		}
	case t.IsFCL():
		fcl := &FCLRates{
			Rate20ft:   f.Rate20ft,
			Rate40ft:   f.Rate40ft,
			Rate40ftHQ: f.Rate40ftHQ,
		}
		if !fcl.IsEmpty() {
			p.FCL = fcl
		}
	case t.IsLCL():
		lcl := &LCLRates{LCLRate: f.LCLRate}
		if !lcl.IsEmpty() {
			p.LCL = lcl
		}
	}

	return p, nil
}

// RateRecord is a persisted freight rate. The payload is stored as a
// serialized blob and decoded onto the record when it is read back.
type RateRecord struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FreightType       FreightType        `json:"freight_type" bson:"freight_type"`
	Origin            string             `json:"origin" bson:"origin"`
	Destination       string             `json:"destination" bson:"destination"`
	Carrier           string             `json:"carrier" bson:"carrier"`
	Category          string             `json:"category" bson:"category"`
	Route             string             `json:"route" bson:"route"`
	RoutingType       RoutingType        `json:"routing_type" bson:"routing_type"`
	TransitTime       string             `json:"transit_time" bson:"transit_time"`
	TransshipmentTime string             `json:"transshipment_time" bson:"transshipment_time"`
	Frequency         string             `json:"frequency" bson:"frequency"`
	Surcharges        string             `json:"surcharges" bson:"surcharges"`
	Note              string             `json:"note" bson:"note"`
	Remark            string             `json:"remark" bson:"remark"`
	ValidUntil        *time.Time         `json:"valid_until" bson:"valid_until"`
	PayloadRaw        string             `json:"-" bson:"payload"`
	Payload           RatePayload        `json:"payload" bson:"-"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
}

// RateRecordInput is the flat field set accepted by the store on create and
// update. RawPayload, when set, is persisted as-is; otherwise the typed
// payload is encoded for the input's freight type.
type RateRecordInput struct {
	FreightType       FreightType `json:"freight_type" validate:"required,freight_type"`
	Origin            string      `json:"origin" validate:"required"`
	Destination       string      `json:"destination" validate:"required"`
	Carrier           string      `json:"carrier"`
	Category          string      `json:"category"`
	Route             string      `json:"route"`
	RoutingType       RoutingType `json:"routing_type" validate:"omitempty,oneof=DIRECT TRANSSHIP"`
	TransitTime       string      `json:"transit_time"`
	TransshipmentTime string      `json:"transshipment_time"`
	Frequency         string      `json:"frequency"`
	Surcharges        string      `json:"surcharges"`
	Note              string      `json:"note"`
	Remark            string      `json:"remark"`
	ValidUntil        *time.Time  `json:"valid_until"`
	Payload           RatePayload `json:"payload"`
	RawPayload        string      `json:"-"`
}

// EncodePayload returns the blob to persist for this input.
func (in *RateRecordInput) EncodePayload() (string, error) {
	if in.RawPayload != "" {
		return in.RawPayload, nil
	}
	return EncodePayload(in.FreightType, in.Payload)
}
