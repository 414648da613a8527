package validators

import (
	"strings"

	"gofreight/internal/models"
)

// HasRealData reports whether the candidate carries anything beyond the
// shared origin/destination: a carrier, route, descriptive field, remark,
// or any rate figure. Drafts without real data are dropped by the batch
// composer instead of being validated.
func HasRealData(in *models.RateRecordInput) bool {
	for _, s := range []string{
		in.Carrier,
		in.Route,
		in.TransitTime,
		in.TransshipmentTime,
		in.Frequency,
		in.Surcharges,
		in.Remark,
	} {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return !in.Payload.IsEmpty()
}

// ValidateRateInput runs every applicable rule and reports all violations
// together; it never short-circuits on the first failure.
func ValidateRateInput(in *models.RateRecordInput) ValidationErrors {
	errors := ValidateStruct(in)

	if strings.TrimSpace(in.Origin) == "" && !errors.HasField("Origin") {
		errors = append(errors, ValidationError{
			Field:   "Origin",
			Tag:     "required",
			Message: "Origin is required",
		})
	}
	if strings.TrimSpace(in.Destination) == "" && !errors.HasField("Destination") {
		errors = append(errors, ValidationError{
			Field:   "Destination",
			Tag:     "required",
			Message: "Destination is required",
		})
	}

	if !in.Payload.MatchesType(in.FreightType) {
		errors = append(errors, ValidationError{
			Field:   "Payload",
			Tag:     "variant",
			Message: "Payload fields do not match the freight type",
		})
	}

	switch {
	case in.FreightType.IsAir():
		if in.Payload.Air.IsEmpty() {
			errors = append(errors, ValidationError{
				Field:   "Payload",
				Tag:     "required",
				Message: "At least one air rate is required",
			})
		}
		if strings.TrimSpace(in.Remark) == "" {
			errors = append(errors, ValidationError{
				Field:   "Remark",
				Tag:     "required",
				Message: "Remark is required for air rates",
			})
		}
	case in.FreightType.IsFCL():
		if in.Payload.FCL.IsEmpty() {
			errors = append(errors, ValidationError{
				Field:   "Payload",
				Tag:     "required",
				Message: "At least one container rate is required",
			})
		}
	case in.FreightType.IsLCL():
		if in.Payload.LCL.IsEmpty() {
			errors = append(errors, ValidationError{
				Field:   "Payload",
				Tag:     "required",
				Message: "LCL rate is required",
			})
		}
	}

	// Note is mandatory once the record carries real data. Non-empty is
	// enough; rate notes do not inherit the longer minimum used for
	// activity notes elsewhere.
	if HasRealData(in) && strings.TrimSpace(in.Note) == "" {
		errors = append(errors, ValidationError{
			Field:   "Note",
			Tag:     "required",
			Message: "Note is required",
		})
	}

	return errors
}
