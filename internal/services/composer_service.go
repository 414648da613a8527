package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gofreight/internal/models"
	"gofreight/internal/repositories/interfaces"
	"gofreight/internal/validators"
	"gofreight/pkg/logger"
)

// defaultDraftCount is how many empty drafts a fresh batch starts with.
const defaultDraftCount = 3

var (
	// ErrNoRealRoutes is returned when every draft in a batch is empty.
	ErrNoRealRoutes = errors.New("at least one route must have data")

	// ErrLastRoute is returned when removing the only remaining draft.
	ErrLastRoute = errors.New("a batch must keep at least one route")

	// ErrDraftNotFound is returned for an unknown draft id.
	ErrDraftNotFound = errors.New("route draft not found")
)

// BatchValidationError carries per-draft field errors for an aborted
// submission. No store call is issued when it is returned.
type BatchValidationError struct {
	Drafts map[int]validators.ValidationErrors `json:"drafts"`
}

func (e *BatchValidationError) Error() string {
	return fmt.Sprintf("validation failed for %d route(s)", len(e.Drafts))
}

// RouteDraft is a transient candidate rate within a batch. Origin,
// destination and freight type come from the session; everything else is
// per-draft.
type RouteDraft struct {
	ID                int                `json:"id"`
	Carrier           string             `json:"carrier"`
	Category          string             `json:"category"`
	Route             string             `json:"route"`
	RoutingType       models.RoutingType `json:"routing_type"`
	TransitTime       string             `json:"transit_time"`
	TransshipmentTime string             `json:"transshipment_time"`
	Frequency         string             `json:"frequency"`
	Surcharges        string             `json:"surcharges"`
	Note              string             `json:"note"`
	Remark            string             `json:"remark"`
	ValidUntil        *time.Time         `json:"valid_until"`
	Payload           models.RatePayload `json:"payload"`
}

// DraftResult is the per-draft outcome of a batch submission.
type DraftResult struct {
	DraftID int                `json:"draft_id"`
	Record  *models.RateRecord `json:"record,omitempty"`
	Err     error              `json:"-"`
}

// BatchResult summarizes a submission. Creates are independent and not
// atomic; failed drafts stay in the session so only they can be retried.
type BatchResult struct {
	Results   []DraftResult `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
}

// ComposerSession builds one-to-many route drafts under a shared
// origin/destination and submits each as an independent create. Sessions
// are operator-local and not safe for concurrent use.
type ComposerSession struct {
	rateRepo interfaces.RateRepository
	logger   *logger.Logger

	freightType models.FreightType
	origin      string
	destination string
	drafts      []*RouteDraft
	nextID      int
	editID      *primitive.ObjectID
}

func NewComposerSession(rateRepo interfaces.RateRepository, log *logger.Logger, freightType models.FreightType, origin, destination string) *ComposerSession {
	s := &ComposerSession{
		rateRepo:    rateRepo,
		logger:      log,
		origin:      origin,
		destination: destination,
		nextID:      1,
	}
	s.SelectFreightType(freightType)
	return s
}

// NewEditSession loads exactly one draft from an existing record; Submit
// then performs a single update instead of creates.
func NewEditSession(rateRepo interfaces.RateRepository, log *logger.Logger, record *models.RateRecord) *ComposerSession {
	id := record.ID
	s := &ComposerSession{
		rateRepo:    rateRepo,
		logger:      log,
		freightType: record.FreightType,
		origin:      record.Origin,
		destination: record.Destination,
		nextID:      2,
		editID:      &id,
	}
	s.drafts = []*RouteDraft{{
		ID:                1,
		Carrier:           record.Carrier,
		Category:          record.Category,
		Route:             record.Route,
		RoutingType:       record.RoutingType,
		TransitTime:       record.TransitTime,
		TransshipmentTime: record.TransshipmentTime,
		Frequency:         record.Frequency,
		Surcharges:        record.Surcharges,
		Note:              record.Note,
		Remark:            record.Remark,
		ValidUntil:        record.ValidUntil,
		Payload:           record.Payload,
	}}
	return s
}

// SelectFreightType fixes the variant for the whole batch and resets the
// drafts to the default empty set. Not applicable in edit mode.
func (s *ComposerSession) SelectFreightType(t models.FreightType) {
	if s.editID != nil {
		return
	}
	s.freightType = t
	s.drafts = nil
	for i := 0; i < defaultDraftCount; i++ {
		s.AddRoute()
	}
}

// AddRoute appends one empty draft and returns it. Draft ids are
// monotonic within the session.
func (s *ComposerSession) AddRoute() *RouteDraft {
	draft := &RouteDraft{ID: s.nextID}
	s.nextID++
	s.drafts = append(s.drafts, draft)
	return draft
}

// RemoveRoute drops a draft; the last remaining draft cannot be removed.
func (s *ComposerSession) RemoveRoute(id int) error {
	if len(s.drafts) <= 1 {
		return ErrLastRoute
	}
	for i, draft := range s.drafts {
		if draft.ID == id {
			s.drafts = append(s.drafts[:i], s.drafts[i+1:]...)
			return nil
		}
	}
	return ErrDraftNotFound
}

// LoadRoutes replaces the session's drafts with the given set, assigning
// fresh monotonic ids. Used when a whole batch form arrives at once.
func (s *ComposerSession) LoadRoutes(routes []RouteDraft) {
	s.drafts = nil
	for i := range routes {
		draft := s.AddRoute()
		id := draft.ID
		*draft = routes[i]
		draft.ID = id
	}
	if len(s.drafts) == 0 {
		s.AddRoute()
	}
}

// UpdateDraft mutates one draft's fields in place.
func (s *ComposerSession) UpdateDraft(id int, mutate func(*RouteDraft)) error {
	for _, draft := range s.drafts {
		if draft.ID == id {
			mutate(draft)
			return nil
		}
	}
	return ErrDraftNotFound
}

// Drafts returns the current drafts in order.
func (s *ComposerSession) Drafts() []*RouteDraft {
	out := make([]*RouteDraft, len(s.drafts))
	copy(out, s.drafts)
	return out
}

func (s *ComposerSession) FreightType() models.FreightType { return s.freightType }

func (s *ComposerSession) input(draft *RouteDraft) *models.RateRecordInput {
	routingType := draft.RoutingType
	if routingType == "" {
		routingType = models.RoutingTypeDirect
	}
	return &models.RateRecordInput{
		FreightType:       s.freightType,
		Origin:            s.origin,
		Destination:       s.destination,
		Carrier:           draft.Carrier,
		Category:          draft.Category,
		Route:             draft.Route,
		RoutingType:       routingType,
		TransitTime:       draft.TransitTime,
		TransshipmentTime: draft.TransshipmentTime,
		Frequency:         draft.Frequency,
		Surcharges:        draft.Surcharges,
		Note:              draft.Note,
		Remark:            draft.Remark,
		ValidUntil:        draft.ValidUntil,
		Payload:           draft.Payload,
	}
}

// Submit validates every draft that carries real data and persists each
// one as an independent create. Empty drafts are silently dropped. Any
// validation failure aborts the whole batch before a single store call.
// Creates run concurrently and are not atomic: successes are kept even
// when a sibling create fails, and the failed drafts remain in the
// session for a retry of only the failures.
func (s *ComposerSession) Submit(ctx context.Context) (*BatchResult, error) {
	type candidate struct {
		draft *RouteDraft
		input *models.RateRecordInput
	}

	var candidates []candidate
	for _, draft := range s.drafts {
		in := s.input(draft)
		if !validators.HasRealData(in) {
			continue
		}
		candidates = append(candidates, candidate{draft: draft, input: in})
	}

	if len(candidates) == 0 {
		return nil, ErrNoRealRoutes
	}

	draftErrors := make(map[int]validators.ValidationErrors)
	for _, c := range candidates {
		if errs := validators.ValidateRateInput(c.input); len(errs) > 0 {
			draftErrors[c.draft.ID] = errs
		}
	}
	if len(draftErrors) > 0 {
		return nil, &BatchValidationError{Drafts: draftErrors}
	}

	if s.editID != nil {
		record, err := s.rateRepo.Update(ctx, *s.editID, candidates[0].input)
		if err != nil {
			return nil, fmt.Errorf("failed to update rate: %w", err)
		}
		return &BatchResult{
			Results:   []DraftResult{{DraftID: candidates[0].draft.ID, Record: record}},
			Succeeded: 1,
		}, nil
	}

	// Fire all creates concurrently and wait for every one of them;
	// completion order carries no meaning.
	results := make([]DraftResult, len(candidates))
	var wg sync.WaitGroup
	for i, c := range candidates {
		wg.Add(1)
		go func(i int, c candidate) {
			defer wg.Done()
			record, err := s.rateRepo.Create(ctx, c.input)
			results[i] = DraftResult{DraftID: c.draft.ID, Record: record, Err: err}
		}(i, c)
	}
	wg.Wait()

	result := &BatchResult{Results: results}
	succeeded := make(map[int]bool)
	for _, r := range results {
		if r.Err != nil {
			result.Failed++
			if s.logger != nil {
				s.logger.WithError(r.Err).WithField("draft_id", r.DraftID).Error("Failed to create rate from draft")
			}
			continue
		}
		result.Succeeded++
		succeeded[r.DraftID] = true
	}

	// Keep only the failed drafts so the operator can retry just those.
	var remaining []*RouteDraft
	for _, draft := range s.drafts {
		if !succeeded[draft.ID] {
			remaining = append(remaining, draft)
		}
	}
	if len(remaining) == 0 {
		remaining = []*RouteDraft{{ID: s.nextID}}
		s.nextID++
	}
	s.drafts = remaining

	return result, nil
}
