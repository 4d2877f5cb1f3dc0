package ward

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kanishkgandecha/medilink/internal/domain/patient"
	"github.com/kanishkgandecha/medilink/internal/platform/apperr"
	"github.com/kanishkgandecha/medilink/internal/platform/db"
	"github.com/kanishkgandecha/medilink/internal/platform/lock"
	"github.com/kanishkgandecha/medilink/internal/platform/metrics"
	"github.com/kanishkgandecha/medilink/internal/platform/notification"
	"github.com/kanishkgandecha/medilink/internal/platform/telemetry"
)

const (
	baseScore            = 100
	genderMatchBonus     = 20
	genderMismatchMalus  = 30
	cohortBonus          = 15
	cohortMalus          = 10
	cohortCloseYears     = 10
	cohortFarYears       = 30
	pediatricBonus       = 25
	generalAdultBonus    = 10
	isolationBonus       = 50
	infectionMalus       = 100
	occupancyBonus       = 10
	facilityBonus        = 15
	lowFloorBonus        = 10
	transferThreshold    = 30
	adultAge             = 18
	elderlyAge           = 65
	heavyMedicationCount = 5
	maxLowFloor          = 2
	overcrowdedRate      = 0.9
	defaultStayDays      = 7
)

var infectiousKeywords = []string{"tuberculosis", "covid", "hepatitis", "measles"}

var stayDays = map[string]int{
	patient.HistoryActive:   7,
	patient.HistoryChronic:  14,
	patient.HistoryResolved: 3,
}

// Notifier delivers admission notices.
type Notifier interface {
	Notify(ctx context.Context, kind string, data map[string]string, payload interface{}) error
}

// Allocator scores wards against patients and claims beds.
type Allocator struct {
	wards    Repository
	patients PatientStore
	tx       db.TxRunner
	locker   lock.Locker
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewAllocator(wards Repository, patients PatientStore, tx db.TxRunner, locker lock.Locker, notifier Notifier, logger zerolog.Logger) *Allocator {
	return &Allocator{
		wards:    wards,
		patients: patients,
		tx:       tx,
		locker:   locker,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// CompatibilityScore rates how well w suits p. occupantAges are the ages of
// the patients already in w. The result is never negative.
func CompatibilityScore(w *Ward, p *patient.Patient, occupantAges []int, now time.Time) int {
	score := baseScore
	age := p.Age(now)

	if w.GenderPreference != GenderMixed {
		if strings.EqualFold(w.GenderPreference, p.Gender) {
			score += genderMatchBonus
		} else {
			score -= genderMismatchMalus
		}
	}

	if len(occupantAges) > 0 {
		var sum int
		for _, a := range occupantAges {
			sum += a
		}
		diff := math.Abs(float64(sum)/float64(len(occupantAges)) - float64(age))
		if diff < cohortCloseYears {
			score += cohortBonus
		} else if diff > cohortFarYears {
			score -= cohortMalus
		}
	}

	if w.Type == TypePediatric && age < adultAge {
		score += pediatricBonus
	} else if w.Type == TypeGeneral && age >= adultAge {
		score += generalAdultBonus
	}

	if IsInfectious(p) {
		if w.Type == TypeIsolation {
			score += isolationBonus
		} else {
			score -= infectionMalus
		}
	}

	if rate := w.OccupancyRate(); rate > 0.3 && rate < 0.8 {
		score += occupancyBonus
	}

	if len(p.CurrentMedications) > heavyMedicationCount && w.HasFacility(FacilityICU) {
		score += facilityBonus
	}

	if age > elderlyAge && w.Floor <= maxLowFloor {
		score += lowFloorBonus
	}

	if score < 0 {
		return 0
	}
	return score
}

// IsInfectious reports whether any history condition names an infectious
// disease.
func IsInfectious(p *patient.Patient) bool {
	for _, h := range p.MedicalHistory {
		condition := strings.ToLower(h.Condition)
		for _, k := range infectiousKeywords {
			if strings.Contains(condition, k) {
				return true
			}
		}
	}
	return false
}

// eligible keeps infectious patients out of non-isolation wards.
func eligible(w *Ward, p *patient.Patient) bool {
	return w.Type == TypeIsolation || !IsInfectious(p)
}

// EstimateDischargeDate projects the stay from the status of the most recent
// history entry.
func EstimateDischargeDate(p *patient.Patient, now time.Time) time.Time {
	days := defaultStayDays
	if n := len(p.MedicalHistory); n > 0 {
		if d, ok := stayDays[p.MedicalHistory[n-1].Status]; ok {
			days = d
		}
	}
	return now.AddDate(0, 0, days)
}

// AllocateWard admits the patient to the best-scoring active ward with a
// free bed. Ties go to the ward listed first.
func (a *Allocator) AllocateWard(ctx context.Context, patientID uuid.UUID) (alloc *Allocation, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ward.AllocateWard",
		attribute.String("patient.id", patientID.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	p, err := a.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if p.AssignedWardID != nil {
		return nil, apperr.Conflict("patient is already admitted to a ward")
	}

	candidates, err := a.wards.ListActiveWithBeds(ctx)
	if err != nil {
		return nil, err
	}
	ages, err := a.occupantAges(ctx, candidates)
	if err != nil {
		return nil, err
	}

	now := a.now()
	var best *Ward
	bestScore := -1
	for _, w := range candidates {
		if !eligible(w, p) {
			continue
		}
		if s := CompatibilityScore(w, p, ages[w.ID], now); s > bestScore {
			best, bestScore = w, s
		}
	}
	if best == nil {
		metrics.RecordWardAllocation("no_ward")
		return nil, ErrNoCompatibleWard
	}

	span.SetAttributes(attribute.String("ward.number", best.WardNumber), attribute.Int("ward.score", bestScore))
	alloc, err = a.admit(ctx, best.ID, p, "", EstimateDischargeDate(p, now), bestScore)
	if err != nil {
		if errors.Is(err, ErrWardFull) {
			metrics.RecordWardAllocation("full")
		}
		return nil, err
	}
	metrics.RecordWardAllocation("allocated")
	return alloc, nil
}

// Assign admits a patient to a ward chosen by staff. The bed is claimed the
// same way as AllocateWard.
func (a *Allocator) Assign(ctx context.Context, wardID uuid.UUID, p *patient.Patient, bedLabel string, discharge *time.Time) (*Allocation, error) {
	if p.AssignedWardID != nil {
		return nil, apperr.Conflict("patient is already admitted to a ward")
	}
	w, err := a.wards.GetByID(ctx, wardID)
	if err != nil {
		return nil, err
	}
	if w.Status != StatusActive {
		return nil, apperr.Conflict("ward is not active")
	}
	ages, err := a.occupantAges(ctx, []*Ward{w})
	if err != nil {
		return nil, err
	}

	now := a.now()
	due := EstimateDischargeDate(p, now)
	if discharge != nil {
		due = *discharge
	}
	return a.admit(ctx, w.ID, p, bedLabel, due, CompatibilityScore(w, p, ages[w.ID], now))
}

func (a *Allocator) admit(ctx context.Context, wardID uuid.UUID, p *patient.Patient, bedLabel string, discharge time.Time, score int) (*Allocation, error) {
	occ := &Occupant{
		PatientID:             p.ID,
		BedLabel:              bedLabel,
		AdmissionDate:         a.now(),
		ExpectedDischargeDate: &discharge,
	}
	err := a.locker.WithLock(ctx, lockKey(wardID), func(ctx context.Context) error {
		return a.tx.WithTx(ctx, func(ctx context.Context) error {
			if err := a.wards.AdmitOccupant(ctx, wardID, occ); err != nil {
				return err
			}
			return a.patients.SetAssignedWard(ctx, p.ID, &wardID)
		})
	})
	if err != nil {
		return nil, err
	}
	p.AssignedWardID = &wardID

	w, err := a.wards.GetByID(ctx, wardID)
	if err != nil {
		return nil, err
	}
	alloc := &Allocation{Ward: w, BedLabel: occ.BedLabel, Score: score}

	a.logger.Info().
		Str("patient_id", p.ID.String()).
		Str("ward", w.WardNumber).
		Str("bed", occ.BedLabel).
		Int("score", score).
		Msg("patient admitted")
	a.notifyAdmission(ctx, p, alloc, discharge)
	return alloc, nil
}

// Discharge frees the patient's bed and clears their ward assignment.
func (a *Allocator) Discharge(ctx context.Context, wardID, patientID uuid.UUID) (*Ward, error) {
	err := a.locker.WithLock(ctx, lockKey(wardID), func(ctx context.Context) error {
		return a.tx.WithTx(ctx, func(ctx context.Context) error {
			if err := a.wards.RemoveOccupant(ctx, wardID, patientID); err != nil {
				return err
			}
			return a.patients.SetAssignedWard(ctx, patientID, nil)
		})
	})
	if err != nil {
		return nil, err
	}
	a.logger.Info().Str("patient_id", patientID.String()).Str("ward_id", wardID.String()).Msg("patient discharged")
	return a.wards.GetByID(ctx, wardID)
}

// SuggestWardTransfers compares every occupant's current ward with each
// other active ward that has a free bed and proposes moves worth more than
// the transfer threshold, best improvement first.
func (a *Allocator) SuggestWardTransfers(ctx context.Context) (suggestions []TransferSuggestion, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ward.SuggestWardTransfers")
	defer func() { telemetry.EndSpan(span, err) }()

	wards, err := a.wards.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	patients, err := a.occupantPatients(ctx, wards)
	if err != nil {
		return nil, err
	}
	now := a.now()
	ages := agesByWard(wards, patients, now)

	suggestions = []TransferSuggestion{}
	for _, current := range wards {
		for _, occ := range current.Occupants {
			p, ok := patients[occ.PatientID]
			if !ok {
				continue
			}
			currentScore := CompatibilityScore(current, p, ages[current.ID], now)
			for _, other := range wards {
				if other.ID == current.ID || other.AvailableBeds <= 0 || !eligible(other, p) {
					continue
				}
				alt := CompatibilityScore(other, p, ages[other.ID], now)
				if alt <= currentScore+transferThreshold {
					continue
				}
				suggestions = append(suggestions, TransferSuggestion{
					PatientID:      p.ID,
					PatientName:    p.FullName(),
					FromWardID:     current.ID,
					FromWard:       current.WardNumber,
					ToWardID:       other.ID,
					ToWard:         other.WardNumber,
					CurrentScore:   currentScore,
					SuggestedScore: alt,
					Improvement:    alt - currentScore,
					Reasons:        transferReasons(current, other, p, now),
				})
			}
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Improvement > suggestions[j].Improvement
	})
	metrics.RecordTransferSuggestions(len(suggestions))
	span.SetAttributes(attribute.Int("suggestions", len(suggestions)))
	return suggestions, nil
}

func transferReasons(current, target *Ward, p *patient.Patient, now time.Time) []string {
	var reasons []string
	if target.Type == TypePediatric && p.Age(now) < adultAge {
		reasons = append(reasons, "Better age-appropriate care")
	}
	if strings.EqualFold(target.GenderPreference, p.Gender) {
		reasons = append(reasons, "Gender-specific ward available")
	}
	if current.OccupancyRate() > overcrowdedRate {
		reasons = append(reasons, "Reduce overcrowding")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Better overall compatibility")
	}
	return reasons
}

func (a *Allocator) occupantAges(ctx context.Context, wards []*Ward) (map[uuid.UUID][]int, error) {
	patients, err := a.occupantPatients(ctx, wards)
	if err != nil {
		return nil, err
	}
	return agesByWard(wards, patients, a.now()), nil
}

func (a *Allocator) occupantPatients(ctx context.Context, wards []*Ward) (map[uuid.UUID]*patient.Patient, error) {
	var ids []uuid.UUID
	for _, w := range wards {
		for _, o := range w.Occupants {
			ids = append(ids, o.PatientID)
		}
	}
	byID := make(map[uuid.UUID]*patient.Patient, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}
	found, err := a.patients.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range found {
		byID[p.ID] = p
	}
	return byID, nil
}

// agesByWard skips occupants whose patient record no longer exists.
func agesByWard(wards []*Ward, patients map[uuid.UUID]*patient.Patient, now time.Time) map[uuid.UUID][]int {
	ages := make(map[uuid.UUID][]int, len(wards))
	for _, w := range wards {
		for _, o := range w.Occupants {
			if p, ok := patients[o.PatientID]; ok {
				ages[w.ID] = append(ages[w.ID], p.Age(now))
			}
		}
	}
	return ages
}

func (a *Allocator) notifyAdmission(ctx context.Context, p *patient.Patient, alloc *Allocation, discharge time.Time) {
	if a.notifier == nil {
		return
	}
	data := map[string]string{
		"patient_id":         p.ID.String(),
		"ward_number":        alloc.Ward.WardNumber,
		"bed":                alloc.BedLabel,
		"score":              strconv.Itoa(alloc.Score),
		"expected_discharge": discharge.Format(time.DateOnly),
	}
	if err := a.notifier.Notify(ctx, notification.KindWardAdmission, data, alloc); err != nil {
		a.logger.Warn().Err(err).Str("patient_id", p.ID.String()).Msg("admission notification failed")
	}
}

func lockKey(wardID uuid.UUID) string {
	return "ward:" + wardID.String()
}
