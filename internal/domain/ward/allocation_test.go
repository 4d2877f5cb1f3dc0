package ward

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanishkgandecha/medilink/internal/domain/patient"
	"github.com/kanishkgandecha/medilink/internal/platform/apperr"
	"github.com/kanishkgandecha/medilink/internal/platform/notification"
)

func scoringPatient(gender string, age int, conditions ...string) *patient.Patient {
	p := &patient.Patient{ID: uuid.New(), DateOfBirth: birthDate(age), Gender: gender}
	for _, c := range conditions {
		p.MedicalHistory = append(p.MedicalHistory, patient.HistoryEntry{Condition: c, Status: patient.HistoryActive})
	}
	return p
}

func TestCompatibilityScore(t *testing.T) {
	heavy := scoringPatient(patient.GenderMale, 50)
	for i := 0; i < 6; i++ {
		heavy.CurrentMedications = append(heavy.CurrentMedications, patient.Medication{Name: "drug"})
	}

	tests := []struct {
		name string
		ward Ward
		p    *patient.Patient
		ages []int
		want int
	}{
		{
			name: "empty mixed general ward, adult",
			ward: Ward{Type: TypeGeneral, GenderPreference: GenderMixed, TotalBeds: 10, Floor: 3},
			p:    scoringPatient(patient.GenderMale, 40),
			want: 110,
		},
		{
			name: "gender match",
			ward: Ward{Type: TypeGeneral, GenderPreference: GenderMale, TotalBeds: 10, Floor: 3},
			p:    scoringPatient(patient.GenderMale, 40),
			want: 130,
		},
		{
			name: "gender mismatch",
			ward: Ward{Type: TypeGeneral, GenderPreference: GenderMale, TotalBeds: 10, Floor: 3},
			p:    scoringPatient(patient.GenderFemale, 40),
			want: 80,
		},
		{
			name: "pediatric ward, child",
			ward: Ward{Type: TypePediatric, GenderPreference: GenderMixed, TotalBeds: 10, Floor: 3},
			p:    scoringPatient(patient.GenderFemale, 8),
			want: 125,
		},
		{
			name: "general ward, child gets no type bonus",
			ward: Ward{Type: TypeGeneral, GenderPreference: GenderMixed, TotalBeds: 10, Floor: 3},
			p:    scoringPatient(patient.GenderFemale, 8),
			want: 100,
		},
		{
			name: "close age cohort",
			ward: Ward{Type: TypeGeneral, GenderPreference: GenderMixed, TotalBeds: 10, Floor: 3},
			p:    scoringPatient(patient.GenderMale, 40),
			ages: []int{42, 38},
			want: 125,
		},
		{
			name: "distant age cohort",
			ward: Ward{Type: TypeGeneral, GenderPreference: GenderMixed, TotalBeds: 10, Floor: 3},
			p:    scoringPatient(patient.GenderMale, 40),
			ages: []int{80},
			want: 100,
		},
		{
			name: "cohort in between",
			ward: Ward{Type: TypeGeneral, GenderPreference: GenderMixed, TotalBeds: 10, Floor: 3},
			p:    scoringPatient(patient.GenderMale, 40),
			ages: []int{60},
			want: 110,
		},
		{
			name: "infectious patient in isolation ward",
			ward: Ward{Type: TypeIsolation, GenderPreference: GenderMixed, TotalBeds: 10, Floor: 3},
			p:    scoringPatient(patient.GenderMale, 40, "Pulmonary Tuberculosis"),
			want: 150,
		},
		{
			name: "infectious patient in general ward",
			ward: Ward{Type: TypeGeneral, GenderPreference: GenderMixed, TotalBeds: 10, Floor: 3},
			p:    scoringPatient(patient.GenderMale, 40, "COVID-19"),
			want: 10,
		},
		{
			name: "balanced occupancy",
			ward: Ward{Type: TypeGeneral, GenderPreference: GenderMixed, TotalBeds: 10, OccupiedBeds: 5, Floor: 3},
			p:    scoringPatient(patient.GenderMale, 40),
			want: 120,
		},
		{
			name: "occupancy exactly 0.3 gets no bonus",
			ward: Ward{Type: TypeGeneral, GenderPreference: GenderMixed, TotalBeds: 10, OccupiedBeds: 3, Floor: 3},
			p:    scoringPatient(patient.GenderMale, 40),
			want: 110,
		},
		{
			name: "occupancy exactly 0.8 gets no bonus",
			ward: Ward{Type: TypeGeneral, GenderPreference: GenderMixed, TotalBeds: 10, OccupiedBeds: 8, Floor: 3},
			p:    scoringPatient(patient.GenderMale, 40),
			want: 110,
		},
		{
			name: "heavy medication and ICU equipment",
			ward: Ward{Type: TypeICU, GenderPreference: GenderMixed, TotalBeds: 10, Floor: 3, Facilities: []string{FacilityICU}},
			p:    heavy,
			want: 115,
		},
		{
			name: "heavy medication without ICU equipment",
			ward: Ward{Type: TypeICU, GenderPreference: GenderMixed, TotalBeds: 10, Floor: 3},
			p:    heavy,
			want: 100,
		},
		{
			name: "elderly on low floor",
			ward: Ward{Type: TypeGeneral, GenderPreference: GenderMixed, TotalBeds: 10, Floor: 1},
			p:    scoringPatient(patient.GenderMale, 70),
			want: 120,
		},
		{
			name: "elderly on high floor",
			ward: Ward{Type: TypeGeneral, GenderPreference: GenderMixed, TotalBeds: 10, Floor: 4},
			p:    scoringPatient(patient.GenderMale, 70),
			want: 110,
		},
		{
			name: "floored at zero",
			ward: Ward{Type: TypePediatric, GenderPreference: GenderMale, TotalBeds: 10, Floor: 3},
			p:    scoringPatient(patient.GenderFemale, 40, "hepatitis B"),
			ages: []int{5},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tt.ward
			got := CompatibilityScore(&w, tt.p, tt.ages, fixedNow)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, CompatibilityScore(&w, tt.p, tt.ages, fixedNow), "score must be idempotent")
		})
	}
}

func TestIsInfectious(t *testing.T) {
	assert.True(t, IsInfectious(scoringPatient(patient.GenderMale, 30, "Measles")))
	assert.True(t, IsInfectious(scoringPatient(patient.GenderMale, 30, "asthma", "chronic hepatitis")))
	assert.False(t, IsInfectious(scoringPatient(patient.GenderMale, 30, "asthma")))
	assert.False(t, IsInfectious(scoringPatient(patient.GenderMale, 30)))
}

func TestEstimateDischargeDate(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		wantDays int
	}{
		{"no history", nil, 7},
		{"active", []string{patient.HistoryActive}, 7},
		{"chronic", []string{patient.HistoryChronic}, 14},
		{"resolved", []string{patient.HistoryResolved}, 3},
		{"last entry wins", []string{patient.HistoryChronic, patient.HistoryResolved}, 3},
		{"unknown status", []string{"monitoring"}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &patient.Patient{}
			for _, s := range tt.statuses {
				p.MedicalHistory = append(p.MedicalHistory, patient.HistoryEntry{Condition: "x", Status: s})
			}
			got := EstimateDischargeDate(p, fixedNow)
			assert.Equal(t, fixedNow.AddDate(0, 0, tt.wantDays), got)
		})
	}
}

func TestAllocateWard_PicksHighestScore(t *testing.T) {
	f := newFixture()
	f.addWard("W-1", TypeGeneral, GenderMixed, 10)
	male := f.addWard("W-2", TypeGeneral, GenderMale, 10)
	p := f.addPatient(patient.GenderMale, 40)

	alloc, err := f.alloc.AllocateWard(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, male.ID, alloc.Ward.ID)
	assert.Equal(t, 130, alloc.Score)
	assert.Equal(t, "B1", alloc.BedLabel)

	stored := f.ward(t, male.ID)
	require.Len(t, stored.Occupants, 1)
	assert.Equal(t, p.ID, stored.Occupants[0].PatientID)
	assert.Equal(t, fixedNow, stored.Occupants[0].AdmissionDate)
	require.NotNil(t, stored.Occupants[0].ExpectedDischargeDate)
	assert.Equal(t, fixedNow.AddDate(0, 0, 7), *stored.Occupants[0].ExpectedDischargeDate)
	assert.Equal(t, stored.TotalBeds, stored.OccupiedBeds+stored.AvailableBeds)
	assert.Equal(t, &male.ID, f.patients.assigned(p.ID))

	require.Len(t, f.notifier.kinds, 1)
	assert.Equal(t, notification.KindWardAdmission, f.notifier.kinds[0])
	assert.Equal(t, "W-2", f.notifier.data[0]["ward_number"])
	assert.Equal(t, "B1", f.notifier.data[0]["bed"])
	assert.Equal(t, "130", f.notifier.data[0]["score"])
}

func TestAllocateWard_TieGoesToFirstWard(t *testing.T) {
	f := newFixture()
	second := f.addWard("W-2", TypeGeneral, GenderMixed, 10)
	first := f.addWard("W-1", TypeGeneral, GenderMixed, 10)
	p := f.addPatient(patient.GenderFemale, 40)

	alloc, err := f.alloc.AllocateWard(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, alloc.Ward.ID)
	assert.NotEqual(t, second.ID, alloc.Ward.ID)
}

func TestAllocateWard_BedLabelFollowsOccupancy(t *testing.T) {
	f := newFixture()
	w := f.addWard("W-1", TypeGeneral, GenderMixed, 10)
	f.occupy(w, f.addPatient(patient.GenderMale, 41))
	f.occupy(w, f.addPatient(patient.GenderMale, 42))
	p := f.addPatient(patient.GenderMale, 40)

	alloc, err := f.alloc.AllocateWard(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "B3", alloc.BedLabel)
	assert.Equal(t, 3, alloc.Ward.OccupiedBeds)
	assert.Equal(t, 7, alloc.Ward.AvailableBeds)
}

func TestAllocateWard_BedLabelAfterDischarge(t *testing.T) {
	f := newFixture()
	w := f.addWard("W-1", TypeGeneral, GenderMixed, 10)
	first := f.addPatient(patient.GenderMale, 40)
	second := f.addPatient(patient.GenderMale, 41)
	third := f.addPatient(patient.GenderMale, 42)

	a1, err := f.alloc.AllocateWard(context.Background(), first.ID)
	require.NoError(t, err)
	a2, err := f.alloc.AllocateWard(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, "B1", a1.BedLabel)
	assert.Equal(t, "B2", a2.BedLabel)

	_, err = f.alloc.Discharge(context.Background(), w.ID, first.ID)
	require.NoError(t, err)

	a3, err := f.alloc.AllocateWard(context.Background(), third.ID)
	require.NoError(t, err)
	assert.Equal(t, "B1", a3.BedLabel)

	stored := f.ward(t, w.ID)
	require.Len(t, stored.Occupants, 2)
	assert.Equal(t, 2, stored.OccupiedBeds)
}

func TestNextBedLabel(t *testing.T) {
	tests := []struct {
		name     string
		occupied int
		taken    []string
		want     string
	}{
		{"empty ward", 1, nil, "B1"},
		{"follows occupancy", 3, []string{"B1", "B2"}, "B3"},
		{"lowest free after discharge", 2, []string{"B2"}, "B1"},
		{"skips custom labels", 3, []string{"B3", "B1", "ICU-A"}, "B2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextBedLabel(tt.occupied, tt.taken))
		})
	}
}

func TestAllocateWard_InfectiousWithoutIsolation(t *testing.T) {
	f := newFixture()
	f.addWard("W-1", TypeGeneral, GenderMixed, 10)
	f.addWard("W-2", TypePrivate, GenderMixed, 2)
	p := f.addPatient(patient.GenderMale, 40, "tuberculosis")

	_, err := f.alloc.AllocateWard(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrNoCompatibleWard)
	assert.Nil(t, f.patients.assigned(p.ID))
	assert.Empty(t, f.notifier.kinds)
}

func TestAllocateWard_InfectiousGoesToIsolation(t *testing.T) {
	f := newFixture()
	f.addWard("W-1", TypeGeneral, GenderMixed, 10)
	iso := f.addWard("W-9", TypeIsolation, GenderMixed, 2)
	p := f.addPatient(patient.GenderMale, 40, "Measles")

	alloc, err := f.alloc.AllocateWard(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, iso.ID, alloc.Ward.ID)
	assert.Equal(t, 150, alloc.Score)
}

func TestAllocateWard_SkipsFullAndInactiveWards(t *testing.T) {
	f := newFixture()
	full := f.addWard("W-1", TypeGeneral, GenderMale, 1)
	f.occupy(full, f.addPatient(patient.GenderMale, 40))
	closed := f.addWard("W-2", TypeGeneral, GenderMale, 10)
	f.wards.wards[closed.ID].Status = StatusClosed
	open := f.addWard("W-3", TypePrivate, GenderMixed, 1)
	p := f.addPatient(patient.GenderMale, 40)

	alloc, err := f.alloc.AllocateWard(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, open.ID, alloc.Ward.ID)
}

func TestAllocateWard_NoWards(t *testing.T) {
	f := newFixture()
	p := f.addPatient(patient.GenderMale, 40)

	_, err := f.alloc.AllocateWard(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrNoCompatibleWard)
}

func TestAllocateWard_PatientNotFound(t *testing.T) {
	f := newFixture()
	f.addWard("W-1", TypeGeneral, GenderMixed, 10)

	_, err := f.alloc.AllocateWard(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAllocateWard_AlreadyAdmitted(t *testing.T) {
	f := newFixture()
	w := f.addWard("W-1", TypeGeneral, GenderMixed, 10)
	p := f.addPatient(patient.GenderMale, 40)
	f.occupy(w, p)

	_, err := f.alloc.AllocateWard(context.Background(), p.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestAllocateWard_ConcurrentLastBed(t *testing.T) {
	f := newFixture()
	w := f.addWard("W-1", TypeGeneral, GenderMixed, 1)

	const callers = 8
	ids := make([]uuid.UUID, callers)
	for i := range ids {
		ids[i] = f.addPatient(patient.GenderMale, 40+i).ID
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var admitted int
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.alloc.AllocateWard(context.Background(), id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, ErrWardFull), errors.Is(err, ErrNoCompatibleWard):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	stored := f.ward(t, w.ID)
	assert.Len(t, stored.Occupants, 1)
	assert.Equal(t, 1, stored.OccupiedBeds)
	assert.Equal(t, 0, stored.AvailableBeds)
}

// transferFixture puts a woman and a girl in a male-only general ward, next
// to a female general ward, a mixed general ward and a pediatric ward.
func transferFixture() (*fixture, *patient.Patient, *patient.Patient, map[string]*Ward) {
	f := newFixture()
	wards := map[string]*Ward{
		"A-1": f.addWard("A-1", TypeGeneral, GenderMale, 10),
		"B-1": f.addWard("B-1", TypeGeneral, GenderFemale, 10),
		"C-1": f.addWard("C-1", TypeGeneral, GenderMixed, 10),
		"P-1": f.addWard("P-1", TypePediatric, GenderMixed, 10),
	}
	woman := f.addPatient(patient.GenderFemale, 40)
	girl := f.addPatient(patient.GenderFemale, 8)
	f.occupy(wards["A-1"], woman)
	f.occupy(wards["A-1"], girl)
	return f, woman, girl, wards
}

func TestSuggestWardTransfers(t *testing.T) {
	f, woman, girl, wards := transferFixture()

	suggestions, err := f.alloc.SuggestWardTransfers(context.Background())
	require.NoError(t, err)
	require.Len(t, suggestions, 3)

	// girl: current 70; pediatric 125, female ward 120; mixed general 100 is
	// exactly +30 and not suggested. woman: current 80; female ward 130;
	// mixed general 110 is exactly +30.
	assert.Equal(t, girl.ID, suggestions[0].PatientID)
	assert.Equal(t, wards["P-1"].ID, suggestions[0].ToWardID)
	assert.Equal(t, 55, suggestions[0].Improvement)
	assert.Equal(t, []string{"Better age-appropriate care"}, suggestions[0].Reasons)

	assert.Equal(t, woman.ID, suggestions[1].PatientID)
	assert.Equal(t, "B-1", suggestions[1].ToWard)
	assert.Equal(t, "A-1", suggestions[1].FromWard)
	assert.Equal(t, 80, suggestions[1].CurrentScore)
	assert.Equal(t, 130, suggestions[1].SuggestedScore)
	assert.Equal(t, 50, suggestions[1].Improvement)
	assert.Equal(t, []string{"Gender-specific ward available"}, suggestions[1].Reasons)

	assert.Equal(t, girl.ID, suggestions[2].PatientID)
	assert.Equal(t, "B-1", suggestions[2].ToWard)
	assert.Equal(t, 50, suggestions[2].Improvement)
}

func TestSuggestWardTransfers_SkipsFullWards(t *testing.T) {
	f, _, _, wards := transferFixture()
	for _, number := range []string{"B-1", "P-1"} {
		stored := f.wards.wards[wards[number].ID]
		stored.TotalBeds = 0
		stored.Recount()
	}

	suggestions, err := f.alloc.SuggestWardTransfers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestSuggestWardTransfers_NoOccupants(t *testing.T) {
	f := newFixture()
	f.addWard("W-1", TypeGeneral, GenderMixed, 10)

	suggestions, err := f.alloc.SuggestWardTransfers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, suggestions)
	assert.Empty(t, suggestions)
}

func TestTransferReasons(t *testing.T) {
	adult := scoringPatient(patient.GenderMale, 40)
	crowded := &Ward{Type: TypeGeneral, TotalBeds: 10, OccupiedBeds: 10, GenderPreference: GenderMixed}
	calm := &Ward{Type: TypeGeneral, TotalBeds: 10, OccupiedBeds: 2, GenderPreference: GenderMixed}
	maleWard := &Ward{Type: TypeGeneral, TotalBeds: 10, GenderPreference: GenderMale}

	assert.Equal(t, []string{"Reduce overcrowding"}, transferReasons(crowded, calm, adult, fixedNow))
	assert.Equal(t, []string{"Gender-specific ward available", "Reduce overcrowding"},
		transferReasons(crowded, maleWard, adult, fixedNow))
	assert.Equal(t, []string{"Better overall compatibility"}, transferReasons(calm, calm, adult, fixedNow))
}
