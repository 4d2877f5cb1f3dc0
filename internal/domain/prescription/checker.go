package prescription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kanishkgandecha/medilink/internal/domain/inventory"
	"github.com/kanishkgandecha/medilink/internal/domain/patient"
	"github.com/kanishkgandecha/medilink/internal/platform/metrics"
	"github.com/kanishkgandecha/medilink/internal/platform/telemetry"
)

const (
	adultAge      = 18
	elderlyAge    = 65
	lowStockLimit = 10
)

// InventoryLookup finds stock for a medication name.
type InventoryLookup interface {
	ListByNameAndCategory(ctx context.Context, name, category string) ([]*inventory.Item, error)
}

// Checker screens prescriptions for interactions, allergies, dosage risk
// and stock availability.
type Checker struct {
	table     *InteractionTable
	inventory InventoryLookup
	logger    zerolog.Logger
	now       func() time.Time
}

func NewChecker(table *InteractionTable, inv InventoryLookup, logger zerolog.Logger) *Checker {
	return &Checker{table: table, inventory: inv, logger: logger, now: time.Now}
}

// CheckInteractions checks every unordered pair drawn from the new and the
// existing medications once. A rule on the first drug of a pair is tried
// before a rule on the second.
func (c *Checker) CheckInteractions(newMeds, existing []string) []Warning {
	all := make([]string, 0, len(newMeds)+len(existing))
	all = append(all, newMeds...)
	all = append(all, existing...)

	warnings := []Warning{}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			a, b := all[i], all[j]
			rule, ok := c.table.interacts(a, b)
			if !ok {
				rule, ok = c.table.interacts(b, a)
				if !ok {
					continue
				}
				a, b = b, a
			}
			warnings = append(warnings, Warning{
				Kind:                KindInteraction,
				Severity:            rule.Severity,
				Description:         fmt.Sprintf("%s interacts with %s", a, b),
				Effect:              rule.Effect,
				AffectedMedications: []string{a, b},
			})
		}
	}
	return warnings
}

// CheckAllergies flags a medication whose name contains an allergy, or is
// contained in one, ignoring case. Blank allergies never match.
func CheckAllergies(meds, allergies []string) []Warning {
	warnings := []Warning{}
	for _, med := range meds {
		name := strings.ToLower(med)
		for _, allergy := range allergies {
			a := strings.ToLower(strings.TrimSpace(allergy))
			if a == "" {
				continue
			}
			if strings.Contains(name, a) || strings.Contains(a, name) {
				warnings = append(warnings, Warning{
					Kind:                KindAllergy,
					Severity:            SeveritySevere,
					Description:         "Patient is allergic to " + allergy,
					AffectedMedications: []string{med},
					Action:              "DO NOT PRESCRIBE",
				})
			}
		}
	}
	return warnings
}

// CheckDosageSafety flags age groups that need dosage review. weightKg is
// not used by any rule yet.
func CheckDosageSafety(med string, age int, weightKg float64) []Warning {
	warnings := []Warning{}
	if age < adultAge {
		warnings = append(warnings, Warning{
			Kind:                KindDosage,
			Severity:            SeverityModerate,
			Description:         "Pediatric dosage adjustment required",
			AffectedMedications: []string{med},
			Recommendation:      "Consult pediatric dosing guidelines",
		})
	}
	if age > elderlyAge {
		warnings = append(warnings, Warning{
			Kind:                KindDosage,
			Severity:            SeverityLow,
			Description:         "Geriatric dosage consideration needed",
			AffectedMedications: []string{med},
			Recommendation:      "Consider reduced dosage for elderly patients",
		})
	}
	return warnings
}

// CheckAvailability looks for the first available medicine whose name
// contains med, deriving status at check time. It returns nil when stock is
// adequate.
func (c *Checker) CheckAvailability(ctx context.Context, med string) (*Warning, error) {
	items, err := c.inventory.ListByNameAndCategory(ctx, med, inventory.CategoryMedicine)
	if err != nil {
		return nil, fmt.Errorf("inventory lookup for %s: %w", med, err)
	}
	now := c.now()
	var found *inventory.Item
	for _, it := range items {
		cur := *it
		cur.RecomputeStatus(now)
		if cur.Status == inventory.StatusAvailable {
			found = &cur
			break
		}
	}
	if found == nil {
		return &Warning{
			Kind:                KindAvailability,
			Severity:            SeverityHigh,
			Description:         med + " not available in inventory",
			AffectedMedications: []string{med},
			Action:              "Order required or find alternative",
		}, nil
	}
	if found.Quantity < lowStockLimit {
		qty := found.Quantity
		return &Warning{
			Kind:                KindAvailability,
			Severity:            SeverityModerate,
			Description:         "Low stock: " + med,
			AffectedMedications: []string{med},
			CurrentQuantity:     &qty,
		}, nil
	}
	return nil, nil
}

// ValidatePrescription runs every check for meds against the patient. The
// report is advisory; errors come only from the inventory lookup.
func (c *Checker) ValidatePrescription(ctx context.Context, meds []string, p *patient.Patient) (report *Report, err error) {
	ctx, span := telemetry.StartSpan(ctx, "prescription.ValidatePrescription",
		attribute.String("patient.id", p.ID.String()),
		attribute.Int("medications", len(meds)))
	defer func() { telemetry.EndSpan(span, err) }()

	report = newReport()
	report.Interactions = c.CheckInteractions(meds, p.MedicationNames())
	if len(p.Allergies) > 0 {
		report.Allergies = CheckAllergies(meds, p.Allergies)
	}

	age := p.Age(c.now())
	for _, med := range meds {
		report.Dosage = append(report.Dosage, CheckDosageSafety(med, age, 0)...)
	}

	for _, med := range meds {
		w, err := c.CheckAvailability(ctx, med)
		if err != nil {
			return nil, err
		}
		if w != nil {
			report.Availability = append(report.Availability, *w)
		}
	}

	for _, w := range report.Flatten() {
		metrics.RecordPrescriptionWarning(w.Kind, w.Severity)
	}
	span.SetAttributes(attribute.Bool("warnings.severe", report.HasSevere()))
	c.logger.Debug().
		Str("patient_id", p.ID.String()).
		Int("interactions", len(report.Interactions)).
		Int("allergies", len(report.Allergies)).
		Int("availability", len(report.Availability)).
		Msg("prescription screened")
	return report, nil
}
