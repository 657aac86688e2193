// Package reagent computes solution preparation quantities for common
// electrolytes.
package reagent

import (
	"fmt"
	"sort"
)

// MolarMasses maps supported reagent formulas to molar mass in g/mol.
var MolarMasses = map[string]float64{
	"K2CO3":         138.205,
	"Na2CO3":        105.9888,
	"Na2CO3·10H2O":  286.141,
	"KNO3":          101.1032,
	"Sr(NO3)2":      211.629,
	"Mg(NO3)2":      148.313,
	"Mg(NO3)2·6H2O": 256.41,
	"Na2SO4":        142.04,
	"Na2SO4·10H2O":  322.20,
	"H2SO4":         98.079,
}

// Concentrated sulfuric acid stock assumptions.
const (
	SulfuricAcidPurity     = 0.98
	SulfuricAcidDensityGML = 1.84
	sulfuricAcidFormula    = "H2SO4"
)

// UnknownFormulaError reports an unsupported reagent formula.
type UnknownFormulaError struct {
	Formula string
}

func (e UnknownFormulaError) Error() string {
	return fmt.Sprintf("unknown formula: %s", e.Formula)
}

// Formulas returns the supported formulas in sorted order.
func Formulas() []string {
	out := make([]string, 0, len(MolarMasses))
	for formula := range MolarMasses {
		out = append(out, formula)
	}
	sort.Strings(out)
	return out
}

// SolidMass returns grams of solid required to prepare the target volume (mL)
// at the given molarity.
func SolidMass(formula string, volumeML, molarity float64) (float64, error) {
	mass, ok := MolarMasses[formula]
	if !ok {
		return 0, UnknownFormulaError{Formula: formula}
	}
	moles := (volumeML / 1000.0) * molarity
	return moles * mass, nil
}

// SulfuricAcidVolume returns mL of concentrated H2SO4 stock needed to prepare
// the target volume (mL) at the given molarity. Grams of pure acid divided by
// purity gives grams of concentrated solution; volume is mass over density.
func SulfuricAcidVolume(volumeML, molarity float64) float64 {
	moles := (volumeML / 1000.0) * molarity
	gramsNeeded := moles * MolarMasses[sulfuricAcidFormula]
	gramsSolution := gramsNeeded / SulfuricAcidPurity
	return gramsSolution / SulfuricAcidDensityGML
}
