package reagent

import (
	"errors"
	"math"
	"testing"
)

func approx(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSolidMass(t *testing.T) {
	cases := []struct {
		formula  string
		volumeML float64
		molarity float64
		want     float64
	}{
		{"K2CO3", 1000, 1, 138.205},
		{"K2CO3", 500, 0.5, 34.55125},
		{"Na2SO4·10H2O", 250, 1, 80.55},
		{"KNO3", 100, 2, 20.22064},
	}
	for _, tc := range cases {
		got, err := SolidMass(tc.formula, tc.volumeML, tc.molarity)
		if err != nil {
			t.Fatalf("%s: %v", tc.formula, err)
		}
		approx(t, got, tc.want)
	}
}

func TestSolidMassUnknownFormula(t *testing.T) {
	_, err := SolidMass("NaCl", 100, 1)
	var unknown UnknownFormulaError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected unknown formula error, got %v", err)
	}
	if unknown.Formula != "NaCl" {
		t.Fatalf("formula: %s", unknown.Formula)
	}
}

func TestSulfuricAcidVolume(t *testing.T) {
	// 1 L of 1 M: 98.079 g pure acid, /0.98 purity, /1.84 g/mL density.
	approx(t, SulfuricAcidVolume(1000, 1), 98.079/0.98/1.84)
	approx(t, SulfuricAcidVolume(500, 0.5), (0.25*98.079)/0.98/1.84)
}

func TestFormulasSortedAndComplete(t *testing.T) {
	formulas := Formulas()
	if len(formulas) != len(MolarMasses) {
		t.Fatalf("expected %d formulas, got %d", len(MolarMasses), len(formulas))
	}
	for i := 1; i < len(formulas); i++ {
		if formulas[i-1] >= formulas[i] {
			t.Fatalf("not sorted: %v", formulas)
		}
	}
}
