package tariff

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ispdb-server/internal/model"
)

func writeTariffFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tariff.txt")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write tariff file: %v", err)
	}
	return path
}

func validRates() string {
	var in, out []string
	for i := 0; i < model.HoursInDay; i++ {
		in = append(in, "0.10")
		out = append(out, "0.20")
	}
	return strings.Join(in, " ") + "\n" + strings.Join(out, " ") + "\n"
}

func TestLoadFromFileValid(t *testing.T) {
	path := writeTariffFile(t, validRates())

	var p Plan
	if err := p.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	in, err := p.CostIn(0)
	if err != nil {
		t.Fatalf("CostIn: %v", err)
	}
	if in != 0.10 {
		t.Errorf("CostIn(0) = %v, want 0.10", in)
	}

	out, err := p.CostOut(23)
	if err != nil {
		t.Fatalf("CostOut: %v", err)
	}
	if out != 0.20 {
		t.Errorf("CostOut(23) = %v, want 0.20", out)
	}
}

func TestLoadFromFileHonorsComments(t *testing.T) {
	contents := "# in rates\n" + validRates()
	path := writeTariffFile(t, contents)

	var p Plan
	if err := p.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
}

func TestLoadFromFileWrongCount(t *testing.T) {
	path := writeTariffFile(t, "0.1 0.2 0.3\n")

	var p Plan
	if err := p.LoadFromFile(path); err == nil {
		t.Fatalf("expected error for wrong rate count")
	}
}

func TestLoadFromFileNegativeRate(t *testing.T) {
	rates := validRates()
	rates = strings.Replace(rates, "0.10", "-0.10", 1)
	path := writeTariffFile(t, rates)

	var p Plan
	if err := p.LoadFromFile(path); err == nil {
		t.Fatalf("expected error for negative rate")
	}
}

func TestLoadFromFileNonNumericToken(t *testing.T) {
	path := writeTariffFile(t, "abc "+validRates())

	var p Plan
	if err := p.LoadFromFile(path); err == nil {
		t.Fatalf("expected error for non-numeric token")
	}
}

func TestLoadFromFileFailurePreservesPreviousRates(t *testing.T) {
	goodPath := writeTariffFile(t, validRates())
	var p Plan
	if err := p.LoadFromFile(goodPath); err != nil {
		t.Fatalf("LoadFromFile (good): %v", err)
	}

	badPath := writeTariffFile(t, "not numeric\n")
	if err := p.LoadFromFile(badPath); err == nil {
		t.Fatalf("expected error loading malformed tariff file")
	}

	in, err := p.CostIn(0)
	if err != nil {
		t.Fatalf("CostIn: %v", err)
	}
	if in != 0.10 {
		t.Errorf("expected previously loaded rate to survive a failed reload, got %v", in)
	}
}

func TestUnloadedPlanReturnsZero(t *testing.T) {
	var p Plan
	in, err := p.CostIn(5)
	if err != nil {
		t.Fatalf("CostIn: %v", err)
	}
	if in != 0 {
		t.Errorf("expected unloaded plan to charge 0, got %v", in)
	}
}

func TestCostInOutOfRangeHour(t *testing.T) {
	var p Plan
	if _, err := p.CostIn(-1); err == nil {
		t.Errorf("expected error for negative hour")
	}
	if _, err := p.CostOut(24); err == nil {
		t.Errorf("expected error for hour 24")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	var p Plan
	if err := p.LoadFromFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatalf("expected error for missing tariff file")
	}
}
