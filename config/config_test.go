package config

import (
	"os"
	"testing"
)

func TestDefaultMatchesSimulatorHardcodedParams(t *testing.T) {
	c := Default()
	if c.GridX != 500 || c.GridY != 1500 {
		t.Errorf("grid = %dx%d, want 500x1500", c.GridX, c.GridY)
	}
	if c.NumSpecies != 5 {
		t.Errorf("NumSpecies = %d, want 5", c.NumSpecies)
	}
	if c.Steps != 200 {
		t.Errorf("Steps = %d, want 200", c.Steps)
	}
}

func TestReadMissingFileReturnsDefaults(t *testing.T) {
	c, err := Read("/nonexistent/path/to/config.conf")
	if err != nil {
		t.Fatalf("Read on missing file returned error: %v", err)
	}
	if c.GridX != Default().GridX {
		t.Errorf("Read on missing file = %+v, want defaults", c)
	}
}

func TestReadOverridesSelectedFields(t *testing.T) {
	content := `
gridX 100
gridY 200
numSpecies 3
steps 50
readRatio 0.8
`
	f, err := os.CreateTemp("", "poet_config_*.conf")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	f.Close()

	c, err := Read(f.Name())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if c.GridX != 100 || c.GridY != 200 {
		t.Errorf("grid = %dx%d, want 100x200", c.GridX, c.GridY)
	}
	if c.NumSpecies != 3 {
		t.Errorf("NumSpecies = %d, want 3", c.NumSpecies)
	}
	if c.Steps != 50 {
		t.Errorf("Steps = %d, want 50", c.Steps)
	}
	if c.ReadRatio != 0.8 {
		t.Errorf("ReadRatio = %v, want 0.8", c.ReadRatio)
	}
	// Fields absent from the file keep their default value.
	if c.DiffusionD != Default().DiffusionD {
		t.Errorf("DiffusionD = %v, want unchanged default %v", c.DiffusionD, Default().DiffusionD)
	}
}

func TestReadInvalidIntReturnsError(t *testing.T) {
	content := "gridX notanumber\n"
	f, err := os.CreateTemp("", "poet_config_*.conf")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := Read(f.Name()); err == nil {
		t.Error("Read with invalid gridX value, want error")
	}
}

func TestReadIgnoresComments(t *testing.T) {
	content := `
// this is a comment
gridX 77
`
	f, err := os.CreateTemp("", "poet_config_*.conf")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	f.Close()

	c, err := Read(f.Name())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if c.GridX != 77 {
		t.Errorf("GridX = %d, want 77", c.GridX)
	}
}
