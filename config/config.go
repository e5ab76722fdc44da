// Package config implements a small line-oriented parser for the
// simulation and benchmark tuning parameters the cmd/poet binary reads at
// startup and passes on to the sim and bench packages, in the style of the teacher's own
// client/replica configuration file format.
package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// Error wraps one or more underlying parse errors with the field name
// that produced them, matching the teacher's config.Err idiom.
type Error struct {
	errs    []error
	field   string
	comment string
}

func (err *Error) Error() string {
	s := ""
	if err.field != "" {
		s = "field: " + err.field + " --"
	}
	for _, e := range err.errs {
		if e != nil {
			if s != "" {
				s += "\n"
			}
			s += "\t" + e.Error()
		}
	}
	if err.comment != "" {
		if s != "" {
			s += "\n"
		}
		s += "\t" + err.comment
	}
	return s
}

func Err(field, comment string, errs ...error) *Error {
	return &Error{errs: errs, field: field, comment: comment}
}

// Config holds every tunable parameter of a simulation or benchmark run.
// Read starts from Default(), so a missing config file (or a missing
// field within one) still produces a runnable configuration.
type Config struct {
	// -- grid / simulation parameters --
	GridX      int     // grid width
	GridY      int     // grid height
	NumSpecies int     // number of chemical species per cell
	Steps      int     // number of simulation steps
	DiffusionD float64 // diffusion coefficient D
	ReactionK  float64 // second-order reaction rate constant k
	Dt         float64 // timestep

	// -- partition parameters --
	Processes int // P, number of simulated ranks

	// -- benchmark parameters --
	OperationsPerProcess int     // per-rank operation count for a microbenchmark
	ReadRatio            float64 // Bernoulli probability an operation is a Get
	ScalabilityReadRatio float64 // read ratio used by the scalability sweep
	WarmupOps            int     // parsed and stored only: neither bench.Run nor cmd/poet issues warmup operations

	// CSV output path for the scalability sweep.
	ResultsPath string
}

// Default returns the configuration cmd/poet runs with when no config
// file is supplied, matching original_source/poet_simulator.cpp's
// hardcoded parameters.
func Default() *Config {
	return &Config{
		GridX:                500,
		GridY:                1500,
		NumSpecies:           5,
		Steps:                200,
		DiffusionD:           0.1,
		ReactionK:            0.05,
		Dt:                   0.01,
		Processes:            4,
		OperationsPerProcess: 100000,
		ReadRatio:            0.5,
		ScalabilityReadRatio: 0.7,
		WarmupOps:            1000,
		ResultsPath:          "scalability_results.csv",
	}
}

// Read parses filename into a copy of Default(), overriding whichever
// fields the file sets. A missing file is not an error: Read returns the
// defaults unchanged, since cmd/poet has no required config file.
func Read(filename string) (*Config, error) {
	c := Default()

	f, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		words := strings.Fields(s.Text())
		if len(words) < 1 || strings.HasPrefix(words[0], "//") {
			continue
		}

		var (
			ok  = false
			err error
		)
		switch strings.ToLower(words[0]) {
		case "gridx":
			c.GridX, err = expectInt(words)
			ok = true
		case "gridy":
			c.GridY, err = expectInt(words)
			ok = true
		case "numspecies":
			c.NumSpecies, err = expectInt(words)
			ok = true
		case "steps":
			c.Steps, err = expectInt(words)
			ok = true
		case "diffusiond":
			c.DiffusionD, err = expectFloat64(words)
			ok = true
		case "reactionk":
			c.ReactionK, err = expectFloat64(words)
			ok = true
		case "dt":
			c.Dt, err = expectFloat64(words)
			ok = true
		case "processes":
			c.Processes, err = expectInt(words)
			ok = true
		case "operationsperprocess":
			c.OperationsPerProcess, err = expectInt(words)
			ok = true
		case "readratio":
			c.ReadRatio, err = expectFloat64(words)
			ok = true
		case "scalabilityreadratio":
			c.ScalabilityReadRatio, err = expectFloat64(words)
			ok = true
		case "warmupops":
			c.WarmupOps, err = expectInt(words)
			ok = true
		case "resultspath":
			c.ResultsPath, err = expectString(words)
			ok = true
		}
		if ok && err != nil {
			return c, err
		}
	}

	return c, nil
}

func expectInt(ws []string) (int, error) {
	return expect(ws, strconv.Atoi, 0)
}

func expectFloat64(ws []string) (float64, error) {
	return expect(ws, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	}, 0.0)
}

func expectString(ws []string) (string, error) {
	return expect(ws, func(s string) (string, error) { return s, nil }, "")
}

type expectRet interface {
	int | float64 | string
}

func expect[R expectRet](ws []string, f func(string) (R, error), none R) (R, error) {
	if len(ws) < 2 || strings.HasPrefix(ws[1], "//") {
		return none, Err(ws[0], "Missing argument")
	}
	v, err := f(ws[1])
	if err != nil {
		return v, Err(ws[0], "Invalid argument", err)
	}
	return v, nil
}
