package phantom

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// GridSpec is the YAML description of a lattice phantom.
type GridSpec struct {
	Name      string       `yaml:"name"`
	Nx        int          `yaml:"nx"`
	Ny        int          `yaml:"ny"`
	Nz        int          `yaml:"nz"`
	FOV       []float64    `yaml:"fov"`
	Tissue    TissueParams `yaml:"tissue"`
	Spheres   []SphereSpec `yaml:"spheres,omitempty"`
	Diffusion *float64     `yaml:"diffusion,omitempty"`
	T2Star    *float64     `yaml:"t2_star,omitempty"`
}

// SphereSpec carves a spherical region with its own tissue parameters.
type SphereSpec struct {
	Center []float64    `yaml:"center"`
	Radius float64      `yaml:"radius"`
	Tissue TissueParams `yaml:"tissue"`
}

// Load reads a YAML phantom file and builds the grid.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func Load(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading phantom: %w", err)
	}
	return Parse(data)
}

// Parse parses a YAML phantom document and builds the grid.
func Parse(data []byte) (*Grid, error) {
	var spec GridSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing phantom: %w", err)
	}
	return spec.Build()
}

// Validate checks the spec before building.
func (s *GridSpec) Validate() error {
	if s.Nx < 1 || s.Ny < 1 || s.Nz < 1 {
		return fmt.Errorf("grid shape must be at least 1x1x1, got %dx%dx%d", s.Nx, s.Ny, s.Nz)
	}
	if len(s.FOV) != 3 {
		return fmt.Errorf("fov must have 3 entries, got %d", len(s.FOV))
	}
	for i, v := range s.FOV {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("fov[%d] must be positive, got %g", i, v)
		}
	}
	if err := validateTissue("tissue", s.Tissue); err != nil {
		return err
	}
	for i, sp := range s.Spheres {
		prefix := fmt.Sprintf("spheres[%d]", i)
		if len(sp.Center) != 3 {
			return fmt.Errorf("%s: center must have 3 entries, got %d", prefix, len(sp.Center))
		}
		if sp.Radius <= 0 {
			return fmt.Errorf("%s: radius must be positive, got %g", prefix, sp.Radius)
		}
		if err := validateTissue(prefix+".tissue", sp.Tissue); err != nil {
			return err
		}
	}
	if s.Diffusion != nil && *s.Diffusion < 0 {
		return fmt.Errorf("diffusion must be non-negative, got %g", *s.Diffusion)
	}
	if s.T2Star != nil && *s.T2Star <= 0 {
		return fmt.Errorf("t2_star must be positive, got %g", *s.T2Star)
	}
	return nil
}

func validateTissue(prefix string, p TissueParams) error {
	if math.IsNaN(p.PD) || math.IsInf(p.PD, 0) || p.PD < 0 {
		return fmt.Errorf("%s.pd must be non-negative, got %f", prefix, p.PD)
	}
	for _, f := range []struct {
		name string
		val  float64
	}{{"t1", p.T1}, {"t2", p.T2}} {
		if math.IsNaN(f.val) || math.IsInf(f.val, 0) {
			return fmt.Errorf("%s.%s must be a finite number, got %f", prefix, f.name, f.val)
		}
	}
	return nil
}

// Build validates the spec and constructs the grid.
func (s *GridSpec) Build() (*Grid, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	g := NewGrid(s.Nx, s.Ny, s.Nz, [3]float64{s.FOV[0], s.FOV[1], s.FOV[2]}, s.Tissue)
	g.Name = s.Name
	for _, sp := range s.Spheres {
		center := r3.Vec{X: sp.Center[0], Y: sp.Center[1], Z: sp.Center[2]}
		g.FillSphere(center, sp.Radius, sp.Tissue)
	}
	if s.Diffusion != nil {
		g.SetDiffusion(*s.Diffusion)
	}
	if s.T2Star != nil {
		g.SetT2Star(*s.T2Star)
	}
	return g, nil
}
