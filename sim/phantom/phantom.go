// Package phantom models the virtual object being imaged: a set of spatial
// locations with per-location tissue parameters, plus optional diffusion and
// T2* maps for the spin-state variants that consume them.
package phantom

import "gonum.org/v1/gonum/spatial/r3"

// TissueParams holds the relaxation parameters of one location. A T1 or T2
// of zero or below means that relaxation channel is disabled (treated as an
// infinite time constant).
type TissueParams struct {
	PD float64 `yaml:"pd"`
	T1 float64 `yaml:"t1"`
	T2 float64 `yaml:"t2"`
}

// Phantom is the read side consumed by the simulation driver. Locations are
// addressed by a dense index in [0, NumLocations).
type Phantom interface {
	NumLocations() int
	Location(i int) r3.Vec
	Params(i int) TissueParams

	// Diffusion and T2Star report per-location map values; ok is false when
	// the phantom carries no such map.
	Diffusion(i int) (float64, bool)
	T2Star(i int) (float64, bool)
}

// Grid is a phantom on a regular lattice centered on the origin.
type Grid struct {
	Name string

	nx, ny, nz int
	locs       []r3.Vec
	tissue     []TissueParams
	diff       []float64
	t2star     []float64
}

// NewGrid builds an nx x ny x nz lattice spanning the given field of view in
// meters, with every location carrying the same tissue parameters. Location
// index runs x fastest, z slowest.
func NewGrid(nx, ny, nz int, fov [3]float64, tissue TissueParams) *Grid {
	n := nx * ny * nz
	g := &Grid{
		nx:     nx,
		ny:     ny,
		nz:     nz,
		locs:   make([]r3.Vec, 0, n),
		tissue: make([]TissueParams, n),
	}
	for iz := 0; iz < nz; iz++ {
		for iy := 0; iy < ny; iy++ {
			for ix := 0; ix < nx; ix++ {
				g.locs = append(g.locs, r3.Vec{
					X: axisCoord(ix, nx, fov[0]),
					Y: axisCoord(iy, ny, fov[1]),
					Z: axisCoord(iz, nz, fov[2]),
				})
			}
		}
	}
	for i := range g.tissue {
		g.tissue[i] = tissue
	}
	return g
}

// NewPoint builds a single-location phantom, handy for probing one spin
// group at a known position.
func NewPoint(loc r3.Vec, tissue TissueParams) *Grid {
	return &Grid{
		nx: 1, ny: 1, nz: 1,
		locs:   []r3.Vec{loc},
		tissue: []TissueParams{tissue},
	}
}

// Demo returns a small uniform lattice with relaxation disabled, the
// companion of the demo sequence for smoke runs.
func Demo() *Grid {
	g := NewGrid(3, 3, 1, [3]float64{0.2, 0.2, 0.2}, TissueParams{PD: 1})
	g.Name = "demo-uniform"
	return g
}

func axisCoord(i, n int, fov float64) float64 {
	return (float64(i) - float64(n-1)/2) * fov / float64(n)
}

func (g *Grid) NumLocations() int { return len(g.locs) }

func (g *Grid) Location(i int) r3.Vec { return g.locs[i] }

func (g *Grid) Params(i int) TissueParams { return g.tissue[i] }

func (g *Grid) Diffusion(i int) (float64, bool) {
	if g.diff == nil {
		return 0, false
	}
	return g.diff[i], true
}

func (g *Grid) T2Star(i int) (float64, bool) {
	if g.t2star == nil {
		return 0, false
	}
	return g.t2star[i], true
}

// Shape returns the lattice dimensions.
func (g *Grid) Shape() (nx, ny, nz int) { return g.nx, g.ny, g.nz }

// SetTissueAt overrides the tissue parameters of one location.
func (g *Grid) SetTissueAt(i int, tissue TissueParams) {
	g.tissue[i] = tissue
}

// FillSphere assigns tissue parameters to every location inside the sphere.
func (g *Grid) FillSphere(center r3.Vec, radius float64, tissue TissueParams) {
	for i, loc := range g.locs {
		if r3.Norm(r3.Sub(loc, center)) <= radius {
			g.tissue[i] = tissue
		}
	}
}

// SetDiffusion attaches a uniform diffusion coefficient map, in m^2/s.
func (g *Grid) SetDiffusion(d float64) {
	g.diff = make([]float64, len(g.locs))
	for i := range g.diff {
		g.diff[i] = d
	}
}

// SetT2Star attaches a uniform T2* map, in seconds.
func (g *Grid) SetT2Star(ts float64) {
	g.t2star = make([]float64, len(g.locs))
	for i := range g.t2star {
		g.t2star[i] = ts
	}
}
