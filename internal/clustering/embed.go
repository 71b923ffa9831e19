package clustering

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Embedder maps normalized feature rows into the space the clusterer works in.
type Embedder interface {
	// Fit updates the embedding from rows and returns a training loss.
	Fit(rows [][]float64) (float64, error)
	// Embed maps rows into embedding space.
	Embed(rows [][]float64) ([][]float64, error)
}

// IdentityEmbedder clusters the normalized features directly.
type IdentityEmbedder struct{}

// Fit implements Embedder. There is nothing to learn, so the loss is zero.
func (IdentityEmbedder) Fit([][]float64) (float64, error) { return 0, nil }

// Embed implements Embedder.
func (IdentityEmbedder) Embed(rows [][]float64) ([][]float64, error) { return rows, nil }

// ErrNotFitted is returned when an embedder is used before Fit.
var ErrNotFitted = errors.New("embedder has not been fitted")

// PCAEmbedder projects rows onto their leading principal components.
// Each Fit refits the projection on the new rows.
type PCAEmbedder struct {
	Components int

	mean    []float64
	vectors *mat.Dense // dims x Components
}

// NewPCAEmbedder creates a PCA embedder keeping the given number of components.
func NewPCAEmbedder(components int) (*PCAEmbedder, error) {
	if components < 1 {
		return nil, fmt.Errorf("components must be positive, got %d", components)
	}
	return &PCAEmbedder{Components: components}, nil
}

// Fit computes the principal components of rows. The loss is the fraction of
// variance not explained by the kept components.
func (p *PCAEmbedder) Fit(rows [][]float64) (float64, error) {
	if len(rows) < 2 {
		return 0, fmt.Errorf("PCA needs at least 2 rows, got %d", len(rows))
	}
	dims := len(rows[0])
	for i, row := range rows {
		if len(row) != dims {
			return 0, fmt.Errorf("row %d has %d values, expected %d", i, len(row), dims)
		}
	}

	data := toDense(rows)
	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return 0, errors.New("principal component analysis failed")
	}

	var vectors mat.Dense
	pc.VectorsTo(&vectors)
	variances := pc.VarsTo(nil)
	if _, available := vectors.Dims(); p.Components > available {
		return 0, fmt.Errorf("cannot keep %d components, only %d available", p.Components, available)
	}

	mean := make([]float64, dims)
	for j := range mean {
		mean[j] = stat.Mean(mat.Col(nil, j, data), nil)
	}

	kept := vectors.Slice(0, dims, 0, p.Components)
	p.vectors = mat.DenseCopyOf(kept)
	p.mean = mean

	total, explained := 0.0, 0.0
	for i, v := range variances {
		total += v
		if i < p.Components {
			explained += v
		}
	}
	if total == 0 {
		return 0, nil
	}
	return 1 - explained/total, nil
}

// Embed centres rows on the fitted mean and projects them.
func (p *PCAEmbedder) Embed(rows [][]float64) ([][]float64, error) {
	if p.vectors == nil {
		return nil, ErrNotFitted
	}
	if len(rows) == 0 {
		return [][]float64{}, nil
	}

	dims, _ := p.vectors.Dims()
	centred := mat.NewDense(len(rows), dims, nil)
	for i, row := range rows {
		if len(row) != dims {
			return nil, fmt.Errorf("row %d has %d values, embedder expects %d", i, len(row), dims)
		}
		for j, v := range row {
			centred.Set(i, j, v-p.mean[j])
		}
	}

	var projected mat.Dense
	projected.Mul(centred, p.vectors)

	out := make([][]float64, len(rows))
	for i := range out {
		out[i] = mat.Row(nil, i, &projected)
	}
	return out, nil
}

func toDense(rows [][]float64) *mat.Dense {
	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m
}
