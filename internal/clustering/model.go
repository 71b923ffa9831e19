package clustering

import (
	"errors"
	"log/slog"

	"caterpillar/internal/logger"
)

// ErrNoData is returned when a model is trained or fitted before AddData.
var ErrNoData = errors.New("no data added")

// Clusterer is a density-based clusterer over plain feature rows.
// Fit returns one label per row; points in no cluster are labeled Noise.
type Clusterer interface {
	AddData(features [][]float64)
	Fit() ([]int, error)
}

// Data is anything exposing normalized feature rows, such as a dataset.
type Data interface {
	Features() [][]float64
}

// Model pairs a trainable embedding with a clusterer. The trainer hands it a
// fresh resample each epoch, then either trains it or asks it for labels.
type Model interface {
	AddData(data Data)
	Train() (float64, error)
	Fit() ([]int, error)
}

// Pipeline embeds rows with an Embedder and clusters the embeddings.
type Pipeline struct {
	embedder  Embedder
	clusterer Clusterer
	data      [][]float64
	embedded  [][]float64
	log       *slog.Logger
}

// NewPipeline creates a model from an embedder and a clusterer.
func NewPipeline(embedder Embedder, clusterer Clusterer) *Pipeline {
	return &Pipeline{
		embedder:  embedder,
		clusterer: clusterer,
		log:       logger.Get(),
	}
}

// AddData implements Model.
func (p *Pipeline) AddData(data Data) {
	p.data = data.Features()
	p.embedded = nil
}

// Train implements Model by fitting the embedder on the current data.
func (p *Pipeline) Train() (float64, error) {
	if len(p.data) == 0 {
		return 0, ErrNoData
	}
	return p.embedder.Fit(p.data)
}

// Fit implements Model by embedding the current data and clustering it.
func (p *Pipeline) Fit() ([]int, error) {
	if p.data == nil {
		return nil, ErrNoData
	}
	embedded, err := p.embedder.Embed(p.data)
	if err != nil {
		return nil, err
	}
	p.embedded = embedded

	p.clusterer.AddData(embedded)
	labels, err := p.clusterer.Fit()
	if err != nil {
		return nil, err
	}
	p.log.Debug("Model fit", "rows", len(p.data), "noise", countNoise(labels))
	return labels, nil
}

// Embeddings returns the rows produced by the last Fit.
func (p *Pipeline) Embeddings() [][]float64 {
	return p.embedded
}
