package simple

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/Noofbiz/drivingset/history"
	"k8s.io/klog/v2"
)

// Config holds configurable hyperparameters for the MLP model and training.
type Config struct {
	// HiddenSizes is the list of hidden layer sizes. Example: []int{64, 32}
	// If empty, a single hidden layer of size 64 will be used.
	HiddenSizes []int

	// InputDim is the dimensionality of the input feature vector. If zero,
	// DefaultPoolRows*DefaultPoolCols is used, the size of a pooled camera frame.
	InputDim int

	// OutputDim is the number of regressed targets. If zero, 1 (steering).
	OutputDim int

	// LearningRate used by the SGD updates.
	LearningRate float64

	// Epochs to train for (default if 0 will be set by NewModel to 5).
	Epochs int

	// BatchSize for mini-batch updates (default if 0 will be set by NewModel to 256).
	BatchSize int

	// Seed controls RNG for weight init and shuffling. If zero, time-based seed is used.
	Seed int64
}

// Dataset is the minimal interface this package requires from a training set.
// MemoryDataset, built from a dataset container group by LoadGroup, matches it.
type Dataset interface {
	Len() int
	// Batch returns inputs and labels for the provided indices.
	// Inputs: [][]float32 of dimension InputDim.
	// Labels: [][]float32 of dimension OutputDim.
	Batch(indices []int) ([][]float32, [][]float32, error)
}

// Model is a small configurable MLP regressing driving targets (the steering
// angle by default) from pooled camera frames. It uses a lightweight,
// self-contained trainer implemented in pure Go so tests run quickly and
// deterministically.
type Model struct {
	// Config used for training / initialization.
	Config Config

	// layerSizes includes input size, hidden sizes, then output size.
	layerSizes []int

	// weights[l] is a matrix of shape [out][in] for layer l -> l+1
	weights [][][]float32

	// biases[l] is a vector of length out for layer l -> l+1
	biases [][]float32

	// rng used for weight initialization and shuffling
	rng *rand.Rand
}

// NewModel creates a new Model instance with the provided configuration.
// It initializes weights (small random values) and is ready to train.
func NewModel(cfg Config) (*Model, error) {
	// defaults
	if len(cfg.HiddenSizes) == 0 {
		cfg.HiddenSizes = []int{64}
	}
	if cfg.InputDim == 0 {
		cfg.InputDim = DefaultPoolRows * DefaultPoolCols
	}
	if cfg.OutputDim == 0 {
		cfg.OutputDim = 1
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.001
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = 5
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 256
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	for _, h := range cfg.HiddenSizes {
		if h <= 0 {
			return nil, fmt.Errorf("hidden layer sizes must be positive, got %v", cfg.HiddenSizes)
		}
	}
	if cfg.InputDim < 0 || cfg.OutputDim < 0 {
		return nil, fmt.Errorf("dimensions must be positive, got input %d output %d", cfg.InputDim, cfg.OutputDim)
	}

	m := &Model{
		Config: cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}

	// build layer sizes
	sizes := make([]int, 0, 2+len(cfg.HiddenSizes))
	sizes = append(sizes, cfg.InputDim)
	sizes = append(sizes, cfg.HiddenSizes...)
	sizes = append(sizes, cfg.OutputDim)
	m.layerSizes = sizes

	// allocate weights and biases
	L := len(sizes) - 1
	m.weights = make([][][]float32, L)
	m.biases = make([][]float32, L)
	for l := 0; l < L; l++ {
		in := sizes[l]
		out := sizes[l+1]
		// Xavier/Glorot uniform initialization heuristic
		limit := float32(math.Sqrt(6.0 / float64(in+out)))
		mat := make([][]float32, out)
		for j := 0; j < out; j++ {
			row := make([]float32, in)
			for i := 0; i < in; i++ {
				row[i] = (m.rng.Float32()*2.0 - 1.0) * limit * 0.5
			}
			mat[j] = row
		}
		m.weights[l] = mat
		m.biases[l] = make([]float32, out)
	}

	return m, nil
}

// activationReLU applies ReLU in-place over the slice.
func activationReLU(x []float32) {
	for i := range x {
		if x[i] < 0 {
			x[i] = 0
		}
	}
}

// activationReLUDeriv returns elementwise derivative of ReLU applied to preact.
// derivative is 1 where preact>0, else 0.
func activationReLUDeriv(preact []float32) []float32 {
	d := make([]float32, len(preact))
	for i := range preact {
		if preact[i] > 0 {
			d[i] = 1.0
		} else {
			d[i] = 0.0
		}
	}
	return d
}

// forwardSingle performs a forward pass for a single input vector, returning:
// - preActivations: list of pre-activation vectors per layer (len = L)
// - activations: list of activation vectors per layer (len = L+1, activations[0] = input)
// Note: L is number of layers (hidden+output)
func (m *Model) forwardSingle(input []float32) (preActs [][]float32, acts [][]float32, err error) {
	if len(input) != m.layerSizes[0] {
		return nil, nil, errors.New("input has incorrect dimension")
	}
	L := len(m.weights)
	acts = make([][]float32, L+1)
	acts[0] = make([]float32, len(input))
	copy(acts[0], input)

	preActs = make([][]float32, L)
	for l := 0; l < L; l++ {
		inVec := acts[l]
		outDim := len(m.biases[l])
		inDim := len(inVec)
		pre := make([]float32, outDim)
		W := m.weights[l]
		b := m.biases[l]
		for j := 0; j < outDim; j++ {
			sum := float32(0.0)
			row := W[j]
			for i := 0; i < inDim; i++ {
				sum += row[i] * inVec[i]
			}
			sum += b[j]
			pre[j] = sum
		}
		preActs[l] = pre

		// Activation: ReLU for hidden, linear for last layer
		act := make([]float32, outDim)
		copy(act, pre)
		if l < L-1 {
			activationReLU(act)
		}
		acts[l+1] = act
	}
	return preActs, acts, nil
}

// PredictBatch returns model predictions for a batch of inputs.
// It does a purely forward pass (no training). The returned [][]float32 has
// shape [batch][OutputDim].
func (m *Model) PredictBatch(inputs [][]float32) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		_, acts, err := m.forwardSingle(in)
		if err != nil {
			return nil, err
		}
		// last activation is output
		last := acts[len(acts)-1]
		pred := make([]float32, len(last))
		copy(pred, last)
		out[i] = pred
	}
	return out, nil
}

// Fit trains the model on train with a small in-package SGD trainer that
// does not depend on any external deep-learning framework: mini-batch SGD
// with ReLU activations and a mean-squared-error loss. After every epoch it
// records the MSE over train and valid; valid may be nil, its loss is then
// left at zero.
func (m *Model) Fit(train, valid Dataset) ([]history.Record, error) {
	if train == nil {
		return nil, errors.New("dataset is nil")
	}
	n := train.Len()
	if n == 0 {
		return nil, errors.New("dataset has no examples")
	}

	epochs := m.Config.Epochs
	if epochs <= 0 {
		epochs = 5
	}

	// Build initial index slice
	indices := make([]int, n)
	for i := 0; i < n; i++ {
		indices[i] = i
	}

	records := make([]history.Record, 0, epochs)
	for ep := 0; ep < epochs; ep++ {
		// shuffle indices
		m.rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		if err := m.trainEpoch(train, indices); err != nil {
			return records, err
		}

		var rec history.Record
		var err error
		if rec.Train, err = m.Evaluate(train); err != nil {
			return records, err
		}
		if valid != nil && valid.Len() > 0 {
			if rec.Valid, err = m.Evaluate(valid); err != nil {
				return records, err
			}
		}
		klog.V(1).Infof("Epoch %d/%d: train loss %.6f, valid loss %.6f", ep+1, epochs, rec.Train, rec.Valid)
		records = append(records, rec)
	}
	return records, nil
}

// TrainWithDataset trains on ds without validation.
func (m *Model) TrainWithDataset(ds Dataset) error {
	_, err := m.Fit(ds, nil)
	return err
}

// trainEpoch runs one pass of mini-batch SGD over ds in the given order.
func (m *Model) trainEpoch(ds Dataset, indices []int) error {
	n := len(indices)
	batchSize := m.Config.BatchSize
	if batchSize <= 0 {
		batchSize = 256
	}
	lr := float32(m.Config.LearningRate)
	if lr <= 0 {
		lr = 0.001
	}

	// iterate minibatches (we will accumulate gradients over the minibatch and apply averaged SGD update)
	for bstart := 0; bstart < n; bstart += batchSize {
		bend := min(bstart+batchSize, n)
		batchIdx := indices[bstart:bend]

		// fetch the whole minibatch in one call
		inputs, labels, err := ds.Batch(batchIdx)
		if err != nil {
			return err
		}
		batchN := len(inputs)
		if batchN == 0 {
			continue
		}

		// Initialize gradient accumulators (same shape as weights / biases)
		L := len(m.weights)
		gradW := make([][][]float32, L)
		gradB := make([][]float32, L)
		for l := 0; l < L; l++ {
			outDim := len(m.biases[l])
			inDim := len(m.weights[l][0])
			gradW[l] = make([][]float32, outDim)
			for j := 0; j < outDim; j++ {
				gradW[l][j] = make([]float32, inDim)
			}
			gradB[l] = make([]float32, outDim)
		}

		// Accumulate gradients for each example in the batch
		for ex := 0; ex < batchN; ex++ {
			in := inputs[ex]
			la := labels[ex]

			preacts, acts, err := m.forwardSingle(in)
			if err != nil {
				return err
			}

			// dLoss/dOutput = 2*(pred - label)
			outAct := acts[len(acts)-1]
			if len(la) != len(outAct) {
				return fmt.Errorf("label has dimension %d, expected %d", len(la), len(outAct))
			}
			delta := make([]float32, len(outAct))
			for j := 0; j < len(outAct); j++ {
				delta[j] = 2.0 * (outAct[j] - la[j])
			}

			// Backprop to compute gradients, accumulate into gradW/gradB
			for l := len(m.weights) - 1; l >= 0; l-- {
				inAct := acts[l]
				outDim := len(delta)
				inDim := len(inAct)

				// accumulate bias gradients and weight gradients
				for j := 0; j < outDim; j++ {
					gradB[l][j] += delta[j]
					for i := 0; i < inDim; i++ {
						gradW[l][j][i] += delta[j] * inAct[i]
					}
				}

				// propagate delta to previous layer if needed
				if l > 0 {
					prevLen := len(m.weights[l][0])
					newDelta := make([]float32, prevLen)
					for i := 0; i < prevLen; i++ {
						sum := float32(0.0)
						for j := 0; j < outDim; j++ {
							sum += m.weights[l][j][i] * delta[j]
						}
						newDelta[i] = sum
					}
					deriv := activationReLUDeriv(preacts[l-1])
					for i := 0; i < prevLen; i++ {
						newDelta[i] *= deriv[i]
					}
					delta = newDelta
				}
			}
		}

		// Apply averaged gradients (SGD) over the minibatch
		bInv := float32(1.0 / float64(batchN))
		for l := 0; l < L; l++ {
			outDim := len(m.biases[l])
			inDim := len(m.weights[l][0])
			for j := 0; j < outDim; j++ {
				db := gradB[l][j] * bInv
				m.biases[l][j] -= lr * db
				for i := 0; i < inDim; i++ {
					dw := gradW[l][j][i] * bInv
					m.weights[l][j][i] -= lr * dw
				}
			}
		}
	}
	return nil
}

// Evaluate returns the mean squared error of the model over ds, in stored
// order.
func (m *Model) Evaluate(ds Dataset) (float64, error) {
	n := ds.Len()
	if n == 0 {
		return 0, errors.New("dataset has no examples")
	}
	batchSize := m.Config.BatchSize
	if batchSize <= 0 {
		batchSize = 256
	}
	var sum float64
	var count int
	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)
		indices := make([]int, end-start)
		for i := range indices {
			indices[i] = start + i
		}
		inputs, labels, err := ds.Batch(indices)
		if err != nil {
			return 0, err
		}
		preds, err := m.PredictBatch(inputs)
		if err != nil {
			return 0, err
		}
		for i := range preds {
			for j := range preds[i] {
				d := float64(preds[i][j] - labels[i][j])
				sum += d * d
				count++
			}
		}
	}
	return sum / float64(count), nil
}

// savedModel is the gob encoding of a Model.
type savedModel struct {
	Version    int
	Config     Config
	LayerSizes []int
	Weights    [][][]float32
	Biases     [][]float32
}

// modelVersion is incremented when savedModel changes.
const modelVersion = 1

// Save writes the model parameters to path using encoding/gob. It performs an
// atomic write (create temp file then rename).
func (m *Model) Save(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpName)
	}()

	enc := gob.NewEncoder(tmpFile)
	if err := enc.Encode(&savedModel{
		Version:    modelVersion,
		Config:     m.Config,
		LayerSizes: m.layerSizes,
		Weights:    m.weights,
		Biases:     m.biases,
	}); err != nil {
		return fmt.Errorf("encode model to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		klog.Warningf("sync temp model file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp model file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp model to target: %w", err)
	}
	return nil
}

// Load reads a model written by Save.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var saved savedModel
	if err := gob.NewDecoder(f).Decode(&saved); err != nil {
		return nil, fmt.Errorf("failed to decode model %s: %w", path, err)
	}
	if saved.Version != modelVersion {
		return nil, fmt.Errorf("model %s has version %d, expected %d", path, saved.Version, modelVersion)
	}
	if len(saved.LayerSizes) < 2 || len(saved.Weights) != len(saved.LayerSizes)-1 || len(saved.Biases) != len(saved.Weights) {
		return nil, fmt.Errorf("model %s is inconsistent: layers %v", path, saved.LayerSizes)
	}
	return &Model{
		Config:     saved.Config,
		layerSizes: saved.LayerSizes,
		weights:    saved.Weights,
		biases:     saved.Biases,
		rng:        rand.New(rand.NewSource(saved.Config.Seed)),
	}, nil
}
