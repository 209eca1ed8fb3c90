package nn

import (
	"math"
	"math/rand"
)

// Network is a fully-connected MLP built from a validated layer spec. It
// always emits raw scores; classification probabilities are produced by the
// loss during training and by Softmax at prediction time.
type Network struct {
	task   string
	layers []*dense
}

// dense is one weight layer plus its activation. Forward caches the inputs
// and pre-activations needed by Backward; caches are only written during
// training passes.
type dense struct {
	in, out    int
	activation string

	w, b   []float64 // w is row-major [in][out]
	dw, db []float64

	x []float64 // cached input batch, row-major [batch][in]
	z []float64 // cached pre-activation, row-major [batch][out]
	a []float64 // cached activation output
	n int       // cached batch size
}

// Build validates the spec against the declared dimensions and constructs
// the network. The input layer contributes no weights; every later layer is
// a dense projection from its predecessor. A *ConfigError is returned for
// any structural violation.
func Build(spec []LayerSpec, inputDim, outputDim int, task string, seed int64) (*Network, error) {
	if err := ValidateSpec(spec, inputDim, outputDim, task); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))
	net := &Network{task: task}
	prev := spec[0].Width
	for idx, layer := range spec[1:] {
		isFinal := idx == len(spec)-2
		activation := layer.Activation
		if activation == "linear" {
			activation = ""
		}
		// Raw scores out of the final layer; a configured softmax is
		// accepted but not applied.
		if isFinal {
			activation = ""
		}
		net.layers = append(net.layers, newDense(prev, layer.Width, activation, rng))
		prev = layer.Width
	}
	return net, nil
}

func newDense(in, out int, activation string, rng *rand.Rand) *dense {
	d := &dense{
		in:         in,
		out:        out,
		activation: activation,
		w:          make([]float64, in*out),
		b:          make([]float64, out),
		dw:         make([]float64, in*out),
		db:         make([]float64, out),
	}
	// He initialization for relu, Xavier otherwise.
	scale := math.Sqrt(1.0 / float64(in))
	if activation == "relu" {
		scale = math.Sqrt(2.0 / float64(in))
	}
	for i := range d.w {
		d.w[i] = rng.NormFloat64() * scale
	}
	return d
}

// Forward runs a batch through the network and returns the raw outputs.
// When train is true, each layer caches what Backward needs.
func (n *Network) Forward(batch [][]float64, train bool) [][]float64 {
	out := batch
	for _, layer := range n.layers {
		out = layer.forward(out, train)
	}
	return out
}

// Backward propagates the loss gradient and accumulates per-layer weight
// gradients. It must follow a Forward call with train=true on the same batch.
func (n *Network) Backward(grad [][]float64) {
	g := grad
	for i := len(n.layers) - 1; i >= 0; i-- {
		g = n.layers[i].backward(g)
	}
}

// Parameters returns flat parameter vectors sharing storage with the layers;
// optimizers mutate them in place.
func (n *Network) Parameters() [][]float64 {
	params := make([][]float64, 0, 2*len(n.layers))
	for _, layer := range n.layers {
		params = append(params, layer.w, layer.b)
	}
	return params
}

// Gradients returns the gradient vectors parallel to Parameters.
func (n *Network) Gradients() [][]float64 {
	grads := make([][]float64, 0, 2*len(n.layers))
	for _, layer := range n.layers {
		grads = append(grads, layer.dw, layer.db)
	}
	return grads
}

// Predict runs a single sample in inference mode and returns the raw output
// scores.
func (n *Network) Predict(sample []float64) []float64 {
	out := n.Forward([][]float64{sample}, false)
	return out[0]
}

// Task reports the task type the network was built for.
func (n *Network) Task() string { return n.task }

// InputDim reports the expected feature count per sample.
func (n *Network) InputDim() int {
	if len(n.layers) == 0 {
		return 0
	}
	return n.layers[0].in
}

// OutputDim reports the width of the final layer.
func (n *Network) OutputDim() int {
	if len(n.layers) == 0 {
		return 0
	}
	return n.layers[len(n.layers)-1].out
}

func (d *dense) forward(batch [][]float64, train bool) [][]float64 {
	n := len(batch)
	z := make([]float64, n*d.out)
	for i, row := range batch {
		base := i * d.out
		for j := 0; j < d.out; j++ {
			sum := d.b[j]
			for k, v := range row {
				sum += v * d.w[k*d.out+j]
			}
			z[base+j] = sum
		}
	}

	out := make([][]float64, n)
	a := make([]float64, n*d.out)
	for i := 0; i < n; i++ {
		row := applyActivation(d.activation, z[i*d.out:(i+1)*d.out])
		copy(a[i*d.out:], row)
		out[i] = row
	}

	if train {
		d.n = n
		d.x = flatten(batch, d.in)
		d.z = z
		d.a = a
	}
	return out
}

func (d *dense) backward(grad [][]float64) [][]float64 {
	n := d.n

	// Gradient through the activation first.
	delta := make([]float64, n*d.out)
	for i, row := range grad {
		dz := activationGrad(d.activation, d.z[i*d.out:(i+1)*d.out], d.a[i*d.out:(i+1)*d.out], row)
		copy(delta[i*d.out:], dz)
	}

	for i := range d.dw {
		d.dw[i] = 0
	}
	for j := range d.db {
		d.db[j] = 0
	}
	gradIn := make([][]float64, n)
	for i := 0; i < n; i++ {
		gi := make([]float64, d.in)
		for k := 0; k < d.in; k++ {
			xv := d.x[i*d.in+k]
			var sum float64
			for j := 0; j < d.out; j++ {
				dv := delta[i*d.out+j]
				d.dw[k*d.out+j] += xv * dv
				sum += dv * d.w[k*d.out+j]
			}
			gi[k] = sum
		}
		gradIn[i] = gi
	}
	for i := 0; i < n; i++ {
		for j := 0; j < d.out; j++ {
			d.db[j] += delta[i*d.out+j]
		}
	}
	return gradIn
}

func flatten(batch [][]float64, width int) []float64 {
	flat := make([]float64, len(batch)*width)
	for i, row := range batch {
		copy(flat[i*width:], row)
	}
	return flat
}
