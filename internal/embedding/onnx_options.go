package embedding

// Pooling modes for ONNX model outputs.
const (
	// PoolingNone reads a model output that is already one vector per input, shape (1, dims).
	PoolingNone = "none"
	// PoolingMean averages a (1, tokens, dims) hidden state over the attended tokens.
	PoolingMean = "mean"
)

type onnxSettings struct {
	outputName string
	pooling    string
}

func defaultONNXSettings() onnxSettings {
	return onnxSettings{outputName: "output", pooling: PoolingNone}
}

// ONNXOption configures an ONNXEmbedder.
type ONNXOption func(*onnxSettings)

// WithOutputName selects the model output to read. Empty keeps the default.
func WithOutputName(name string) ONNXOption {
	return func(s *onnxSettings) {
		if name != "" {
			s.outputName = name
		}
	}
}

// WithPooling selects PoolingNone or PoolingMean. Other values keep the default.
func WithPooling(mode string) ONNXOption {
	return func(s *onnxSettings) {
		if mode == PoolingNone || mode == PoolingMean {
			s.pooling = mode
		}
	}
}

// meanPool averages the rows of hidden (tokens x dims, row-major) whose mask is non-zero.
// With no attended token the result is the zero vector.
func meanPool(hidden []float32, mask []int64, dims int) []float32 {
	out := make([]float32, dims)
	var n float32
	for t, m := range mask {
		if m == 0 {
			continue
		}
		row := hidden[t*dims : (t+1)*dims]
		for i, v := range row {
			out[i] += v
		}
		n++
	}
	if n > 0 {
		for i := range out {
			out[i] /= n
		}
	}
	return out
}
