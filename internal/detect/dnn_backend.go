package detect

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// GocvDNNBackend is the default concrete Backend, loading an ONNX/Caffe/
// Darknet model via gocv's DNN module (gocv.ReadNet). It is a narrow
// stand-in for whatever accelerator-specific engine a deployment actually
// uses; swapping backends means implementing Backend, not touching Adapter.
type GocvDNNBackend struct {
	net        gocv.Net
	inputW     int
	inputH     int
	outputName string
}

// NewGocvDNNBackend loads a model from modelPath with a fixed (w, h) input
// shape. outputName, when non-empty, selects a specific named output layer;
// otherwise the network's default unconnected output is used.
func NewGocvDNNBackend(modelPath string, w, h int, outputName string) (*GocvDNNBackend, error) {
	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("detect: failed to load model %q", modelPath)
	}
	return &GocvDNNBackend{net: net, inputW: w, inputH: h, outputName: outputName}, nil
}

// InputSize returns the model's fixed input shape.
func (b *GocvDNNBackend) InputSize() (w, h int) { return b.inputW, b.inputH }

// Infer runs a forward pass over input (already resized to InputSize) and
// decodes the output tensor into RawBox values in input's coordinate space.
//
// The output tensor layout assumed here is the common single-class-agnostic
// detection head shape (N, 6): [x1, y1, x2, y2, score, classID]. A
// deployment using a different head shape supplies its own Backend.
func (b *GocvDNNBackend) Infer(input gocv.Mat) ([]RawBox, error) {
	blob := gocv.BlobFromImage(input, 1.0/255.0, image.Pt(b.inputW, b.inputH), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	b.net.SetInput(blob, "")
	output := b.net.Forward(b.outputName)
	defer output.Close()

	if output.Empty() {
		return nil, fmt.Errorf("detect: empty output tensor")
	}

	rows := output.Total() / 6
	boxes := make([]RawBox, 0, rows)
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("detect: reading output tensor: %w", err)
	}

	for i := 0; i < rows; i++ {
		base := i * 6
		if base+5 >= len(data) {
			break
		}
		boxes = append(boxes, RawBox{
			X1:    float64(data[base]),
			Y1:    float64(data[base+1]),
			X2:    float64(data[base+2]),
			Y2:    float64(data[base+3]),
			Score: float64(data[base+4]),
		})
	}

	return boxes, nil
}

// Close releases the underlying network.
func (b *GocvDNNBackend) Close() error {
	return b.net.Close()
}
