package model

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// ORTEngine runs a single-input, single-output ONNX graph with dynamic
// spatial dimensions.
type ORTEngine struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
}

// ORTOptions configures the onnxruntime environment and session.
type ORTOptions struct {
	// SharedLibraryPath points at libonnxruntime; empty uses the default lookup.
	SharedLibraryPath string
	IntraOpThreads    int
	InterOpThreads    int
}

// NewORTEngine initializes the onnxruntime environment (once) and loads the
// model at modelPath.
func NewORTEngine(modelPath string, opts ORTOptions) (*ORTEngine, error) {
	if !ort.IsInitialized() {
		if opts.SharedLibraryPath != "" {
			ort.SetSharedLibraryPath(opts.SharedLibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("%w: failed to initialize ONNX environment: %w", ErrModelLoad, err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read model inputs/outputs: %w", ErrModelLoad, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("%w: model declares %d inputs and %d outputs", ErrModelLoad, len(inputs), len(outputs))
	}

	sessOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create session options: %w", ErrModelLoad, err)
	}
	defer sessOpts.Destroy()

	if opts.IntraOpThreads > 0 {
		if err := sessOpts.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("%w: failed to set intra-op threads: %w", ErrModelLoad, err)
		}
	}
	if opts.InterOpThreads > 0 {
		if err := sessOpts.SetInterOpNumThreads(opts.InterOpThreads); err != nil {
			return nil, fmt.Errorf("%w: failed to set inter-op threads: %w", ErrModelLoad, err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, sessOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create ONNX session: %w", ErrModelLoad, err)
	}

	return &ORTEngine{
		session:    session,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
	}, nil
}

// Run executes the graph. The returned tensor owns a copy of the output data,
// so the onnxruntime buffers are released before returning.
func (e *ORTEngine) Run(in Tensor) (Tensor, error) {
	input, err := ort.NewTensor(ort.NewShape(in.Shape...), in.Data)
	if err != nil {
		return Tensor{}, fmt.Errorf("failed to build input tensor %q: %w", e.inputName, err)
	}
	defer input.Destroy()

	// nil output is allocated by onnxruntime with the graph's runtime shape
	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{input}, outputs); err != nil {
		return Tensor{}, fmt.Errorf("inference failed: %w", err)
	}
	if outputs[0] == nil {
		return Tensor{}, fmt.Errorf("no outputs returned by the model")
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return Tensor{}, fmt.Errorf("output %q is not a float32 tensor", e.outputName)
	}

	shape := out.GetShape()
	return Tensor{
		Shape: append([]int64(nil), shape...),
		Data:  append([]float32(nil), out.GetData()...),
	}, nil
}

func (e *ORTEngine) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}
