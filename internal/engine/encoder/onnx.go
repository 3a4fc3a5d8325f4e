package encoder

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortEnv guards process-wide ONNX Runtime initialization. The shared library
// path of the first caller wins.
var ortEnv struct {
	once sync.Once
	err  error
}

func initRuntime(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// session wraps an inference session over a BERT-family encoder export.
// Models must accept input_ids and attention_mask; token_type_ids is fed
// only when the export declares it (DistilBERT exports drop the input).
type session struct {
	sess         *ort.DynamicAdvancedSession
	inputNames   []string
	outputName   string
	dim          int64
	wantsTypeIDs bool
}

func newSession(modelPath, libPath string) (*session, error) {
	if err := initRuntime(libPath); err != nil {
		return nil, fmt.Errorf("onnx: initializing runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: reading model info: %w", err)
	}

	declared := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		declared[in.Name] = true
	}
	for _, name := range []string{"input_ids", "attention_mask"} {
		if !declared[name] {
			return nil, fmt.Errorf("onnx: model missing required input %q", name)
		}
	}
	inputNames := []string{"input_ids", "attention_mask"}
	wantsTypeIDs := declared["token_type_ids"]
	if wantsTypeIDs {
		inputNames = append(inputNames, "token_type_ids")
	}

	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: model has no outputs")
	}
	outputName := outputs[0].Name
	dims := outputs[0].Dimensions
	if len(dims) != 3 {
		return nil, fmt.Errorf("onnx: expected [batch, seq, dim] output, got %v", dims)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: creating session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(4)
	opts.SetInterOpNumThreads(1)

	sess, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{outputName}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: creating session: %w", err)
	}

	return &session{
		sess:         sess,
		inputNames:   inputNames,
		outputName:   outputName,
		dim:          dims[2],
		wantsTypeIDs: wantsTypeIDs,
	}, nil
}

// infer runs the encoder over one tokenized batch and returns the hidden
// states as a flat [batchSize * seqLen * dim] slice.
func (s *session) infer(batch tokenized) ([]float32, error) {
	shape := ort.NewShape(batch.batchSize, batch.seqLen)

	tIDs, err := ort.NewTensor(shape, batch.inputIDs)
	if err != nil {
		return nil, fmt.Errorf("onnx: creating input_ids tensor: %w", err)
	}
	defer tIDs.Destroy()

	tMask, err := ort.NewTensor(shape, batch.attentionMask)
	if err != nil {
		return nil, fmt.Errorf("onnx: creating attention_mask tensor: %w", err)
	}
	defer tMask.Destroy()

	inputs := []ort.Value{tIDs, tMask}
	if s.wantsTypeIDs {
		tTypes, err := ort.NewTensor(shape, batch.tokenTypeIDs)
		if err != nil {
			return nil, fmt.Errorf("onnx: creating token_type_ids tensor: %w", err)
		}
		defer tTypes.Destroy()
		inputs = append(inputs, tTypes)
	}

	outShape := ort.NewShape(batch.batchSize, batch.seqLen, s.dim)
	tOut, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		return nil, fmt.Errorf("onnx: creating output tensor: %w", err)
	}
	defer tOut.Destroy()

	if err := s.sess.Run(inputs, []ort.Value{tOut}); err != nil {
		return nil, fmt.Errorf("onnx: inference failed: %w", err)
	}

	// The tensor buffer dies with tOut; copy out.
	src := tOut.GetData()
	out := make([]float32, len(src))
	copy(out, src)
	return out, nil
}

func (s *session) close() error {
	return s.sess.Destroy()
}
