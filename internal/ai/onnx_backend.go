package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

type OnnxOptions struct {
	ModelName     string
	LibraryPath   string
	ModelPath     string
	TokenizerPath string
	Dimension     int
	MaxSeqLen     int
}

var ortInit sync.Mutex

// OnnxBackend runs a sentence-transformer exported to ONNX locally: HuggingFace
// tokenization, one session run per text, attention-masked mean pooling and L2
// normalisation. The session is not reentrant, so MaxConcurrency is 1.
type OnnxBackend struct {
	opts    OnnxOptions
	tk      *tokenizer.Tokenizer
	session *ort.DynamicAdvancedSession
}

func NewOnnxBackend(opts OnnxOptions) *OnnxBackend {
	if opts.MaxSeqLen <= 0 {
		opts.MaxSeqLen = 256
	}
	return &OnnxBackend{opts: opts}
}

func (o *OnnxBackend) Name() string        { return o.opts.ModelName }
func (o *OnnxBackend) Dimension() int      { return o.opts.Dimension }
func (o *OnnxBackend) MaxConcurrency() int { return 1 }

func (o *OnnxBackend) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.opts.Dimension <= 0 {
		return errInvalidDimension(o.opts.Dimension)
	}

	tk, err := pretrained.FromFile(o.opts.TokenizerPath)
	if err != nil {
		return fmt.Errorf("load tokenizer %s: %w", o.opts.TokenizerPath, err)
	}

	ortInit.Lock()
	if !ort.IsInitialized() {
		if o.opts.LibraryPath != "" {
			ort.SetSharedLibraryPath(o.opts.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortInit.Unlock()
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}
	ortInit.Unlock()

	session, err := ort.NewDynamicAdvancedSession(o.opts.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"}, nil)
	if err != nil {
		return fmt.Errorf("create session for %s: %w", o.opts.ModelPath, err)
	}

	o.tk = tk
	o.session = session
	return nil
}

func (o *OnnxBackend) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if o.session == nil {
		return nil, ErrNotLoaded
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := o.encode(t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (o *OnnxBackend) encode(text string) ([]float32, error) {
	enc, err := o.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	n := min(len(enc.Ids), o.opts.MaxSeqLen)
	if n == 0 {
		return make([]float32, o.opts.Dimension), nil
	}
	ids := make([]int64, n)
	mask := make([]int64, n)
	types := make([]int64, n)
	for i := 0; i < n; i++ {
		ids[i] = int64(enc.Ids[i])
		mask[i] = int64(enc.AttentionMask[i])
		if i < len(enc.TypeIds) {
			types[i] = int64(enc.TypeIds[i])
		}
	}

	shape := ort.NewShape(1, int64(n))
	idsT, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, err
	}
	defer idsT.Destroy()
	maskT, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, err
	}
	defer maskT.Destroy()
	typesT, err := ort.NewTensor(shape, types)
	if err != nil {
		return nil, err
	}
	defer typesT.Destroy()

	hidden, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(n), int64(o.opts.Dimension)))
	if err != nil {
		return nil, err
	}
	defer hidden.Destroy()

	if err := o.session.Run([]ort.Value{idsT, maskT, typesT}, []ort.Value{hidden}); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	return meanPool(hidden.GetData(), mask, o.opts.Dimension), nil
}

// meanPool averages token vectors where mask is set, then L2-normalises.
func meanPool(hidden []float32, mask []int64, dim int) []float32 {
	out := make([]float32, dim)
	var count float32
	for t, m := range mask {
		if m == 0 {
			continue
		}
		row := hidden[t*dim : (t+1)*dim]
		for i, v := range row {
			out[i] += v
		}
		count++
	}
	if count > 0 {
		for i := range out {
			out[i] /= count
		}
	}
	normalize(out)
	return out
}

func (o *OnnxBackend) Close() error {
	var errs []error
	if o.session != nil {
		errs = append(errs, o.session.Destroy())
		o.session = nil
	}
	ortInit.Lock()
	if ort.IsInitialized() {
		errs = append(errs, ort.DestroyEnvironment())
	}
	ortInit.Unlock()
	return errors.Join(errs...)
}
