package encoding

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/sync/errgroup"

	"github.com/parley-ai/parley/pkg/config"
)

// batchChunkSize bounds the number of inputs per embeddings request.
// Larger batches are split and fetched concurrently.
const batchChunkSize = 64

// maxConcurrentChunks bounds parallel embeddings requests for one batch.
const maxConcurrentChunks = 4

// OpenAIEncoder implements Encoder on the OpenAI embeddings API. Backend
// vectors are truncated to the configured dimension and re-normalised.
type OpenAIEncoder struct {
	client oai.Client
	model  string
	dim    int
}

var _ Encoder = (*OpenAIEncoder)(nil)

// NewOpenAIEncoder builds an encoder from the embedding config and the
// configured dimension. The API key is read from the environment variable
// the config names; empty falls back to the SDK's own OPENAI_API_KEY lookup.
func NewOpenAIEncoder(cfg *config.EmbeddingConfig, dim int) (*OpenAIEncoder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("encoding: embedding config must not be nil")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("encoding: dimension must be positive, got %d", dim)
	}

	model := cfg.Model
	if model == "" {
		model = oai.EmbeddingModelTextEmbedding3Small
	}

	var reqOpts []option.RequestOption
	if cfg.APIKeyEnv != "" {
		if key := os.Getenv(cfg.APIKeyEnv); key != "" {
			reqOpts = append(reqOpts, option.WithAPIKey(key))
		}
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.TimeoutMS > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		}))
	}

	return &OpenAIEncoder{
		client: oai.NewClient(reqOpts...),
		model:  model,
		dim:    dim,
	}, nil
}

// Dimension implements Encoder.
func (e *OpenAIEncoder) Dimension() int {
	return e.dim
}

// Encode implements Encoder.
func (e *OpenAIEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := e.embedChunk(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EncodeBatch implements Encoder. Large batches are split into chunks
// embedded concurrently; results land in indexed slots so output order
// always matches input order.
func (e *OpenAIEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChunks)

	for start := 0; start < len(texts); start += batchChunkSize {
		end := min(start+batchChunkSize, len(texts))
		g.Go(func() error {
			vecs, err := e.embedChunk(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *OpenAIEncoder) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: e.model,
		Input: oai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding: embeddings request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("encoding: got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	// The API does not guarantee response order; Index is authoritative.
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, fmt.Errorf("encoding: embedding index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, x := range d.Embedding {
			vec[i] = float32(x)
		}
		out[d.Index] = Truncate(vec, e.dim)
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("encoding: missing embedding for input %d", i)
		}
	}
	return out, nil
}
