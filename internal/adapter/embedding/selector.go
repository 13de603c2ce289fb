package embedding

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"ragchain/config"
	"ragchain/internal/domain"
	"ragchain/internal/port"
)

// Family names an embedding model family.
type Family string

const (
	FamilyOpenAI              Family = "openai"
	FamilyKoSimCSE            Family = "kosimcse"
	FamilyKoSRoBERTaMultitask Family = "ko-sroberta-multitask"
	FamilyMultilingualE5      Family = "multilingual-e5"
	FamilyMock                Family = "mock"
)

// Device is the compute device requested for locally hosted models.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceMPS  Device = "mps"
	DeviceCUDA Device = "cuda"
)

const (
	EnvOpenAIKey      = "OPENAI_API_KEY"
	EnvHuggingFaceKey = "HUGGINGFACEHUB_API_TOKEN"

	defaultOpenAIModel = "text-embedding-ada-002"
	defaultTEIBaseURL  = "http://localhost:8080/v1"
)

type familySpec struct {
	model     string
	dimension int
	hosted    bool // served by a text-embeddings-inference server
	queryPfx  string
	docPfx    string
}

var families = map[Family]familySpec{
	FamilyOpenAI:              {model: defaultOpenAIModel, dimension: 1536},
	FamilyKoSimCSE:            {model: "BM-K/KoSimCSE-roberta-multitask", dimension: 768, hosted: true},
	FamilyKoSRoBERTaMultitask: {model: "jhgan/ko-sroberta-multitask", dimension: 768, hosted: true},
	FamilyMultilingualE5:      {model: "intfloat/multilingual-e5-large", dimension: 1024, hosted: true, queryPfx: "query: ", docPfx: "passage: "},
	FamilyMock:                {model: "mock", dimension: 64},
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "-", " ", "-").Replace(s)
}

// ParseFamily resolves a family name, accepting case and separator variants
// such as "KoSimCSE" or "ko_sroberta_multitask".
func ParseFamily(name string) (Family, error) {
	f := Family(normalize(name))
	if _, ok := families[f]; !ok {
		return "", domain.NewError(domain.KindUnknownEmbedding, fmt.Sprintf("unknown embedding type: %s", name), nil)
	}
	return f, nil
}

// ParseDevice maps a device name to cpu or mps; everything else is cuda.
func ParseDevice(name string) Device {
	switch Device(normalize(name)) {
	case DeviceCPU:
		return DeviceCPU
	case DeviceMPS:
		return DeviceMPS
	default:
		return DeviceCUDA
	}
}

// SelectorOptions overrides family defaults.
type SelectorOptions struct {
	Model      string
	BaseURL    string
	APIKeyEnv  string
	Dimension  int
	BatchSize  int
	HTTPClient *http.Client
}

// Handle is a ready embedding provider together with how it was selected.
type Handle struct {
	port.Embedder
	Family Family
	Device Device
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s (%s on %s)", h.Family, h.ModelName(), h.Device)
}

// Selector picks an embedding provider from a family and device. The
// provider is built on the first Get and shared afterwards.
type Selector struct {
	family Family
	device Device
	opts   SelectorOptions
	logger *zap.Logger

	mu     sync.Mutex
	handle *Handle
}

func NewSelector(family, device string, opts SelectorOptions, logger *zap.Logger) (*Selector, error) {
	f, err := ParseFamily(family)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		family: f,
		device: ParseDevice(device),
		opts:   opts,
		logger: logger.Named("embedding"),
	}, nil
}

// FromConfig builds a selector from the embedding section of the config.
func FromConfig(cfg config.EmbeddingConfig, logger *zap.Logger) (*Selector, error) {
	return NewSelector(cfg.Type, cfg.Device, SelectorOptions{
		Model:     cfg.Model,
		BaseURL:   cfg.BaseURL,
		APIKeyEnv: cfg.APIKeyEnv,
		Dimension: cfg.Dimension,
		BatchSize: cfg.BatchSize,
	}, logger)
}

// Get returns the provider, building it on first use. A failed build is not
// cached, so a later call can succeed once the credential is present.
func (s *Selector) Get() (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		return s.handle, nil
	}

	emb, err := s.build()
	if err != nil {
		return nil, err
	}
	s.handle = &Handle{Embedder: emb, Family: s.family, Device: s.device}
	s.logger.Info("embedding backend ready",
		zap.String("family", string(s.family)),
		zap.String("model", emb.ModelName()),
		zap.String("device", string(s.device)))
	return s.handle, nil
}

func (s *Selector) build() (port.Embedder, error) {
	fam := families[s.family]
	model := fam.model
	if s.opts.Model != "" {
		model = s.opts.Model
	}
	dim := fam.dimension
	if s.opts.Dimension > 0 {
		dim = s.opts.Dimension
	}

	if s.family == FamilyMock {
		return NewMockEmbedder(dim), nil
	}

	opts := []Option{
		WithDimension(dim, s.family == FamilyOpenAI && s.opts.Dimension > 0),
		WithBatchSize(s.opts.BatchSize),
	}
	if s.opts.HTTPClient != nil {
		opts = append(opts, WithHTTPClient(s.opts.HTTPClient))
	}
	if fam.queryPfx != "" || fam.docPfx != "" {
		opts = append(opts, WithPrefixes(fam.queryPfx, fam.docPfx))
	}

	if !fam.hosted {
		keyEnv := s.opts.APIKeyEnv
		if keyEnv == "" {
			keyEnv = EnvOpenAIKey
		}
		apiKey := os.Getenv(keyEnv)
		if apiKey == "" {
			return nil, domain.NewError(domain.KindMissingCredential, fmt.Sprintf("%s is empty", keyEnv), nil)
		}
		if s.opts.BaseURL != "" {
			opts = append(opts, WithBaseURL(s.opts.BaseURL))
		}
		return NewOpenAICompatible(apiKey, model, opts...), nil
	}

	baseURL := s.opts.BaseURL
	if baseURL == "" {
		baseURL = defaultTEIBaseURL
	}
	keyEnv := s.opts.APIKeyEnv
	if keyEnv == "" {
		keyEnv = EnvHuggingFaceKey
	}
	token := os.Getenv(keyEnv)
	if token == "" {
		// local inference servers do not authenticate
		token = "unused"
	}
	return NewOpenAICompatible(token, model, append(opts, WithBaseURL(baseURL))...), nil
}
