package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sightline-ai/sightline/logger"
	"github.com/sightline-ai/sightline/metrics"
)

const (
	clarifaiBaseURL = "https://api.clarifai.com"

	// clarifaiSuccessCode is the provider's status code for a successful call.
	clarifaiSuccessCode = 10000

	// Default model and workflow identifiers.
	DefaultRecognitionModel   = "general-image-recognition"
	DefaultDetectionModel     = "general-image-detection"
	DefaultTranscriptionModel = "asr-wav2vec2-base-960h-english"
	DefaultSpeechWorkflow     = "multimodal-to-speech"

	// defaultClarifaiTimeout bounds one prediction request.
	defaultClarifaiTimeout = 60 * time.Second

	// Rounding factors for the observable contract: confidence values carry
	// 4 decimal places, bounding-box locations 3.
	valuePrecision    = 1e4
	locationPrecision = 1e3
)

// ClarifaiConfig configures the Clarifai gateway client.
type ClarifaiConfig struct {
	// APIKey is the personal access token sent with every request.
	APIKey string

	// UserID and AppID scope model lookups.
	// Default: "clarifai" / "main".
	UserID string
	AppID  string

	// Model identifiers per capability.
	RecognitionModel   string
	DetectionModel     string
	TranscriptionModel string

	// SpeechWorkflow is the multimodal-to-speech workflow id.
	SpeechWorkflow string

	// SelectedConcepts restricts predictions to the named concepts.
	// Empty means no restriction.
	SelectedConcepts []string

	// MaxConcepts limits results per prediction. 0 means provider default.
	MaxConcepts int

	// MinValue drops predictions below this confidence. 0 means no floor.
	MinValue float64

	// RateLimit caps outbound calls per second. 0 means unlimited.
	RateLimit float64
}

// DefaultClarifaiConfig returns sensible defaults for the Clarifai client.
func DefaultClarifaiConfig() ClarifaiConfig {
	return ClarifaiConfig{
		UserID:             "clarifai",
		AppID:              "main",
		RecognitionModel:   DefaultRecognitionModel,
		DetectionModel:     DefaultDetectionModel,
		TranscriptionModel: DefaultTranscriptionModel,
		SpeechWorkflow:     DefaultSpeechWorkflow,
	}
}

// Clarifai implements Service against the Clarifai prediction API.
type Clarifai struct {
	config  ClarifaiConfig
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// ClarifaiOption configures the Clarifai client.
type ClarifaiOption func(*Clarifai)

// WithClarifaiBaseURL sets a custom base URL (for testing or proxies).
func WithClarifaiBaseURL(url string) ClarifaiOption {
	return func(c *Clarifai) {
		c.baseURL = url
	}
}

// WithClarifaiClient sets a custom HTTP client.
func WithClarifaiClient(client *http.Client) ClarifaiOption {
	return func(c *Clarifai) {
		c.client = client
	}
}

// NewClarifai creates a Clarifai gateway client.
//
//nolint:gocritic // hugeParam: config is intentionally passed by value
func NewClarifai(config ClarifaiConfig, opts ...ClarifaiOption) *Clarifai {
	defaults := DefaultClarifaiConfig()
	if config.UserID == "" {
		config.UserID = defaults.UserID
	}
	if config.AppID == "" {
		config.AppID = defaults.AppID
	}
	if config.RecognitionModel == "" {
		config.RecognitionModel = defaults.RecognitionModel
	}
	if config.DetectionModel == "" {
		config.DetectionModel = defaults.DetectionModel
	}
	if config.TranscriptionModel == "" {
		config.TranscriptionModel = defaults.TranscriptionModel
	}
	if config.SpeechWorkflow == "" {
		config.SpeechWorkflow = defaults.SpeechWorkflow
	}

	c := &Clarifai{
		config:  config,
		baseURL: clarifaiBaseURL,
		client:  &http.Client{Timeout: defaultClarifaiTimeout},
	}
	if config.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider identifier.
func (c *Clarifai) Name() string {
	return "clarifai"
}

// BaseURL returns the API root the client targets.
func (c *Clarifai) BaseURL() string {
	return c.baseURL
}

// Wire format for prediction requests and responses.

type clarifaiMedia struct {
	Base64 string `json:"base64,omitempty"`
	Raw    string `json:"raw,omitempty"`
}

type clarifaiData struct {
	Image *clarifaiMedia `json:"image,omitempty"`
	Audio *clarifaiMedia `json:"audio,omitempty"`
	Text  *clarifaiMedia `json:"text,omitempty"`
}

type clarifaiInput struct {
	Data clarifaiData `json:"data"`
}

type clarifaiOutputConfig struct {
	SelectConcepts []clarifaiConcept `json:"select_concepts,omitempty"`
	MaxConcepts    int               `json:"max_concepts,omitempty"`
	MinValue       float64           `json:"min_value,omitempty"`
}

type clarifaiConcept struct {
	ID    string  `json:"id,omitempty"`
	Name  string  `json:"name,omitempty"`
	Value float64 `json:"value,omitempty"`
}

type clarifaiStatus struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

type clarifaiRegion struct {
	RegionInfo struct {
		BoundingBox struct {
			TopRow    float64 `json:"top_row"`
			LeftCol   float64 `json:"left_col"`
			BottomRow float64 `json:"bottom_row"`
			RightCol  float64 `json:"right_col"`
		} `json:"bounding_box"`
	} `json:"region_info"`
	Data struct {
		Concepts []clarifaiConcept `json:"concepts"`
	} `json:"data"`
}

type clarifaiOutputData struct {
	Concepts []clarifaiConcept `json:"concepts"`
	Regions  []clarifaiRegion  `json:"regions"`
	Text     *struct {
		Raw string `json:"raw"`
	} `json:"text"`
	Audio *clarifaiMedia `json:"audio"`
}

type clarifaiOutput struct {
	Status clarifaiStatus     `json:"status"`
	Data   clarifaiOutputData `json:"data"`
}

type clarifaiResponse struct {
	Status  clarifaiStatus   `json:"status"`
	Outputs []clarifaiOutput `json:"outputs"`
	Results []struct {
		Status  clarifaiStatus   `json:"status"`
		Outputs []clarifaiOutput `json:"outputs"`
	} `json:"results"`
}

// Recognize identifies concepts in an encoded image.
func (c *Clarifai) Recognize(ctx context.Context, image []byte) ([]Concept, error) {
	input := clarifaiInput{Data: clarifaiData{
		Image: &clarifaiMedia{Base64: base64.StdEncoding.EncodeToString(image)},
	}}
	resp, err := c.predict(ctx, "recognize", c.modelURL(c.config.RecognitionModel), input)
	if err != nil {
		return nil, err
	}
	output, err := c.firstOutput(resp, "recognize")
	if err != nil {
		return nil, err
	}

	concepts := make([]Concept, 0, len(output.Data.Concepts))
	for _, concept := range output.Data.Concepts {
		concepts = append(concepts, Concept{
			ID:    concept.ID,
			Name:  concept.Name,
			Value: roundTo(concept.Value, valuePrecision),
		})
	}
	return concepts, nil
}

// Detect locates labeled regions in an encoded image.
func (c *Clarifai) Detect(ctx context.Context, image []byte) ([]Region, error) {
	input := clarifaiInput{Data: clarifaiData{
		Image: &clarifaiMedia{Base64: base64.StdEncoding.EncodeToString(image)},
	}}
	resp, err := c.predict(ctx, "detect", c.modelURL(c.config.DetectionModel), input)
	if err != nil {
		return nil, err
	}
	output, err := c.firstOutput(resp, "detect")
	if err != nil {
		return nil, err
	}

	regions := make([]Region, 0, len(output.Data.Regions))
	for _, region := range output.Data.Regions {
		box := region.RegionInfo.BoundingBox
		parsed := Region{
			Box: BoundingBox{
				Top:    roundTo(box.TopRow, locationPrecision),
				Left:   roundTo(box.LeftCol, locationPrecision),
				Bottom: roundTo(box.BottomRow, locationPrecision),
				Right:  roundTo(box.RightCol, locationPrecision),
			},
		}
		for _, concept := range region.Data.Concepts {
			parsed.Concepts = append(parsed.Concepts, Concept{
				ID:    concept.ID,
				Name:  concept.Name,
				Value: roundTo(concept.Value, valuePrecision),
			})
		}
		regions = append(regions, parsed)
	}
	return regions, nil
}

// Transcribe converts an audio payload to text.
func (c *Clarifai) Transcribe(ctx context.Context, audio []byte) (string, error) {
	input := clarifaiInput{Data: clarifaiData{
		Audio: &clarifaiMedia{Base64: base64.StdEncoding.EncodeToString(audio)},
	}}
	resp, err := c.predict(ctx, "transcribe", c.modelURL(c.config.TranscriptionModel), input)
	if err != nil {
		return "", err
	}
	output, err := c.firstOutput(resp, "transcribe")
	if err != nil {
		return "", err
	}

	if output.Data.Text == nil {
		return "", nil
	}
	return output.Data.Text.Raw, nil
}

// firstOutput returns the first model output. Model calls can come back with
// only a workflow-shaped results list; treating that as a provider failure
// keeps a malformed response from crashing the session.
func (c *Clarifai) firstOutput(resp *clarifaiResponse, call string) (*clarifaiOutput, error) {
	if len(resp.Outputs) == 0 {
		return nil, &PredictionError{
			Provider:    c.Name(),
			Call:        call,
			Description: "response contains no model outputs",
		}
	}
	return &resp.Outputs[0], nil
}

// Synthesize answers a prompt about an image with synthesized speech by
// running the multimodal-to-speech workflow.
func (c *Clarifai) Synthesize(ctx context.Context, prompt string, image []byte) ([]byte, error) {
	input := clarifaiInput{Data: clarifaiData{
		Text:  &clarifaiMedia{Raw: prompt},
		Image: &clarifaiMedia{Base64: base64.StdEncoding.EncodeToString(image)},
	}}
	resp, err := c.predict(ctx, "synthesize", c.workflowURL(c.config.SpeechWorkflow), input)
	if err != nil {
		return nil, err
	}

	for _, result := range resp.Results {
		for _, output := range result.Outputs {
			if output.Data.Audio == nil || output.Data.Audio.Base64 == "" {
				continue
			}
			audio, err := base64.StdEncoding.DecodeString(output.Data.Audio.Base64)
			if err != nil {
				return nil, &PredictionError{
					Provider:    c.Name(),
					Call:        "synthesize",
					Description: "undecodable audio payload",
					Cause:       err,
				}
			}
			return audio, nil
		}
	}
	return nil, &PredictionError{
		Provider:    c.Name(),
		Call:        "synthesize",
		Description: "workflow returned no audio",
	}
}

// modelURL builds the prediction endpoint for a model.
func (c *Clarifai) modelURL(modelID string) string {
	return fmt.Sprintf("%s/v2/users/%s/apps/%s/models/%s/outputs",
		c.baseURL, c.config.UserID, c.config.AppID, modelID)
}

// workflowURL builds the results endpoint for a workflow.
func (c *Clarifai) workflowURL(workflowID string) string {
	return fmt.Sprintf("%s/v2/users/%s/apps/%s/workflows/%s/results",
		c.baseURL, c.config.UserID, c.config.AppID, workflowID)
}

// outputConfig assembles the prediction constraints, or nil when unset.
func (c *Clarifai) outputConfig() *clarifaiOutputConfig {
	if len(c.config.SelectedConcepts) == 0 && c.config.MaxConcepts == 0 && c.config.MinValue == 0 {
		return nil
	}
	config := &clarifaiOutputConfig{
		MaxConcepts: c.config.MaxConcepts,
		MinValue:    c.config.MinValue,
	}
	for _, name := range c.config.SelectedConcepts {
		config.SelectConcepts = append(config.SelectConcepts, clarifaiConcept{Name: name})
	}
	return config
}

// predict posts one input to a prediction or workflow endpoint and validates
// both the HTTP status and the provider status payload.
func (c *Clarifai) predict(ctx context.Context, call, url string, input clarifaiInput) (*clarifaiResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body := struct {
		Inputs []clarifaiInput `json:"inputs"`
		Model  *struct {
			OutputInfo struct {
				OutputConfig *clarifaiOutputConfig `json:"output_config"`
			} `json:"output_info"`
		} `json:"model,omitempty"`
	}{Inputs: []clarifaiInput{input}}

	if config := c.outputConfig(); config != nil {
		body.Model = &struct {
			OutputInfo struct {
				OutputConfig *clarifaiOutputConfig `json:"output_config"`
			} `json:"output_info"`
		}{}
		body.Model.OutputInfo.OutputConfig = config
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	logger.GatewayCall(c.Name(), call, url)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		logger.GatewayError(c.Name(), call, err)
		metrics.RecordGatewayRequest(c.Name(), call, metrics.StatusError, time.Since(start).Seconds())
		return nil, &PredictionError{
			Provider:    c.Name(),
			Call:        call,
			Description: "request failed",
			Cause:       err,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed clarifaiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &PredictionError{
			Provider:    c.Name(),
			Call:        call,
			StatusCode:  resp.StatusCode,
			Description: "unreadable response body",
			Cause:       err,
		}
	}

	if resp.StatusCode != http.StatusOK || parsed.Status.Code != clarifaiSuccessCode {
		err := &PredictionError{
			Provider:    c.Name(),
			Call:        call,
			StatusCode:  resp.StatusCode,
			Code:        parsed.Status.Code,
			Description: parsed.Status.Description,
		}
		logger.GatewayError(c.Name(), call, err, "status_code", resp.StatusCode)
		metrics.RecordGatewayRequest(c.Name(), call, metrics.StatusError, time.Since(start).Seconds())
		return nil, err
	}

	if len(parsed.Outputs) == 0 && len(parsed.Results) == 0 {
		return nil, &PredictionError{
			Provider:    c.Name(),
			Call:        call,
			StatusCode:  resp.StatusCode,
			Description: "response contains no outputs",
		}
	}

	logger.GatewayResponse(c.Name(), call, time.Since(start).Milliseconds())
	metrics.RecordGatewayRequest(c.Name(), call, metrics.StatusSuccess, time.Since(start).Seconds())
	return &parsed, nil
}

// roundTo rounds v to the precision expressed as a power of ten.
func roundTo(v, precision float64) float64 {
	return math.Round(v*precision) / precision
}
