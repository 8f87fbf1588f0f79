package wizard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/slabworks/visualizer/internal/domain"
	"github.com/slabworks/visualizer/internal/imaging"
)

// GenerationRequest carries both images plus slab metadata to the external
// generation endpoint.
type GenerationRequest struct {
	KitchenImage    string `json:"kitchenImage"`
	SlabImage       string `json:"slabImage"`
	SlabID          string `json:"slabId"`
	SlabName        string `json:"slabName"`
	SlabDescription string `json:"slabDescription,omitempty"`
}

// Generator produces one AI composite, returned as a base64 image data URL.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

const maxReferenceImageBytes = 25 << 20

// Orchestrator resolves one slab at a time: fetch the slab reference image,
// compress it under the same policy as the kitchen photo, call the
// generation endpoint. It never returns an error; every failure is folded
// into the Result so callers can render partial failure per slab.
type Orchestrator struct {
	gen    Generator
	client *http.Client
}

func NewOrchestrator(gen Generator) *Orchestrator {
	return &Orchestrator{
		gen:    gen,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Run implements RunFunc.
func (o *Orchestrator) Run(ctx context.Context, kitchenImage string, slab domain.SlabOption) Result {
	res := Result{SlabID: slab.ID, SlabName: slab.Name}

	slabImage, err := o.referenceImage(ctx, slab.ImageURL)
	if err != nil {
		log.Warn().Err(err).Str("slab", slab.ID).Msg("slab reference image fetch failed")
		res.Error = "could not load the slab image, please retry"
		return res
	}
	slabImage = imaging.Compress(slabImage, imaging.MaxGenerationDimension, imaging.DefaultQuality)

	data, err := o.gen.Generate(ctx, GenerationRequest{
		KitchenImage:    kitchenImage,
		SlabImage:       slabImage,
		SlabID:          slab.ID,
		SlabName:        slab.Name,
		SlabDescription: slab.Description,
	})
	if err != nil {
		log.Warn().Err(err).Str("slab", slab.ID).Msg("generation failed")
		res.Error = "generation failed for " + slab.Name + ", please retry"
		return res
	}
	res.ImageData = data
	return res
}

// referenceImage turns the slab image URL into a data URL, fetching it when
// it is a remote object.
func (o *Orchestrator) referenceImage(ctx context.Context, url string) (string, error) {
	if strings.HasPrefix(url, "data:") {
		return url, nil
	}
	if url == "" {
		return "", fmt.Errorf("slab has no reference image")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch slab image: status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReferenceImageBytes))
	if err != nil {
		return "", err
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(raw)
	}
	return imaging.DataURL(mime, raw), nil
}
