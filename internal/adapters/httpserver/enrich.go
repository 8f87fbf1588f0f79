package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/slabworks/visualizer/internal/catalog"
	"github.com/slabworks/visualizer/internal/domain"
	"github.com/slabworks/visualizer/internal/usecase"
)

type enrichedTitle struct {
	Filename     string `json:"filename"`
	Title        string `json:"title"`
	MaterialType string `json:"materialType"`
}

// enrichUploads fills missing titles and material types from the filenames
// via OpenAI, in batches. Any failure falls back to the plain filename title;
// the upload itself never depends on this.
func (s *Server) enrichUploads(ctx context.Context, files []usecase.MaterialUpload) {
	var pending []int
	for i := range files {
		if files[i].Title == "" || files[i].MaterialType == "" {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		s.fallbackTitles(files, pending)
		return
	}
	client := openai.NewClient(apiKey)

	const batchSize = 40
	resolved := make(map[string]enrichedTitle)
	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		names := make([]string, 0, end-start)
		for _, i := range pending[start:end] {
			names = append(names, files[i].Filename)
		}

		prompt := fmt.Sprintf(`These are stone slab image filenames from a countertop supplier.
For each one, produce a clean display title and classify the material.

FILENAMES:
%s

Return JSON only:
{"slabs":[{"filename":"original filename","title":"Display Title","materialType":"Granite|Quartz|Marble|Quartzite|Porcelain|Other"}]}

Rules:
- Title-case the name, drop extensions, vendor codes and dimensions
- If the material is not evident from the name, use "Other"
- Include every filename in the response`, strings.Join(names, "\n"))

		batchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		resp, err := client.CreateChatCompletion(batchCtx, openai.ChatCompletionRequest{
			Model: "gpt-4o-mini",
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You normalize product filenames. Always return valid JSON covering every input.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0,
			MaxTokens:   4000,
		})
		cancel()
		if err != nil || len(resp.Choices) == 0 {
			log.Warn().Err(err).Int("files", len(names)).Msg("title enrichment batch failed")
			continue
		}

		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		var result struct {
			Slabs []enrichedTitle `json:"slabs"`
		}
		if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &result); err != nil {
			log.Warn().Err(err).Msg("title enrichment response unparseable")
			continue
		}
		for _, e := range result.Slabs {
			resolved[e.Filename] = e
		}
	}

	for _, i := range pending {
		if e, ok := resolved[files[i].Filename]; ok {
			if files[i].Title == "" {
				files[i].Title = e.Title
			}
			if files[i].MaterialType == "" {
				files[i].MaterialType = materialTypeFrom(e.MaterialType)
			}
			continue
		}
		if files[i].Title == "" {
			files[i].Title = catalog.TitleFromFilename(files[i].Filename)
		}
	}
}

func (s *Server) fallbackTitles(files []usecase.MaterialUpload, pending []int) {
	for _, i := range pending {
		if files[i].Title == "" {
			files[i].Title = catalog.TitleFromFilename(files[i].Filename)
		}
	}
}

func materialTypeFrom(s string) domain.MaterialType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "granite":
		return domain.MaterialGranite
	case "quartz":
		return domain.MaterialQuartz
	case "marble":
		return domain.MaterialMarble
	case "quartzite":
		return domain.MaterialQuartzite
	case "porcelain":
		return domain.MaterialPorcelain
	default:
		return domain.MaterialOther
	}
}
