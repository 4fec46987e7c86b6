package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type GeminiProvider struct {
	ApiKey string
}

func NewGeminiProvider(apiKey string) EmbeddingProvider {
	return &GeminiProvider{
		ApiKey: apiKey,
	}
}

type geminiEmbeddingRequest struct {
	Model    string               `json:"model"`
	Content  geminiRequestContent `json:"content"`
	TaskType string               `json:"taskType,omitempty"`
}

type geminiRequestContent struct {
	Parts []geminiRequestPart `json:"parts"`
}

type geminiRequestPart struct {
	Text string `json:"text"`
}

type geminiEmbeddingResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

func (p *GeminiProvider) Generate(text string, taskType string) (*EmbeddingResponse, error) {
	modelName := "text-embedding-004"

	geminiReq := geminiEmbeddingRequest{
		Model: modelName,
		Content: geminiRequestContent{
			Parts: []geminiRequestPart{
				{Text: text},
			},
		},
		TaskType: taskType,
	}
	reqJson, err := json.Marshal(geminiReq)
	if err != nil {
		return nil, &Error{Provider: "gemini", Err: err}
	}

	endpoint := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1/models/%s:embedContent",
		modelName,
	)

	req, err := http.NewRequest("POST", endpoint, bytes.NewBuffer(reqJson))
	if err != nil {
		return nil, &Error{Provider: "gemini", Err: err}
	}
	req.Header.Set("x-goog-api-key", p.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	res, err := client.Do(req)
	if err != nil {
		return nil, &Error{Provider: "gemini", Err: err}
	}
	defer res.Body.Close()

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &Error{Provider: "gemini", Err: err}
	}

	if res.StatusCode != http.StatusOK {
		return nil, &Error{Provider: "gemini", Err: fmt.Errorf("status %d: %s", res.StatusCode, string(bodyBytes))}
	}

	var geminiRes geminiEmbeddingResponse
	if err := json.Unmarshal(bodyBytes, &geminiRes); err != nil {
		return nil, &Error{Provider: "gemini", Err: err}
	}

	return &EmbeddingResponse{
		Embedding: EmbeddingResponseEmbedding{
			Values: normalizeVector(geminiRes.Embedding.Values),
		},
	}, nil
}
