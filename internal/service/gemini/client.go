package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// FileRef describes a document held by the hosting service. The handle is an
// opaque capability token owned by the collaborator; this system passes it
// through without parsing it.
type FileRef struct {
	Handle   string
	URI      string
	MIMEType string
}

// Client is the boundary to the hosted document/generation service. The
// production implementation wraps the Gemini SDK; tests substitute fakes.
type Client interface {
	// UploadFile registers a local file and returns its opaque handle.
	UploadFile(ctx context.Context, path, mimeType, displayName string) (string, error)
	// LookupFile resolves a handle into a usable file reference.
	LookupFile(ctx context.Context, handle string) (*FileRef, error)
	// GenerateFromFile runs a completion against a registered file.
	GenerateFromFile(ctx context.Context, instruction string, ref *FileRef) (string, error)
	// GenerateFromText runs a completion against inline report text.
	GenerateFromText(ctx context.Context, instruction, content string) (string, error)
}

// ClientFactory builds a Client for the given API key. The orchestrator
// rebuilds its client whenever the stored key changes.
type ClientFactory func(ctx context.Context, apiKey, model string) (Client, error)

type genaiClient struct {
	client *genai.Client
	model  string
}

// NewGenaiClient is the production ClientFactory backed by the Gemini SDK.
func NewGenaiClient(ctx context.Context, apiKey, model string) (Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &genaiClient{client: client, model: model}, nil
}

func (g *genaiClient) UploadFile(ctx context.Context, path, mimeType, displayName string) (string, error) {
	file, err := g.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
	if err != nil {
		return "", err
	}
	if file == nil || file.Name == "" {
		return "", errors.New("file upload did not return a resource name")
	}
	return file.Name, nil
}

func (g *genaiClient) LookupFile(ctx context.Context, handle string) (*FileRef, error) {
	file, err := g.client.Files.Get(ctx, handle, nil)
	if err != nil {
		return nil, err
	}
	return &FileRef{Handle: file.Name, URI: file.URI, MIMEType: file.MIMEType}, nil
}

func (g *genaiClient) GenerateFromFile(ctx context.Context, instruction string, ref *FileRef) (string, error) {
	mimeType := ref.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(instruction),
			genai.NewPartFromURI(ref.URI, mimeType),
		}, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

func (g *genaiClient) GenerateFromText(ctx context.Context, instruction, content string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(instruction + "\n\nHere is the lab report to analyze:\n" + content),
		}, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("empty response from model")
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("model returned no text")
	}
	return text, nil
}
