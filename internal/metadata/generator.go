package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-jwt/jwt/v5"

	"nmrcerm/internal/logging"
)

// Export is the document written for one visit.
type Export struct {
	VID         string          `json:"vid"`
	APIResponse json.RawMessage `json:"api_response"`
	TokenInfo   jwt.MapClaims   `json:"token_info"`
}

// FileName returns the export file name of visit vid.
func FileName(vid string) string {
	return fmt.Sprintf("project_%s.json", vid)
}

// Generator logs in, fetches a visit export and writes it to disk.
type Generator struct {
	client     *Client
	username   string
	password   string
	outputPath string
}

// NewGenerator creates a Generator writing into outputPath.
func NewGenerator(client *Client, username, password, outputPath string) *Generator {
	return &Generator{
		client:     client,
		username:   username,
		password:   password,
		outputPath: outputPath,
	}
}

// Generate writes the export of visit vid and returns the file path.
func (g *Generator) Generate(ctx context.Context, vid string) (string, error) {
	token, err := g.client.Login(ctx, g.username, g.password)
	if err != nil {
		return "", err
	}

	claims, err := g.client.DecodeToken(token)
	if err != nil {
		return "", err
	}

	export, err := g.client.FetchExport(ctx, token, vid)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(Export{VID: vid, APIResponse: export, TokenInfo: claims}, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}

	if err := os.MkdirAll(g.outputPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(g.outputPath, FileName(vid))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}

	logging.Infof("Wrote metadata of visit %s to %s", vid, path)
	return path, nil
}
