// Package plugin implements the nmrcerm actions on top of the project table,
// the metadata server and the registry.
package plugin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"nmrcerm/internal/aria"
	"nmrcerm/internal/config"
	"nmrcerm/internal/database"
	"nmrcerm/internal/logging"
	"nmrcerm/internal/metadata"
	"nmrcerm/internal/upload"
	"nmrcerm/internal/version"
)

// Manager coordinates the plugin actions for the CLI.
type Manager struct {
	cfg        *config.Config
	db         *sql.DB
	store      *database.ProjectStore
	newSession upload.SessionFactory
	senderOpts []upload.SenderOption
}

// Option customizes a Manager.
type Option func(*Manager)

// WithSessionFactory replaces the registry session used by send runs.
func WithSessionFactory(fn upload.SessionFactory) Option {
	return func(m *Manager) {
		m.newSession = fn
	}
}

// WithSenderOptions passes options to every send run.
func WithSenderOptions(opts ...upload.SenderOption) Option {
	return func(m *Manager) {
		m.senderOpts = append(m.senderOpts, opts...)
	}
}

// NewManager opens the project database and prepares the actions.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:   cfg,
		db:    db,
		store: database.NewProjectStore(db),
	}
	m.newSession = m.defaultSession
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Close releases database resources.
func (m *Manager) Close() {
	if err := m.db.Close(); err != nil {
		logging.Warnf("Warning: failed to close database: %v", err)
	}
}

func (m *Manager) defaultSession() upload.Session {
	return aria.NewSession(aria.Config{
		BaseURL:      m.cfg.Aria.BaseURL,
		TokenURL:     m.cfg.Aria.TokenURL,
		ClientID:     m.cfg.Aria.ClientID,
		ClientSecret: m.cfg.Aria.ClientSecret,
		Timeout:      m.cfg.Aria.Timeout,
		RateLimit:    m.cfg.Aria.RateLimit,
		RateBurst:    m.cfg.Aria.RateBurst,
	})
}

// GenerateMetadata fetches the export of visit vid, writes it to the output
// directory and records the visit and file on project.
func (m *Manager) GenerateMetadata(ctx context.Context, projectName, vid string) ActionResult {
	if strings.TrimSpace(vid) == "" {
		return failure(errors.New("visit id is required"))
	}
	if err := m.cfg.ValidateMetadataServer(); err != nil {
		return failure(err)
	}

	client := metadata.NewClient(metadata.ClientOptions{
		BaseURL:            m.cfg.MetadataServer.BaseURL,
		JWTSecret:          m.cfg.MetadataServer.JWTSecret,
		InsecureSkipVerify: m.cfg.MetadataServer.InsecureSkipVerify,
	})
	gen := metadata.NewGenerator(client, m.cfg.MetadataServer.Username, m.cfg.MetadataServer.Password, m.cfg.Metadata.OutputPath)

	path, err := gen.Generate(ctx, vid)
	if err != nil {
		logging.Errorf("Failed to generate metadata for visit %s: %v", vid, err)
		return failure(err)
	}

	if err := m.store.UpdateProject(ctx, projectName, database.KeyVisitID, vid); err != nil {
		return failure(err)
	}
	if err := m.store.UpdateProject(ctx, projectName, database.KeyMetadataPath, path); err != nil {
		return failure(err)
	}

	return ActionResult{Success: true, Info: GenerateInfo{VisitID: vid, MetadataPath: path}}
}

// SendMetadata uploads the export recorded on project to the registry.
// Node failures are part of a successful result; only fatal errors make
// Success false.
func (m *Manager) SendMetadata(ctx context.Context, projectName string) ActionResult {
	if err := m.cfg.ValidateAria(); err != nil {
		return failure(err)
	}

	sender := upload.NewSender(m.store, m.newSession, m.senderOpts...)
	rep, err := sender.Send(ctx, projectName)
	if err != nil {
		logging.Errorf("Failed to send metadata of project %s: %v", projectName, err)
		return failure(fmt.Errorf("send metadata of project %s: %w", projectName, err))
	}

	return ActionResult{Success: true, Info: rep}
}

// SetProject records value for key on project.
func (m *Manager) SetProject(ctx context.Context, projectName, key, value string) error {
	return m.store.UpdateProject(ctx, projectName, key, value)
}

// ShowProject lists the current values of project.
func (m *Manager) ShowProject(ctx context.Context, projectName string) ([]database.ProjectEntry, error) {
	return m.store.ProjectInfo(ctx, projectName)
}

// Version returns build information.
func (m *Manager) Version() version.Info {
	return version.Get()
}
