package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"visualsoal/internal/config"
	"visualsoal/internal/generation"
	"visualsoal/internal/history"
	"visualsoal/internal/logging"
	"visualsoal/internal/messages"
	"visualsoal/internal/types"
	"visualsoal/internal/workflow"
)

// slowCallThreshold marks Gemini calls worth a warning in the api log.
const slowCallThreshold = 45 * time.Second

// newBackend builds the Gemini transport. Tests replace it.
var newBackend = func(ctx context.Context, c *config.Config) (generation.Backend, error) {
	b, err := generation.NewGenAIBackend(ctx, generation.GenAIConfig{
		APIKey:  c.Gemini.APIKey,
		BaseURL: c.Gemini.BaseURL,
		Timeout: c.GetTimeout(),
	})
	if err != nil {
		return nil, err
	}
	return generation.NewLoggingBackend(b, slowCallThreshold), nil
}

// app bundles the components one command needs.
type app struct {
	kv      history.KV
	store   *history.Store
	catalog *messages.Catalog
	ctrl    *workflow.Controller
}

// openStore opens the configured history backend. Commands that never call
// Gemini stop here.
func openStore(c *config.Config) (*app, error) {
	kv, err := history.Open(c.History)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	catalog, err := messages.Load(c.Locale)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	store := history.NewStore(kv, c.History.Key, c.History.Capacity)
	store.Load()
	return &app{kv: kv, store: store, catalog: catalog}, nil
}

// openApp opens the store and builds the generation pipeline over it.
func openApp(ctx context.Context, c *config.Config) (*app, error) {
	if err := c.ValidateGeneration(); err != nil {
		return nil, err
	}
	a, err := openStore(c)
	if err != nil {
		return nil, err
	}

	backend, err := newBackend(ctx, c)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	client := generation.NewClient(backend, generation.Config{
		TextModel:   c.Gemini.TextModel,
		ImageModel:  c.Gemini.ImageModel,
		Temperature: c.Gemini.Temperature,
	})
	a.ctrl = workflow.New(client, a.store, a.catalog)
	a.ctrl.Load()

	logging.Boot("Pipeline ready: text=%s image=%s history=%s (%d records)",
		c.Gemini.TextModel, c.Gemini.ImageModel, c.History.Backend, len(a.ctrl.History()))
	return a, nil
}

// Close releases the history backend.
func (a *app) Close() error {
	return a.kv.Close()
}

// userError turns a pipeline error into the localized message the
// controller already shows.
func (a *app) userError(err error) error {
	if a.ctrl != nil {
		if msg := a.ctrl.Snapshot().Error; msg != "" {
			return errors.New(msg)
		}
	}
	return errors.New(a.catalog.Text(err))
}

// findRecord looks a record up by full id or unique prefix.
func (a *app) findRecord(id string) (types.Record, error) {
	if rec, ok := a.store.Get(id); ok {
		return rec, nil
	}
	var match []types.Record
	for _, rec := range a.store.Records() {
		if len(id) >= 4 && strings.HasPrefix(rec.ID, id) {
			match = append(match, rec)
		}
	}
	switch len(match) {
	case 0:
		return types.Record{}, fmt.Errorf("no history record %q", id)
	case 1:
		return match[0], nil
	}
	return types.Record{}, fmt.Errorf("history id %q is ambiguous (%d matches)", id, len(match))
}
