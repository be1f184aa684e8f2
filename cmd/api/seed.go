package main

import (
	"context"
	"fmt"
	"os"

	"roombook/internal/database"
	"roombook/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

// catalogue is the seed file: rooms, their desks and known clients. Entries
// carry explicit ids so that reloading the file updates rows in place.
type catalogue struct {
	Rooms      []models.Room      `yaml:"rooms"`
	Workspaces []models.Workspace `yaml:"workspaces"`
	Clients    []models.Client    `yaml:"clients"`
}

func loadCatalogue(path string) (*catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	for _, r := range c.Rooms {
		if r.ID <= 0 {
			return nil, fmt.Errorf("room %q has no id", r.Name)
		}
	}
	for _, ws := range c.Workspaces {
		if ws.ID <= 0 || ws.RoomID <= 0 {
			return nil, fmt.Errorf("workspace %q needs id and room_id", ws.Name)
		}
	}
	for _, cl := range c.Clients {
		if cl.ID <= 0 {
			return nil, fmt.Errorf("client %q has no id", cl.Name)
		}
	}
	return &c, nil
}

func seedCatalogue(ctx context.Context, db *database.DB, path string, logger *zerolog.Logger) error {
	c, err := loadCatalogue(path)
	if err != nil {
		logger.Error().Err(err).Str("seed_path", path).Msg("read seed catalogue")
		return err
	}

	err = db.WithTx(ctx, 0, func(ctx context.Context) error {
		for i := range c.Rooms {
			if err := db.SaveRoom(ctx, &c.Rooms[i]); err != nil {
				return err
			}
		}
		for i := range c.Workspaces {
			if err := db.SaveWorkspace(ctx, &c.Workspaces[i]); err != nil {
				return err
			}
		}
		for i := range c.Clients {
			if err := db.SaveClient(ctx, &c.Clients[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Str("seed_path", path).Msg("apply seed catalogue")
		return err
	}

	logger.Info().
		Int("rooms", len(c.Rooms)).
		Int("workspaces", len(c.Workspaces)).
		Int("clients", len(c.Clients)).
		Msg("seed catalogue applied")
	return nil
}
