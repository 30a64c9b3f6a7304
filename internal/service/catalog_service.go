package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pesio-ai/be-app-crm/internal/logger"
	"github.com/pesio-ai/be-app-crm/internal/repository"
	apperrors "github.com/pesio-ai/be-app-crm/pkg/errors"
)

// CatalogStore persists a services or statuses table
type CatalogStore interface {
	Resource() string
	Create(ctx context.Context, entry *repository.CatalogEntry) error
	GetByID(ctx context.Context, id int64) (*repository.CatalogEntry, error)
	List(ctx context.Context) ([]*repository.CatalogEntry, error)
	Update(ctx context.Context, entry *repository.CatalogEntry) error
	InUse(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// CatalogService manages one lookup table. Route grants are checked by the
// router, so every method here assumes the actor may perform it.
type CatalogService struct {
	store CatalogStore
	log   *logger.Logger
}

func NewCatalogService(store CatalogStore, log *logger.Logger) *CatalogService {
	return &CatalogService{
		store: store,
		log:   log.With("catalog", store.Resource()),
	}
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", apperrors.Validation(map[string]string{"name": "The name field is required."})
	case len(name) > 255:
		return "", apperrors.Validation(map[string]string{"name": "The name may not be greater than 255 characters."})
	}
	return name, nil
}

func (s *CatalogService) Index(ctx context.Context) ([]*repository.CatalogEntry, error) {
	return s.store.List(ctx)
}

func (s *CatalogService) Show(ctx context.Context, id int64) (*repository.CatalogEntry, error) {
	return s.store.GetByID(ctx, id)
}

func (s *CatalogService) Store(ctx context.Context, actor *Actor, name string) (*repository.CatalogEntry, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	entry := &repository.CatalogEntry{Name: name, CreatedBy: &actor.ID}
	if err := s.store.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.log.Info().Int64("id", entry.ID).Str("name", entry.Name).Msg("Catalog entry created")
	return entry, nil
}

func (s *CatalogService) Update(ctx context.Context, id int64, name string) (*repository.CatalogEntry, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	entry, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	entry.Name = name
	if err := s.store.Update(ctx, entry); err != nil {
		return nil, err
	}

	s.log.Info().Int64("id", id).Str("name", name).Msg("Catalog entry updated")
	return entry, nil
}

// Destroy deletes an entry no lead refers to
func (s *CatalogService) Destroy(ctx context.Context, id int64) error {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return err
	}

	used, err := s.store.InUse(ctx, id)
	if err != nil {
		return err
	}
	if used {
		return apperrors.Conflict(fmt.Sprintf("Cannot delete %s because it is being used by leads.", s.store.Resource()))
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info().Int64("id", id).Msg("Catalog entry deleted")
	return nil
}
