package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

// AffiliationRefresh refetches one affiliation and updates its fields.
func (h *Handlers) AffiliationRefresh(ctx context.Context, store repository.Store, job *domain.Job) error {
	logger := h.jobLogger(job)
	id, err := entityID(job)
	if err != nil {
		return err
	}

	af, err := store.Affiliations().Get(ctx, id)
	if err != nil {
		if missing(logger, err, "affiliation") {
			return nil
		}
		return fmt.Errorf("load affiliation: %w", err)
	}

	adapter, ok := h.adapter(af.Catalog)
	if !ok {
		logger.Warn().Str("catalog", af.Catalog).Msg("catalog not enabled; skipping affiliation refresh")
		return nil
	}

	data, err := adapter.FetchAffiliation(ctx, af.CatalogIdentifier)
	if err != nil {
		if missing(logger, err, "affiliation upstream") {
			return nil
		}
		return fmt.Errorf("fetch %s affiliation %s: %w", af.Catalog, af.CatalogIdentifier, err)
	}

	now := h.now()
	af.Name = strings.TrimSpace(data.Name)
	af.Address = strings.TrimSpace(data.Address)
	af.City = strings.TrimSpace(data.City)
	af.Country = strings.TrimSpace(data.Country)
	af.LastRefreshedAt = &now
	if err := store.Affiliations().Update(ctx, af); err != nil {
		return fmt.Errorf("update affiliation: %w", err)
	}
	if err := store.RawData().Insert(ctx, &domain.RawData{
		Catalog:           af.Catalog,
		CatalogIdentifier: af.CatalogIdentifier,
		Action:            domain.RawDataActionRefresh,
		Data:              data.Raw,
	}); err != nil {
		return fmt.Errorf("record affiliation raw data: %w", err)
	}

	logger.Info().Str("name", af.Name).Msg("affiliation refreshed")
	return nil
}

// InstitutionRefresh refetches one institution and updates its fields.
func (h *Handlers) InstitutionRefresh(ctx context.Context, store repository.Store, job *domain.Job) error {
	logger := h.jobLogger(job)
	id, err := entityID(job)
	if err != nil {
		return err
	}

	inst, err := store.Institutions().Get(ctx, id)
	if err != nil {
		if missing(logger, err, "institution") {
			return nil
		}
		return fmt.Errorf("load institution: %w", err)
	}

	adapter, ok := h.adapter(inst.Catalog)
	if !ok {
		logger.Warn().Str("catalog", inst.Catalog).Msg("catalog not enabled; skipping institution refresh")
		return nil
	}

	data, err := adapter.FetchInstitution(ctx, inst.CatalogIdentifier)
	if err != nil {
		if missing(logger, err, "institution upstream") {
			return nil
		}
		return fmt.Errorf("fetch %s institution %s: %w", inst.Catalog, inst.CatalogIdentifier, err)
	}

	now := h.now()
	inst.Name = strings.TrimSpace(data.Name)
	inst.Sector = strings.TrimSpace(data.Sector)
	inst.CountryCode = strings.TrimSpace(data.CountryCode)
	inst.LastRefreshedAt = &now
	if err := store.Institutions().Update(ctx, inst); err != nil {
		return fmt.Errorf("update institution: %w", err)
	}
	if err := store.RawData().Insert(ctx, &domain.RawData{
		Catalog:           inst.Catalog,
		CatalogIdentifier: inst.CatalogIdentifier,
		Action:            domain.RawDataActionRefresh,
		Data:              data.Raw,
	}); err != nil {
		return fmt.Errorf("record institution raw data: %w", err)
	}

	logger.Info().Str("name", inst.Name).Msg("institution refreshed")
	return nil
}

// PublicationRemoveUnused deletes publications no catalog record refers to.
func (h *Handlers) PublicationRemoveUnused(ctx context.Context, store repository.Store, job *domain.Job) error {
	deleted, err := store.Publications().DeleteUnused(ctx)
	if err != nil {
		return fmt.Errorf("delete unused publications: %w", err)
	}

	logger := h.jobLogger(job)
	logger.Info().Int64("deleted", deleted).Msg("unused publications removed")
	return nil
}

// AutoFillFolders attaches to every autofill folder the publications of its
// academic whose period falls within the autofill window.
func (h *Handlers) AutoFillFolders(ctx context.Context, store repository.Store, job *domain.Job) error {
	logger := h.jobLogger(job)

	folders, err := store.Folders().ListAutofill(ctx)
	if err != nil {
		return fmt.Errorf("list autofill folders: %w", err)
	}

	to := h.now()
	from := to.Add(-h.cfg.AutofillWindow)
	var attached int64
	for _, folder := range folders {
		n, err := store.Folders().AttachMatching(ctx, folder, from, to)
		if err != nil {
			return fmt.Errorf("fill folder %d: %w", folder.ID, err)
		}
		attached += n
	}

	logger.Info().
		Int("folders", len(folders)).
		Int64("attached", attached).
		Time("from", from).
		Msg("folders auto-filled")
	return nil
}
