package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/catalog-sync-service/internal/domain"
	"github.com/helixir/catalog-sync-service/internal/observability"
	"github.com/helixir/catalog-sync-service/internal/queue"
	"github.com/helixir/catalog-sync-service/internal/repository"
)

// Resolver maps the catalog references of a DTO batch to internal IDs.
//
// Each resolve step first looks up existing rows, one query per catalog, and
// then creates whatever is missing in one bulk statement. Creation adopts rows
// inserted concurrently by another pass. The store is committed after every
// step that created rows.
type Resolver struct {
	enqueuer *queue.Enqueuer
	metrics  *observability.Metrics
	validate *validator.Validate
	nihr     map[string]struct{}
	logger   zerolog.Logger
}

// NewResolver creates a Resolver. Sponsors whose normalized name appears in
// nihrSponsors are flagged as NIHR when created.
func NewResolver(nihrSponsors []string, enqueuer *queue.Enqueuer, metrics *observability.Metrics, logger zerolog.Logger) *Resolver {
	nihr := make(map[string]struct{}, len(nihrSponsors))
	for _, name := range nihrSponsors {
		if n := domain.NormalizeName(name); n != "" {
			nihr[n] = struct{}{}
		}
	}
	return &Resolver{
		enqueuer: enqueuer,
		metrics:  metrics,
		validate: validator.New(),
		nihr:     nihr,
		logger:   logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve runs every resolve step over dtos. Invalid DTOs, authors and
// affiliations are skipped.
func (r *Resolver) Resolve(ctx context.Context, store repository.Store, dtos []*domain.PublicationData) (*Xrefs, error) {
	dtos = r.validPublications(dtos)
	authors := r.validAuthors(authorsOf(dtos))

	xrefs := NewXrefs()
	var err error

	if xrefs.Journals, err = r.ResolveJournals(ctx, store, dtos); err != nil {
		return nil, err
	}
	if xrefs.Subtypes, err = r.ResolveSubtypes(ctx, store, dtos); err != nil {
		return nil, err
	}
	if xrefs.Sponsors, err = r.ResolveSponsors(ctx, store, dtos); err != nil {
		return nil, err
	}
	if xrefs.Keywords, err = r.ResolveKeywords(ctx, store, dtos); err != nil {
		return nil, err
	}
	if xrefs.Publications, xrefs.NewPublications, err = r.resolvePublications(ctx, store, dtos); err != nil {
		return nil, err
	}
	if xrefs.Affiliations, err = r.ResolveAffiliations(ctx, store, authors); err != nil {
		return nil, err
	}
	if xrefs.Sources, err = r.ResolveSources(ctx, store, authors); err != nil {
		return nil, err
	}
	return xrefs, nil
}

// ResolveJournals resolves each DTO's journal name.
func (r *Resolver) ResolveJournals(ctx context.Context, store repository.Store, dtos []*domain.PublicationData) (map[domain.CatalogReference]int64, error) {
	dtos = r.validPublications(dtos)
	out := make(map[domain.CatalogReference]int64)

	byName := make(map[string]string) // normalized -> first raw name
	var normalized []string
	for _, dto := range dtos {
		n := domain.NormalizeName(dto.JournalName)
		if n == "" {
			continue
		}
		if _, ok := byName[n]; !ok {
			byName[n] = dto.JournalName
			normalized = append(normalized, n)
		}
	}
	if len(normalized) == 0 {
		return out, nil
	}

	ids, err := store.Journals().FindByNormalizedNames(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("find journals: %w", err)
	}
	if ids == nil {
		ids = map[string]int64{}
	}

	var missing []string
	for _, n := range normalized {
		if _, ok := ids[n]; !ok {
			missing = append(missing, byName[n])
		}
	}
	if len(missing) > 0 {
		created, err := store.Journals().BulkGetOrCreate(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("create journals: %w", err)
		}
		for n, id := range created {
			ids[n] = id
		}
		if err := r.commit(ctx, store, "journal", len(missing)); err != nil {
			return nil, err
		}
	}

	for _, dto := range dtos {
		if id, ok := ids[domain.NormalizeName(dto.JournalName)]; ok {
			out[dto.Reference()] = id
		}
	}
	return out, nil
}

// ResolveSubtypes resolves each DTO's subtype by description.
func (r *Resolver) ResolveSubtypes(ctx context.Context, store repository.Store, dtos []*domain.PublicationData) (map[domain.CatalogReference]int64, error) {
	dtos = r.validPublications(dtos)
	out := make(map[domain.CatalogReference]int64)

	byDescription := make(map[string]*domain.Subtype)
	var descriptions []string
	for _, dto := range dtos {
		d := strings.TrimSpace(dto.SubtypeDescription)
		if d == "" {
			continue
		}
		if _, ok := byDescription[d]; !ok {
			byDescription[d] = &domain.Subtype{Code: strings.TrimSpace(dto.SubtypeCode), Description: d}
			descriptions = append(descriptions, d)
		}
	}
	if len(descriptions) == 0 {
		return out, nil
	}

	ids, err := store.Subtypes().FindByDescriptions(ctx, descriptions)
	if err != nil {
		return nil, fmt.Errorf("find subtypes: %w", err)
	}
	if ids == nil {
		ids = map[string]int64{}
	}

	var missing []*domain.Subtype
	for _, d := range descriptions {
		if _, ok := ids[d]; !ok {
			missing = append(missing, byDescription[d])
		}
	}
	if len(missing) > 0 {
		created, err := store.Subtypes().BulkGetOrCreate(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("create subtypes: %w", err)
		}
		for d, id := range created {
			ids[d] = id
		}
		if err := r.commit(ctx, store, "subtype", len(missing)); err != nil {
			return nil, err
		}
	}

	for _, dto := range dtos {
		if id, ok := ids[strings.TrimSpace(dto.SubtypeDescription)]; ok {
			out[dto.Reference()] = id
		}
	}
	return out, nil
}

// ResolveSponsors resolves each DTO's sponsor names.
func (r *Resolver) ResolveSponsors(ctx context.Context, store repository.Store, dtos []*domain.PublicationData) (map[domain.CatalogReference][]int64, error) {
	dtos = r.validPublications(dtos)
	out := make(map[domain.CatalogReference][]int64)

	byName := make(map[string]*domain.Sponsor)
	var normalized []string
	for _, dto := range dtos {
		for _, name := range dto.Sponsors {
			n := domain.NormalizeName(name)
			if n == "" {
				continue
			}
			if _, ok := byName[n]; !ok {
				_, isNIHR := r.nihr[n]
				byName[n] = &domain.Sponsor{Name: strings.TrimSpace(name), NormalizedName: n, IsNIHR: isNIHR}
				normalized = append(normalized, n)
			}
		}
	}
	if len(normalized) == 0 {
		return out, nil
	}

	ids, err := store.Sponsors().FindByNormalizedNames(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("find sponsors: %w", err)
	}
	if ids == nil {
		ids = map[string]int64{}
	}

	var missing []*domain.Sponsor
	for _, n := range normalized {
		if _, ok := ids[n]; !ok {
			missing = append(missing, byName[n])
		}
	}
	if len(missing) > 0 {
		created, err := store.Sponsors().BulkGetOrCreate(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("create sponsors: %w", err)
		}
		for n, id := range created {
			ids[n] = id
		}
		if err := r.commit(ctx, store, "sponsor", len(missing)); err != nil {
			return nil, err
		}
	}

	for _, dto := range dtos {
		var sponsorIDs []int64
		for _, name := range dto.Sponsors {
			if id, ok := ids[domain.NormalizeName(name)]; ok {
				sponsorIDs = append(sponsorIDs, id)
			}
		}
		if len(sponsorIDs) > 0 {
			out[dto.Reference()] = uniqueIDs(sponsorIDs)
		}
	}
	return out, nil
}

// ResolveKeywords resolves each DTO's keywords by their folded form.
func (r *Resolver) ResolveKeywords(ctx context.Context, store repository.Store, dtos []*domain.PublicationData) (map[domain.CatalogReference][]int64, error) {
	dtos = r.validPublications(dtos)
	out := make(map[domain.CatalogReference][]int64)

	byKeyword := make(map[string]string)
	var normalized []string
	for _, dto := range dtos {
		for _, kw := range dto.Keywords {
			n := domain.NormalizeKeyword(kw)
			if n == "" {
				continue
			}
			if _, ok := byKeyword[n]; !ok {
				byKeyword[n] = strings.TrimSpace(kw)
				normalized = append(normalized, n)
			}
		}
	}
	if len(normalized) == 0 {
		return out, nil
	}

	ids, err := store.Keywords().FindByNormalized(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("find keywords: %w", err)
	}
	if ids == nil {
		ids = map[string]int64{}
	}

	var missing []string
	for _, n := range normalized {
		if _, ok := ids[n]; !ok {
			missing = append(missing, byKeyword[n])
		}
	}
	if len(missing) > 0 {
		created, err := store.Keywords().BulkGetOrCreate(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("create keywords: %w", err)
		}
		for n, id := range created {
			ids[n] = id
		}
		if err := r.commit(ctx, store, "keyword", len(missing)); err != nil {
			return nil, err
		}
	}

	for _, dto := range dtos {
		var keywordIDs []int64
		for _, kw := range dto.Keywords {
			if id, ok := ids[domain.NormalizeKeyword(kw)]; ok {
				keywordIDs = append(keywordIDs, id)
			}
		}
		if len(keywordIDs) > 0 {
			out[dto.Reference()] = uniqueIDs(keywordIDs)
		}
	}
	return out, nil
}

// ResolvePublications maps each DTO to its canonical publication. A DTO
// matches, in order: an existing record of the same catalog, then an existing
// publication with the same DOI. Unmatched DTOs get a new publication, shared
// by DTOs with the same DOI. Every new publication is scheduled for
// initialisation.
func (r *Resolver) ResolvePublications(ctx context.Context, store repository.Store, dtos []*domain.PublicationData) (map[domain.CatalogReference]int64, error) {
	out, _, err := r.resolvePublications(ctx, store, dtos)
	return out, err
}

func (r *Resolver) resolvePublications(ctx context.Context, store repository.Store, dtos []*domain.PublicationData) (map[domain.CatalogReference]int64, []int64, error) {
	dtos = r.validPublications(dtos)
	out := make(map[domain.CatalogReference]int64, len(dtos))

	// 1. Existing catalog records, one lookup per catalog.
	for catalogName, identifiers := range domain.GroupByCatalog(publicationRefs(dtos)) {
		found, err := store.CatalogPublications().FindPublicationIDs(ctx, catalogName, identifiers)
		if err != nil {
			return nil, nil, fmt.Errorf("find %s catalog publications: %w", catalogName, err)
		}
		for identifier, pubID := range found {
			out[domain.NewCatalogReference(catalogName, identifier)] = pubID
		}
	}

	// 2. Existing publications by DOI.
	var dois []string
	seenDOI := make(map[string]struct{})
	for _, dto := range dtos {
		if _, ok := out[dto.Reference()]; ok {
			continue
		}
		doi := dto.NormalizedDOI()
		if doi == "" {
			continue
		}
		if _, ok := seenDOI[doi]; !ok {
			seenDOI[doi] = struct{}{}
			dois = append(dois, doi)
		}
	}
	var byDOI map[string]int64
	if len(dois) > 0 {
		var err error
		byDOI, err = store.Publications().FindByDOIs(ctx, dois)
		if err != nil {
			return nil, nil, fmt.Errorf("find publications by doi: %w", err)
		}
	}

	// 3. New publications: one per distinct DOI, one per DTO without a DOI.
	type pending struct {
		doi  *string
		refs []domain.CatalogReference
	}
	var creates []*pending
	pendingByDOI := make(map[string]*pending)
	assigned := make(map[domain.CatalogReference]struct{})
	for _, dto := range dtos {
		ref := dto.Reference()
		if _, ok := out[ref]; ok {
			continue
		}
		if _, ok := assigned[ref]; ok {
			continue
		}
		assigned[ref] = struct{}{}

		doi := dto.NormalizedDOI()
		if doi == "" {
			creates = append(creates, &pending{refs: []domain.CatalogReference{ref}})
			continue
		}
		if id, ok := byDOI[doi]; ok {
			out[ref] = id
			continue
		}
		if p, ok := pendingByDOI[doi]; ok {
			p.refs = append(p.refs, ref)
			continue
		}
		p := &pending{doi: &doi, refs: []domain.CatalogReference{ref}}
		pendingByDOI[doi] = p
		creates = append(creates, p)
	}
	if len(creates) == 0 {
		return out, nil, nil
	}

	createDOIs := make([]*string, len(creates))
	for i, p := range creates {
		createDOIs[i] = p.doi
	}

	results, err := store.Publications().CreateMany(ctx, createDOIs)
	if err != nil {
		return nil, nil, fmt.Errorf("create publications: %w", err)
	}
	if len(results) != len(creates) {
		return nil, nil, fmt.Errorf("create publications: got %d results for %d rows", len(results), len(creates))
	}

	var created []int64
	var jobs []*domain.Job
	for i, res := range results {
		for _, ref := range creates[i].refs {
			out[ref] = res.ID
		}
		if res.Inserted {
			created = append(created, res.ID)
			jobs = append(jobs, domain.NewEntityJob(domain.JobTypePublicationInitialise, res.ID, r.enqueuer.Now()))
		}
	}
	if err := r.enqueuer.Enqueue(ctx, store, jobs...); err != nil {
		return nil, nil, err
	}
	if err := r.commit(ctx, store, "publication", len(created)); err != nil {
		return nil, nil, err
	}
	return out, created, nil
}

// ResolveAffiliations resolves every affiliation listed by authors. New
// affiliations get a raw data row and a scheduled AffiliationRefresh.
func (r *Resolver) ResolveAffiliations(ctx context.Context, store repository.Store, authors []*domain.AuthorData) (map[domain.CatalogReference]int64, error) {
	authors = r.validAuthors(authors)

	var affiliations []*domain.AffiliationData
	for _, a := range authors {
		affiliations = append(affiliations, a.Affiliations...)
	}
	affiliations = r.validAffiliations(affiliations)

	refs := make([]domain.CatalogReference, 0, len(affiliations))
	for _, af := range affiliations {
		refs = append(refs, af.Reference())
	}

	out := make(map[domain.CatalogReference]int64, len(refs))
	for catalogName, identifiers := range domain.GroupByCatalog(refs) {
		found, err := store.Affiliations().FindByIdentifiers(ctx, catalogName, identifiers)
		if err != nil {
			return nil, fmt.Errorf("find %s affiliations: %w", catalogName, err)
		}
		for identifier, id := range found {
			out[domain.NewCatalogReference(catalogName, identifier)] = id
		}
	}

	var missing []*domain.Affiliation
	var raws [][]byte
	queued := make(map[domain.CatalogReference]struct{})
	for _, af := range affiliations {
		ref := af.Reference()
		if _, ok := out[ref]; ok {
			continue
		}
		if _, ok := queued[ref]; ok {
			continue
		}
		queued[ref] = struct{}{}
		missing = append(missing, &domain.Affiliation{
			Catalog:           ref.Catalog,
			CatalogIdentifier: ref.Identifier,
			Name:              strings.TrimSpace(af.Name),
			Address:           strings.TrimSpace(af.Address),
			City:              strings.TrimSpace(af.City),
			Country:           strings.TrimSpace(af.Country),
		})
		raws = append(raws, af.Raw)
	}
	if len(missing) == 0 {
		return out, nil
	}

	results, err := store.Affiliations().BulkGetOrCreate(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("create affiliations: %w", err)
	}

	inserted := 0
	var jobs []*domain.Job
	for i, res := range results {
		af := missing[i]
		out[af.Reference()] = res.ID
		if !res.Inserted {
			continue
		}
		inserted++
		if err := store.RawData().Insert(ctx, &domain.RawData{
			Catalog:           af.Catalog,
			CatalogIdentifier: af.CatalogIdentifier,
			Action:            domain.RawDataActionCreate,
			Data:              raws[i],
		}); err != nil {
			return nil, fmt.Errorf("record affiliation raw data: %w", err)
		}
		jobs = append(jobs, domain.NewEntityJob(domain.JobTypeAffiliationRefresh, res.ID, r.enqueuer.Now()))
	}
	if err := r.enqueuer.Enqueue(ctx, store, jobs...); err != nil {
		return nil, err
	}
	if err := r.commit(ctx, store, "affiliation", inserted); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveSources resolves authors to catalog sources. New sources get a raw
// data row.
func (r *Resolver) ResolveSources(ctx context.Context, store repository.Store, authors []*domain.AuthorData) (map[domain.CatalogReference]int64, error) {
	authors = r.validAuthors(authors)

	refs := make([]domain.CatalogReference, 0, len(authors))
	for _, a := range authors {
		refs = append(refs, a.Reference())
	}

	out := make(map[domain.CatalogReference]int64, len(refs))
	for catalogName, identifiers := range domain.GroupByCatalog(refs) {
		found, err := store.Sources().FindByIdentifiers(ctx, catalogName, identifiers)
		if err != nil {
			return nil, fmt.Errorf("find %s sources: %w", catalogName, err)
		}
		for identifier, id := range found {
			out[domain.NewCatalogReference(catalogName, identifier)] = id
		}
	}

	var missing []*domain.Source
	var raws [][]byte
	queued := make(map[domain.CatalogReference]struct{})
	for _, a := range authors {
		ref := a.Reference()
		if _, ok := out[ref]; ok {
			continue
		}
		if _, ok := queued[ref]; ok {
			continue
		}
		queued[ref] = struct{}{}
		src := &domain.Source{Catalog: ref.Catalog, CatalogIdentifier: ref.Identifier}
		src.ApplyAuthor(a)
		missing = append(missing, src)
		raws = append(raws, a.Raw)
	}
	if len(missing) == 0 {
		return out, nil
	}

	results, err := store.Sources().BulkGetOrCreate(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("create sources: %w", err)
	}

	inserted := 0
	for i, res := range results {
		src := missing[i]
		out[src.Reference()] = res.ID
		if !res.Inserted {
			continue
		}
		inserted++
		if err := store.RawData().Insert(ctx, &domain.RawData{
			Catalog:           src.Catalog,
			CatalogIdentifier: src.CatalogIdentifier,
			Action:            domain.RawDataActionCreate,
			Data:              raws[i],
		}); err != nil {
			return nil, fmt.Errorf("record source raw data: %w", err)
		}
	}
	if err := r.commit(ctx, store, "source", inserted); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) commit(ctx context.Context, store repository.Store, entity string, created int) error {
	if err := store.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s creation: %w", entity, err)
	}
	if r.metrics != nil && created > 0 {
		r.metrics.RecordEntitiesCreated(entity, created)
	}
	return nil
}

// validPublications drops nil DTOs and DTOs without a usable identity.
func (r *Resolver) validPublications(dtos []*domain.PublicationData) []*domain.PublicationData {
	out := make([]*domain.PublicationData, 0, len(dtos))
	for _, dto := range dtos {
		if dto == nil {
			continue
		}
		if err := r.check(dto, dto.Reference()); err != nil {
			r.skip("publication", dto.Catalog, dto.CatalogIdentifier, err)
			continue
		}
		out = append(out, dto)
	}
	return out
}

func (r *Resolver) validAuthors(authors []*domain.AuthorData) []*domain.AuthorData {
	out := make([]*domain.AuthorData, 0, len(authors))
	for _, a := range authors {
		if a == nil {
			continue
		}
		if err := r.check(a, a.Reference()); err != nil {
			r.skip("author", a.Catalog, a.CatalogIdentifier, err)
			continue
		}
		out = append(out, a)
	}
	return out
}

func (r *Resolver) validAffiliations(affiliations []*domain.AffiliationData) []*domain.AffiliationData {
	out := make([]*domain.AffiliationData, 0, len(affiliations))
	for _, af := range affiliations {
		if af == nil {
			continue
		}
		if err := r.check(af, af.Reference()); err != nil {
			r.skip("affiliation", af.Catalog, af.CatalogIdentifier, err)
			continue
		}
		out = append(out, af)
	}
	return out
}

func (r *Resolver) check(dto any, ref domain.CatalogReference) error {
	if err := r.validate.Struct(dto); err != nil {
		return err
	}
	if ref.IsZero() {
		return domain.ErrNoIdentifier
	}
	return nil
}

func (r *Resolver) skip(kind, catalogName, identifier string, err error) {
	r.logger.Warn().
		Err(err).
		Str("kind", kind).
		Str("catalog", catalogName).
		Str("catalog_identifier", identifier).
		Msg("skipping catalog record without a valid identity")
	if r.metrics != nil {
		r.metrics.RecordDTOSkipped(kind)
	}
}
