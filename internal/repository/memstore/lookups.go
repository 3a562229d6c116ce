package memstore

import (
	"context"
	"strconv"
	"strings"

	"github.com/helixir/catalog-sync-service/internal/domain"
)

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

type journalRepo struct{ s *Store }

func (r *journalRepo) FindByNormalizedNames(_ context.Context, normalized []string) (map[string]int64, error) {
	defer r.s.lock()()
	want := keySet(normalized)
	out := map[string]int64{}
	for id, j := range r.s.read().journals {
		if want[j.NormalizedName] {
			out[j.NormalizedName] = id
		}
	}
	return out, nil
}

func (r *journalRepo) BulkGetOrCreate(_ context.Context, names []string) (map[string]int64, error) {
	defer r.s.lock()()
	out := map[string]int64{}
	for _, name := range names {
		normalized := domain.NormalizeName(name)
		if normalized == "" {
			continue
		}
		if id, ok := r.findLocked(normalized); ok {
			out[normalized] = id
			continue
		}
		st := r.s.write()
		id := r.s.db.allocID()
		st.journals[id] = domain.Journal{ID: id, Name: strings.TrimSpace(name), NormalizedName: normalized, CreatedAt: now()}
		out[normalized] = id
	}
	return out, nil
}

func (r *journalRepo) findLocked(normalized string) (int64, bool) {
	for id, j := range r.s.read().journals {
		if j.NormalizedName == normalized {
			return id, true
		}
	}
	return 0, false
}

func (r *journalRepo) Get(_ context.Context, id int64) (*domain.Journal, error) {
	defer r.s.lock()()
	j, ok := r.s.read().journals[id]
	if !ok {
		return nil, notFound("journal", id)
	}
	return &j, nil
}

type subtypeRepo struct{ s *Store }

func (r *subtypeRepo) FindByDescriptions(_ context.Context, descriptions []string) (map[string]int64, error) {
	defer r.s.lock()()
	want := keySet(descriptions)
	out := map[string]int64{}
	for id, st := range r.s.read().subtypes {
		if want[st.Description] {
			out[st.Description] = id
		}
	}
	return out, nil
}

func (r *subtypeRepo) BulkGetOrCreate(_ context.Context, subtypes []*domain.Subtype) (map[string]int64, error) {
	defer r.s.lock()()
	out := map[string]int64{}
	for _, in := range subtypes {
		if in == nil || in.Description == "" {
			continue
		}
		found := false
		for id, existing := range r.s.read().subtypes {
			if existing.Description != in.Description {
				continue
			}
			if existing.Code == "" && in.Code != "" {
				existing.Code = in.Code
				r.s.write().subtypes[id] = existing
			}
			out[in.Description] = id
			found = true
			break
		}
		if found {
			continue
		}
		id := r.s.db.allocID()
		r.s.write().subtypes[id] = domain.Subtype{ID: id, Code: in.Code, Description: in.Description, CreatedAt: now()}
		out[in.Description] = id
	}
	return out, nil
}

func (r *subtypeRepo) Get(_ context.Context, id int64) (*domain.Subtype, error) {
	defer r.s.lock()()
	st, ok := r.s.read().subtypes[id]
	if !ok {
		return nil, notFound("subtype", id)
	}
	return &st, nil
}

type sponsorRepo struct{ s *Store }

func (r *sponsorRepo) FindByNormalizedNames(_ context.Context, normalized []string) (map[string]int64, error) {
	defer r.s.lock()()
	want := keySet(normalized)
	out := map[string]int64{}
	for id, sp := range r.s.read().sponsors {
		if want[sp.NormalizedName] {
			out[sp.NormalizedName] = id
		}
	}
	return out, nil
}

func (r *sponsorRepo) BulkGetOrCreate(_ context.Context, sponsors []*domain.Sponsor) (map[string]int64, error) {
	defer r.s.lock()()
	out := map[string]int64{}
	for _, in := range sponsors {
		if in == nil {
			continue
		}
		normalized := in.NormalizedName
		if normalized == "" {
			normalized = domain.NormalizeName(in.Name)
		}
		if normalized == "" {
			continue
		}
		var existing int64
		for id, sp := range r.s.read().sponsors {
			if sp.NormalizedName == normalized {
				existing = id
				break
			}
		}
		if existing != 0 {
			out[normalized] = existing
			continue
		}
		id := r.s.db.allocID()
		r.s.write().sponsors[id] = domain.Sponsor{
			ID: id, Name: strings.TrimSpace(in.Name), NormalizedName: normalized, IsNIHR: in.IsNIHR, CreatedAt: now(),
		}
		out[normalized] = id
	}
	return out, nil
}

type keywordRepo struct{ s *Store }

func (r *keywordRepo) FindByNormalized(_ context.Context, normalized []string) (map[string]int64, error) {
	defer r.s.lock()()
	want := keySet(normalized)
	out := map[string]int64{}
	for id, kw := range r.s.read().keywords {
		if want[kw.NormalizedKeyword] {
			out[kw.NormalizedKeyword] = id
		}
	}
	return out, nil
}

func (r *keywordRepo) BulkGetOrCreate(_ context.Context, keywords []string) (map[string]int64, error) {
	defer r.s.lock()()
	out := map[string]int64{}
	for _, kw := range keywords {
		normalized := domain.NormalizeKeyword(kw)
		if normalized == "" {
			continue
		}
		var existing int64
		for id, k := range r.s.read().keywords {
			if k.NormalizedKeyword == normalized {
				existing = id
				break
			}
		}
		if existing != 0 {
			out[normalized] = existing
			continue
		}
		id := r.s.db.allocID()
		r.s.write().keywords[id] = domain.Keyword{
			ID: id, Keyword: strings.TrimSpace(kw), NormalizedKeyword: normalized, CreatedAt: now(),
		}
		out[normalized] = id
	}
	return out, nil
}

func keySet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k != "" {
			set[k] = true
		}
	}
	return set
}
