// Package catalog loads the static flow definitions and offer catalogs the
// service runs on. Both are read once at startup and never mutated, so a
// *Registry is safe to share between goroutines.
//
// Layout (embedded by default, or any directory passed to LoadDir):
//
//	flows/<flow-id>.json      one flow.Flow per file
//	offers/<catalog-id>.json  one offer array per file; the file name is the catalog id
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/flow"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/scoring"
)

//go:embed data
var embedded embed.FS

// ErrUnknownFlow is returned by lookups for a flow id that was never loaded.
var ErrUnknownFlow = errors.New("catalog: unknown flow")

// Registry holds every loaded flow and offer catalog.
type Registry struct {
	flows  map[string]*flow.Flow
	order  []string // flow ids, sorted
	offers map[string][]scoring.Offer
}

// Default loads the catalogs compiled into the binary.
func Default() (*Registry, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, fmt.Errorf("catalog: embedded data: %w", err)
	}
	return Load(sub)
}

// LoadDir loads catalogs from a directory on disk.
func LoadDir(dir string) (*Registry, error) {
	return Load(os.DirFS(dir))
}

// Load reads flows/ and offers/ from fsys and cross-checks them: every flow's
// catalog_id must name a loaded offer catalog and every requires entry must
// name a loaded flow. All problems are reported together.
func Load(fsys fs.FS) (*Registry, error) {
	r := &Registry{
		flows:  make(map[string]*flow.Flow),
		offers: make(map[string][]scoring.Offer),
	}

	var errs []error

	offerFiles, err := jsonFiles(fsys, "offers")
	if err != nil {
		return nil, err
	}
	for _, name := range offerFiles {
		raw, err := fs.ReadFile(fsys, path.Join("offers", name))
		if err != nil {
			errs = append(errs, fmt.Errorf("catalog: read offers/%s: %w", name, err))
			continue
		}
		offers, err := scoring.ParseCatalog(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("catalog: offers/%s: %w", name, err))
			continue
		}
		r.offers[strings.TrimSuffix(name, ".json")] = offers
	}

	flowFiles, err := jsonFiles(fsys, "flows")
	if err != nil {
		return nil, err
	}
	for _, name := range flowFiles {
		raw, err := fs.ReadFile(fsys, path.Join("flows", name))
		if err != nil {
			errs = append(errs, fmt.Errorf("catalog: read flows/%s: %w", name, err))
			continue
		}
		f, err := flow.ParseFlow(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("catalog: flows/%s: %w", name, err))
			continue
		}
		if _, dup := r.flows[f.ID]; dup {
			errs = append(errs, fmt.Errorf("catalog: flows/%s: duplicate flow id %q", name, f.ID))
			continue
		}
		r.flows[f.ID] = f
		r.order = append(r.order, f.ID)
	}
	sort.Strings(r.order)

	for _, id := range r.order {
		f := r.flows[id]
		if f.CatalogID != "" {
			if _, ok := r.offers[f.CatalogID]; !ok {
				errs = append(errs, fmt.Errorf("catalog: flow %q references unknown offer catalog %q", f.ID, f.CatalogID))
			}
		}
		for _, req := range f.Requires {
			if _, ok := r.flows[req]; !ok {
				errs = append(errs, fmt.Errorf("catalog: flow %q requires unknown flow %q", f.ID, req))
			}
		}
	}

	if len(r.flows) == 0 && len(errs) == 0 {
		errs = append(errs, errors.New("catalog: no flows found"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// jsonFiles lists *.json entries of dir. A missing directory is an empty list.
func jsonFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// ─── LOOKUPS ──────────────────────────────────────────────────────────────────

// Flow returns the flow with id.
func (r *Registry) Flow(id string) (*flow.Flow, error) {
	f, ok := r.flows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFlow, id)
	}
	return f, nil
}

// Flows returns every flow ordered by id.
func (r *Registry) Flows() []*flow.Flow {
	out := make([]*flow.Flow, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.flows[id])
	}
	return out
}

// Offers returns the offers a flow's answers are scored against. Flows
// without a catalog get nil, which scores to an empty list.
func (r *Registry) Offers(f *flow.Flow) []scoring.Offer {
	if f == nil || f.CatalogID == "" {
		return nil
	}
	return r.offers[f.CatalogID]
}

// Offer finds a single offer in a flow's catalog.
func (r *Registry) Offer(f *flow.Flow, offerID string) (scoring.Offer, bool) {
	for _, o := range r.Offers(f) {
		if o.ID == offerID {
			return o, true
		}
	}
	return scoring.Offer{}, false
}

// Score runs the scoring engine for a finished flow session.
func (r *Registry) Score(f *flow.Flow, answers scoring.AnswerContext) []scoring.ScoredOffer {
	return scoring.ScoreOffers(answers, r.Offers(f))
}
