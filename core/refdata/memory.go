package refdata

import (
	"context"
	"sort"

	"medicare-refprice/core/types"
)

// Tables is the full set of rows a MemoryStore indexes
type Tables struct {
	MPFS          []types.MPFSRow
	OPPS          []types.OPPSRow
	DME           []types.DMERow
	Crosswalk     []types.CrosswalkRow
	GPCI          []types.GPCIRow
	StateAverages []types.GPCIStateAverage
}

// MemoryStore answers every query from indexes built once at construction.
// It is safe for concurrent use because nothing mutates it afterwards.
type MemoryStore struct {
	// year -> state ("" = national) -> code -> modifier -> rows
	mpfs map[int]map[string]map[string]map[string][]types.MPFSRow

	// year -> code
	opps map[int]map[string]types.OPPSRow

	// table -> year -> code -> rows
	dme map[types.Dataset]map[int]map[string][]types.DMERow

	crosswalk      map[string]types.CrosswalkRow
	gpciByLocality map[string][]types.GPCIRow
	gpciByZip      map[string]types.GPCIRow
	gpciByState    map[string][]types.GPCIRow
	stateAverages  map[string]types.GPCIStateAverage

	latest map[types.Dataset]int
}

// NewMemoryStore indexes t
func NewMemoryStore(t Tables) *MemoryStore {
	s := &MemoryStore{
		mpfs:           make(map[int]map[string]map[string]map[string][]types.MPFSRow),
		opps:           make(map[int]map[string]types.OPPSRow),
		dme:            make(map[types.Dataset]map[int]map[string][]types.DMERow),
		crosswalk:      make(map[string]types.CrosswalkRow),
		gpciByLocality: make(map[string][]types.GPCIRow),
		gpciByZip:      make(map[string]types.GPCIRow),
		gpciByState:    make(map[string][]types.GPCIRow),
		stateAverages:  make(map[string]types.GPCIStateAverage),
		latest:         make(map[types.Dataset]int),
	}

	for _, r := range t.MPFS {
		byState, ok := s.mpfs[r.Year]
		if !ok {
			byState = make(map[string]map[string]map[string][]types.MPFSRow)
			s.mpfs[r.Year] = byState
		}
		byCode, ok := byState[r.State]
		if !ok {
			byCode = make(map[string]map[string][]types.MPFSRow)
			byState[r.State] = byCode
		}
		byMod, ok := byCode[r.HCPCS]
		if !ok {
			byMod = make(map[string][]types.MPFSRow)
			byCode[r.HCPCS] = byMod
		}
		byMod[r.Modifier] = append(byMod[r.Modifier], r)
		s.bumpYear(types.DatasetMPFS, r.Year)
	}

	for _, r := range t.OPPS {
		if s.opps[r.Year] == nil {
			s.opps[r.Year] = make(map[string]types.OPPSRow)
		}
		s.opps[r.Year][r.HCPCS] = r
		s.bumpYear(types.DatasetOPPS, r.Year)
	}

	for _, r := range t.DME {
		if s.dme[r.Table] == nil {
			s.dme[r.Table] = make(map[int]map[string][]types.DMERow)
		}
		if s.dme[r.Table][r.Year] == nil {
			s.dme[r.Table][r.Year] = make(map[string][]types.DMERow)
		}
		s.dme[r.Table][r.Year][r.HCPCS] = append(s.dme[r.Table][r.Year][r.HCPCS], r)
		s.bumpYear(r.Table, r.Year)
	}

	for _, r := range t.Crosswalk {
		s.crosswalk[r.Zip] = r
	}

	for _, r := range t.GPCI {
		if r.Locality != "" {
			s.gpciByLocality[r.Locality] = append(s.gpciByLocality[r.Locality], r)
		}
		if r.Zip != "" {
			s.gpciByZip[r.Zip] = r
		}
		if r.State != "" {
			s.gpciByState[r.State] = append(s.gpciByState[r.State], r)
		}
	}
	for state := range s.gpciByState {
		rows := s.gpciByState[state]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Locality < rows[j].Locality })
	}

	for _, a := range t.StateAverages {
		s.stateAverages[a.State] = a
	}

	return s
}

func (s *MemoryStore) bumpYear(d types.Dataset, year int) {
	if year > s.latest[d] {
		s.latest[d] = year
	}
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) LatestYear(ctx context.Context, dataset types.Dataset) (int, error) {
	if y, ok := s.latest[dataset]; ok {
		return y, nil
	}
	return 0, ErrNotFound
}

// MPFS returns the state's rows first, then national rows. Another
// state's locality rows are never returned.
func (s *MemoryStore) MPFS(ctx context.Context, q MPFSQuery) ([]types.MPFSRow, error) {
	byState := s.mpfs[q.Year]
	if byState == nil {
		return nil, nil
	}

	var rows []types.MPFSRow
	if q.State != "" {
		rows = append(rows, filterQP(byState[q.State][q.HCPCS][q.Modifier], q.QPStatus)...)
	}
	return append(rows, filterQP(byState[""][q.HCPCS][q.Modifier], q.QPStatus)...), nil
}

func filterQP(rows []types.MPFSRow, qp string) []types.MPFSRow {
	if qp == "" {
		return rows
	}
	out := make([]types.MPFSRow, 0, len(rows))
	for _, r := range rows {
		if r.QPStatus == "" || r.QPStatus == qp {
			out = append(out, r)
		}
	}
	return out
}

func (s *MemoryStore) OPPS(ctx context.Context, hcpcs string, year int) (types.OPPSRow, error) {
	if r, ok := s.opps[year][hcpcs]; ok {
		return r, nil
	}
	return types.OPPSRow{}, ErrNotFound
}

func (s *MemoryStore) DME(ctx context.Context, q DMEQuery) ([]types.DMERow, error) {
	candidates := s.dme[q.Table][q.Year][q.HCPCS]
	if q.AnyRow {
		return candidates, nil
	}
	var rows []types.DMERow
	for _, r := range candidates {
		if r.Modifier == q.Modifier && r.State == q.State {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

func (s *MemoryStore) Crosswalk(ctx context.Context, zip string) (types.CrosswalkRow, error) {
	if r, ok := s.crosswalk[zip]; ok {
		return r, nil
	}
	return types.CrosswalkRow{}, ErrNotFound
}

func (s *MemoryStore) GPCIByLocality(ctx context.Context, locality, state string) (types.GPCIRow, error) {
	rows := s.gpciByLocality[locality]
	if len(rows) == 0 {
		return types.GPCIRow{}, ErrNotFound
	}
	if state == "" {
		return rows[0], nil
	}
	for _, r := range rows {
		if r.State == state || r.State == "" {
			return r, nil
		}
	}
	// locality numbers repeat across states; never borrow another state's row
	return types.GPCIRow{}, ErrNotFound
}

func (s *MemoryStore) GPCIByZip(ctx context.Context, zip string) (types.GPCIRow, error) {
	if r, ok := s.gpciByZip[zip]; ok {
		return r, nil
	}
	return types.GPCIRow{}, ErrNotFound
}

func (s *MemoryStore) GPCIStateAverage(ctx context.Context, state string) (types.GPCIStateAverage, error) {
	if a, ok := s.stateAverages[state]; ok {
		return a, nil
	}
	return types.GPCIStateAverage{}, ErrNotFound
}

func (s *MemoryStore) GPCIByState(ctx context.Context, state string) ([]types.GPCIRow, error) {
	return s.gpciByState[state], nil
}

// ComputeStateAverages derives per-state means from locality rows
func ComputeStateAverages(rows []types.GPCIRow) []types.GPCIStateAverage {
	type acc struct {
		work, pe, mp float64
		n            int
	}
	sums := make(map[string]*acc)
	for _, r := range rows {
		if r.State == "" || !r.GPCI().IsValid() {
			continue
		}
		a, ok := sums[r.State]
		if !ok {
			a = &acc{}
			sums[r.State] = a
		}
		a.work += r.Work
		a.pe += r.PE
		a.mp += r.MP
		a.n++
	}

	states := make([]string, 0, len(sums))
	for st := range sums {
		states = append(states, st)
	}
	sort.Strings(states)

	out := make([]types.GPCIStateAverage, 0, len(states))
	for _, st := range states {
		a := sums[st]
		n := float64(a.n)
		out = append(out, types.GPCIStateAverage{
			State: st,
			Work:  a.work / n,
			PE:    a.pe / n,
			MP:    a.mp / n,
			Rows:  a.n,
		})
	}
	return out
}
