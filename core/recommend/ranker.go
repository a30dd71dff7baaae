package recommend

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/jmercadier/chargeshare/core/errs"
	"github.com/jmercadier/chargeshare/core/geo"
	"github.com/jmercadier/chargeshare/core/logger"
	"github.com/jmercadier/chargeshare/core/model"
	"github.com/jmercadier/chargeshare/core/schedule"
)

// Mode selects the ranking objective.
type Mode string

const (
	// ModeTargetCharge ranks chargers for reaching a fixed charge level.
	ModeTargetCharge Mode = "target_charge"
	// ModeTimeBudget ranks chargers for maximal energy within a fixed
	// time budget.
	ModeTimeBudget Mode = "time_budget"
)

// Weights are the caller-supplied, non-negative metric weights. They need
// not sum to one; the score is normalized by their sum. Energy only
// applies in time-budget mode.
type Weights struct {
	Distance float64 `json:"distance"`
	Cost     float64 `json:"cost"`
	FillTime float64 `json:"fill_time"`
	WaitTime float64 `json:"wait_time"`
	Energy   float64 `json:"energy"`
}

// Sum returns the total weight mass.
func (w Weights) Sum() float64 {
	return w.Distance + w.Cost + w.FillTime + w.WaitTime + w.Energy
}

// Validate rejects negative or non-numeric weights and an all-zero set.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Distance, w.Cost, w.FillTime, w.WaitTime, w.Energy} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errs.Validationf("weights must be finite numbers")
		}
		if v < 0 {
			return errs.Validationf("weights must not be negative")
		}
	}
	if w.Sum() <= 0 {
		return errs.Validationf("at least one weight must be positive")
	}
	return nil
}

// Candidate is one charger's computed metrics and final score.
type Candidate struct {
	Charger         model.Charger `json:"charger"`
	DistanceKm      float64       `json:"distance_km"`
	MonetaryCost    float64       `json:"monetary_cost"`
	FillTimeMinutes float64       `json:"fill_time_minutes"`
	WaitMinutes     float64       `json:"wait_minutes"`
	// EnergyKWh is the deliverable energy, only set in time-budget mode.
	EnergyKWh float64 `json:"energy_kwh,omitempty"`
	Score     float64 `json:"score"`
}

// Result carries the ranking, best first.
type Result struct {
	Best    Candidate   `json:"best"`
	Ranking []Candidate `json:"ranking"`
}

// Request describes one ranking call.
type Request struct {
	UserLocation model.Coordinates
	Vehicle      model.Vehicle
	Chargers     []model.Charger
	Weights      Weights
	Mode         Mode
	// TargetPercent is the desired charge level in target-charge mode.
	TargetPercent float64
	// TimeBudget is the available time in time-budget mode.
	TimeBudget time.Duration
}

// BusySource provides the busy intervals the gap search runs over.
// Implementations clip results to the requested range.
type BusySource interface {
	BusyIntervalsForCharger(ctx context.Context, chargerID string, from, to time.Time) ([]model.BusyInterval, error)
	BusyIntervalsForVehicle(ctx context.Context, vehicleID string, from, to time.Time) ([]model.BusyInterval, error)
}

// Ranker scores chargers for a request.
type Ranker struct {
	cfg  Config
	busy BusySource
	log  logger.Logger
	now  func() time.Time
}

// NewRanker builds a Ranker. The now function defaults to time.Now.
func NewRanker(cfg Config, busy BusySource, log logger.Logger) *Ranker {
	cfg.SetDefaults()
	return &Ranker{cfg: cfg, busy: busy, log: log, now: time.Now}
}

// SetClock overrides the time source, used by tests.
func (r *Ranker) SetClock(now func() time.Time) { r.now = now }

// Rank computes and scores candidates for the request. Chargers that
// cannot serve the request (no power output, no gap within the horizon,
// zero deliverable energy) are excluded rather than scored.
func (r *Ranker) Rank(ctx context.Context, req Request) (Result, error) {
	if err := req.Weights.Validate(); err != nil {
		return Result{}, err
	}
	if err := req.Vehicle.Validate(); err != nil {
		return Result{}, errs.Validationf("vehicle: %v", err)
	}
	if len(req.Chargers) == 0 {
		return Result{}, errs.Validationf("no chargers to rank")
	}

	var cands []Candidate
	var err error
	switch req.Mode {
	case ModeTargetCharge:
		cands, err = r.targetChargeCandidates(ctx, req)
	case ModeTimeBudget:
		cands, err = r.timeBudgetCandidates(ctx, req)
	default:
		return Result{}, errs.Validationf("unknown ranking mode %q", req.Mode)
	}
	if err != nil {
		return Result{}, err
	}
	if len(cands) == 0 {
		return Result{}, errs.NotFoundf("no charger can serve the request")
	}

	score(cands, req.Weights, req.Mode)
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Score < cands[j].Score })
	return Result{Best: cands[0], Ranking: cands}, nil
}

func (r *Ranker) targetChargeCandidates(ctx context.Context, req Request) ([]Candidate, error) {
	energyNeeded := req.Vehicle.EnergyToLevel(req.TargetPercent)
	if energyNeeded <= 0 {
		return nil, errs.Validationf("target level %.1f%% is not above current %.1f%%",
			req.TargetPercent, req.Vehicle.ChargePercent)
	}

	now := r.now()
	horizonEnd := now.Add(time.Duration(r.cfg.TargetChargeHorizonDays) * 24 * time.Hour)
	var cands []Candidate
	for _, ch := range req.Chargers {
		if ch.PowerOutputKW <= 0 {
			continue
		}
		fillTime := time.Duration(energyNeeded / ch.PowerOutputKW * float64(time.Hour))
		busy, err := r.combinedBusy(ctx, ch.ID, req.Vehicle.ID, now, horizonEnd)
		if err != nil {
			return nil, err
		}
		gap, err := schedule.FindEarliestGap(busy, now, horizonEnd, fillTime)
		if errors.Is(err, schedule.ErrNoGap) {
			r.log.Debugf("charger %s excluded: no %v gap before %v", ch.ID, fillTime, horizonEnd)
			continue
		}
		if err != nil {
			return nil, err
		}
		cands = append(cands, Candidate{
			Charger:         ch,
			DistanceKm:      geo.DistanceKm(req.UserLocation, ch.Location),
			MonetaryCost:    energyNeeded * ch.EnergyTariff,
			FillTimeMinutes: fillTime.Minutes(),
			WaitMinutes:     gap.Start.Sub(now).Minutes(),
		})
	}
	return cands, nil
}

func (r *Ranker) timeBudgetCandidates(ctx context.Context, req Request) ([]Candidate, error) {
	if req.TimeBudget <= 0 {
		return nil, errs.Validationf("time budget must be positive")
	}
	budget := req.TimeBudget
	if max := time.Duration(r.cfg.TimeBudgetMaxHorizonHours) * time.Hour; budget > max {
		budget = max
	}
	energyToFull := req.Vehicle.EnergyToLevel(100)

	now := r.now()
	horizonEnd := now.Add(budget)
	var cands []Candidate
	for _, ch := range req.Chargers {
		if ch.PowerOutputKW <= 0 {
			continue
		}
		busy, err := r.combinedBusy(ctx, ch.ID, req.Vehicle.ID, now, horizonEnd)
		if err != nil {
			return nil, err
		}
		gap, err := schedule.LargestGap(busy, now, horizonEnd)
		if errors.Is(err, schedule.ErrNoGap) {
			r.log.Debugf("charger %s excluded: fully booked within budget", ch.ID)
			continue
		}
		if err != nil {
			return nil, err
		}
		energy := math.Min(energyToFull, gap.Duration().Hours()*ch.PowerOutputKW)
		if energy <= 0 {
			continue
		}
		cands = append(cands, Candidate{
			Charger:         ch,
			DistanceKm:      geo.DistanceKm(req.UserLocation, ch.Location),
			MonetaryCost:    energy * ch.EnergyTariff,
			FillTimeMinutes: energy / ch.PowerOutputKW * 60,
			WaitMinutes:     gap.Start.Sub(now).Minutes(),
			EnergyKWh:       energy,
		})
	}
	return cands, nil
}

// combinedBusy unions the charger's busy intervals with the vehicle's own:
// the vehicle cannot occupy two chargers at once.
func (r *Ranker) combinedBusy(ctx context.Context, chargerID, vehicleID string, from, to time.Time) ([]model.BusyInterval, error) {
	busy, err := r.busy.BusyIntervalsForCharger(ctx, chargerID, from, to)
	if err != nil {
		return nil, errs.Transient("charger busy intervals", err)
	}
	own, err := r.busy.BusyIntervalsForVehicle(ctx, vehicleID, from, to)
	if err != nil {
		return nil, errs.Transient("vehicle busy intervals", err)
	}
	return append(busy, own...), nil
}

// score fills in each candidate's weighted score. Metrics are normalized
// by the maximum observed value (a zero maximum counts as one) and
// combined under the weight sum; in time-budget mode the energy term is
// subtracted so more deliverable energy ranks better.
func score(cands []Candidate, w Weights, mode Mode) {
	n := len(cands)
	dist := make([]float64, n)
	cost := make([]float64, n)
	fill := make([]float64, n)
	wait := make([]float64, n)
	energy := make([]float64, n)
	for i, c := range cands {
		dist[i] = c.DistanceKm
		cost[i] = c.MonetaryCost
		fill[i] = c.FillTimeMinutes
		wait[i] = c.WaitMinutes
		energy[i] = c.EnergyKWh
	}
	for _, m := range [][]float64{dist, cost, fill, wait, energy} {
		if max := floats.Max(m); max > 0 {
			floats.Scale(1/max, m)
		}
	}

	sum := w.Sum()
	for i := range cands {
		s := w.Distance*dist[i] + w.Cost*cost[i] + w.FillTime*fill[i] + w.WaitTime*wait[i]
		if mode == ModeTimeBudget {
			s -= w.Energy * energy[i]
		}
		cands[i].Score = s / sum
	}
}
