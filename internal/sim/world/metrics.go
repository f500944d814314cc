package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Pursuers    int `json:"pursuers"`
	Observers   int `json:"observers"`
	Controllers int `json:"controllers"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`

	ReplansTotal uint64            `json:"replans_total"`
	AttacksTotal uint64            `json:"attacks_total"`
	PlanOutcomes map[string]uint64 `json:"plan_outcomes"`

	TargetHealth float64 `json:"target_health"`
	TargetAlive  bool    `json:"target_alive"`
	LitPursuers  int     `json:"lit_pursuers"`
}

type QueueDepths struct {
	Steer  int `json:"steer"`
	Attach int `json:"attach"`
	Detach int `json:"detach"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) updateMetrics(tick uint64, stepMS float64) {
	outcomes := make(map[string]uint64, len(w.planOutcomes))
	for k, v := range w.planOutcomes {
		outcomes[string(k)] = v
	}
	lit := 0
	for _, p := range w.pursuers {
		if w.snap.IsIlluminated(p.Pos) {
			lit++
		}
	}
	w.metrics.Store(WorldMetrics{
		Tick:        tick,
		Pursuers:    len(w.pursuers),
		Observers:   len(w.observers),
		Controllers: len(w.controllers),
		QueueDepths: QueueDepths{
			Steer:  len(w.steer),
			Attach: len(w.attach),
			Detach: len(w.detach),
		},
		StepMS:       stepMS,
		ReplansTotal: w.replansTotal,
		AttacksTotal: w.attacksTotal,
		PlanOutcomes: outcomes,
		TargetHealth: w.target.Health,
		TargetAlive:  w.target.Alive,
		LitPursuers:  lit,
	})
}
