package steering

// EMA is an exponential moving average. The first update seeds the state.
type EMA struct {
	Alpha  float64
	value  float64
	primed bool
}

// NewEMA returns an unprimed average with smoothing factor alpha.
func NewEMA(alpha float64) EMA { return EMA{Alpha: alpha} }

// Update folds x into the average and returns the new value.
func (e *EMA) Update(x float64) float64 {
	if !e.primed {
		e.value = x
		e.primed = true
		return x
	}
	e.value += e.Alpha * (x - e.value)
	return e.value
}

// Value returns the current average (0 when unprimed).
func (e *EMA) Value() float64 { return e.value }

// Set overwrites the state, priming it.
func (e *EMA) Set(x float64) {
	e.value = x
	e.primed = true
}

// Reset clears the state; the next Update seeds it again.
func (e *EMA) Reset() {
	e.value = 0
	e.primed = false
}

// Primed reports whether the average holds a value.
func (e *EMA) Primed() bool { return e.primed }

// FilterState holds the two smoothing stages: slow averages over the gap
// direction, lateral bias and side distances, and a fast average over the
// final command.
type FilterState struct {
	Gap      EMA
	Bias     EMA
	LeftAvg  EMA
	RightAvg EMA
	Command  EMA
}

// NewFilterState returns unprimed filters.
func NewFilterState(gapAlpha, sideAlpha, commandAlpha float64) FilterState {
	return FilterState{
		Gap:      NewEMA(gapAlpha),
		Bias:     NewEMA(gapAlpha),
		LeftAvg:  NewEMA(sideAlpha),
		RightAvg: NewEMA(sideAlpha),
		Command:  NewEMA(commandAlpha),
	}
}

// Reset clears every stage.
func (f *FilterState) Reset() {
	f.Gap.Reset()
	f.Bias.Reset()
	f.LeftAvg.Reset()
	f.RightAvg.Reset()
	f.Command.Reset()
}

// SetAlphas changes smoothing factors without dropping state.
func (f *FilterState) SetAlphas(gapAlpha, sideAlpha, commandAlpha float64) {
	f.Gap.Alpha = gapAlpha
	f.Bias.Alpha = gapAlpha
	f.LeftAvg.Alpha = sideAlpha
	f.RightAvg.Alpha = sideAlpha
	f.Command.Alpha = commandAlpha
}

// FilterSnapshot is the smoothed state after a decision, for telemetry.
type FilterSnapshot struct {
	Gap      float64 `json:"gap"`
	Bias     float64 `json:"bias"`
	LeftAvg  float64 `json:"left_avg"`
	RightAvg float64 `json:"right_avg"`
	Command  float64 `json:"command"`
}

// Snapshot returns the current values of every stage.
func (f *FilterState) Snapshot() FilterSnapshot {
	return FilterSnapshot{
		Gap:      f.Gap.Value(),
		Bias:     f.Bias.Value(),
		LeftAvg:  f.LeftAvg.Value(),
		RightAvg: f.RightAvg.Value(),
		Command:  f.Command.Value(),
	}
}
