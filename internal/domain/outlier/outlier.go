// Package outlier flags anomalous numeric observations within one data
// dictionary field's history. Strategies are interchangeable; the caller
// selects one by name.
package outlier

// Observation is one numeric record value coerced to floating point.
type Observation struct {
	ProjectID int64
	EventID   int64
	RecordID  int64
	FormName  string
	FieldName string
	Instance  int
	Value     float64
}

// Strategy flags the subset of observations considered outliers.
type Strategy interface {
	Name() string
	Flag(obs []Observation) []Observation
}

// Strategy names accepted in configuration. Legacy configs spell Chauvenet
// "Chauvanet"; both spellings are accepted.
const (
	StrategyChauvenet = "Chauvenet"
	StrategyPierce    = "Pierce"
	StrategyQQ        = "QQ"
)

// ForName returns the named strategy. Unrecognized names fall back to
// Chauvenet's criterion.
func ForName(name string) Strategy {
	switch name {
	case StrategyPierce:
		return Pierce{}
	case StrategyQQ:
		return QQ{}
	case StrategyChauvenet, "Chauvanet":
		return Chauvenet{}
	}
	return Chauvenet{}
}
