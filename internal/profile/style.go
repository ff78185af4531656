package profile

// Style tags.
const (
	TagTactical     = "tactical"
	TagPositional   = "positional"
	TagAggressive   = "aggressive"
	TagTimeTrouble  = "time-trouble-prone"
	TagBlunderProne = "blunder-prone"
	TagSolid        = "solid"
	TagEndgame      = "endgame-player"
)

// StyleThresholds decide which tags a profile earns. Rates are per game
// unless noted.
type StyleThresholds struct {
	// Tactical and Positional bound the tactical score from above and
	// below.
	Tactical   float64 `koanf:"tactical" json:"tactical"`
	Positional float64 `koanf:"positional" json:"positional"`

	// Aggressive is the early swings per game of an aggressive player.
	Aggressive float64 `koanf:"aggressive" json:"aggressive"`

	// TimeTrouble is the time-trouble incidence of a time-trouble-prone
	// player.
	TimeTrouble float64 `koanf:"time_trouble" json:"time_trouble"`

	BlunderProne float64 `koanf:"blunder_prone" json:"blunder_prone"`

	// Solid is the highest dip rate of a solid player.
	Solid float64 `koanf:"solid" json:"solid"`

	// Endgame is the fraction of games reaching an endgame.
	Endgame float64 `koanf:"endgame" json:"endgame"`

	// MinGames is the number of games needed before any tag is given.
	MinGames int `koanf:"min_games" json:"min_games"`
}

// DefaultStyleThresholds returns the default style thresholds.
func DefaultStyleThresholds() StyleThresholds {
	return StyleThresholds{
		Tactical:     0.25,
		Positional:   0.10,
		Aggressive:   1.0,
		TimeTrouble:  0.25,
		BlunderProne: 1.0,
		Solid:        0.5,
		Endgame:      0.4,
		MinGames:     1,
	}
}

func (th StyleThresholds) withDefaults() StyleThresholds {
	def := DefaultStyleThresholds()
	if th.Tactical <= 0 {
		th.Tactical = def.Tactical
	}
	if th.Positional <= 0 {
		th.Positional = def.Positional
	}
	if th.Aggressive <= 0 {
		th.Aggressive = def.Aggressive
	}
	if th.TimeTrouble <= 0 {
		th.TimeTrouble = def.TimeTrouble
	}
	if th.BlunderProne <= 0 {
		th.BlunderProne = def.BlunderProne
	}
	if th.Solid <= 0 {
		th.Solid = def.Solid
	}
	if th.Endgame <= 0 {
		th.Endgame = def.Endgame
	}
	if th.MinGames <= 0 {
		th.MinGames = def.MinGames
	}
	return th
}

// Tags derives style tags from a profile's aggregate numbers alone.
func Tags(p *Profile, th StyleThresholds) []string {
	th = th.withDefaults()
	tags := []string{}
	if p.TotalGames < th.MinGames {
		return tags
	}

	switch {
	case p.TacticalScore >= th.Tactical:
		tags = append(tags, TagTactical)
	case p.TacticalScore <= th.Positional:
		tags = append(tags, TagPositional)
	}
	if p.EarlySwingsPerGame >= th.Aggressive {
		tags = append(tags, TagAggressive)
	}
	if p.TimeTroubleIncidence >= th.TimeTrouble {
		tags = append(tags, TagTimeTrouble)
	}
	if p.BlundersPerGame >= th.BlunderProne {
		tags = append(tags, TagBlunderProne)
	}
	if p.DipsPerGame <= th.Solid {
		tags = append(tags, TagSolid)
	}
	if p.EndgameRate >= th.Endgame {
		tags = append(tags, TagEndgame)
	}
	return tags
}
