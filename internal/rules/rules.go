// Package rules holds the reminder cadence and risk-weight table shared by the
// notification sweep, the risk scorer and any display code.
package rules

import "strings"

// --------------------------------------------------------------------------
// Reminder cadence
// --------------------------------------------------------------------------

const (
	// LookaheadDays bounds the candidate query: next_maintenance <= today + LookaheadDays.
	LookaheadDays = 30
	// OverdueCadenceDays is the re-notify period once a component is overdue.
	OverdueCadenceDays = 7
)

// ReminderOffsets are the days-until-due values that trigger a reminder.
var ReminderOffsets = []int{30, 14, 7, 3, 1, 0}

// --------------------------------------------------------------------------
// Risk scoring
// --------------------------------------------------------------------------

const (
	MaxScore = 100

	OverduePointsPerDay = 2
	OverduePenaltyCap   = 30

	StaleAfterDays = 365
	StalePenalty   = 10

	DefaultWeight = 5
)

// Level is the coarse risk classification.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Thresholds are checked top-down; the first one the score reaches wins.
var Thresholds = []struct {
	Min   int
	Level Level
}{
	{80, LevelCritical},
	{60, LevelHigh},
	{40, LevelMedium},
}

// Category describes how a maintenance category contributes to risk.
type Category struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Weight   int    `json:"weight"`
	Critical bool   `json:"critical"`
}

// Categories is keyed by normalized category key.
var Categories = map[string]Category{
	"heating":     {Key: "heating", Label: "Heizung", Weight: 15, Critical: true},
	"fire_safety": {Key: "fire_safety", Label: "Brandschutz", Weight: 20, Critical: true},
	"electrical":  {Key: "electrical", Label: "Elektrik", Weight: 12, Critical: true},
	"plumbing":    {Key: "plumbing", Label: "Sanitär", Weight: 10},
	"elevator":    {Key: "elevator", Label: "Aufzug", Weight: 18, Critical: true},
}

// aliases maps the German catalog spellings onto category keys.
var aliases = map[string]string{
	"heizung":     "heating",
	"brandschutz": "fire_safety",
	"feuer":       "fire_safety",
	"elektro":     "electrical",
	"elektrik":    "electrical",
	"sanitär":     "plumbing",
	"sanitaer":    "plumbing",
	"wasser":      "plumbing",
	"aufzug":      "elevator",
	"lift":        "elevator",
	"fire":        "fire_safety",
}

// Normalize turns a catalog category ("Fire-Safety", "Heizung") into a key.
func Normalize(category string) string {
	key := strings.ToLower(strings.TrimSpace(category))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if alias, ok := aliases[key]; ok {
		return alias
	}
	return key
}

// Lookup returns the category entry, or a zero-valued default entry with
// DefaultWeight for unknown categories.
func Lookup(category string) Category {
	key := Normalize(category)
	if c, ok := Categories[key]; ok {
		return c
	}
	return Category{Key: key, Label: category, Weight: DefaultWeight}
}

// Classify maps a clamped score onto a level.
func Classify(score int) Level {
	for _, t := range Thresholds {
		if score >= t.Min {
			return t.Level
		}
	}
	return LevelLow
}

// IsReminderOffset reports whether daysUntil is one of ReminderOffsets.
func IsReminderOffset(daysUntil int) bool {
	for _, d := range ReminderOffsets {
		if d == daysUntil {
			return true
		}
	}
	return false
}

// Table is the JSON view served to display code.
type Table struct {
	LookaheadDays       int           `json:"lookaheadDays"`
	OverdueCadenceDays  int           `json:"overdueCadenceDays"`
	ReminderOffsets     []int         `json:"reminderOffsets"`
	MaxScore            int           `json:"maxScore"`
	OverduePointsPerDay int           `json:"overduePointsPerDay"`
	OverduePenaltyCap   int           `json:"overduePenaltyCap"`
	StaleAfterDays      int           `json:"staleAfterDays"`
	StalePenalty        int           `json:"stalePenalty"`
	DefaultWeight       int           `json:"defaultWeight"`
	Categories          []Category    `json:"categories"`
	LevelThresholds     map[Level]int `json:"levelThresholds"`
}

// Snapshot returns the current table in a stable order.
func Snapshot() Table {
	order := []string{"fire_safety", "elevator", "heating", "electrical", "plumbing"}
	cats := make([]Category, 0, len(order))
	for _, k := range order {
		cats = append(cats, Categories[k])
	}
	levels := make(map[Level]int, len(Thresholds))
	for _, t := range Thresholds {
		levels[t.Level] = t.Min
	}
	return Table{
		LookaheadDays:       LookaheadDays,
		OverdueCadenceDays:  OverdueCadenceDays,
		ReminderOffsets:     append([]int(nil), ReminderOffsets...),
		MaxScore:            MaxScore,
		OverduePointsPerDay: OverduePointsPerDay,
		OverduePenaltyCap:   OverduePenaltyCap,
		StaleAfterDays:      StaleAfterDays,
		StalePenalty:        StalePenalty,
		DefaultWeight:       DefaultWeight,
		Categories:          cats,
		LevelThresholds:     levels,
	}
}
