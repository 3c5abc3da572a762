package feature

import "strings"

// UnknownCode is the default ordinal reserved for categorical values outside
// the training vocabulary. Kept configurable so deployments can align it with
// whatever the encoder tables were trained with.
const UnknownCode = -1

// Vocab holds the ordinal encoder tables for categorical fields.
//
// The tables are versioned configuration: they were fixed when the model was
// trained and must only change together with the schema version. Lookups are
// case-insensitive; a value missing from its table encodes as the unknown
// code rather than failing the request.
type Vocab struct {
	timeOfDay        map[string]float64
	dayOfWeek        map[string]int
	deviceType       map[string]float64
	merchantCategory map[string]float64
	unknown          float64
}

// timeOfDayHours maps each bucket to a representative hour, used when a
// record carries a bucket label but no parseable timestamp.
var timeOfDayHours = map[string]int{
	"morning":   9,
	"afternoon": 14,
	"evening":   19,
	"night":     1,
}

// DefaultVocab returns the encoder tables for the current schema version.
func DefaultVocab() *Vocab {
	return NewVocab(UnknownCode)
}

// NewVocab builds the encoder tables with a custom unknown-category code.
func NewVocab(unknownCode float64) *Vocab {
	return &Vocab{
		timeOfDay: map[string]float64{
			"morning":   0,
			"afternoon": 1,
			"evening":   2,
			"night":     3,
		},
		dayOfWeek: map[string]int{
			"sunday":    0,
			"monday":    1,
			"tuesday":   2,
			"wednesday": 3,
			"thursday":  4,
			"friday":    5,
			"saturday":  6,
		},
		deviceType: map[string]float64{
			"mobile":  0,
			"desktop": 1,
			"tablet":  2,
			"pos":     3,
		},
		merchantCategory: map[string]float64{
			"retail":        0,
			"grocery":       1,
			"restaurant":    2,
			"travel":        3,
			"entertainment": 4,
			"electronics":   5,
			"utilities":     6,
			"other":         7,
		},
		unknown: unknownCode,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// TimeOfDayCode encodes a time-of-day bucket label.
func (v *Vocab) TimeOfDayCode(label string) float64 {
	if code, ok := v.timeOfDay[normalize(label)]; ok {
		return code
	}
	return v.unknown
}

// TimeOfDayHour returns the representative hour for a bucket label.
func (v *Vocab) TimeOfDayHour(label string) (int, bool) {
	h, ok := timeOfDayHours[normalize(label)]
	return h, ok
}

// Weekday returns the 0-6 weekday index for a day label (Sunday = 0).
func (v *Vocab) Weekday(label string) (int, bool) {
	d, ok := v.dayOfWeek[normalize(label)]
	return d, ok
}

// DeviceTypeCode encodes a device type label.
func (v *Vocab) DeviceTypeCode(label string) float64 {
	if code, ok := v.deviceType[normalize(label)]; ok {
		return code
	}
	return v.unknown
}

// MerchantCategoryCode encodes a merchant category label.
func (v *Vocab) MerchantCategoryCode(label string) float64 {
	if code, ok := v.merchantCategory[normalize(label)]; ok {
		return code
	}
	return v.unknown
}
