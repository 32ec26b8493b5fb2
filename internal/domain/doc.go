// Package domain models the roof-runoff sensor series and the numeric
// treatment applied to them.
//
// # Data Source
//
// Each roof under test carries an ultrasonic level sensor over a cylindrical
// collector and a volume counter. Readings are published by the field
// devices to a broker, exported as JSON lines, split per topic, and reduced to
// two named fields per reading: a timestamp and a value.
//
// # Data Conventions
//
// Time format:
//
//	"H:MM" in 24-hour notation, e.g. "9:05", "14:30". The date is not part of
//	the stamp; [TimeParser] anchors it on a configured base date. Full layouts
//	and RFC 3339 are accepted as well.
//
// Units:
//
//	Level:     cm
//	Volume:    cm³
//	Discharge: cm³/min (level delta × collector area ÷ minutes)
//
// Missing values:
//
//	Empty strings, "NA", "NaN", "null" and anything that does not parse as a
//	number are dropped and counted, never read as zero. See [Coerce].
//
// # Monotonic Correction
//
// Sensor noise shows up as spurious decreases. [CorrectMonotonic] keeps the
// non-decreasing progression in one scan direction:
//
//	Forward  (level):  trust the first reading, drop anything below the running maximum.
//	Backward (volume): trust the final reading, scan back, drop earlier readings
//	                   below the running maximum. The first reading is always kept.
//
// # Discharge
//
// [FlowRate] takes backward differences of a corrected level series. Deltas are
// computed as earlier minus later for both level and time, so the ratio keeps
// the sign convention of the original experiment sheets.
//
// # Smoothing
//
// [FitSeries] fits a least-squares polynomial (degree 5 by default) over
// elapsed hours and differentiates it analytically. Curves are sampled lazily
// at a fixed number of equally spaced points.
package domain
