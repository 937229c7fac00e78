package codec

import "time"

// Layout of the 14-digit Egyptian national ID:
//
//	C YY MM DD GG SSS X K
//
// C century (2=1900s, 3=2000s), YYMMDD birth date, GG governorate,
// SSS serial, X gender (odd male), K check digit (not verified).
const (
	egyptianIDLength = 14
	genderDigitIndex = 12
)

var centuryBase = map[byte]int{
	'2': 1900,
	'3': 2000,
}

// Egyptian implements Codec for the Egyptian national ID scheme.
type Egyptian struct {
	now Clock
}

type EgyptianOption func(*Egyptian)

// WithClock overrides "today" for future-date checks.
func WithClock(now Clock) EgyptianOption {
	return func(e *Egyptian) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEgyptian(opts ...EgyptianOption) *Egyptian {
	e := &Egyptian{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Egyptian) Scheme() Scheme { return SchemeEgyptian }

// Validate checks the identifier in a fixed order and reports the first
// failure: length, charset, century, year, month, day, full date, governorate.
func (e *Egyptian) Validate(raw string) error {
	if _, err := e.birthDate(raw); err != nil {
		return err
	}
	if _, ok := egyptianGovernorates[raw[7:9]]; !ok {
		return newValidationError(KindBadGovernorate)
	}
	return nil
}

// Extract decodes raw. Structural and date failures are errors; an unknown
// governorate code degrades to "Unknown" since callers validate first.
func (e *Egyptian) Extract(raw string) (*Record, error) {
	dob, err := e.birthDate(raw)
	if err != nil {
		return nil, err
	}

	gender := GenderFemale
	if (raw[genderDigitIndex]-'0')%2 == 1 {
		gender = GenderMale
	}

	return &Record{
		NationalID:  raw,
		DateOfBirth: dob.Format(time.DateOnly),
		Governorate: GovernorateName(raw[7:9]),
		Gender:      gender,
	}, nil
}

// birthDate runs every check up to and including the full calendar date.
func (e *Egyptian) birthDate(raw string) (time.Time, error) {
	if len(raw) != egyptianIDLength {
		return time.Time{}, newValidationError(KindBadLength)
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return time.Time{}, newValidationError(KindBadCharset)
		}
	}

	base, ok := centuryBase[raw[0]]
	if !ok {
		return time.Time{}, newValidationError(KindBadCentury)
	}

	today := e.now()
	year := base + twoDigits(raw[1:3])
	if year > today.Year() {
		return time.Time{}, newValidationError(KindBadYear)
	}

	month := twoDigits(raw[3:5])
	if month < 1 || month > 12 {
		return time.Time{}, newValidationError(KindBadMonth)
	}

	day := twoDigits(raw[5:7])
	if day < 1 || day > 31 {
		return time.Time{}, newValidationError(KindBadDay)
	}

	// time.Date normalizes overflow (Feb 30 -> Mar 2); a round trip mismatch
	// means the day does not exist in that month.
	dob := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if dob.Month() != time.Month(month) || dob.Day() != day {
		return time.Time{}, newValidationError(KindBadDate)
	}
	y, m, d := today.Date()
	if dob.After(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)) {
		return time.Time{}, newValidationError(KindBadDate)
	}

	return dob, nil
}

// twoDigits assumes s holds two ASCII digits, checked by the caller.
func twoDigits(s string) int {
	return int(s[0]-'0')*10 + int(s[1]-'0')
}
