package codec

// Kind classifies why an identifier was rejected.
type Kind string

const (
	KindBadLength      Kind = "bad_length"
	KindBadCharset     Kind = "bad_charset"
	KindBadCentury     Kind = "bad_century"
	KindBadYear        Kind = "bad_year"
	KindBadMonth       Kind = "bad_month"
	KindBadDay         Kind = "bad_day"
	KindBadDate        Kind = "bad_date"
	KindBadGovernorate Kind = "bad_governorate"
)

// FieldNationalID is the request field every validation error points at.
const FieldNationalID = "national_id"

var kindMessages = map[Kind]string{
	KindBadLength:      "National ID must be exactly 14 characters",
	KindBadCharset:     "ID value must be digits only",
	KindBadCentury:     "Invalid century digit",
	KindBadYear:        "Invalid year",
	KindBadMonth:       "Invalid month",
	KindBadDay:         "Invalid day",
	KindBadDate:        "Invalid date of birth",
	KindBadGovernorate: "Invalid governorate code",
}

// ValidationError is returned for every rejected identifier. Message is
// safe to show to API callers.
type ValidationError struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func newValidationError(kind Kind) *ValidationError {
	return &ValidationError{Kind: kind, Field: FieldNationalID, Message: kindMessages[kind]}
}
