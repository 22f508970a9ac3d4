package schedule

// Query is a validated range request. Date keeps the caller's raw string;
// the range is computed by Range when it is needed.
type Query struct {
	Kind Kind
	Date string
}

// ParseQuery validates the kind first and the date second, so the returned
// error wraps either ErrUnknownKind or ErrInvalidDate.
func ParseQuery(rawKind, rawDate string) (Query, error) {
	kind, err := ParseKind(rawKind)
	if err != nil {
		return Query{}, err
	}
	if _, err := Calculate(kind, rawDate); err != nil {
		return Query{}, err
	}
	return Query{Kind: kind, Date: rawDate}, nil
}

func (q Query) Range() (DateRange, error) {
	return Calculate(q.Kind, q.Date)
}
