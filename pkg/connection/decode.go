package connection

import (
	"fmt"

	"github.com/Chooks22/surrealism/internal/codec"
	"github.com/Chooks22/surrealism/pkg/constants"
)

// Decode unmarshals raw into a T. Null decodes to the zero value.
func Decode[T any](u codec.Unmarshaler, raw codec.RawMessage) (T, error) {
	var v T
	if raw.IsNull() {
		return v, nil
	}
	err := u.Unmarshal(raw, &v)
	return v, err
}

// DecodeRecord unmarshals a single record. Servers answer selects on a
// record id either with the record or with an array holding it; both
// forms are accepted. Null and empty arrays decode to nil.
func DecodeRecord[T any](u codec.Unmarshaler, raw codec.RawMessage) (*T, error) {
	if raw.IsNull() {
		return nil, nil
	}

	var many []T
	if err := u.Unmarshal(raw, &many); err == nil {
		if len(many) == 0 {
			return nil, nil
		}
		return &many[0], nil
	}

	var one T
	if err := u.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return &one, nil
}

// DecodeQuery unmarshals a query response. The first statement that did not
// succeed is reported as ErrQuery.
func DecodeQuery[T any](u codec.Unmarshaler, raw codec.RawMessage) ([]QueryResult[T], error) {
	var statements []QueryResult[codec.RawMessage]
	if err := u.Unmarshal(raw, &statements); err != nil {
		return nil, err
	}

	results := make([]QueryResult[T], 0, len(statements))
	for i, st := range statements {
		if st.Status != "OK" {
			detail, _ := Decode[any](u, st.Result)
			return nil, fmt.Errorf("%w: statement %d: %s: %v", constants.ErrQuery, i, st.Status, detail)
		}

		v, err := Decode[T](u, st.Result)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i, err)
		}
		results = append(results, QueryResult[T]{Status: st.Status, Time: st.Time, Result: v})
	}

	return results, nil
}
