package sqlitereader

import "fmt"

// Kind is the textual error taxonomy of spec §6: callers switch on an
// EngineError's Kind field rather than on Go error types.
type Kind string

const (
	KindInvalidFormat     Kind = "InvalidFormat"
	KindInvalidPage       Kind = "InvalidPage"
	KindInvalidRecord     Kind = "InvalidRecord"
	KindInvalidVarint     Kind = "InvalidVarint"
	KindTableNotFound     Kind = "TableNotFound"
	KindColumnNotFound    Kind = "ColumnNotFound"
	KindSchemaError       Kind = "SchemaError"
	KindQueryError        Kind = "QueryError"
	KindUnsupportedFeature Kind = "UnsupportedFeature"
	KindIo                Kind = "Io"
)

// EngineError is the engine's wrapping error type: an operation name,
// the underlying cause, a diagnostic context map, and a taxonomy kind
// (generalized from the teacher's DatabaseError).
type EngineError struct {
	Operation string
	Kind      Kind
	Err       error
	Context   map[string]interface{}
}

func (e *EngineError) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("sqlitereader: %s: %s: %v", e.Operation, e.Kind, e.Err)
	}
	return fmt.Sprintf("sqlitereader: %s: %s: %v (context: %+v)", e.Operation, e.Kind, e.Err, e.Context)
}

func (e *EngineError) Unwrap() error { return e.Err }

// newError builds an EngineError with optional context pairs (name,
// value, name, value, ...).
func newError(op string, kind Kind, err error, kv ...interface{}) *EngineError {
	var ctx map[string]interface{}
	if len(kv) > 0 {
		ctx = make(map[string]interface{}, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			if key, ok := kv[i].(string); ok {
				ctx[key] = kv[i+1]
			}
		}
	}
	return &EngineError{Operation: op, Kind: kind, Err: err, Context: ctx}
}
