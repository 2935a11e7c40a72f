package concentrationdto

type ErrorKind string

const (
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindConflict           ErrorKind = "CONFLICT"
	KindInvalidInput       ErrorKind = "INVALID_INPUT"
	KindIndexOutOfRange    ErrorKind = "INDEX_OUT_OF_RANGE"
	KindDuplicateChoice    ErrorKind = "DUPLICATE_CHOICE"
	KindAlreadyMatched     ErrorKind = "ALREADY_MATCHED"
	KindInvalidState       ErrorKind = "INVALID_STATE"
	KindIntegrityViolation ErrorKind = "INTEGRITY_VIOLATION"
	KindInternal           ErrorKind = "INTERNAL"
)

type DomainError struct {
	Kind    ErrorKind
	Message string
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind != "" {
		return string(e.Kind)
	}
	return "concentration service error"
}
