package protocol

// ErrorMessage reports a failure to the client. Code is a runtime error
// code such as "K070", or one of the transport codes below.
//
// Wire format:
//
//	[code][message][fatal]
type ErrorMessage struct {
	Code    string
	Message string

	// Fatal tells the client the session is gone and it must reload.
	Fatal bool
}

// Transport error codes.
const (
	CodeInvalidFrame    = "P001"
	CodeInvalidEvent    = "P002"
	CodeUnknownTarget   = "P003"
	CodeSessionNotFound = "P004"
	CodeServerError     = "P100"
)

// EncodeErrorMessage encodes an error message.
func EncodeErrorMessage(em *ErrorMessage) []byte {
	e := NewEncoder()
	e.WriteString(em.Code)
	e.WriteString(em.Message)
	e.WriteBool(em.Fatal)
	return e.Bytes()
}

// DecodeErrorMessage decodes an error message.
func DecodeErrorMessage(data []byte) (*ErrorMessage, error) {
	d := NewDecoder(data)
	em := &ErrorMessage{}
	var err error
	if em.Code, err = d.ReadString(); err != nil {
		return nil, err
	}
	if em.Message, err = d.ReadString(); err != nil {
		return nil, err
	}
	if em.Fatal, err = d.ReadBool(); err != nil {
		return nil, err
	}
	return em, d.finish()
}

// Error implements the error interface.
func (em *ErrorMessage) Error() string {
	if em.Fatal {
		return "fatal: " + em.Code + ": " + em.Message
	}
	return em.Code + ": " + em.Message
}
