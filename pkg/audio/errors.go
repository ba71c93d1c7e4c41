package audio

import "fmt"

// ErrorCode типизированный код ошибки аудио движка
type ErrorCode int

const (
	ErrorCodeConfiguration ErrorCode = iota + 2000
	ErrorCodeCleanup
	ErrorCodeDuplicateName
	ErrorCodeNotFound
	ErrorCodeDevice
	ErrorCodeInvalidState
	ErrorCodeChainLocked
	ErrorCodeEngineStopped
)

// String возвращает строковое представление кода ошибки
func (code ErrorCode) String() string {
	switch code {
	case ErrorCodeConfiguration:
		return "ConfigurationError"
	case ErrorCodeCleanup:
		return "CleanupError"
	case ErrorCodeDuplicateName:
		return "DuplicateName"
	case ErrorCodeNotFound:
		return "NotFound"
	case ErrorCodeDevice:
		return "DeviceError"
	case ErrorCodeInvalidState:
		return "InvalidState"
	case ErrorCodeChainLocked:
		return "ChainLocked"
	case ErrorCodeEngineStopped:
		return "EngineStopped"
	default:
		return fmt.Sprintf("Unknown(%d)", int(code))
	}
}

// Сентинельные ошибки для errors.Is. Сравнение идет по коду,
// поэтому errors.Is(err, ErrNotFound) сработает для любой AudioError
// с кодом ErrorCodeNotFound.
var (
	ErrDuplicateName = &AudioError{Code: ErrorCodeDuplicateName, Message: "процессор с таким именем уже есть в цепочке"}
	ErrNotFound      = &AudioError{Code: ErrorCodeNotFound, Message: "процессор не найден"}
	ErrChainLocked   = &AudioError{Code: ErrorCodeChainLocked, Message: "цепочку нельзя менять после подготовки"}
	ErrEngineStopped = &AudioError{Code: ErrorCodeEngineStopped, Message: "движок остановлен, нужен Reset"}
	ErrInvalidState  = &AudioError{Code: ErrorCodeInvalidState, Message: "операция недопустима в текущем состоянии"}
	ErrConfiguration = &AudioError{Code: ErrorCodeConfiguration, Message: "ошибка конфигурации"}
	ErrDevice        = &AudioError{Code: ErrorCodeDevice, Message: "ошибка устройства"}
)

// AudioError ошибка аудио движка.
// Processor заполняется, если ошибка относится к конкретному процессору.
type AudioError struct {
	Code      ErrorCode
	Processor string
	Message   string
	Wrapped   error
}

// Error реализует интерфейс error
func (e *AudioError) Error() string {
	msg := fmt.Sprintf("[аудио:%s] %s", e.Code, e.Message)
	if e.Processor != "" {
		msg = fmt.Sprintf("[аудио:%s] процессор %q: %s", e.Code, e.Processor, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap возвращает обернутую ошибку
func (e *AudioError) Unwrap() error {
	return e.Wrapped
}

// Is сравнивает ошибки по коду
func (e *AudioError) Is(target error) bool {
	if t, ok := target.(*AudioError); ok {
		return e.Code == t.Code
	}
	return false
}

func newError(code ErrorCode, processor, message string, wrapped error) *AudioError {
	return &AudioError{
		Code:      code,
		Processor: processor,
		Message:   message,
		Wrapped:   wrapped,
	}
}
