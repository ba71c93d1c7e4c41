package transport

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// NetworkErrorType тип сетевой ошибки
type NetworkErrorType int

const (
	ErrorTypeUnknown    NetworkErrorType = iota // Неклассифицированная ошибка
	ErrorTypeTimeout                            // Таймаут (нормальное поведение при опросе)
	ErrorTypeTemporary                          // Временная ошибка (retry возможен)
	ErrorTypeConnection                         // ICMP ошибки соединения
	ErrorTypeClosed                             // Сокет закрыт
	ErrorTypePermanent                          // Постоянная ошибка (retry бессмыслен)
)

func (t NetworkErrorType) String() string {
	switch t {
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeTemporary:
		return "temporary"
	case ErrorTypeConnection:
		return "connection"
	case ErrorTypeClosed:
		return "closed"
	case ErrorTypePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ClassifiedError обертка для сетевых ошибок с дополнительной информацией
type ClassifiedError struct {
	Type      NetworkErrorType
	Operation string
	Err       error
	Retryable bool
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %s (type: %s, retryable: %t)",
		e.Operation, e.Err.Error(), e.Type, e.Retryable)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Classify анализирует сетевую ошибку. Возвращает nil для nil.
func Classify(operation string, err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	classified := &ClassifiedError{
		Operation: operation,
		Err:       err,
		Type:      ErrorTypeUnknown,
	}

	var netErr net.Error
	switch {
	case errors.Is(err, net.ErrClosed):
		classified.Type = ErrorTypeClosed
	case errors.As(err, &netErr) && netErr.Timeout():
		classified.Type = ErrorTypeTimeout
		classified.Retryable = true
	case errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.EINTR), errors.Is(err, syscall.ENOBUFS):
		classified.Type = ErrorTypeTemporary
		classified.Retryable = true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		// на UDP это отложенный ICMP ответ на предыдущую отправку
		classified.Type = ErrorTypeConnection
		classified.Retryable = true
	case errors.Is(err, syscall.EINVAL), errors.Is(err, syscall.EACCES),
		errors.Is(err, syscall.EBADF), errors.Is(err, syscall.EAFNOSUPPORT):
		classified.Type = ErrorTypePermanent
	}

	return classified
}
