package errprocess

import (
	"errors"

	"messaging_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// Kind definition stable error kind
// UI 層只依 kind 對應文案，不解析 message 字串
type Kind string

const (
	// KindNotFound target record not exist
	KindNotFound Kind = "not_found"
	// KindForbidden requester is not participant or not sender
	KindForbidden Kind = "forbidden"
	// KindInvalidBody empty or oversized message body
	KindInvalidBody Kind = "invalid_body"
	// KindInvalidParticipants participants less than 2 or duplicated
	KindInvalidParticipants Kind = "invalid_participants"
	// KindInvalidStateTransition conversation status transition not allowed
	KindInvalidStateTransition Kind = "invalid_state_transition"
	// KindConflict concurrent update lost the race
	KindConflict Kind = "conflict"
	// KindUnavailable persistence or transport backend unreachable
	KindUnavailable Kind = "unavailable"
)

// Error definition error with stable kind
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

// New create kind error, 同時寫入 log
func New(kind Kind, msg string) error {
	logger.Log.Error(string(kind) + " : " + msg)
	return &Error{Kind: kind, Msg: msg}
}

// KindOf get the kind from err
// 非本 package 產生的錯誤(如 db 斷線)一律視為 unavailable
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnavailable
}

// Is check err kind
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus kind 對應 http status code
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return fiber.StatusNotFound
	case KindForbidden:
		return fiber.StatusForbidden
	case KindInvalidBody, KindInvalidParticipants, KindInvalidStateTransition:
		return fiber.StatusBadRequest
	case KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusServiceUnavailable
	}
}
