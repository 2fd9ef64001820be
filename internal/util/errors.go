package util

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailRegistered  = errors.New("email already registered")
	ErrInvalidLogin     = errors.New("invalid credentials")
	ErrPermissionDenied = errors.New("permission denied")

	ErrQuizNotFound            = errors.New("quiz not found")
	ErrQuizClosed              = errors.New("quiz is no longer accepting answers")
	ErrQuestionNotFound        = errors.New("question not found")
	ErrQuestionAlreadyAnswered = errors.New("question already answered")
	ErrAnswerOutOfRange        = errors.New("answer index out of range")

	ErrDeckNotFound  = errors.New("flashcard deck not found")
	ErrCardNotFound  = errors.New("flashcard not found")
	ErrDeckEnded     = errors.New("free trial deck finished")
	ErrTooManyCards  = errors.New("too many cards for this deck")
	ErrDeckHasNoCard = errors.New("deck has no cards")
	ErrDeckMoved     = errors.New("deck position changed, reload and retry")
)
