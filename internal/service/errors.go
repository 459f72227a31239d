package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a request the client must correct
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound covers missing rows and rows owned by someone else
	ErrNotFound = errors.New("not found")
	// ErrPersistence marks a failed write; it is fatal only for the step that hit it
	ErrPersistence = errors.New("persistence failure")
	// ErrConflict marks a uniqueness violation the client caused
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized marks bad credentials
	ErrUnauthorized = errors.New("unauthorized")
)

// User-facing messages
const (
	MsgConversationNotFound = "Conversa não encontrada"
	MsgCharacterNotFound    = "Personagem não encontrado"
	MsgMessageNotFound      = "Mensagem não encontrada"
	MsgEmptyContent         = "Conteúdo da mensagem não pode estar vazio"
	MsgNothingToUpdate      = "Nenhum dado para atualizar"
	MsgMissingData          = "Dados obrigatórios não fornecidos"
)

// Error pairs a sentinel kind with the message shown to the client
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func invalidInput(msg string) error { return &Error{Kind: ErrInvalidInput, Message: msg} }

func notFound(msg string) error { return &Error{Kind: ErrNotFound, Message: msg} }

func persistence(err error) error { return fmt.Errorf("%w: %w", ErrPersistence, err) }
