// Package action defines the tagged payloads carried by inline buttons.
//
// A token is a kind plus an optional numeric id and string argument. The kind
// travels as the telebot unique and selects exactly one handler, so routing never
// depends on prefix order.
package action

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind names a button action.
type Kind string

const (
	ChallengeAnswer Kind = "ch"
	PickService     Kind = "svc"
	PickContact     Kind = "cm"
	Confirm         Kind = "cf"
	Appeal          Kind = "appeal"
	WhyBanned       Kind = "why"
	Noop            Kind = "noop"

	AdminPage    Kind = "a_page"
	AdminOrder   Kind = "a_order"
	AdminStatus  Kind = "a_status"
	AdminMenu    Kind = "a_menu"
	AdminUnbans  Kind = "a_unbans"
	AdminUnban   Kind = "a_unban"
	AdminApprove Kind = "a_approve"
	AdminReject  Kind = "a_reject"
)

// ClientKinds are the kinds handled by the conversation engine.
var ClientKinds = []Kind{ChallengeAnswer, PickService, PickContact, Confirm, Appeal, WhyBanned}

// AdminKinds are the kinds handled by the admin console.
var AdminKinds = []Kind{AdminPage, AdminOrder, AdminStatus, AdminMenu, AdminUnbans, AdminUnban, AdminApprove, AdminReject}

// Token is a decoded button payload.
type Token struct {
	Kind Kind
	ID   int64
	Arg  string
}

// New builds a token with an id.
func New(kind Kind, id int64) Token {
	return Token{Kind: kind, ID: id}
}

// WithArg builds a token with a string argument.
func WithArg(kind Kind, arg string) Token {
	return Token{Kind: kind, Arg: arg}
}

// Data renders the payload part of the token: "ID" or "ID:Arg".
func (t Token) Data() string {
	id := strconv.FormatInt(t.ID, 10)
	if t.Arg == "" {
		return id
	}
	return id + ":" + t.Arg
}

func (t Token) String() string {
	return string(t.Kind) + "|" + t.Data()
}

// Decode parses a kind and payload produced by Data.
func Decode(kind, data string) (Token, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return Token{}, fmt.Errorf("action: empty kind")
	}
	t := Token{Kind: Kind(kind)}
	if data == "" {
		return t, nil
	}
	idPart, arg, _ := strings.Cut(data, ":")
	if idPart != "" {
		id, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil {
			return Token{}, fmt.Errorf("action: bad id %q: %w", idPart, err)
		}
		t.ID = id
	}
	t.Arg = arg
	return t, nil
}
