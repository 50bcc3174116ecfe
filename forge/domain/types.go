// Package domain holds the records shared by the order-intake bot components.
package domain

import (
	"strconv"
	"time"
)

// Identity is the Telegram user id of a chat participant.
type Identity int64

// String renders the identity as a decimal id.
func (i Identity) String() string {
	return strconv.FormatInt(int64(i), 10)
}

// OrderKind distinguishes catalog orders from free-form custom orders.
type OrderKind string

const (
	// KindCatalog is an order for a service from the catalog.
	KindCatalog OrderKind = "catalog"
	// KindCustom is an order described by the client from scratch.
	KindCustom OrderKind = "custom"
)

// Valid reports whether k is a known order kind.
func (k OrderKind) Valid() bool {
	return k == KindCatalog || k == KindCustom
}

// OrderStatus is the triage status of an order.
type OrderStatus string

const (
	StatusNew        OrderStatus = "new"
	StatusInProgress OrderStatus = "in_progress"
	StatusDone       OrderStatus = "done"
	StatusCancelled  OrderStatus = "cancelled"
)

// ActiveStatuses lists statuses shown in the live triage list.
var ActiveStatuses = []OrderStatus{StatusNew, StatusInProgress}

// AllStatuses lists every order status in display order.
var AllStatuses = []OrderStatus{StatusNew, StatusInProgress, StatusDone, StatusCancelled}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether the order is still open for triage.
func (s OrderStatus) Active() bool {
	return s == StatusNew || s == StatusInProgress
}

// CanMoveTo reports whether the admin may move an order from s to next.
func (s OrderStatus) CanMoveTo(next OrderStatus) bool {
	if !s.Active() {
		return false
	}
	switch next {
	case StatusInProgress, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// ContactMethod is how the client wants to be reached.
type ContactMethod string

const (
	ContactPhone    ContactMethod = "phone"
	ContactTelegram ContactMethod = "telegram"
	ContactEmail    ContactMethod = "email"
)

// ContactMethods lists supported methods in keyboard order.
var ContactMethods = []ContactMethod{ContactPhone, ContactTelegram, ContactEmail}

// Valid reports whether m is a supported contact method.
func (m ContactMethod) Valid() bool {
	switch m {
	case ContactPhone, ContactTelegram, ContactEmail:
		return true
	}
	return false
}

// UnbanStatus is the decision state of an unban request.
type UnbanStatus string

const (
	UnbanPending  UnbanStatus = "pending"
	UnbanApproved UnbanStatus = "approved"
	UnbanRejected UnbanStatus = "rejected"
)

// Client is a person who confirmed at least one order.
type Client struct {
	ID          int64    `db:"id"`
	Identity    Identity `db:"identity"`
	DisplayName string   `db:"display_name"`
	Username    *string  `db:"username"`
}

// Order is a confirmed order. Optional fields depend on Kind.
type Order struct {
	ID            int64         `db:"id"`
	ClientID      int64         `db:"client_id"`
	Kind          OrderKind     `db:"kind"`
	ServiceCode   *string       `db:"service_code"`
	Title         *string       `db:"title"`
	Description   string        `db:"description"`
	Budget        *string       `db:"budget"`
	Deadline      *string       `db:"deadline"`
	ContactMethod ContactMethod `db:"contact_method"`
	ContactValue  string        `db:"contact_value"`
	Status        OrderStatus   `db:"status"`
	CreatedAt     time.Time     `db:"created_at"`
}

// OrderView is an order joined with its client for admin screens.
type OrderView struct {
	Order
	ClientName     *string   `db:"client_name"`
	ClientIdentity *Identity `db:"client_identity"`
	ClientUsername *string   `db:"client_username"`
}

// BanRecord restricts an identity from using the bot while Active.
type BanRecord struct {
	Identity  Identity  `db:"identity"`
	Reason    string    `db:"reason"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}

// UnbanRequest is an appeal filed by a banned identity.
type UnbanRequest struct {
	ID        int64       `db:"id"`
	Identity  Identity    `db:"identity"`
	Reason    string      `db:"reason"`
	Status    UnbanStatus `db:"status"`
	CreatedAt time.Time   `db:"created_at"`
}

// StatusCount is one row of order statistics.
type StatusCount struct {
	Status OrderStatus `db:"status"`
	Count  int         `db:"count"`
}
