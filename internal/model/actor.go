package model

const (
	RoleAdmin   = "admin"
	RoleCourier = "courier"
)

// Actor is the authenticated caller of a mutating operation, extracted from
// the auth token by the HTTP layer.
type Actor struct {
	ID   int
	Role string
}
