package domain

// User identifies a tracker account.
type User struct {
	ID       int
	Username string
	Name     string
}
