package auth

// userIdentity is the plain Identity snapshot used for token claims.
type userIdentity struct {
	id       string
	username string
	email    string
	roles    []string
}

var _ Identity = (*userIdentity)(nil)

// NewIdentity builds an immutable Identity snapshot.
func NewIdentity(id, username, email string, roles []string) Identity {
	return &userIdentity{
		id:       id,
		username: username,
		email:    email,
		roles:    append([]string(nil), roles...),
	}
}

// IdentityFromUserRecord adapts the user store's record into the snapshot
// consumed by the token codec. The password hash never crosses over.
func IdentityFromUserRecord(record *UserRecord) Identity {
	if record == nil {
		return nil
	}
	return NewIdentity(record.ID, record.Username, record.Email, record.Roles)
}

func (u *userIdentity) ID() string { return u.id }

func (u *userIdentity) Username() string { return u.username }

func (u *userIdentity) Email() string { return u.email }

func (u *userIdentity) Roles() []string {
	return append([]string(nil), u.roles...)
}
