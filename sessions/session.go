package sessions

import "encoding/json"

// Keys under which the session is persisted. Together they are the whole on-disk contract:
// all three present after a login, all three absent after a logout.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
	UserDataKey     = "user_data"
)

// UserProfile is the account record returned by the backend on login. Fields the backend sends
// beyond the ones below are kept and written back unchanged.
type UserProfile struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role,omitempty"`
	Phone     string `json:"phone,omitempty"`

	extra map[string]json.RawMessage
}

type profileFields UserProfile

// Field returns a field the backend sent that has no named counterpart, e.g. "date_joined".
func (u UserProfile) Field(name string) (json.RawMessage, bool) {
	v, ok := u.extra[name]
	return v, ok
}

func (u *UserProfile) UnmarshalJSON(data []byte) error {
	var fields profileFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, known := range []string{"id", "email", "first_name", "last_name", "role", "phone"} {
		delete(all, known)
	}
	*u = UserProfile(fields)
	if len(all) > 0 {
		u.extra = all
	}
	return nil
}

func (u UserProfile) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(profileFields(u))
	if err != nil || len(u.extra) == 0 {
		return data, err
	}
	all := make(map[string]json.RawMessage, len(u.extra)+6)
	for k, v := range u.extra {
		all[k] = v
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(data, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		all[k] = v
	}
	return json.Marshal(all)
}

// FullName joins first and last name, falling back to the email address
func (u UserProfile) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Email
}

// Session is the authenticated identity of the current process.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *UserProfile

	// Tenant is the optional tenant profile attached to the login response. It is not persisted.
	Tenant json.RawMessage
}
