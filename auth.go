package surrealism

// Auth holds sign-in credentials. NS, DB and SC select the level the user
// is defined on; Extra carries additional fields for scope sign-in.
type Auth struct {
	User  string
	Pass  string
	NS    string
	DB    string
	SC    string
	Extra map[string]any
}

func (a Auth) params() map[string]any {
	m := make(map[string]any, len(a.Extra)+5)
	for k, v := range a.Extra {
		m[k] = v
	}
	set := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	set("user", a.User)
	set("pass", a.Pass)
	set("NS", a.NS)
	set("DB", a.DB)
	set("SC", a.SC)
	return m
}

// credentials turns Auth into the wire form. Anything else is sent as is.
func credentials(creds any) any {
	switch c := creds.(type) {
	case Auth:
		return c.params()
	case *Auth:
		if c == nil {
			return map[string]any{}
		}
		return c.params()
	default:
		return creds
	}
}
