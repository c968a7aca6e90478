package auth

type State int

const (
	Uninitialized State = iota
	JarReady
	HasAuthCookie
	NeedsLogin
	LoginAttempted
	CsrfPending
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case JarReady:
		return "jar-ready"
	case HasAuthCookie:
		return "has-auth-cookie"
	case NeedsLogin:
		return "needs-login"
	case LoginAttempted:
		return "login-attempted"
	case CsrfPending:
		return "csrf-pending"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}
