package session

import "github.com/dmitrijs2005/useraccounts/internal/client/backend"

type State int

const (
	Unknown State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Group is a set of screens that can be navigated between freely.
type Group int

const (
	GroupSplash Group = iota
	GroupAuth
	GroupMain
)

func (g Group) String() string {
	switch g {
	case GroupAuth:
		return "auth"
	case GroupMain:
		return "main"
	default:
		return "splash"
	}
}

type Screen string

const (
	Splash      Screen = "Splash"
	Login       Screen = "Login"
	Register    Screen = "Register"
	Home        Screen = "Home"
	EditProfile Screen = "EditProfile"
)

var groupScreens = map[Group][]Screen{
	GroupSplash: {Splash},
	GroupAuth:   {Login, Register},
	GroupMain:   {Home, EditProfile},
}

// Screens lists the screens of g; the first one is the entry screen.
func (g Group) Screens() []Screen {
	return append([]Screen(nil), groupScreens[g]...)
}

// Snapshot is one published state of the machine.
type Snapshot struct {
	State    State
	Identity *backend.Identity
	Group    Group

	seq uint64
}

// Reachable lists the screens that may be shown.
func (s Snapshot) Reachable() []Screen {
	return s.Group.Screens()
}

// CanShow reports whether screen belongs to the reachable group.
func (s Snapshot) CanShow(screen Screen) bool {
	for _, sc := range groupScreens[s.Group] {
		if sc == screen {
			return true
		}
	}
	return false
}

func sameIdentity(a, b *backend.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
