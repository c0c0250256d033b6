package profile

import (
	"strconv"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/client/backend"
)

type Status int

const (
	// Loading is the minimal view shown while the record is fetched.
	Loading Status = iota
	// Fresh views carry the stored record.
	Fresh
	// Unregistered means the account has no profile record yet.
	Unregistered
	// Offline means the record could not be fetched in time.
	Offline
)

func (s Status) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Unregistered:
		return "unregistered"
	case Offline:
		return "offline"
	default:
		return "loading"
	}
}

// Placeholders shown for fields that only the profile record carries.
const (
	PlaceholderLoading      = "Cargando..."
	PlaceholderUnregistered = "No registrada"
	PlaceholderOffline      = "No disponible (sin conexión)"
	PlaceholderUnspecified  = "No especificada"
	DefaultDisplayName      = "Usuario"
)

// View is what the profile screens render. Age and Specialty are display
// strings and hold a placeholder whenever the record does not provide them.
type View struct {
	AccountID    string
	DisplayName  string
	Email        string
	Age          string
	Specialty    string
	RegisteredAt time.Time
	Active       bool
	LastModified time.Time
	AvatarKey    string

	Status Status
	// Retryable is set when the fetch failed and a refresh may succeed.
	Retryable bool
	// Stale is set on an Offline view that still shows the last record
	// fetched.
	Stale bool
	// NeedsCompletion asks the user to fill in the missing record.
	NeedsCompletion bool
}

// Minimal builds the view available from the identity alone.
func Minimal(id backend.Identity) View {
	name := id.DisplayName
	if name == "" {
		name = DefaultDisplayName
	}
	return View{
		AccountID:   id.UID,
		DisplayName: name,
		Email:       id.Email,
		Age:         PlaceholderLoading,
		Specialty:   PlaceholderLoading,
		Status:      Loading,
	}
}

// Merge lays rec over minimal. Record fields win; the identity fields of
// minimal are used only where the record is empty.
func Merge(minimal View, rec Record) View {
	v := minimal
	v.Status = Fresh
	v.Retryable, v.Stale, v.NeedsCompletion = false, false, false

	if rec.DisplayName != "" {
		v.DisplayName = rec.DisplayName
	}
	if rec.Email != "" {
		v.Email = rec.Email
	}
	v.Age = PlaceholderUnspecified
	if rec.Age > 0 {
		v.Age = strconv.Itoa(rec.Age)
	}
	v.Specialty = PlaceholderUnspecified
	if rec.Specialty != "" {
		v.Specialty = rec.Specialty
	}
	v.RegisteredAt = rec.RegisteredAt
	v.LastModified = rec.LastModified
	v.Active = rec.Active
	v.AvatarKey = rec.AvatarKey
	return v
}

func unregistered(minimal View) View {
	v := minimal
	v.Age, v.Specialty = PlaceholderUnregistered, PlaceholderUnregistered
	v.Status = Unregistered
	v.NeedsCompletion = true
	return v
}

// offline degrades last when it is a fresh view of the same account and
// falls back to minimal otherwise.
func offline(minimal, last View) View {
	if last.AccountID == minimal.AccountID && (last.Status == Fresh || last.Stale) {
		v := last
		v.Status = Offline
		v.Retryable = true
		v.Stale = true
		return v
	}
	v := minimal
	v.Age, v.Specialty = PlaceholderOffline, PlaceholderOffline
	v.Status = Offline
	v.Retryable = true
	return v
}
