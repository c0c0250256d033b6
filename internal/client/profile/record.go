// Package profile keeps the signed-in user's profile view in step with the
// document store.
//
// Loading is two-phase: a minimal view built from the identity alone is
// published at once, then a bounded fetch of the profile document either
// replaces it with the stored record, marks it unregistered, or marks it
// unavailable. Fetch failures never escape as errors; they only downgrade
// the published view.
package profile

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/client/backend"
)

// Document field names of a profile record.
const (
	fieldUID          = "uid"
	fieldName         = "nombre"
	fieldEmail        = "correo"
	fieldAge          = "edad"
	fieldSpecialty    = "especialidad"
	fieldRegisteredAt = "fechaRegistro"
	fieldActive       = "activo"
	fieldModifiedAt   = "fechaModificacion"
	fieldAvatarKey    = "avatarKey"
)

// Record is the profile document stored under the account id.
type Record struct {
	AccountID    string
	DisplayName  string
	Email        string
	Age          int
	Specialty    string
	RegisteredAt time.Time
	Active       bool
	LastModified time.Time
	AvatarKey    string
}

// Document encodes r for the store. Zero timestamps and an empty avatar key
// are left out.
func (r Record) Document() backend.Document {
	doc := backend.Document{
		fieldUID:       r.AccountID,
		fieldName:      r.DisplayName,
		fieldEmail:     r.Email,
		fieldAge:       r.Age,
		fieldSpecialty: r.Specialty,
		fieldActive:    r.Active,
	}
	if !r.RegisteredAt.IsZero() {
		doc[fieldRegisteredAt] = formatTime(r.RegisteredAt)
	}
	if !r.LastModified.IsZero() {
		doc[fieldModifiedAt] = formatTime(r.LastModified)
	}
	if r.AvatarKey != "" {
		doc[fieldAvatarKey] = r.AvatarKey
	}
	return doc
}

// DecodeRecord reads a stored profile document. Missing or mistyped fields
// decode to their zero value; the account id always comes from key.
func DecodeRecord(key string, doc backend.Document) Record {
	return Record{
		AccountID:    key,
		DisplayName:  str(doc[fieldName]),
		Email:        str(doc[fieldEmail]),
		Age:          integer(doc[fieldAge]),
		Specialty:    str(doc[fieldSpecialty]),
		RegisteredAt: timestamp(doc[fieldRegisteredAt]),
		Active:       boolean(doc[fieldActive]),
		LastModified: timestamp(doc[fieldModifiedAt]),
		AvatarKey:    str(doc[fieldAvatarKey]),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func boolean(v any) bool {
	b, _ := v.(bool)
	return b
}

func integer(v any) int {
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) {
			return int(n)
		}
	case int:
		return n
	case int64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return 0
}

func timestamp(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
