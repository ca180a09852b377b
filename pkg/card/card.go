// Package card renders the printable passport card of a student or teacher:
// the baked photo, the profile fields and a QR code that links to the
// profile's verification page.
package card

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/internal/utils"
	"github.com/deutschvfx-create/EduFlow-2026-Platform-sub000/pkg/types"
)

// DateLayout formats birth dates on the card
const DateLayout = "02.01.2006"

// Field is one labelled line of text on the card
type Field struct {
	Label string
	Value string
}

// VerifyURL returns the verification link encoded in the QR code:
// <origin>/verify/<role>/<id>
func VerifyURL(origin string, ref types.ProfileRef) string {
	return fmt.Sprintf("%s/verify/%s/%s",
		strings.TrimRight(origin, "/"), ref.Role, url.PathEscape(ref.ID))
}

var upper = cases.Upper(language.Und)

// ExportFilename returns <ROLE>_<LASTNAME>_<FIRSTNAME>.png, uppercased.
// Characters that are unsafe in file names become underscores.
func ExportFilename(p types.Profile) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Role.String(), p.LastName, p.FirstName} {
		s = utils.SanitizeFilename(upper.String(strings.TrimSpace(s)))
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "CARD")
	}
	return strings.Join(parts, "_") + ".png"
}

// Title returns the card heading for a role
func Title(role types.Role) string {
	switch role {
	case types.RoleTeacher:
		return "TEACHER ID"
	default:
		return "STUDENT ID"
	}
}

// FieldsFor lists the text fields printed for a profile. Students and
// teachers share the layout and differ only in these fields.
func FieldsFor(p types.Profile) []Field {
	birth := "-"
	if p.BirthDate != nil && !p.BirthDate.IsZero() {
		birth = p.BirthDate.Format(DateLayout)
	}
	orDash := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "-"
		}
		return s
	}

	switch p.Role {
	case types.RoleTeacher:
		return []Field{
			{"Name", p.FullName()},
			{"Date of birth", birth},
			{"Status", orDash(p.Status)},
			{"Staff no.", p.ID},
		}
	default:
		return []Field{
			{"Name", p.FullName()},
			{"Date of birth", birth},
			{"Gender", orDash(p.Gender)},
			{"Status", orDash(p.Status)},
			{"Student no.", p.ID},
		}
	}
}
