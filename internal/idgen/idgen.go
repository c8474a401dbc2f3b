// Package idgen formats and parses the sequential display identifiers used by
// customers, accounts, meters and requests (e.g. CUST-0042).
package idgen

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmehdipour/utility-billing/internal/model"
)

type Entity string

const (
	EntityCustomer Entity = "customer"
	EntityAccount  Entity = "account"
	EntityRequest  Entity = "request"
	EntityMeter    Entity = "meter"
)

// Entities lists all sequenced entity types.
var Entities = []Entity{EntityCustomer, EntityAccount, EntityRequest, EntityMeter}

var prefixes = map[Entity]string{
	EntityCustomer: "CUST",
	EntityAccount:  "ACC",
	EntityRequest:  "REQ",
	EntityMeter:    "MTR",
}

var suffixRe = regexp.MustCompile(`^([A-Z]+)-(\d{4,})$`)

func (e Entity) String() string { return string(e) }

// Prefix returns the fixed display prefix of e, or "" for unknown entities.
func (e Entity) Prefix() string { return prefixes[e] }

// Format renders n zero-padded to 4 digits.
func Format(e Entity, n int64) string {
	return fmt.Sprintf("%s-%04d", e.Prefix(), n)
}

// HasPrefix reports whether id claims to be an identifier of e, i.e. starts
// with "PREFIX-". Such ids must parse; ids without the prefix are free-form.
func HasPrefix(e Entity, id string) bool {
	p := e.Prefix()
	return p != "" && strings.HasPrefix(id, p+"-")
}

// LikePattern is the SQL LIKE pattern matching ids that carry e's prefix.
func LikePattern(e Entity) string { return e.Prefix() + "-%" }

// Pattern is the anchored regular expression a well-formed id of e matches,
// usable in MySQL REGEXP.
func Pattern(e Entity) string { return "^" + e.Prefix() + "-[0-9]{4,}$" }

// Parse extracts the numeric suffix of id. Anything not shaped like
// PREFIX-#### for entity e is ErrMalformedIdentifier.
func Parse(e Entity, id string) (int64, error) {
	m := suffixRe.FindStringSubmatch(id)
	if m == nil || m[1] != e.Prefix() {
		return 0, fmt.Errorf("%w: %q is not a %s identifier", model.ErrMalformedIdentifier, id, e)
	}
	n, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", model.ErrMalformedIdentifier, id, err)
	}
	return n, nil
}

// Next parses last and returns the following identifier. An empty last
// means no identifier was ever stored and yields suffix 1.
func Next(e Entity, last string) (string, int64, error) {
	var n int64
	if last != "" {
		var err error
		if n, err = Parse(e, last); err != nil {
			return "", 0, err
		}
	}
	n++
	return Format(e, n), n, nil
}
