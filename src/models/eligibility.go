package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"tix/src/types"
)

// RuleKind enumerates the closed set of eligibility rule variants.
// Rules are structured data evaluated by Accepts, never expressions
// executed against admin- or buyer-controlled strings.
type RuleKind string

const (
	RULE_ALWAYS    RuleKind = "always"
	RULE_NEVER     RuleKind = "never"
	RULE_ADMIN     RuleKind = "admin"
	RULE_FLAG      RuleKind = "flag"
	RULE_ALLOWLIST RuleKind = "allowlist"
	RULE_ALL       RuleKind = "all"
	RULE_ANY       RuleKind = "any"
)

// Rule is an eligibility predicate over a buyer profile. FLAG checks a
// boolean membership attribute by name, ALLOWLIST checks the user id,
// ALL/ANY combine sub-rules.
type Rule struct {
	Kind    RuleKind `json:"kind"`
	Flag    string   `json:"flag,omitempty"`
	UserIDs []uint   `json:"user_ids,omitempty"`
	Rules   []Rule   `json:"rules,omitempty"`
}

var ErrProfileIncomplete = errors.New("profile attribute unavailable")

// Accepts evaluates the rule against a buyer profile. A missing or
// malformed attribute returns an error so callers fail closed instead
// of guessing.
func (r Rule) Accepts(p types.Profile) (bool, error) {
	switch r.Kind {
	case RULE_ALWAYS:
		return true, nil
	case RULE_NEVER:
		return false, nil
	case RULE_ADMIN:
		return p.Admin, nil
	case RULE_FLAG:
		raw, ok := p.Attributes[r.Flag]
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrProfileIncomplete, r.Flag)
		}
		val, ok := raw.(bool)
		if !ok {
			return false, fmt.Errorf("%w: %s is not a boolean", ErrProfileIncomplete, r.Flag)
		}
		return val, nil
	case RULE_ALLOWLIST:
		for _, id := range r.UserIDs {
			if id == p.UserID {
				return true, nil
			}
		}
		return false, nil
	case RULE_ALL:
		for _, sub := range r.Rules {
			ok, err := sub.Accepts(p)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case RULE_ANY:
		for _, sub := range r.Rules {
			ok, err := sub.Accepts(p)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("unknown rule kind %q", r.Kind)
}

func (r Rule) Value() (driver.Value, error) {
	valueString, err := json.Marshal(r)
	return string(valueString), err
}

func (r *Rule) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return errors.New("type assertion to []byte failed")
		}
		b = []byte(s)
	}
	return json.Unmarshal(b, r)
}
