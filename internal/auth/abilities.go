package auth

import "github.com/arkham-district/secure-tokens/pkg/models"

// Can reports whether c grants ability: either c is unrestricted or ability
// is an exact member of its abilities.
func Can(c *models.Credential, ability string) bool {
	return c != nil && c.Abilities.Has(ability)
}

// Cant is the negation of Can.
func Cant(c *models.Credential, ability string) bool {
	return !Can(c, ability)
}

// CanGrant reports whether a request authenticated with c may issue a
// credential carrying requested. Requested abilities are normalized the way
// the Issuer stores them, so an empty request asks for the wildcard.
//
// A nil c means an injected principal, which may grant anything, as may an
// unrestricted credential. Any other credential may only hand out abilities
// it holds itself.
func CanGrant(c *models.Credential, requested []string) bool {
	if c == nil || c.Abilities.Unrestricted() {
		return true
	}
	want := normalizeAbilities(requested)
	if want.Unrestricted() {
		return false
	}
	for _, a := range want {
		if !c.Abilities.Has(a) {
			return false
		}
	}
	return true
}
