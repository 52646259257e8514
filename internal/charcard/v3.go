package charcard

import "github.com/tidwall/sjson"

// withV3SpecFields stamps the V3 spec markers onto characterJSON using
// sjson's in-place path sets, avoiding a full unmarshal/remarshal round
// trip for what is otherwise a pass-through blob.
func withV3SpecFields(characterJSON string) (string, bool) {
	stamped, err := sjson.Set(characterJSON, "spec", "chara_card_v3")
	if err != nil {
		return "", false
	}
	stamped, err = sjson.Set(stamped, "spec_version", "3.0")
	if err != nil {
		return "", false
	}
	return stamped, true
}
