// Package item holds the item model the guard validates against: a plain
// value representation of a host item stack plus its cryptographic
// fingerprint. The host adapter converts engine-native stacks into this
// form at the event boundary.
package item

// Stack is a host-neutral item stack. The zero value is air.
type Stack struct {
	Material        string
	Amount          int
	Durability      int
	Name            string
	Lore            []string
	Enchantments    map[string]int
	Unbreakable     bool
	CustomModelData int
}

// Air is the empty stack sentinel.
var Air = Stack{}

func (s Stack) IsAir() bool {
	return s.Material == "" || s.Material == "AIR" || s.Amount <= 0
}

// Clone returns a deep copy. Authoritative storage must never alias a
// host-owned stack, so every write into guard state goes through Clone.
func (s Stack) Clone() Stack {
	c := s
	if s.Lore != nil {
		c.Lore = make([]string, len(s.Lore))
		copy(c.Lore, s.Lore)
	}
	if s.Enchantments != nil {
		c.Enchantments = make(map[string]int, len(s.Enchantments))
		for k, v := range s.Enchantments {
			c.Enchantments[k] = v
		}
	}
	return c
}
